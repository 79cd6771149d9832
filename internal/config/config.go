package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix           = "PRHERALD"
	defaultHTTPAddress  = "0.0.0.0:8080"
	defaultDatabasePath = "prherald.db"
	defaultLogLevel     = "info"
	defaultGitHubAPIURL = "https://api.github.com"
	defaultCronSpec     = "0 * * * *"
	defaultTimezone     = "Asia/Seoul"
	defaultBusinessFrom = 9
	defaultBusinessTo   = 19
)

// AppConfig captures runtime configuration for the crawler and notifier service.
type AppConfig struct {
	HTTPAddress      string
	DatabasePath     string
	LogLevel         string
	GitHubToken      string
	GitHubAPIURL     string
	MattermostURL    string
	MattermostToken  string
	ScheduleEnabled  bool
	CronSpec         string
	Timezone         string
	Holidays         []string
	BusinessHourFrom int
	BusinessHourTo   int
	CrawlTriggerURL  string
	NotifyTriggerURL string
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("github.api_url", defaultGitHubAPIURL)
	configViper.SetDefault("schedule.enabled", true)
	configViper.SetDefault("schedule.cron", defaultCronSpec)
	configViper.SetDefault("schedule.timezone", defaultTimezone)
	configViper.SetDefault("schedule.holidays", []string{})
	configViper.SetDefault("schedule.business_hour_from", defaultBusinessFrom)
	configViper.SetDefault("schedule.business_hour_to", defaultBusinessTo)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:      configViper.GetString("http.address"),
		DatabasePath:     configViper.GetString("database.path"),
		LogLevel:         configViper.GetString("log.level"),
		GitHubToken:      configViper.GetString("github.token"),
		GitHubAPIURL:     configViper.GetString("github.api_url"),
		MattermostURL:    configViper.GetString("mattermost.server_url"),
		MattermostToken:  configViper.GetString("mattermost.bot_token"),
		ScheduleEnabled:  configViper.GetBool("schedule.enabled"),
		CronSpec:         configViper.GetString("schedule.cron"),
		Timezone:         configViper.GetString("schedule.timezone"),
		Holidays:         configViper.GetStringSlice("schedule.holidays"),
		BusinessHourFrom: configViper.GetInt("schedule.business_hour_from"),
		BusinessHourTo:   configViper.GetInt("schedule.business_hour_to"),
		CrawlTriggerURL:  configViper.GetString("schedule.crawl_url"),
		NotifyTriggerURL: configViper.GetString("schedule.notify_url"),
	}

	if cfg.CrawlTriggerURL == "" {
		cfg.CrawlTriggerURL = fmt.Sprintf("http://%s/api/crawl", localDialAddress(cfg.HTTPAddress))
	}
	if cfg.NotifyTriggerURL == "" {
		cfg.NotifyTriggerURL = fmt.Sprintf("http://%s/api/notify", localDialAddress(cfg.HTTPAddress))
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if strings.TrimSpace(c.GitHubToken) == "" {
		return fmt.Errorf("github.token is required")
	}
	if strings.TrimSpace(c.MattermostURL) == "" {
		return fmt.Errorf("mattermost.server_url is required")
	}
	if strings.TrimSpace(c.MattermostToken) == "" {
		return fmt.Errorf("mattermost.bot_token is required")
	}
	if c.BusinessHourFrom < 0 || c.BusinessHourFrom > 23 {
		return fmt.Errorf("schedule.business_hour_from must be an hour between 0 and 23")
	}
	if c.BusinessHourTo < 1 || c.BusinessHourTo > 24 {
		return fmt.Errorf("schedule.business_hour_to must be an hour between 1 and 24")
	}
	if c.BusinessHourFrom >= c.BusinessHourTo {
		return fmt.Errorf("schedule.business_hour_from must precede schedule.business_hour_to")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("schedule.timezone is not a recognized IANA location: %w", err)
	}
	for _, holiday := range c.Holidays {
		if _, err := time.Parse("2006-01-02", holiday); err != nil {
			return fmt.Errorf("schedule.holidays entry %q must use YYYY-MM-DD: %w", holiday, err)
		}
	}
	return nil
}

// localDialAddress rewrites a wildcard listen address into one the scheduler can dial.
func localDialAddress(listenAddress string) string {
	if strings.HasPrefix(listenAddress, "0.0.0.0:") {
		return "127.0.0.1:" + strings.TrimPrefix(listenAddress, "0.0.0.0:")
	}
	if strings.HasPrefix(listenAddress, "[::]:") {
		return "127.0.0.1:" + strings.TrimPrefix(listenAddress, "[::]:")
	}
	if strings.HasPrefix(listenAddress, ":") {
		return "127.0.0.1" + listenAddress
	}
	return listenAddress
}
