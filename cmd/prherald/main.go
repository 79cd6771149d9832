package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/prherald/prherald/internal/config"
	"github.com/prherald/prherald/internal/crawler"
	"github.com/prherald/prherald/internal/database"
	"github.com/prherald/prherald/internal/githubapi"
	"github.com/prherald/prherald/internal/ledger"
	"github.com/prherald/prherald/internal/logging"
	"github.com/prherald/prherald/internal/mattermost"
	"github.com/prherald/prherald/internal/notifier"
	"github.com/prherald/prherald/internal/registry"
	"github.com/prherald/prherald/internal/schedule"
	"github.com/prherald/prherald/internal/server"
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "prherald",
		Short: "GitHub activity crawler and Mattermost notifier",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("github-token", "", "GitHub API token (overrides env)")
	cmd.PersistentFlags().String("github-api-url", defaults.GetString("github.api_url"), "GitHub API base URL")
	cmd.PersistentFlags().String("mattermost-server-url", "", "Mattermost server base URL")
	cmd.PersistentFlags().String("mattermost-bot-token", "", "Mattermost bot token (overrides env)")
	cmd.PersistentFlags().Bool("schedule-enabled", defaults.GetBool("schedule.enabled"), "Run the cron trigger in-process")
	cmd.PersistentFlags().String("schedule-cron", defaults.GetString("schedule.cron"), "Cron expression for the trigger")
	cmd.PersistentFlags().String("schedule-timezone", defaults.GetString("schedule.timezone"), "IANA location for the trigger gate")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "github.token", "github-token")
	bindFlag(cmd, "github.api_url", "github-api-url")
	bindFlag(cmd, "mattermost.server_url", "mattermost-server-url")
	bindFlag(cmd, "mattermost.bot_token", "mattermost-bot-token")
	bindFlag(cmd, "schedule.enabled", "schedule-enabled")
	bindFlag(cmd, "schedule.cron", "schedule-cron")
	bindFlag(cmd, "schedule.timezone", "schedule-timezone")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.OpenSQLite(appConfig.DatabasePath, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	eventStore, err := ledger.NewPREventStore(db)
	if err != nil {
		return err
	}
	reviewStore, err := ledger.NewReviewStore(db)
	if err != nil {
		return err
	}
	workflowStore, err := ledger.NewWorkflowStore(db)
	if err != nil {
		return err
	}
	watermarkStore, err := ledger.NewWatermarkStore(db)
	if err != nil {
		return err
	}

	registryService, err := registry.NewService(registry.ServiceConfig{
		Database: db,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	githubClient, err := githubapi.NewClient(githubapi.ClientConfig{
		BaseURL: appConfig.GitHubAPIURL,
		Token:   appConfig.GitHubToken,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	mattermostClient, err := mattermost.NewClient(mattermost.ClientConfig{
		ServerURL: appConfig.MattermostURL,
		BotToken:  appConfig.MattermostToken,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	crawlEngine, err := crawler.NewService(crawler.ServiceConfig{
		Platform:     githubClient,
		Repositories: registryService,
		Events:       eventStore,
		Reviews:      reviewStore,
		Workflows:    workflowStore,
		Watermarks:   watermarkStore,
		Logger:       logger,
	})
	if err != nil {
		return err
	}

	location, err := time.LoadLocation(appConfig.Timezone)
	if err != nil {
		return err
	}

	notifyEngine, err := notifier.NewService(notifier.ServiceConfig{
		Poster:    mattermostClient,
		Channels:  registryService,
		Events:    eventStore,
		Reviews:   reviewStore,
		Workflows: workflowStore,
		Location:  location,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Crawler:  crawlEngine,
		Notifier: notifyEngine,
		Registry: registryService,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    appConfig.HTTPAddress,
		Handler: handler,
	}

	var trigger *schedule.Trigger
	if appConfig.ScheduleEnabled {
		gate, err := schedule.NewGate(location, appConfig.Holidays, appConfig.BusinessHourFrom, appConfig.BusinessHourTo)
		if err != nil {
			return err
		}
		trigger, err = schedule.NewTrigger(schedule.TriggerConfig{
			CronSpec:  appConfig.CronSpec,
			Location:  location,
			Gate:      gate,
			CrawlURL:  appConfig.CrawlTriggerURL,
			NotifyURL: appConfig.NotifyTriggerURL,
			Logger:    logger,
		})
		if err != nil {
			return err
		}
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	if trigger != nil {
		trigger.Start()
		defer func() {
			if err := trigger.Stop(); err != nil {
				logger.Warn("scheduler shutdown failed", zap.Error(err))
			}
		}()
	}

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
