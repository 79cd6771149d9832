package mattermost

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const (
	requestTimeout = 10 * time.Second
	postsPath      = "/api/v4/posts"

	// attachmentColor is the accent stripe on attachment messages.
	attachmentColor = "#009d31"
	authorLine      = "GitHub review and CI failure alerts"
	fallbackText    = "notification"
)

var (
	errMissingServerURL = errors.New("mattermost: server url is required")
	errMissingToken     = errors.New("mattermost: bot token is required")
)

// Field is one key/value entry of an attachment.
type Field struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

// Attachment is the structured message body posted to a channel.
type Attachment struct {
	Fallback   string  `json:"fallback"`
	Color      string  `json:"color"`
	Title      string  `json:"title"`
	AuthorName string  `json:"author_name"`
	Fields     []Field `json:"fields"`
}

type postRequest struct {
	ChannelID string    `json:"channel_id"`
	Message   string    `json:"message,omitempty"`
	Props     *postProp `json:"props,omitempty"`
}

type postProp struct {
	Attachments []Attachment `json:"attachments"`
}

// ClientConfig describes the settings of the chat transport client.
type ClientConfig struct {
	ServerURL  string
	BotToken   string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client posts messages to Mattermost channels with a bot bearer token.
type Client struct {
	serverURL  string
	botToken   string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient constructs the client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.ServerURL == "" {
		return nil, errMissingServerURL
	}
	if cfg.BotToken == "" {
		return nil, errMissingToken
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: requestTimeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		serverURL:  cfg.ServerURL,
		botToken:   cfg.BotToken,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// PostAttachment sends a structured notification to one channel.
func (c *Client) PostAttachment(ctx context.Context, channelID, title string, fields []Field) error {
	payload := postRequest{
		ChannelID: channelID,
		Props: &postProp{
			Attachments: []Attachment{{
				Fallback:   fallbackText,
				Color:      attachmentColor,
				Title:      title,
				AuthorName: authorLine,
				Fields:     fields,
			}},
		},
	}
	return c.post(ctx, payload)
}

// PostText sends a plain text message to one channel.
func (c *Client) PostText(ctx context.Context, channelID, message string) error {
	return c.post(ctx, postRequest{ChannelID: channelID, Message: message})
}

func (c *Client) post(ctx context.Context, payload postRequest) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("mattermost: encoding post: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serverURL+postsPath, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("mattermost: building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.botToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("mattermost: posting to channel %s: %w", payload.ChannelID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return fmt.Errorf("mattermost: posting to channel %s: status %d: %s",
			payload.ChannelID, resp.StatusCode, string(detail))
	}

	c.logger.Debug("message posted", zap.String("channel_id", payload.ChannelID))
	return nil
}
