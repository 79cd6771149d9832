package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/prherald/prherald/internal/registry"
)

var (
	errMissingCrawler  = errors.New("crawl engine dependency required")
	errMissingNotifier = errors.New("notification engine dependency required")
	errMissingRegistry = errors.New("registry service dependency required")
)

// CrawlEngine triggers one crawl cycle.
type CrawlEngine interface {
	RunCycle(ctx context.Context) error
}

// NotificationEngine triggers one notification pass.
type NotificationEngine interface {
	Run(ctx context.Context) error
}

// Dependencies wires the HTTP boundary to the engines and the registry.
type Dependencies struct {
	Crawler  CrawlEngine
	Notifier NotificationEngine
	Registry *registry.Service
	Logger   *zap.Logger
}

// NewHTTPHandler builds the gin router exposing the trigger and admin endpoints.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Crawler == nil {
		return nil, errMissingCrawler
	}
	if deps.Notifier == nil {
		return nil, errMissingNotifier
	}
	if deps.Registry == nil {
		return nil, errMissingRegistry
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		crawler:  deps.Crawler,
		notifier: deps.Notifier,
		registry: deps.Registry,
		logger:   logger,
	}

	router.GET("/healthz", handler.handleHealth)

	api := router.Group("/api")
	api.POST("/crawl", handler.handleCrawl)
	api.POST("/notify", handler.handleNotify)
	api.GET("/repositories", handler.handleListRepositories)
	api.POST("/repositories", handler.handleAddRepository)
	api.POST("/repositories/deactivate", handler.handleDeactivateRepository)
	api.GET("/channels", handler.handleListChannels)
	api.POST("/channels", handler.handleAddChannel)
	api.POST("/channels/deactivate", handler.handleDeactivateChannel)

	return router, nil
}

type httpHandler struct {
	crawler  CrawlEngine
	notifier NotificationEngine
	registry *registry.Service
	logger   *zap.Logger
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *httpHandler) handleCrawl(c *gin.Context) {
	if err := h.crawler.RunCycle(c.Request.Context()); err != nil {
		h.logger.Error("crawl cycle failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *httpHandler) handleNotify(c *gin.Context) {
	if err := h.notifier.Run(c.Request.Context()); err != nil {
		h.logger.Error("notification pass failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type repositoryPayload struct {
	Owner string `json:"owner"`
	Repo  string `json:"repo"`
}

func (h *httpHandler) handleAddRepository(c *gin.Context) {
	var request repositoryPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	if err := h.registry.AddRepository(c.Request.Context(), request.Owner, request.Repo); err != nil {
		h.respondRegistryError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *httpHandler) handleDeactivateRepository(c *gin.Context) {
	var request repositoryPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	if err := h.registry.DeactivateRepository(c.Request.Context(), request.Owner, request.Repo); err != nil {
		h.respondRegistryError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *httpHandler) handleListRepositories(c *gin.Context) {
	repositories, err := h.registry.ListActiveRepositories(c.Request.Context())
	if err != nil {
		h.logger.Error("listing repositories failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	payload := make([]repositoryPayload, 0, len(repositories))
	for _, repository := range repositories {
		payload = append(payload, repositoryPayload{Owner: repository.Owner, Repo: repository.Repo})
	}
	c.JSON(http.StatusOK, gin.H{"repositories": payload})
}

type channelPayload struct {
	ChannelID string `json:"channel_id"`
}

func (h *httpHandler) handleAddChannel(c *gin.Context) {
	var request channelPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	if err := h.registry.AddChannel(c.Request.Context(), request.ChannelID); err != nil {
		h.respondRegistryError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *httpHandler) handleDeactivateChannel(c *gin.Context) {
	var request channelPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	if err := h.registry.DeactivateChannel(c.Request.Context(), request.ChannelID); err != nil {
		h.respondRegistryError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *httpHandler) handleListChannels(c *gin.Context) {
	channels, err := h.registry.ListActiveChannels(c.Request.Context())
	if err != nil {
		h.logger.Error("listing channels failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"channels": channels})
}

func (h *httpHandler) respondRegistryError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, registry.ErrInvalidOwner),
		errors.Is(err, registry.ErrInvalidRepo),
		errors.Is(err, registry.ErrInvalidChannelID):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.logger.Error("registry operation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
