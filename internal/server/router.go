package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/annolab/judgepool/internal/catalog"
	"github.com/annolab/judgepool/internal/judgement"
	"github.com/annolab/judgepool/internal/users"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const userIDContextKey = "judgepool_user_id"

var (
	errMissingTokenManager   = errors.New("token manager dependency required")
	errMissingEngine         = errors.New("distribution engine dependency required")
	errMissingCatalogService = errors.New("catalog service dependency required")
	errMissingUsersService   = errors.New("users service dependency required")
	errInvalidAuthorization  = errors.New("authorization header missing or invalid")
)

// TokenManager issues and validates the bearer tokens requests carry.
type TokenManager interface {
	IssueToken(ctx context.Context, userID string) (string, int64, error)
	ValidateToken(token string) (string, error)
}

// Dependencies wires the HTTP layer to the services it fronts.
type Dependencies struct {
	TokenManager   TokenManager
	Engine         *judgement.Engine
	CatalogService *catalog.Service
	UsersService   *users.Service
	Logger         *zap.Logger
}

// NewHTTPHandler builds the gin router for the API.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.TokenManager == nil {
		return nil, errMissingTokenManager
	}
	if deps.Engine == nil {
		return nil, errMissingEngine
	}
	if deps.CatalogService == nil {
		return nil, errMissingCatalogService
	}
	if deps.UsersService == nil {
		return nil, errMissingUsersService
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		tokens:  deps.TokenManager,
		engine:  deps.Engine,
		catalog: deps.CatalogService,
		users:   deps.UsersService,
		logger:  logger,
	}

	router.POST("/auth/token", handler.handleIssueToken)

	protected := router.Group("/")
	protected.Use(handler.authorizeRequest)
	protected.POST("/judgements/preload", handler.handlePreload)
	protected.POST("/judgements/:judgementID/submit", handler.handleSubmit)
	protected.GET("/judgements/export", handler.handleExport)
	protected.PUT("/pairs", handler.handleReplacePairs)
	protected.POST("/documents/import", handler.handleImportDocuments)
	protected.POST("/queries/import", handler.handleImportQueries)
	protected.GET("/settings", handler.handleGetSettings)
	protected.PUT("/settings", handler.handleUpdateSettings)

	return router, nil
}

type httpHandler struct {
	tokens  TokenManager
	engine  *judgement.Engine
	catalog *catalog.Service
	users   *users.Service
	logger  *zap.Logger
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	subject, err := h.tokens.ValidateToken(token)
	if err != nil {
		h.logger.Warn("token validation failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(userIDContextKey, subject)
	c.Next()
}
