package server

import (
	"bytes"
	"errors"
	"net/http"
	"strings"

	"github.com/annolab/judgepool/internal/catalog"
	"github.com/annolab/judgepool/internal/database"
	"github.com/annolab/judgepool/internal/judgement"
	"github.com/annolab/judgepool/internal/transfer"
	"github.com/annolab/judgepool/internal/users"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type tokenRequestPayload struct {
	UserID string `json:"user_id"`
}

type tokenResponsePayload struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

func (h *httpHandler) handleIssueToken(c *gin.Context) {
	var request tokenRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.UserID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	user, err := h.users.Lookup(c.Request.Context(), strings.TrimSpace(request.UserID))
	if err != nil {
		if errors.Is(err, users.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown_user"})
			return
		}
		h.logger.Error("user lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup_failed"})
		return
	}

	token, expiresIn, err := h.tokens.IssueToken(c.Request.Context(), user.ID)
	if err != nil {
		h.logger.Error("failed to issue token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token_issue_failed"})
		return
	}

	c.JSON(http.StatusOK, tokenResponsePayload{
		AccessToken: token,
		ExpiresIn:   expiresIn,
		TokenType:   "Bearer",
	})
}

func (h *httpHandler) handlePreload(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	items, err := h.engine.Preload(c.Request.Context(), userID)
	if err != nil {
		h.respondEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

type submitRequestPayload struct {
	RelevanceLevel     int   `json:"relevance_level"`
	RelevancePositions []int `json:"relevance_positions"`
	DurationMs         int64 `json:"duration_used_to_judge_ms"`
}

func (h *httpHandler) handleSubmit(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var request submitRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	updated, err := h.engine.Submit(c.Request.Context(), c.Param("judgementID"), userID, judgement.Rating{
		RelevanceLevel:     request.RelevanceLevel,
		RelevancePositions: request.RelevancePositions,
		DurationMs:         request.DurationMs,
	})
	if err != nil {
		h.respondEngineError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"judgement_id": updated.ID,
		"status":       updated.Status,
	})
}

func (h *httpHandler) handleExport(c *gin.Context) {
	records, err := h.engine.Export(c.Request.Context())
	if err != nil {
		h.respondEngineError(c, err)
		return
	}

	var buffer bytes.Buffer
	if err := transfer.WriteJudgements(&buffer, records); err != nil {
		h.logger.Error("export encoding failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "export_failed"})
		return
	}
	c.Data(http.StatusOK, "text/tab-separated-values; charset=utf-8", buffer.Bytes())
}

func (h *httpHandler) handleReplacePairs(c *gin.Context) {
	pairs, err := transfer.ParsePairs(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_pairs", "detail": err.Error()})
		return
	}
	if err := h.catalog.ReplaceAllPairs(c.Request.Context(), pairs); err != nil {
		h.logger.Error("pair replacement failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "replace_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"pair_count": len(pairs)})
}

type importResultPayload struct {
	ID      string `json:"id"`
	Version int    `json:"version,omitempty"`
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
}

func importResults(outcomes []catalog.ImportOutcome) []importResultPayload {
	results := make([]importResultPayload, 0, len(outcomes))
	for _, outcome := range outcomes {
		result := importResultPayload{ID: outcome.ID, Version: outcome.Version, Status: "ok"}
		if outcome.Err != nil {
			result.Status = "error"
			result.Error = outcome.Err.Error()
		}
		results = append(results, result)
	}
	return results
}

func (h *httpHandler) handleImportDocuments(c *gin.Context) {
	rows, err := transfer.ReadDocumentRows(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_payload", "detail": err.Error()})
		return
	}
	outcomes := h.catalog.ImportDocuments(c.Request.Context(), rows)
	c.JSON(http.StatusOK, gin.H{"results": importResults(outcomes)})
}

func (h *httpHandler) handleImportQueries(c *gin.Context) {
	rows, err := transfer.ReadQueryRows(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_payload", "detail": err.Error()})
		return
	}
	outcomes := h.catalog.ImportQueries(c.Request.Context(), rows)
	c.JSON(http.StatusOK, gin.H{"results": importResults(outcomes)})
}

type settingsPayload struct {
	AnnotationTargetPerUser int    `json:"annotation_target_per_user"`
	AnnotationTargetPerPair int    `json:"annotation_target_per_judg_pair"`
	JudgementMode           string `json:"judgement_mode"`
	RotateDocumentText      bool   `json:"rotate_document_text"`
}

func (h *httpHandler) handleGetSettings(c *gin.Context) {
	settings, err := h.catalog.Settings(c.Request.Context())
	if err != nil {
		h.logger.Error("settings lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "settings_failed"})
		return
	}
	c.JSON(http.StatusOK, settingsPayload{
		AnnotationTargetPerUser: settings.AnnotationTargetPerUser,
		AnnotationTargetPerPair: settings.AnnotationTargetPerPair,
		JudgementMode:           settings.JudgementMode,
		RotateDocumentText:      settings.RotateDocumentText,
	})
}

func (h *httpHandler) handleUpdateSettings(c *gin.Context) {
	var request settingsPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	err := h.catalog.UpdateSettings(c.Request.Context(), catalog.Settings{
		AnnotationTargetPerUser: request.AnnotationTargetPerUser,
		AnnotationTargetPerPair: request.AnnotationTargetPerPair,
		JudgementMode:           request.JudgementMode,
		RotateDocumentText:      request.RotateDocumentText,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_settings", "detail": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// respondEngineError maps engine failures onto the HTTP error taxonomy:
// missing records are 404, a foreign judgement is 403, a repeated submit is
// 409, retry exhaustion is 503.
func (h *httpHandler) respondEngineError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, users.ErrUserNotFound),
		errors.Is(err, judgement.ErrJudgementNotFound),
		errors.Is(err, catalog.ErrSettingsNotFound),
		errors.Is(err, catalog.ErrDocumentVersionNotFound),
		errors.Is(err, catalog.ErrQueryVersionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
	case errors.Is(err, judgement.ErrWrongUser):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	case errors.Is(err, judgement.ErrNotOpen):
		c.JSON(http.StatusConflict, gin.H{"error": "already_judged"})
	case database.IsSerializationConflict(err):
		h.logger.Error("serializable retries exhausted", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "try_again"})
	default:
		h.logger.Error("judgement request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
	}
}
