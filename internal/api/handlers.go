package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/spacesedan/racepulse/internal/aggregate"
	"github.com/spacesedan/racepulse/internal/collector"
	"github.com/spacesedan/racepulse/internal/models"
)

type handlers struct {
	deps Deps
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func fail(c *gin.Context, status int, err error) {
	c.AbortWithStatusJSON(status, errorResponse{Success: false, Error: err.Error()})
}

func (h *handlers) health(c *gin.Context) {
	resp := gin.H{
		"status":         "healthy",
		"message":        "api is running smoothly!",
		"neural_enabled": h.deps.Engine != nil && h.deps.Engine.NeuralEnabled(),
	}
	if h.deps.NeuralHealthy != nil {
		resp["neural_healthy"] = h.deps.NeuralHealthy.Load()
	}
	if h.deps.Engine != nil {
		resp["items_scored"] = h.deps.Engine.Scored()
	}
	c.JSON(http.StatusOK, resp)
}

// ScoreRequest carries either a list of items or a single bare text.
type ScoreRequest struct {
	Items    []models.TextItem `json:"items"`
	Text     string            `json:"text"`
	GroupKey string            `json:"group_key"`
}

func (h *handlers) score(c *gin.Context) {
	if h.deps.Engine == nil {
		fail(c, http.StatusServiceUnavailable, errors.New("scoring engine not available"))
		return
	}

	var req ScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	items := req.Items
	if len(items) == 0 && req.Text != "" {
		items = []models.TextItem{{
			ID:        uuid.NewString(),
			RawText:   req.Text,
			CreatedAt: time.Now().UTC(),
			Kind:      models.PrimaryItem,
			GroupKey:  req.GroupKey,
		}}
	}

	switch {
	case len(items) == 0:
		fail(c, http.StatusBadRequest, errors.New("provide items or text"))
		return
	case len(items) > h.deps.MaxScoreItems:
		fail(c, http.StatusRequestEntityTooLarge,
			fmt.Errorf("at most %d items per request, got %d", h.deps.MaxScoreItems, len(items)))
		return
	}

	for i := range items {
		if items[i].ID == "" {
			items[i].ID = uuid.NewString()
		}
		if items[i].Kind == "" {
			items[i].Kind = models.PrimaryItem
		}
		if !items[i].Kind.Valid() {
			fail(c, http.StatusBadRequest, fmt.Errorf("item %s has unknown kind %q", items[i].ID, items[i].Kind))
			return
		}
	}

	results, err := h.deps.Engine.ProcessBatch(c.Request.Context(), items)
	if err != nil {
		slog.Warn("[API] Scoring interrupted",
			slog.Int("scored", len(results)),
			slog.Int("requested", len(items)),
			slog.String("error", err.Error()))
		fail(c, http.StatusServiceUnavailable, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "results": results})
}

func (h *handlers) results(c *gin.Context) {
	groupKey := c.Query("group_key")
	if groupKey == "" {
		fail(c, http.StatusBadRequest, errors.New("group_key is required"))
		return
	}
	if h.deps.Store == nil {
		fail(c, http.StatusServiceUnavailable, errors.New("result store not configured"))
		return
	}

	results, err := h.deps.Store.ResultsByGroup(c.Request.Context(), groupKey)
	if err != nil {
		slog.Error("[API] Failed to load results",
			slog.String("group_key", groupKey),
			slog.String("error", err.Error()))
		fail(c, http.StatusInternalServerError, errors.New("failed to load results"))
		return
	}
	if results == nil {
		results = []models.EnsembleResult{}
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "group_key": groupKey, "results": results})
}

func (h *handlers) summary(c *gin.Context) {
	groupKey := c.Param("group_key")
	if h.deps.Store == nil {
		fail(c, http.StatusServiceUnavailable, errors.New("result store not configured"))
		return
	}

	bucket := time.Hour
	if raw := c.Query("bucket"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			fail(c, http.StatusBadRequest, fmt.Errorf("invalid bucket %q", raw))
			return
		}
		bucket = d
	}

	top := aggregate.DefaultTopKeywords
	if raw := c.Query("top"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			fail(c, http.StatusBadRequest, fmt.Errorf("invalid top %q", raw))
			return
		}
		top = n
	}

	results, err := h.deps.Store.ResultsByGroup(c.Request.Context(), groupKey)
	if err != nil {
		slog.Error("[API] Failed to load results",
			slog.String("group_key", groupKey),
			slog.String("error", err.Error()))
		fail(c, http.StatusInternalServerError, errors.New("failed to load results"))
		return
	}

	buckets, err := aggregate.Buckets(results, bucket)
	if err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"summary": aggregate.Summarize(groupKey, results, top),
		"buckets": buckets,
	})
}

func (h *handlers) races(c *gin.Context) {
	if h.deps.Races == nil {
		fail(c, http.StatusNotImplemented, errors.New("race listing needs the sqlite store"))
		return
	}

	season := time.Now().UTC().Year()
	if raw := c.Query("season"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			fail(c, http.StatusBadRequest, fmt.Errorf("invalid season %q", raw))
			return
		}
		season = n
	}

	races, err := h.deps.Races.Races(c.Request.Context(), season)
	if err != nil {
		slog.Error("[API] Failed to list races",
			slog.Int("season", season),
			slog.String("error", err.Error()))
		fail(c, http.StatusInternalServerError, errors.New("failed to list races"))
		return
	}
	if races == nil {
		races = []models.Race{}
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "races": races})
}

type sessionCount struct {
	Session  collector.Session `json:"session"`
	GroupKey string            `json:"group_key"`
	Count    int               `json:"count"`
}

// sessions lists the sessions of a race weekend that have stored results.
func (h *handlers) sessions(c *gin.Context) {
	if h.deps.Store == nil {
		fail(c, http.StatusServiceUnavailable, errors.New("result store not configured"))
		return
	}

	season, err := strconv.Atoi(c.Param("season"))
	if err != nil {
		fail(c, http.StatusBadRequest, fmt.Errorf("invalid season %q", c.Param("season")))
		return
	}
	round, err := strconv.Atoi(c.Param("round"))
	if err != nil {
		fail(c, http.StatusBadRequest, fmt.Errorf("invalid round %q", c.Param("round")))
		return
	}

	out := []sessionCount{}
	for _, session := range collector.Sessions() {
		key := collector.GroupKey(season, round, session)
		results, err := h.deps.Store.ResultsByGroup(c.Request.Context(), key)
		if err != nil {
			slog.Error("[API] Failed to load results",
				slog.String("group_key", key),
				slog.String("error", err.Error()))
			fail(c, http.StatusInternalServerError, errors.New("failed to load results"))
			return
		}
		if len(results) > 0 {
			out = append(out, sessionCount{Session: session, GroupKey: key, Count: len(results)})
		}
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "sessions": out})
}
