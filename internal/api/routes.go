package api

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spacesedan/racepulse/internal/db"
	"github.com/spacesedan/racepulse/internal/models"
	"github.com/spacesedan/racepulse/internal/sentiment"
)

const defaultMaxScoreItems = 1000

// RaceLister is implemented by *db.SQLiteStore.
type RaceLister interface {
	Races(ctx context.Context, season int) ([]models.Race, error)
}

// Deps are the collaborators of the HTTP API. Races and NeuralHealthy are
// optional.
type Deps struct {
	Engine        *sentiment.Engine
	Store         db.ResultStore
	Races         RaceLister
	NeuralHealthy *atomic.Bool
	MaxScoreItems int
}

func NewRouter(deps Deps) *gin.Engine {
	if deps.MaxScoreItems <= 0 {
		deps.MaxScoreItems = defaultMaxScoreItems
	}
	h := &handlers{deps: deps}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v := router.Group("/api")
	{
		v.GET("/health", h.health)
		v.POST("/score", h.score)
		v.GET("/results", h.results)
		v.GET("/groups/:group_key/summary", h.summary)
		v.GET("/races", h.races)
		v.GET("/races/:season/:round/sessions", h.sessions)
	}

	return router
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		slog.Debug("[API] Request handled",
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("elapsed", time.Since(start)))
	}
}
