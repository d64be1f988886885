package clients

import (
	"log/slog"

	"github.com/spacesedan/racepulse/config"
	"github.com/spacesedan/racepulse/internal/sentiment"
)

// NewClassifier picks the neural backend named by NEURAL_BACKEND. It returns
// nil when the backend is off or cannot be loaded; the engine then scores
// without the neural model.
func NewClassifier(cfg *config.Config) sentiment.Classifier {
	switch cfg.NeuralBackend {
	case "local":
		c, err := GetHugotClassifier(cfg.NeuralModelPath, cfg.NeuralModelName)
		if err != nil {
			slog.Error("[Classifier] Failed to load local model, neural scores disabled",
				slog.String("path", cfg.NeuralModelPath),
				slog.String("error", err.Error()))
			return nil
		}
		return c
	case "remote":
		if cfg.NeuralEndpoint == "" {
			slog.Error("[Classifier] NEURAL_ENDPOINT is empty, neural scores disabled")
			return nil
		}
		return GetHuggingFaceClient(cfg.NeuralEndpoint)
	default:
		slog.Info("[Classifier] Neural backend is off")
		return nil
	}
}
