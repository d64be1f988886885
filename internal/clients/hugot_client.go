package clients

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/pipelines"
	"github.com/spacesedan/racepulse/internal/sentiment"
)

const hugotPipelineName = "racepulseSentimentPipeline"

var (
	hugotInstance *HugotClassifier
	hugotOnce     sync.Once
	hugotErr      error
)

// HugotClassifier runs a three-class sentiment model locally through ONNX
// Runtime. One session is shared by the whole process.
type HugotClassifier struct {
	session  *hugot.Session
	pipeline *pipelines.TextClassificationPipeline
}

// GetHugotClassifier loads the model at modelPath, downloading modelName
// into that directory first when the path does not exist yet.
func GetHugotClassifier(modelPath, modelName string) (*HugotClassifier, error) {
	hugotOnce.Do(func() {
		hugotInstance, hugotErr = newHugotClassifier(modelPath, modelName)
	})
	return hugotInstance, hugotErr
}

func newHugotClassifier(modelPath, modelName string) (*HugotClassifier, error) {
	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		if modelName == "" {
			return nil, fmt.Errorf("[HugotClassifier] model not found at %s and no model name to download", modelPath)
		}

		slog.Info("[HugotClassifier] Model not found, downloading...",
			slog.String("model", modelName))
		downloaded, err := hugot.DownloadModel(modelName, modelPath, hugot.NewDownloadOptions())
		if err != nil {
			return nil, fmt.Errorf("[HugotClassifier] failed to download model: %w", err)
		}
		modelPath = downloaded
		slog.Info("[HugotClassifier] Model downloaded successfully", slog.String("path", modelPath))
	} else {
		slog.Info("[HugotClassifier] Using existing model", slog.String("path", modelPath))
	}

	session, err := hugot.NewORTSession()
	if err != nil {
		return nil, fmt.Errorf("[HugotClassifier] failed to initialize session: %w", err)
	}

	config := hugot.TextClassificationConfig{
		ModelPath: modelPath,
		Name:      hugotPipelineName,
		Options: []hugot.TextClassificationOption{
			pipelines.WithSoftmax(),
			pipelines.WithMultiLabel(),
		},
	}
	pipeline, err := hugot.NewPipeline(session, config)
	if err != nil {
		session.Destroy()
		return nil, fmt.Errorf("[HugotClassifier] failed to initialize pipeline: %w", err)
	}

	slog.Info("[HugotClassifier] Pipeline ready", slog.String("path", modelPath))
	return &HugotClassifier{session: session, pipeline: pipeline}, nil
}

// Classify implements sentiment.Classifier. The ONNX pipeline does not take
// a context, so cancellation is only checked before the call.
func (h *HugotClassifier) Classify(ctx context.Context, text string) ([]sentiment.ClassProbability, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	output, err := h.pipeline.RunPipeline([]string{text})
	if err != nil {
		return nil, fmt.Errorf("[HugotClassifier] pipeline failed: %w", err)
	}
	if len(output.ClassificationOutputs) == 0 {
		return nil, fmt.Errorf("[HugotClassifier] %w", errEmptyClassification)
	}

	scores := output.ClassificationOutputs[0]
	probs := make([]sentiment.ClassProbability, len(scores))
	for i, s := range scores {
		probs[i] = sentiment.ClassProbability{Label: s.Label, Probability: float64(s.Score)}
	}
	return probs, nil
}

func CloseHugot() {
	if hugotInstance != nil {
		if err := hugotInstance.session.Destroy(); err != nil {
			slog.Warn("[HugotClassifier] Failed to destroy session",
				slog.String("error", err.Error()))
		}
	}
}
