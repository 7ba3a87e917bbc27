package service

import (
	"context"

	"Stooorage/internal/domain/models"
)

// Forecaster fits a model on in.History and predicts every history and future row.
// The returned predictions cover history followed by in.Future, in order.
type Forecaster interface {
	Name() string
	Predict(ctx context.Context, in models.ModelInput) ([]models.ModelPrediction, error)
}
