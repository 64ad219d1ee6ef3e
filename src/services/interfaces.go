package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/username/portafolio/backend/src/models"
)

// DataPointRepository is the storage the upload service needs.
type DataPointRepository interface {
	Add(ctx context.Context, dp *models.DataPoint) error
	Update(ctx context.Context, dp *models.DataPoint) error
	ExistsWithSameFile(ctx context.Context, fileName string, sizeInBytes int64) (bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.DataPoint, error)
}

// UploadService turns uploaded statements into stored DataPoints.
type UploadService interface {
	ProcessFile(ctx context.Context, req ProcessFileRequest) (*ProcessFileResult, error)
	GetDataPoint(ctx context.Context, id uuid.UUID) (*DataPointView, error)
	SupportedBrokers() []string
	SupportedExtensions() []string
}
