package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/username/portafolio/backend/src/logger"
	"github.com/username/portafolio/backend/src/models"
	"github.com/username/portafolio/backend/src/parsers"
)

const (
	ckDataPointView = "view_data_point_%s"

	DefaultCacheExpiration = 30 * time.Minute
	CacheCleanupInterval   = 60 * time.Minute
)

// ProcessFileRequest is one uploaded statement. Content is read once.
type ProcessFileRequest struct {
	FileName    string
	SizeInBytes int64
	ContentType string
	BrokerKey   string
	Content     io.Reader
}

// ProcessFileResult reports what happened to an accepted upload. A file that parsed
// with fatal errors still yields a result, with Status Failed and the errors listed.
type ProcessFileResult struct {
	DataPointID      uuid.UUID                  `json:"dataPointId"`
	Status           models.DataPointStatus     `json:"status"`
	FileName         string                     `json:"fileName"`
	BrokerKey        string                     `json:"brokerKey"`
	MovementCount    int                        `json:"movementCount"`
	ProcessingTimeMs int64                      `json:"processingTimeMs"`
	ProcessedAt      time.Time                  `json:"processedAt"`
	Errors           []string                   `json:"errors"`
	Warnings         []string                   `json:"warnings"`
	Statistics       *parsers.ParsingStatistics `json:"statistics,omitempty"`
	Summary          *ProcessingSummary         `json:"summary,omitempty"`
}

// DataPointView is a stored DataPoint as returned to clients.
type DataPointView struct {
	ID            uuid.UUID              `json:"id"`
	CreatedAt     time.Time              `json:"createdAt"`
	File          models.FileMetadata    `json:"file"`
	Status        models.DataPointStatus `json:"status"`
	ErrorMessage  string                 `json:"errorMessage,omitempty"`
	MovementCount int                    `json:"movementCount"`
	Summary       *ProcessingSummary     `json:"summary,omitempty"`
}

type uploadServiceImpl struct {
	repo        DataPointRepository
	parser      parsers.Parser
	reportCache *cache.Cache
	cacheTTL    time.Duration
}

// NewUploadService wires the service. parser is normally a *parsers.Dispatcher.
// A zero cacheTTL uses DefaultCacheExpiration.
func NewUploadService(repo DataPointRepository, parser parsers.Parser, reportCache *cache.Cache, cacheTTL time.Duration) UploadService {
	if cacheTTL <= 0 {
		cacheTTL = DefaultCacheExpiration
	}
	return &uploadServiceImpl{
		repo:        repo,
		parser:      parser,
		reportCache: reportCache,
		cacheTTL:    cacheTTL,
	}
}

func (s *uploadServiceImpl) SupportedBrokers() []string    { return s.parser.SupportedBrokers() }
func (s *uploadServiceImpl) SupportedExtensions() []string { return s.parser.SupportedExtensions() }

func (s *uploadServiceImpl) ProcessFile(ctx context.Context, req ProcessFileRequest) (*ProcessFileResult, error) {
	start := time.Now()
	log := logger.FromContext(ctx).With("fileName", req.FileName, "brokerKey", req.BrokerKey)
	log.Info("ProcessFile START", "sizeInBytes", req.SizeInBytes)

	if !s.parser.CanParse(req.BrokerKey, req.FileName) {
		return nil, fmt.Errorf("%w: cannot process %q for broker %q (supported brokers: %s; supported extensions: %s)",
			ErrUnsupportedFile, req.FileName, req.BrokerKey,
			strings.Join(s.parser.SupportedBrokers(), ", "), strings.Join(s.parser.SupportedExtensions(), ", "))
	}

	exists, err := s.repo.ExistsWithSameFile(ctx, req.FileName, req.SizeInBytes)
	if err != nil {
		return nil, fmt.Errorf("checking for duplicate upload: %w", err)
	}
	if exists {
		log.Warn("Duplicate upload rejected")
		return nil, fmt.Errorf("%w: %s (%d bytes)", ErrDuplicateFile, req.FileName, req.SizeInBytes)
	}

	dp := models.NewDataPoint(models.FileMetadata{
		FileName:    req.FileName,
		SizeInBytes: req.SizeInBytes,
		ContentType: req.ContentType,
	})
	if err := s.repo.Add(ctx, dp); err != nil {
		return nil, fmt.Errorf("storing data point: %w", err)
	}
	if err := dp.StartProcessing(); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, dp); err != nil {
		return nil, fmt.Errorf("storing data point %s: %w", dp.ID(), err)
	}

	outcome := s.parser.Parse(ctx, req.Content, req.FileName, req.BrokerKey, dp.ID())

	// The final state is stored even if the caller went away mid-parse.
	saveCtx := context.WithoutCancel(ctx)
	result := &ProcessFileResult{
		DataPointID: dp.ID(),
		FileName:    req.FileName,
		BrokerKey:   req.BrokerKey,
		Errors:      outcome.Errors,
		Warnings:    outcome.Warnings,
		Statistics:  &outcome.Statistics,
	}

	if !outcome.IsSuccess() {
		if err := s.fail(saveCtx, dp, strings.Join(outcome.Errors, "; ")); err != nil {
			return nil, err
		}
		return s.finish(result, dp, start, log), nil
	}

	err = dp.AddMovements(outcome.Movements)
	if err == nil {
		err = dp.MarkCompleted()
	}
	if err != nil {
		if failErr := s.fail(saveCtx, dp, err.Error()); failErr != nil {
			return nil, errors.Join(err, failErr)
		}
		return nil, fmt.Errorf("%w: %v", ErrProcessingFailed, err)
	}
	if err := s.repo.Update(saveCtx, dp); err != nil {
		return nil, fmt.Errorf("storing data point %s: %w", dp.ID(), err)
	}

	result.MovementCount = len(outcome.Movements)
	result.Summary = BuildSummary(outcome.Movements)
	s.reportCache.Set(fmt.Sprintf(ckDataPointView, dp.ID()), newDataPointView(dp, result.Summary), s.cacheTTL)
	return s.finish(result, dp, start, log), nil
}

func (s *uploadServiceImpl) fail(ctx context.Context, dp *models.DataPoint, reason string) error {
	if err := dp.MarkFailed(reason); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, dp); err != nil {
		return fmt.Errorf("storing failed data point %s: %w", dp.ID(), err)
	}
	return nil
}

func (s *uploadServiceImpl) finish(result *ProcessFileResult, dp *models.DataPoint, start time.Time, log *slog.Logger) *ProcessFileResult {
	result.Status = dp.Status()
	result.ProcessedAt = time.Now().UTC()
	result.ProcessingTimeMs = time.Since(start).Milliseconds()
	log.Info("ProcessFile END", "dataPointId", dp.ID(), "status", result.Status,
		"movements", result.MovementCount, "warnings", len(result.Warnings), "durationMs", result.ProcessingTimeMs)
	return result
}

// GetDataPoint returns a stored DataPoint with its summary, from cache when possible.
func (s *uploadServiceImpl) GetDataPoint(ctx context.Context, id uuid.UUID) (*DataPointView, error) {
	cacheKey := fmt.Sprintf(ckDataPointView, id)
	if cached, found := s.reportCache.Get(cacheKey); found {
		logger.FromContext(ctx).Debug("Cache hit for data point", "dataPointId", id)
		return cached.(*DataPointView), nil
	}

	logger.FromContext(ctx).Info("Cache miss for data point, loading from DB", "dataPointId", id)
	dp, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	var summary *ProcessingSummary
	if dp.MovementCount() > 0 {
		summary = BuildSummary(dp.Movements())
	}
	view := newDataPointView(dp, summary)
	if dp.Status().IsTerminal() {
		s.reportCache.Set(cacheKey, view, s.cacheTTL)
	}
	return view, nil
}

func newDataPointView(dp *models.DataPoint, summary *ProcessingSummary) *DataPointView {
	return &DataPointView{
		ID:            dp.ID(),
		CreatedAt:     dp.CreatedAt(),
		File:          dp.File(),
		Status:        dp.Status(),
		ErrorMessage:  dp.ErrorMessage(),
		MovementCount: dp.MovementCount(),
		Summary:       summary,
	}
}
