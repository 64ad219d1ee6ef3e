package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DataPointStatus is the lifecycle state of an ingestion unit.
type DataPointStatus string

const (
	StatusPending    DataPointStatus = "Pending"
	StatusProcessing DataPointStatus = "Processing"
	StatusCompleted  DataPointStatus = "Completed"
	StatusFailed     DataPointStatus = "Failed"
)

// IsTerminal reports whether no further transitions are allowed.
func (s DataPointStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// FileMetadata describes the uploaded file. It is set once when the DataPoint is created.
type FileMetadata struct {
	FileName    string `json:"fileName"`
	SizeInBytes int64  `json:"sizeInBytes"`
	ContentType string `json:"contentType"`
}

// DataPoint is one file-processing job and the movements it produced.
// Status and movements change only through the lifecycle methods:
//
//	Pending -> Processing -> Completed | Failed
type DataPoint struct {
	id           uuid.UUID
	createdAt    time.Time
	file         FileMetadata
	status       DataPointStatus
	errorMessage string
	movements    []*Movement
}

// NewDataPoint creates a Pending DataPoint for an accepted file.
func NewDataPoint(file FileMetadata) *DataPoint {
	if file.ContentType == "" {
		file.ContentType = "application/octet-stream"
	}
	return &DataPoint{
		id:        uuid.New(),
		createdAt: time.Now().UTC(),
		file:      file,
		status:    StatusPending,
	}
}

// RestoreDataPoint rebuilds a persisted DataPoint without running lifecycle checks.
// Only the persistence layer should call it.
func RestoreDataPoint(id uuid.UUID, createdAt time.Time, file FileMetadata, status DataPointStatus, errorMessage string, movements []*Movement) *DataPoint {
	return &DataPoint{
		id:           id,
		createdAt:    createdAt,
		file:         file,
		status:       status,
		errorMessage: errorMessage,
		movements:    movements,
	}
}

func (d *DataPoint) ID() uuid.UUID           { return d.id }
func (d *DataPoint) CreatedAt() time.Time    { return d.createdAt }
func (d *DataPoint) File() FileMetadata      { return d.file }
func (d *DataPoint) Status() DataPointStatus { return d.status }

// ErrorMessage is empty unless the DataPoint failed.
func (d *DataPoint) ErrorMessage() string { return d.errorMessage }

// Movements returns a copy of the movement list in processing order.
func (d *DataPoint) Movements() []*Movement {
	out := make([]*Movement, len(d.movements))
	copy(out, d.movements)
	return out
}

// MovementCount is len(Movements()) without the copy.
func (d *DataPoint) MovementCount() int { return len(d.movements) }

// StartProcessing moves a Pending DataPoint to Processing.
func (d *DataPoint) StartProcessing() error {
	if d.status != StatusPending {
		return fmt.Errorf("%w: only %s can move to %s, current status is %s", ErrInvalidState, StatusPending, StatusProcessing, d.status)
	}
	d.status = StatusProcessing
	return nil
}

// AddMovements appends movements in the given order. Allowed only while Processing.
func (d *DataPoint) AddMovements(movements []*Movement) error {
	if d.status != StatusProcessing {
		return fmt.Errorf("%w: movements can only be added while %s, current status is %s", ErrInvalidState, StatusProcessing, d.status)
	}
	for _, m := range movements {
		if m == nil {
			continue
		}
		if m.DataPointID != d.id {
			return fmt.Errorf("%w: movement %s belongs to data point %s", ErrInvalidState, m.ID, m.DataPointID)
		}
	}
	for _, m := range movements {
		if m != nil {
			d.movements = append(d.movements, m)
		}
	}
	return nil
}

// MarkCompleted moves a Processing DataPoint with at least one movement to Completed.
func (d *DataPoint) MarkCompleted() error {
	if d.status != StatusProcessing {
		return fmt.Errorf("%w: only %s can move to %s, current status is %s", ErrInvalidState, StatusProcessing, StatusCompleted, d.status)
	}
	if len(d.movements) == 0 {
		return fmt.Errorf("%w: cannot complete without movements", ErrInvalidState)
	}
	d.status = StatusCompleted
	return nil
}

// MarkFailed records reason and moves a Processing DataPoint to Failed.
func (d *DataPoint) MarkFailed(reason string) error {
	if d.status != StatusProcessing {
		return fmt.Errorf("%w: only %s can move to %s, current status is %s", ErrInvalidState, StatusProcessing, StatusFailed, d.status)
	}
	d.status = StatusFailed
	d.errorMessage = reason
	return nil
}
