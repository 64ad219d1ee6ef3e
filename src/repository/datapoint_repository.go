// Package repository persists DataPoints and their movements in SQLite.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/username/portafolio/backend/src/logger"
	"github.com/username/portafolio/backend/src/models"
)

const timeLayout = time.RFC3339Nano

// DataPointRepository stores the DataPoint aggregate: one data_points row plus its
// movements rows, always written together.
type DataPointRepository struct {
	db *sql.DB
}

func NewDataPointRepository(db *sql.DB) *DataPointRepository {
	return &DataPointRepository{db: db}
}

// Add inserts a new DataPoint with whatever movements it already holds.
func (r *DataPointRepository) Add(ctx context.Context, dp *models.DataPoint) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		file := dp.File()
		now := time.Now().UTC().Format(timeLayout)
		_, err := tx.ExecContext(ctx, `INSERT INTO data_points
			(id, created_at, file_name, size_in_bytes, content_type, status, error_message, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			dp.ID().String(), dp.CreatedAt().UTC().Format(timeLayout), file.FileName, file.SizeInBytes,
			file.ContentType, string(dp.Status()), nullString(dp.ErrorMessage()), now)
		if err != nil {
			return fmt.Errorf("inserting data point %s: %w", dp.ID(), err)
		}
		return insertMovements(ctx, tx, dp.ID(), dp.Movements())
	})
}

// Update saves the status, error message and the full movement list of dp.
func (r *DataPointRepository) Update(ctx context.Context, dp *models.DataPoint) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE data_points SET status = ?, error_message = ?, updated_at = ? WHERE id = ?`,
			string(dp.Status()), nullString(dp.ErrorMessage()), time.Now().UTC().Format(timeLayout), dp.ID().String())
		if err != nil {
			return fmt.Errorf("updating data point %s: %w", dp.ID(), err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("%w: %s", models.ErrNotFound, dp.ID())
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM movements WHERE data_point_id = ?`, dp.ID().String()); err != nil {
			return fmt.Errorf("clearing movements of %s: %w", dp.ID(), err)
		}
		return insertMovements(ctx, tx, dp.ID(), dp.Movements())
	})
}

// ExistsWithSameFile reports whether a file with this name and size was already uploaded.
func (r *DataPointRepository) ExistsWithSameFile(ctx context.Context, fileName string, sizeInBytes int64) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM data_points WHERE file_name = ? AND size_in_bytes = ?)`,
		fileName, sizeInBytes).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking for duplicate file %q: %w", fileName, err)
	}
	return exists, nil
}

// GetByID loads a DataPoint and its movements in insertion order.
func (r *DataPointRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.DataPoint, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, created_at, file_name, size_in_bytes, content_type, status, error_message
		FROM data_points WHERE id = ?`, id.String())
	dp, err := scanDataPoint(row, func(id uuid.UUID) ([]*models.Movement, error) {
		return r.movements(ctx, id)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", models.ErrNotFound, id)
	}
	return dp, err
}

// GetByStatus lists DataPoints in status, newest first, without their movements.
func (r *DataPointRepository) GetByStatus(ctx context.Context, status models.DataPointStatus) ([]*models.DataPoint, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, created_at, file_name, size_in_bytes, content_type, status, error_message
		FROM data_points WHERE status = ? ORDER BY created_at DESC`, string(status))
	if err != nil {
		return nil, fmt.Errorf("listing data points by status %s: %w", status, err)
	}
	defer rows.Close()

	var out []*models.DataPoint
	for rows.Next() {
		dp, err := scanDataPoint(rows, nil)
		if err != nil {
			return nil, err
		}
		out = append(out, dp)
	}
	return out, rows.Err()
}

// Delete removes a DataPoint and all of its movements. It returns false when id is unknown.
func (r *DataPointRepository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	var deleted bool
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM movements WHERE data_point_id = ?`, id.String()); err != nil {
			return fmt.Errorf("deleting movements of %s: %w", id, err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM data_points WHERE id = ?`, id.String())
		if err != nil {
			return fmt.Errorf("deleting data point %s: %w", id, err)
		}
		n, err := res.RowsAffected()
		deleted = err == nil && n > 0
		return nil
	})
	return deleted, err
}

// Statistics counts stored DataPoints per status and the movements they hold.
type Statistics struct {
	DataPointsByStatus map[models.DataPointStatus]int `json:"dataPointsByStatus"`
	TotalDataPoints    int                            `json:"totalDataPoints"`
	TotalMovements     int                            `json:"totalMovements"`
}

func (r *DataPointRepository) GetStatistics(ctx context.Context) (*Statistics, error) {
	stats := &Statistics{DataPointsByStatus: map[models.DataPointStatus]int{}}
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM data_points GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("counting data points: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scanning data point counts: %w", err)
		}
		stats.DataPointsByStatus[models.DataPointStatus(status)] = n
		stats.TotalDataPoints += n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM movements`).Scan(&stats.TotalMovements); err != nil {
		return nil, fmt.Errorf("counting movements: %w", err)
	}
	return stats, nil
}

func (r *DataPointRepository) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error beginning database transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing transaction: %w", err)
	}
	return nil
}

func insertMovements(ctx context.Context, tx *sql.Tx, dataPointID uuid.UUID, movements []*models.Movement) error {
	if len(movements) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO movements
		(id, data_point_id, position, number, broker, ticker, movement_type, concertation_date, settlement_date,
		 quantity, price, commission, commission_tax, other_taxes, total_amount, currency, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("error preparing insert statement: %w", err)
	}
	defer stmt.Close()

	for i, m := range movements {
		_, err := stmt.ExecContext(ctx,
			m.ID.String(), dataPointID.String(), i, m.Number, m.Broker, nullStringPtr(m.Ticker), m.Type.String(),
			nullTime(m.ConcertationDate), nullTime(m.SettlementDate),
			m.Quantity, m.Price.String(), m.Commission.String(), m.CommissionTax.String(), m.OtherTaxes.String(),
			m.TotalAmount.String(), m.Currency.String(), nullStringPtr(m.Notes), m.CreatedAt.UTC().Format(timeLayout))
		if err != nil {
			return fmt.Errorf("error inserting movement %d (number %d): %w", i, m.Number, err)
		}
	}
	logger.L.Debug("Movements stored", "dataPointId", dataPointID, "count", len(movements))
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDataPoint(s scanner, loadMovements func(uuid.UUID) ([]*models.Movement, error)) (*models.DataPoint, error) {
	var (
		idStr, createdStr, fileName, contentType, status string
		size                                             int64
		errMsg                                           sql.NullString
	)
	if err := s.Scan(&idStr, &createdStr, &fileName, &size, &contentType, &status, &errMsg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning data point: %w", err)
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("stored data point id %q: %w", idStr, err)
	}
	created, err := time.Parse(timeLayout, createdStr)
	if err != nil {
		return nil, fmt.Errorf("stored created_at %q: %w", createdStr, err)
	}

	var movements []*models.Movement
	if loadMovements != nil {
		if movements, err = loadMovements(id); err != nil {
			return nil, err
		}
	}
	file := models.FileMetadata{FileName: fileName, SizeInBytes: size, ContentType: contentType}
	return models.RestoreDataPoint(id, created, file, models.DataPointStatus(status), errMsg.String, movements), nil
}

func (r *DataPointRepository) movements(ctx context.Context, dataPointID uuid.UUID) ([]*models.Movement, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, number, broker, ticker, movement_type, concertation_date, settlement_date,
		quantity, price, commission, commission_tax, other_taxes, total_amount, currency, notes, created_at
		FROM movements WHERE data_point_id = ? ORDER BY position`, dataPointID.String())
	if err != nil {
		return nil, fmt.Errorf("loading movements of %s: %w", dataPointID, err)
	}
	defer rows.Close()

	var out []*models.Movement
	for rows.Next() {
		var (
			idStr, broker, kind, currency, createdStr    string
			price, commission, commTax, otherTax, total string
			ticker, notes, concertation, settlement     sql.NullString
			m                                           = &models.Movement{DataPointID: dataPointID}
		)
		if err := rows.Scan(&idStr, &m.Number, &broker, &ticker, &kind, &concertation, &settlement,
			&m.Quantity, &price, &commission, &commTax, &otherTax, &total, &currency, &notes, &createdStr); err != nil {
			return nil, fmt.Errorf("scanning movement: %w", err)
		}
		if m.ID, err = uuid.Parse(idStr); err != nil {
			return nil, fmt.Errorf("stored movement id %q: %w", idStr, err)
		}
		m.Broker = broker
		m.Type = models.ParseMovementTypeName(kind)
		m.Currency = currencyFromName(currency)
		m.Ticker = stringPtr(ticker)
		m.Notes = stringPtr(notes)
		m.ConcertationDate = parseNullTime(concertation)
		m.SettlementDate = parseNullTime(settlement)
		m.CreatedAt = parseNullTime(sql.NullString{String: createdStr, Valid: true})

		for _, f := range []struct {
			dst *decimal.Decimal
			src string
		}{{&m.Price, price}, {&m.Commission, commission}, {&m.CommissionTax, commTax}, {&m.OtherTaxes, otherTax}, {&m.TotalAmount, total}} {
			if *f.dst, err = decimal.NewFromString(f.src); err != nil {
				return nil, fmt.Errorf("stored amount %q of movement %s: %w", f.src, idStr, err)
			}
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func currencyFromName(name string) models.Currency {
	for _, c := range []models.Currency{models.CurrencyArgentinePeso, models.CurrencyUSDollar, models.CurrencyEuro} {
		if c.String() == name {
			return c
		}
	}
	return models.CurrencyOther
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullStringPtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return nullString(*s)
}

func stringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

// Unknown dates (the zero time) are stored as NULL.
func nullTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(timeLayout), Valid: true}
}

func parseNullTime(s sql.NullString) time.Time {
	if !s.Valid {
		return time.Time{}
	}
	t, err := time.Parse(timeLayout, s.String)
	if err != nil {
		return time.Time{}
	}
	return t
}
