package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jengzang/trails-backend-go/internal/database"
	"github.com/jengzang/trails-backend-go/internal/models"
	"github.com/jengzang/trails-backend-go/internal/spatial"
)

const summaryColumns = `t.id, t.owner, t.name, t.description, t.version, t.point_count,
	t.distance, t.ascent, t.descent, t.duration, t.highest_altitude, t.lowest_altitude,
	t.start_time, t.created_at, t.updated_at, b.south, b.west, b.north, b.east`

// TrackRepository stores tracks as their encoded record plus a summary row
type TrackRepository struct {
	db *sql.DB
}

// NewTrackRepository creates a new track repository
func NewTrackRepository(db *sql.DB) *TrackRepository {
	return &TrackRepository{db: db}
}

// Save inserts or replaces a track. The stored version is one more than the
// previous one and is written back to summary and record.
func (r *TrackRepository) Save(ctx context.Context, summary *models.TrackSummary, record *models.TrackRecord) error {
	return database.Transaction(r.db, func(tx *sql.Tx) error {
		var (
			version   int64
			createdAt int64
		)
		err := tx.QueryRowContext(ctx, "SELECT version, created_at FROM tracks WHERE id = ?", summary.ID).Scan(&version, &createdAt)
		if err != nil && err != sql.ErrNoRows {
			return fmt.Errorf("failed to read track version: %w", err)
		}

		now := time.Now().UnixMilli()
		if err == sql.ErrNoRows {
			createdAt = now
		}
		summary.Version = version + 1
		summary.CreatedAt = createdAt
		summary.UpdatedAt = now
		summary.PointCount = record.PointCount()
		record.ID = summary.ID
		record.Version = summary.Version

		data, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("failed to encode track record: %w", err)
		}

		_, err = tx.ExecContext(ctx, `INSERT INTO tracks (id, owner, name, description, version, point_count,
			distance, ascent, descent, duration, highest_altitude, lowest_altitude, start_time,
			record, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				owner = excluded.owner, name = excluded.name, description = excluded.description,
				version = excluded.version, point_count = excluded.point_count,
				distance = excluded.distance, ascent = excluded.ascent, descent = excluded.descent,
				duration = excluded.duration, highest_altitude = excluded.highest_altitude,
				lowest_altitude = excluded.lowest_altitude, start_time = excluded.start_time,
				record = excluded.record, updated_at = excluded.updated_at`,
			summary.ID, summary.Owner, summary.Name, summary.Description, summary.Version, summary.PointCount,
			summary.Distance, summary.Ascent, summary.Descent, summary.Duration,
			summary.HighestAltitude, summary.LowestAltitude, summary.StartTime,
			string(data), summary.CreatedAt, summary.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to save track %s: %w", summary.ID, err)
		}

		if summary.Bounds == nil {
			_, err = tx.ExecContext(ctx, "DELETE FROM track_bounds WHERE track_id = ?", summary.ID)
		} else {
			b := summary.Bounds
			_, err = tx.ExecContext(ctx, `INSERT OR REPLACE INTO track_bounds (track_id, south, west, north, east)
				VALUES (?, ?, ?, ?, ?)`, summary.ID, b.Min.Lat(), b.Min.Lon(), b.Max.Lat(), b.Max.Lon())
		}
		if err != nil {
			return fmt.Errorf("failed to save track bounds %s: %w", summary.ID, err)
		}
		return nil
	})
}

// FindByID returns the summary and record of a track, nil when absent
func (r *TrackRepository) FindByID(ctx context.Context, id string) (*models.TrackSummary, *models.TrackRecord, error) {
	query := `SELECT ` + summaryColumns + `, t.record
		FROM tracks t LEFT JOIN track_bounds b ON b.track_id = t.id WHERE t.id = ?`

	var data string
	summary, err := scanSummary(r.db.QueryRowContext(ctx, query, id), &data)
	if err == sql.ErrNoRows {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get track: %w", err)
	}

	var record models.TrackRecord
	if err := json.Unmarshal([]byte(data), &record); err != nil {
		return nil, nil, fmt.Errorf("failed to decode track record %s: %w", id, err)
	}
	return summary, &record, nil
}

// List returns a page of summaries, most recently updated first, and the
// total number of matching tracks
func (r *TrackRepository) List(ctx context.Context, filter models.TrackFilter) ([]models.TrackSummary, int64, error) {
	var conditions []string
	var args []interface{}

	if filter.Owner != "" {
		conditions = append(conditions, "t.owner = ?")
		args = append(args, filter.Owner)
	}
	if w := filter.Within; w != nil {
		conditions = append(conditions, "b.north >= ? AND b.south <= ? AND b.east >= ? AND b.west <= ?")
		args = append(args, w.Min.Lat(), w.Max.Lat(), w.Min.Lon(), w.Max.Lon())
	}

	from := " FROM tracks t LEFT JOIN track_bounds b ON b.track_id = t.id"
	if len(conditions) > 0 {
		from += " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*)"+from, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count tracks: %w", err)
	}

	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = 20
	}
	offset := (filter.Page - 1) * filter.PageSize
	query := "SELECT " + summaryColumns + from + " ORDER BY t.updated_at DESC, t.id LIMIT ? OFFSET ?"
	args = append(args, filter.PageSize, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query tracks: %w", err)
	}
	defer rows.Close()

	summaries := []models.TrackSummary{}
	for rows.Next() {
		s, err := scanSummary(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan track: %w", err)
		}
		summaries = append(summaries, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate tracks: %w", err)
	}

	return summaries, total, nil
}

// Delete removes a track and reports whether it existed
func (r *TrackRepository) Delete(ctx context.Context, id string) (bool, error) {
	var deleted bool
	err := database.Transaction(r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM track_bounds WHERE track_id = ?", id); err != nil {
			return fmt.Errorf("failed to delete track bounds %s: %w", id, err)
		}
		res, err := tx.ExecContext(ctx, "DELETE FROM tracks WHERE id = ?", id)
		if err != nil {
			return fmt.Errorf("failed to delete track %s: %w", id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to delete track %s: %w", id, err)
		}
		deleted = n > 0
		return nil
	})
	return deleted, err
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSummary(row scanner, extra ...interface{}) (*models.TrackSummary, error) {
	var (
		s                        models.TrackSummary
		south, west, north, east sql.NullFloat64
	)
	dest := []interface{}{
		&s.ID, &s.Owner, &s.Name, &s.Description, &s.Version, &s.PointCount,
		&s.Distance, &s.Ascent, &s.Descent, &s.Duration, &s.HighestAltitude, &s.LowestAltitude,
		&s.StartTime, &s.CreatedAt, &s.UpdatedAt, &south, &west, &north, &east,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	if south.Valid && west.Valid && north.Valid && east.Valid {
		b := spatial.NewBound(south.Float64, west.Float64, north.Float64, east.Float64)
		s.Bounds = &b
	}
	return &s, nil
}
