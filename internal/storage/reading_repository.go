package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/cleanward/internal/models"
	"github.com/cleanward/internal/types"
)

// ReadingRepository stores the history of live ward readings in ClickHouse
type ReadingRepository struct {
	db *ClickHouseDB
}

// NewReadingRepository creates a new reading repository
func NewReadingRepository(db *ClickHouseDB) *ReadingRepository {
	return &ReadingRepository{db: db}
}

// BatchInsert appends readings to ward_readings
func (r *ReadingRepository) BatchInsert(ctx context.Context, readings []models.LiveReading) error {
	if len(readings) == 0 {
		return nil
	}

	batch, err := r.db.Conn().PrepareBatch(ctx, `
		INSERT INTO ward_readings (ward_id, aqi, pm25, traffic_status, last_updated, fetched_at)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	fetchedAt := time.Now().UTC()
	for _, rd := range readings {
		err := batch.Append(
			uint16(rd.WardID), // #nosec G115 - ward ids are 1..250
			uint16(rd.AQI),    // #nosec G115 - validated 0..999
			rd.PM25,
			string(rd.TrafficStatus),
			rd.LastUpdated.UTC(),
			fetchedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to append reading for ward %d: %w", rd.WardID, err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}
	return nil
}

// History returns the readings of a ward in [from, to), oldest first
func (r *ReadingRepository) History(ctx context.Context, wardID int, from, to time.Time, limit int) ([]models.LiveReading, error) {
	if limit <= 0 {
		limit = 500
	}

	query := `
		SELECT ward_id, aqi, pm25, traffic_status, last_updated
		FROM ward_readings FINAL
		WHERE ward_id = ? AND last_updated >= ? AND last_updated < ?
		ORDER BY last_updated
		LIMIT ?
	`

	rows, err := r.db.Conn().Query(ctx, query, uint16(wardID), from.UTC(), to.UTC(), limit) // #nosec G115 - validated ward id
	if err != nil {
		return nil, fmt.Errorf("failed to query reading history: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var readings []models.LiveReading
	for rows.Next() {
		var (
			id, aqi uint16
			pm25    float64
			traffic string
			updated time.Time
		)
		if err := rows.Scan(&id, &aqi, &pm25, &traffic, &updated); err != nil {
			return nil, fmt.Errorf("failed to scan reading: %w", err)
		}
		readings = append(readings, models.LiveReading{
			WardID:        int(id),
			AQI:           int(aqi),
			PM25:          pm25,
			TrafficStatus: types.TrafficStatus(traffic),
			LastUpdated:   updated.UTC(),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating readings: %w", err)
	}
	return readings, nil
}
