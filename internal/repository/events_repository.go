package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rocha19/userserver/internal/events"
)

var _ events.EventRepository = new(DBEventsRepository)

const eventColumns = 7

type DBEventsRepository struct {
	db *pgxpool.Pool
}

func NewDBEventsRepository(db *pgxpool.Pool) *DBEventsRepository {
	return &DBEventsRepository{
		db: db,
	}
}

func (r *DBEventsRepository) Insert(ctx context.Context, event events.Event) error {
	return r.BulkInsert(ctx, []events.Event{event})
}

// BulkInsert writes the batch in one statement. Events already recorded
// (same event_id) are skipped so WAL replays are idempotent.
func (r *DBEventsRepository) BulkInsert(ctx context.Context, batch []events.Event) error {
	if len(batch) == 0 {
		return nil
	}

	var query strings.Builder
	query.WriteString(`
		INSERT INTO events (event_id, type, aggregate_type, aggregate_id, version, timestamp, data)
		VALUES `)

	args := make([]interface{}, 0, len(batch)*eventColumns)
	for i, event := range batch {
		data, err := json.Marshal(event.Data)
		if err != nil {
			return fmt.Errorf("failed to marshal event data: %w", err)
		}

		if i > 0 {
			query.WriteString(", ")
		}
		n := i * eventColumns
		fmt.Fprintf(&query, "($%d, $%d, $%d, $%d, $%d, $%d, $%d)", n+1, n+2, n+3, n+4, n+5, n+6, n+7)

		args = append(args, event.ID, event.Type, event.AggregateType, event.AggregateID, event.Version, event.Timestamp, data)
	}
	query.WriteString(" ON CONFLICT (event_id) DO NOTHING")

	if _, err := r.db.Exec(ctx, query.String(), args...); err != nil {
		return fmt.Errorf("failed to bulk insert events: %w", err)
	}

	return nil
}
