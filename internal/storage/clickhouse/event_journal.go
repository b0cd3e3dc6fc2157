package clickhouse

import (
	"context"
	"encoding/json"
	"fmt"

	"curvepool/internal/events"
)

// EventJournal implements events.Sink by appending every event to the
// curve_events table. Rows are immutable; MergeTree does not enforce
// uniqueness and the journal never deduplicates.
type EventJournal struct {
	conn *Conn
}

// NewEventJournal creates a new EventJournal.
func NewEventJournal(conn *Conn) *EventJournal {
	return &EventJournal{conn: conn}
}

// Compile-time interface check.
var _ events.Sink = (*EventJournal)(nil)

// Emit appends one event. The full event is stored as JSON alongside the
// envelope columns used for filtering.
func (j *EventJournal) Emit(ctx context.Context, ev *events.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	err = j.conn.Exec(ctx, `
		INSERT INTO curve_events (event_type, timestamp, creator, symbol, payload)
		VALUES (?, ?, ?, ?, ?)
	`, string(ev.Type), ev.Timestamp, ev.Creator, ev.Symbol, string(payload))
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// PoolEvents returns the most recent events for one pool, newest first.
func (j *EventJournal) PoolEvents(ctx context.Context, creator, symbol string, limit uint64) ([]*events.Event, error) {
	rows, err := j.conn.Query(ctx, `
		SELECT payload
		FROM curve_events
		WHERE creator = ? AND symbol = ?
		ORDER BY timestamp DESC
		LIMIT ?
	`, creator, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []*events.Event
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev := &events.Event{}
		if err := json.Unmarshal([]byte(payload), ev); err != nil {
			return nil, fmt.Errorf("unmarshal event: %w", err)
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return out, nil
}
