// Package inbox remembers which consumed events were already handled.
package inbox

import (
	"context"
	"fmt"
	"sync"

	"github.com/md-rashed-zaman/clinicbook/libs/db"
)

type Store interface {
	Processed(ctx context.Context, eventID string) (bool, error)
	// Record marks eventID handled. It reports false if it was already recorded.
	Record(ctx context.Context, eventID, eventType string) (bool, error)
}

type Repository struct {
	conn db.Conn
}

func NewRepository(conn db.Conn) *Repository {
	return &Repository{conn: conn}
}

func (r *Repository) Processed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := r.conn.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM inbox_events WHERE event_id = $1)`, eventID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("inbox: lookup: %w", err)
	}
	return exists, nil
}

func (r *Repository) Record(ctx context.Context, eventID, eventType string) (bool, error) {
	_, err := r.conn.Exec(ctx, `
		INSERT INTO inbox_events (event_id, event_type)
		VALUES ($1, $2)
	`, eventID, eventType)
	if err == nil {
		return true, nil
	}
	if db.IsUniqueViolation(err) {
		return false, nil
	}
	return false, fmt.Errorf("inbox: record: %w", err)
}

// Memory is an in-process Store for the memory backend.
type Memory struct {
	mu   sync.Mutex
	seen map[string]string
}

func NewMemory() *Memory {
	return &Memory{seen: map[string]string{}}
}

func (m *Memory) Processed(_ context.Context, eventID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.seen[eventID]
	return ok, nil
}

func (m *Memory) Record(_ context.Context, eventID, eventType string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.seen[eventID]; ok {
		return false, nil
	}
	m.seen[eventID] = eventType
	return true, nil
}
