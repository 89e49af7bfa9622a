package profile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

// Startup is the company record linked to a startup-role profile. It is
// created by the registration flow and may lag behind the profile row.
type Startup struct {
	ID        string    `json:"id"`
	ProfileID string    `json:"profile_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// StartupStore finds the startup linked to a profile; ErrNotFound when none.
type StartupStore interface {
	FindStartupByProfile(ctx context.Context, profileID string) (Startup, error)
}

// PutStartup inserts or replaces a startup record.
func (s *MemoryStore) PutStartup(st Startup) {
	if st.CreatedAt.IsZero() {
		st.CreatedAt = s.now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startups == nil {
		s.startups = make(map[string]Startup)
	}
	s.startups[st.ProfileID] = st
}

func (s *MemoryStore) FindStartupByProfile(_ context.Context, profileID string) (Startup, error) {
	if profileID == "" {
		return Startup{}, ErrEmptyProfileID
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.startups[profileID]
	if !ok {
		return Startup{}, ErrNotFound
	}
	return st, nil
}

func (s *PostgresStore) FindStartupByProfile(ctx context.Context, profileID string) (Startup, error) {
	if profileID == "" {
		return Startup{}, ErrEmptyProfileID
	}
	query, args, err := psq.Select("id", "profile_id", "name", "created_at").
		From("startups").
		Where(sq.Eq{"profile_id": profileID}).
		OrderBy("created_at ASC").
		Limit(1).
		ToSql()
	if err != nil {
		return Startup{}, fmt.Errorf("building startup query: %w", err)
	}

	var st Startup
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&st.ID, &st.ProfileID, &st.Name, &st.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Startup{}, ErrNotFound
	}
	if err != nil {
		return Startup{}, fmt.Errorf("querying startup: %w", err)
	}
	return st, nil
}

var (
	_ StartupStore = (*MemoryStore)(nil)
	_ StartupStore = (*PostgresStore)(nil)
)
