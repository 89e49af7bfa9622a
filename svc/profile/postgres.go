package profile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/dmitrymomot/raisekit/pkg/pg"
)

var psq = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var profileColumns = []string{
	"id", "principal_id", "role", "display_name", "startup_name",
	"government_id", "identity_document", "created_at",
}

const (
	profilesTable = "profiles"
	activeTable   = "active_profiles"
)

// PostgresStore implements Store on the profiles and active_profiles tables.
type PostgresStore struct {
	db    *sql.DB
	now   func() time.Time
	newID func() string
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, now: time.Now, newID: uuid.NewString}
}

func prefixed(alias string, cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = alias + "." + c
	}
	return out
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProfile(row scanner) (Profile, error) {
	var p Profile
	var role string
	err := row.Scan(&p.ID, &p.PrincipalID, &role, &p.DisplayName, &p.StartupName,
		&p.GovernmentID, &p.IdentityDocument, &p.CreatedAt)
	if err != nil {
		return Profile{}, err
	}
	p.Role = Role(role)
	return p, nil
}

func (s *PostgresStore) GetProfileForPrincipal(ctx context.Context, principalID string) (Profile, error) {
	if principalID == "" {
		return Profile{}, ErrEmptyPrincipal
	}
	query, args, err := psq.Select(prefixed("p", profileColumns)...).
		From(profilesTable + " p").
		LeftJoin(activeTable + " a ON a.principal_id = p.principal_id AND a.profile_id = p.id").
		Where(sq.Eq{"p.principal_id": principalID}).
		OrderBy("a.profile_id IS NULL", "p.created_at ASC", "p.id ASC").
		Limit(1).
		ToSql()
	if err != nil {
		return Profile{}, fmt.Errorf("building profile query: %w", err)
	}

	p, err := scanProfile(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return Profile{}, ErrNotFound
	}
	if err != nil {
		return Profile{}, fmt.Errorf("querying profile for principal: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) CreateDefaultProfile(ctx context.Context, principalID string, metadata map[string]string) (Profile, error) {
	if principalID == "" {
		return Profile{}, ErrEmptyPrincipal
	}
	p := newDefault(s.newID(), principalID, metadata, s.now().UTC())

	insertProfile, pargs, err := psq.Insert(profilesTable).
		Columns(profileColumns...).
		Values(p.ID, p.PrincipalID, string(p.Role), p.DisplayName, p.StartupName,
			p.GovernmentID, p.IdentityDocument, p.CreatedAt).
		ToSql()
	if err != nil {
		return Profile{}, fmt.Errorf("building profile insert: %w", err)
	}
	insertPointer, aargs, err := psq.Insert(activeTable).
		Columns("principal_id", "profile_id", "updated_at").
		Values(p.PrincipalID, p.ID, p.CreatedAt).
		Suffix("ON CONFLICT (principal_id) DO NOTHING").
		ToSql()
	if err != nil {
		return Profile{}, fmt.Errorf("building pointer insert: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Profile{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, insertProfile, pargs...); err != nil {
		if pg.IsDuplicateKeyError(err) {
			return Profile{}, errors.Join(ErrDuplicate, err)
		}
		return Profile{}, fmt.Errorf("inserting profile: %w", err)
	}
	if _, err := tx.ExecContext(ctx, insertPointer, aargs...); err != nil {
		return Profile{}, fmt.Errorf("inserting active pointer: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Profile{}, fmt.Errorf("committing profile: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) GetProfile(ctx context.Context, profileID string) (Profile, error) {
	if profileID == "" {
		return Profile{}, ErrEmptyProfileID
	}
	query, args, err := psq.Select(profileColumns...).
		From(profilesTable).
		Where(sq.Eq{"id": profileID}).
		ToSql()
	if err != nil {
		return Profile{}, fmt.Errorf("building profile query: %w", err)
	}

	p, err := scanProfile(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return Profile{}, ErrNotFound
	}
	if err != nil {
		return Profile{}, fmt.Errorf("querying profile: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) IsComplete(ctx context.Context, profileID string) (bool, error) {
	p, err := s.GetProfile(ctx, profileID)
	if err != nil {
		return false, err
	}
	return p.Complete(), nil
}

func (s *PostgresStore) ListProfilesForPrincipal(ctx context.Context, principalID string) ([]Profile, error) {
	if principalID == "" {
		return nil, ErrEmptyPrincipal
	}
	query, args, err := psq.Select(profileColumns...).
		From(profilesTable).
		Where(sq.Eq{"principal_id": principalID}).
		OrderBy("created_at ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building profile list query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing profiles: %w", err)
	}
	defer rows.Close() //nolint:errcheck // close error is superseded by rows.Err

	var out []Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning profile: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating profiles: %w", err)
	}
	return out, nil
}

// SetActiveProfile upserts the pointer only when the profile is owned by
// principalID, in a single statement.
func (s *PostgresStore) SetActiveProfile(ctx context.Context, principalID, profileID string) error {
	if principalID == "" {
		return ErrEmptyPrincipal
	}
	if profileID == "" {
		return ErrEmptyProfileID
	}

	owned := sq.Select("principal_id", "id").
		Column(sq.Expr("?::timestamptz", s.now().UTC())).
		From(profilesTable).
		Where(sq.Eq{"id": profileID, "principal_id": principalID})
	query, args, err := psq.Insert(activeTable).
		Columns("principal_id", "profile_id", "updated_at").
		Select(owned).
		Suffix("ON CONFLICT (principal_id) DO UPDATE SET profile_id = EXCLUDED.profile_id, updated_at = EXCLUDED.updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("building pointer upsert: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if pg.IsForeignKeyViolationError(err) {
		// The profile was deleted between the ownership check and the write.
		return errors.Join(ErrNotFound, err)
	}
	if err != nil {
		return fmt.Errorf("updating active profile: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating active profile: %w", err)
	}
	if n > 0 {
		return nil
	}

	// Nothing matched: tell a foreign profile apart from an unknown one.
	if _, err := s.GetProfile(ctx, profileID); err != nil {
		return err
	}
	return ErrNotOwned
}

var _ Store = (*PostgresStore)(nil)
