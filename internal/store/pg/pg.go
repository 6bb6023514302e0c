// Package pg implements the permission model store on PostgreSQL via the
// pgx stdlib driver. Unique violations map to dds.ErrAlreadyExists and
// missing rows to dds.ErrNotFound so callers never see driver errors for
// expected states.
package pg

import (
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/OpenDDS/DDSPermissionsManager-sub002/internal/dds"
)

const (
	pgErrUniqueViolation     = "23505"
	pgErrForeignKeyViolation = "23503"
)

type Store struct {
	db *sql.DB
}

var _ dds.Store = (*Store)(nil)

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewWithDB wraps an existing connection, used by tests with sqlmock.
func NewWithDB(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Groups() dds.GroupStore             { return groupStore{s} }
func (s *Store) Applications() dds.ApplicationStore { return applicationStore{s} }
func (s *Store) Topics() dds.TopicStore             { return topicStore{s} }
func (s *Store) TopicSets() dds.TopicSetStore       { return topicSetStore{s} }
func (s *Store) Durations() dds.GrantDurationStore  { return durationStore{s} }
func (s *Store) Grants() dds.GrantStore             { return grantStore{s} }
func (s *Store) Intervals() dds.ActionIntervalStore { return intervalStore{s} }
func (s *Store) Actions() dds.ActionStore           { return actionStore{s} }
func (s *Store) Permissions() dds.PermissionStore   { return permissionStore{s} }
func (s *Store) Members() dds.MemberStore           { return memberStore{s} }

func maybePgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}

// mapWriteErr converts driver constraint violations into model sentinels.
func mapWriteErr(err error) error {
	if pgErr, ok := maybePgError(err); ok {
		switch pgErr.Code {
		case pgErrUniqueViolation:
			return dds.ErrAlreadyExists
		case pgErrForeignKeyViolation:
			return dds.ErrNotFound
		}
	}
	return err
}

func mapRowErr(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return dds.ErrNotFound
	}
	return err
}

func nullIfEmpty(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
