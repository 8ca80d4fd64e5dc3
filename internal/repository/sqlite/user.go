package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/sakif/user-directory/internal/apperror"
	"github.com/sakif/user-directory/internal/model"
	"github.com/sakif/user-directory/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

const userColumns = `id, name, email, phone, street, suite, city, zipcode,
	company_name, company_catch_phrase`

// UpsertUser inserts the user or, when the id already exists, overwrites
// every field except created_at.
//
// ON CONFLICT DO UPDATE keeps the row (and its created_at) in place, unlike
// INSERT OR REPLACE which deletes and re-inserts.
func (db *DB) UpsertUser(ctx context.Context, u *model.User) error {
	return upsertUser(ctx, db.conn, u, time.Now())
}

// UpsertUsers upserts every user inside one transaction. The first failure
// rolls the batch back.
func (db *DB) UpsertUsers(ctx context.Context, users []model.User) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning user import: %w", err)
	}
	defer tx.Rollback() // no-op after Commit

	now := time.Now()
	for i := range users {
		if err := upsertUser(ctx, tx, &users[i], now); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing user import: %w", err)
	}
	return nil
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertUser(ctx context.Context, ex execer, u *model.User, now time.Time) error {
	if u.ID <= 0 {
		return apperror.ValidationFailed("id", "must be positive")
	}

	_, err := ex.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			phone = excluded.phone,
			street = excluded.street,
			suite = excluded.suite,
			city = excluded.city,
			zipcode = excluded.zipcode,
			company_name = excluded.company_name,
			company_catch_phrase = excluded.company_catch_phrase,
			updated_at = excluded.updated_at`,
		u.ID,
		u.Name,
		u.Email,
		u.Phone,
		u.Address.Street,
		u.Address.Suite,
		u.Address.City,
		u.Address.Zipcode,
		u.Company.Name,
		u.Company.CatchPhrase,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("sqlite: upserting user %d: %w", u.ID, err)
	}
	return nil
}

// GetUserByID returns apperror.ErrNotFound if no user has that id.
func (db *DB) GetUserByID(ctx context.Context, id int) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", strconv.Itoa(id))
		}
		return nil, fmt.Errorf("sqlite: getting user %d: %w", id, err)
	}
	return u, nil
}

// ListUsers returns users ordered by id. An empty table yields an empty,
// non-nil slice so it encodes as [] and not null.
func (db *DB) ListUsers(ctx context.Context, opts repository.ListOptions) ([]model.User, error) {
	// SQLite treats LIMIT -1 as "no limit".
	limit := opts.Limit
	if limit <= 0 {
		limit = -1
	}
	offset := max(opts.Offset, 0)

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY id LIMIT ? OFFSET ?`,
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing users: %w", err)
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning user row: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating user rows: %w", err)
	}
	return users, nil
}

// CountUsers returns the number of stored users.
func (db *DB) CountUsers(ctx context.Context) (int, error) {
	var n int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: counting users: %w", err)
	}
	return n, nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanUser(s scanner) (*model.User, error) {
	var u model.User
	err := s.Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.Phone,
		&u.Address.Street,
		&u.Address.Suite,
		&u.Address.City,
		&u.Address.Zipcode,
		&u.Company.Name,
		&u.Company.CatchPhrase,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}
