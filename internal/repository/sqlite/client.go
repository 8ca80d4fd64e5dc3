package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/user-directory/internal/apperror"
	"github.com/sakif/user-directory/internal/model"
	"github.com/sakif/user-directory/internal/repository"
)

var _ repository.ClientRepository = (*DB)(nil)

// CreateClient stores a new API client. It fills in ID and CreatedAt and
// returns apperror.ErrConflict when the client ID is taken.
func (db *DB) CreateClient(ctx context.Context, c *model.APIClient) error {
	c.ID = xid.New().String()
	c.CreatedAt = time.Now()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO api_clients (id, client_id, name, secret_hash, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		c.ID,
		c.ClientID,
		c.Name,
		c.SecretHash,
		c.CreatedAt,
	)
	if err != nil {
		// modernc reports constraint violations only through the message.
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return apperror.Conflict("client", c.ClientID)
		}
		return fmt.Errorf("sqlite: inserting client %s: %w", c.ClientID, err)
	}
	return nil
}

// GetClientByClientID returns apperror.ErrNotFound for an unknown client.
func (db *DB) GetClientByClientID(ctx context.Context, clientID string) (*model.APIClient, error) {
	var c model.APIClient
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, client_id, name, secret_hash, created_at
		 FROM api_clients WHERE client_id = ?`,
		clientID,
	).Scan(
		&c.ID,
		&c.ClientID,
		&c.Name,
		&c.SecretHash,
		&c.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("client", clientID)
		}
		return nil, fmt.Errorf("sqlite: getting client %s: %w", clientID, err)
	}
	return &c, nil
}

// UpdateClientSecret replaces the stored hash. It returns
// apperror.ErrNotFound for an unknown client.
func (db *DB) UpdateClientSecret(ctx context.Context, clientID, secretHash string) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE api_clients SET secret_hash = ? WHERE client_id = ?`,
		secretHash, clientID)
	if err != nil {
		return fmt.Errorf("sqlite: updating secret of client %s: %w", clientID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound("client", clientID)
	}
	return nil
}
