// Package repository declares the storage contracts of the users API.
//
// Services depend on these interfaces, never on a concrete database, so a
// test can hand a service an in-memory fake. The sqlite subpackage is the
// production implementation.
package repository

import (
	"context"

	"github.com/sakif/user-directory/internal/model"
)

// ListOptions pages a listing. Limit <= 0 means no limit.
type ListOptions struct {
	Limit  int
	Offset int
}

// UserRepository stores the user directory. Users keep the ids they were
// imported with; listings are ordered by id.
type UserRepository interface {
	UpsertUser(ctx context.Context, user *model.User) error
	// UpsertUsers writes the whole batch or, on any error, none of it.
	UpsertUsers(ctx context.Context, users []model.User) error
	GetUserByID(ctx context.Context, id int) (*model.User, error)
	ListUsers(ctx context.Context, opts ListOptions) ([]model.User, error)
	CountUsers(ctx context.Context) (int, error)
}

// ClientRepository stores the API clients allowed to request tokens.
type ClientRepository interface {
	CreateClient(ctx context.Context, client *model.APIClient) error
	GetClientByClientID(ctx context.Context, clientID string) (*model.APIClient, error)
	UpdateClientSecret(ctx context.Context, clientID, secretHash string) error
}
