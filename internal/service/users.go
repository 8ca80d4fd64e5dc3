// Package service holds the business rules of the users API.
//
//	Handler (HTTP) → UserService / ClientService (rules) → repository (DB)
//
// Services never see an http.Request and never return status codes. They
// return apperror values and the handler layer maps them to HTTP.
package service

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	emailaddress "github.com/mcnijman/go-emailaddress"
	"go.uber.org/multierr"

	"github.com/sakif/user-directory/internal/apperror"
	"github.com/sakif/user-directory/internal/model"
	"github.com/sakif/user-directory/internal/repository"
)

// MaxPageSize caps a single listing.
const MaxPageSize = 100

//go:embed seed_users.json
var seedUsers []byte

// SeedUsers returns the built-in data set: the ten users of the public
// JSONPlaceholder directory.
func SeedUsers() ([]model.User, error) {
	var users []model.User
	if err := json.Unmarshal(seedUsers, &users); err != nil {
		return nil, fmt.Errorf("service/users: decoding seed data: %w", err)
	}
	return users, nil
}

// UserService serves the read side of the directory and imports data into it.
type UserService struct {
	users  repository.UserRepository
	logger *slog.Logger
}

// NewUserService creates a UserService.
func NewUserService(users repository.UserRepository, logger *slog.Logger) *UserService {
	return &UserService{users: users, logger: logger}
}

// List returns a page of users ordered by id. A zero Limit returns everything.
func (s *UserService) List(ctx context.Context, opts repository.ListOptions) ([]model.User, error) {
	if opts.Limit < 0 || opts.Limit > MaxPageSize {
		return nil, apperror.ValidationFailed("_limit",
			fmt.Sprintf("_limit must be between 0 and %d", MaxPageSize))
	}
	if opts.Offset < 0 {
		return nil, apperror.ValidationFailed("_start", "_start must not be negative")
	}

	users, err := s.users.ListUsers(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("service/users: listing: %w", err)
	}
	return users, nil
}

// Get returns one user, or apperror.ErrNotFound.
func (s *UserService) Get(ctx context.Context, id int) (*model.User, error) {
	if id <= 0 {
		return nil, apperror.ValidationFailed("id", "id must be a positive integer")
	}

	u, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/users: fetching user %d: %w", id, err)
	}
	return u, nil
}

// Import validates the whole batch, reporting all problems together, and
// then writes it in one repository transaction. Either every record is
// stored or none is.
func (s *UserService) Import(ctx context.Context, users []model.User) (int, error) {
	var errs error
	for i, u := range users {
		errs = multierr.Append(errs, validateUser(i, u))
	}
	errs = multierr.Append(errs, validateIdentity(users))
	if errs != nil {
		return 0, errs
	}

	if err := s.users.UpsertUsers(ctx, users); err != nil {
		return 0, fmt.Errorf("service/users: importing %d users: %w", len(users), err)
	}

	s.logger.Info("users imported", slog.Int("count", len(users)))
	return len(users), nil
}

// SeedIfEmpty imports SeedUsers into an empty directory and does nothing
// otherwise. It reports how many users were written.
func (s *UserService) SeedIfEmpty(ctx context.Context) (int, error) {
	n, err := s.users.CountUsers(ctx)
	if err != nil {
		return 0, fmt.Errorf("service/users: counting users: %w", err)
	}
	if n > 0 {
		s.logger.Debug("directory already populated", slog.Int("count", n))
		return 0, nil
	}

	seed, err := SeedUsers()
	if err != nil {
		return 0, err
	}
	return s.Import(ctx, seed)
}

func validateUser(i int, u model.User) error {
	var errs error
	field := func(name string) string { return "users[" + strconv.Itoa(i) + "]." + name }

	if strings.TrimSpace(u.Name) == "" {
		errs = multierr.Append(errs, apperror.ValidationFailed(field("name"), "name is required"))
	}
	if _, err := emailaddress.Parse(strings.TrimSpace(u.Email)); err != nil {
		errs = multierr.Append(errs, apperror.ValidationFailed(field("email"),
			fmt.Sprintf("%q is not a valid email address", u.Email)))
	}
	return errs
}

func validateIdentity(users []model.User) error {
	if err := model.ValidateCollection(users); err != nil {
		return apperror.ValidationFailed("users", err.Error())
	}
	return nil
}
