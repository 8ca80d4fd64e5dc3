package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/user-directory/internal/apperror"
	"github.com/sakif/user-directory/internal/auth"
	"github.com/sakif/user-directory/internal/model"
	"github.com/sakif/user-directory/internal/repository"
)

// MinSecretLength is the shortest client secret Register accepts.
const MinSecretLength = 16

// Token is the answer to a successful client_credentials grant.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"` // seconds
}

// ClientService registers API clients and exchanges their credentials for
// access tokens.
//
// DEPENDENCIES (injected via NewClientService):
//   - clients  repository.ClientRepository → stored clients and secret hashes
//   - tokens   *auth.TokenService          → signs the JWTs
//   - secrets  *auth.SecretHasher          → bcrypt
type ClientService struct {
	clients repository.ClientRepository
	tokens  *auth.TokenService
	secrets *auth.SecretHasher
	logger  *slog.Logger
}

// NewClientService creates a ClientService.
func NewClientService(
	clients repository.ClientRepository,
	tokens *auth.TokenService,
	secrets *auth.SecretHasher,
	logger *slog.Logger,
) *ClientService {
	return &ClientService{
		clients: clients,
		tokens:  tokens,
		secrets: secrets,
		logger:  logger,
	}
}

// Register stores a new client with a hashed secret.
func (s *ClientService) Register(ctx context.Context, clientID, name, secret string) (*model.APIClient, error) {
	if err := validateCredentials(clientID, secret); err != nil {
		return nil, err
	}

	hash, err := s.secrets.Hash(secret)
	if err != nil {
		return nil, apperror.ValidationFailed("client_secret", err.Error())
	}

	c := &model.APIClient{ClientID: clientID, Name: name, SecretHash: hash}
	if err := s.clients.CreateClient(ctx, c); err != nil {
		return nil, fmt.Errorf("service/clients: registering %s: %w", clientID, err)
	}

	s.logger.Info("api client registered", slog.String("client_id", clientID))
	return c, nil
}

// Ensure makes sure clientID exists and accepts secret. It registers the
// client when missing and rotates the stored hash when the secret changed.
// The server calls it at startup with the configured credentials.
func (s *ClientService) Ensure(ctx context.Context, clientID, secret string) error {
	existing, err := s.clients.GetClientByClientID(ctx, clientID)
	switch {
	case errors.Is(err, apperror.ErrNotFound):
		_, err := s.Register(ctx, clientID, clientID, secret)
		return err
	case err != nil:
		return fmt.Errorf("service/clients: looking up %s: %w", clientID, err)
	}

	if err := s.secrets.Verify(existing.SecretHash, secret); err == nil {
		return nil
	}

	if err := validateCredentials(clientID, secret); err != nil {
		return err
	}
	hash, err := s.secrets.Hash(secret)
	if err != nil {
		return apperror.ValidationFailed("client_secret", err.Error())
	}
	if err := s.clients.UpdateClientSecret(ctx, clientID, hash); err != nil {
		return fmt.Errorf("service/clients: rotating secret of %s: %w", clientID, err)
	}

	s.logger.Info("api client secret rotated", slog.String("client_id", clientID))
	return nil
}

// IssueToken runs the client_credentials grant. Unknown clients and wrong
// secrets get the same apperror.ErrUnauthorized so callers cannot probe
// which client IDs exist.
func (s *ClientService) IssueToken(ctx context.Context, clientID, secret string) (*Token, error) {
	if clientID == "" || secret == "" {
		return nil, apperror.Unauthorized("client_id and client_secret are required")
	}

	c, err := s.clients.GetClientByClientID(ctx, clientID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			s.logger.Warn("token requested by unknown client", slog.String("client_id", clientID))
			return nil, apperror.Unauthorized("invalid client credentials")
		}
		return nil, fmt.Errorf("service/clients: looking up %s: %w", clientID, err)
	}

	if err := s.secrets.Verify(c.SecretHash, secret); err != nil {
		if errors.Is(err, auth.ErrSecretMismatch) {
			s.logger.Warn("token requested with a wrong secret", slog.String("client_id", clientID))
			return nil, apperror.Unauthorized("invalid client credentials")
		}
		return nil, fmt.Errorf("service/clients: verifying %s: %w", clientID, err)
	}

	signed, err := s.tokens.Issue(c.ClientID)
	if err != nil {
		return nil, fmt.Errorf("service/clients: issuing token for %s: %w", clientID, err)
	}

	s.logger.Debug("token issued", slog.String("client_id", clientID))
	return &Token{
		AccessToken: signed,
		TokenType:   "Bearer",
		ExpiresIn:   int(s.tokens.TTL().Seconds()),
	}, nil
}

func validateCredentials(clientID, secret string) error {
	if strings.TrimSpace(clientID) == "" {
		return apperror.ValidationFailed("client_id", "client_id is required")
	}
	if len(secret) < MinSecretLength {
		return apperror.ValidationFailed("client_secret",
			fmt.Sprintf("client_secret must be at least %d characters", MinSecretLength))
	}
	return nil
}
