package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/user-directory/internal/apperror"
	"github.com/sakif/user-directory/internal/model"
	"github.com/sakif/user-directory/internal/repository"
)

// UserReader is the part of service.UserService the handlers need.
type UserReader interface {
	List(ctx context.Context, opts repository.ListOptions) ([]model.User, error)
	Get(ctx context.Context, id int) (*model.User, error)
}

// UserHandler serves the read-only user directory.
//
// The response shapes match the public JSONPlaceholder API, so the client
// cannot tell this server from the real one.
type UserHandler struct {
	users  UserReader
	logger *slog.Logger
}

// NewUserHandler creates a UserHandler.
func NewUserHandler(users UserReader, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: users, logger: logger}
}

// HandleList returns the directory.
//
// HTTP: GET /users[?_start=N&_limit=M]
//
// _start and _limit follow json-server's paging parameters. Without them the
// whole directory is returned, which is what the client asks for.
func (h *UserHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	opts, err := listOptions(r)
	if err != nil {
		writeError(w, err)
		return
	}

	users, err := h.users.List(r.Context(), opts)
	if err != nil {
		h.logger.Error("listing users failed", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, users)
}

// HandleGetByID returns one user.
//
// HTTP: GET /users/{id}
//
// A missing user is a 404 with the usual error body.
func (h *UserHandler) HandleGetByID(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, apperror.ValidationFailed("id", "id must be an integer, got "+strconv.Quote(raw)))
		return
	}

	u, err := h.users.Get(r.Context(), id)
	if err != nil {
		h.logger.Debug("getting user failed", slog.Int("id", id), slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, u)
}

func listOptions(r *http.Request) (repository.ListOptions, error) {
	var opts repository.ListOptions
	q := r.URL.Query()

	if v := q.Get("_start"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return opts, apperror.ValidationFailed("_start", "_start must be an integer")
		}
		opts.Offset = n
	}
	if v := q.Get("_limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return opts, apperror.ValidationFailed("_limit", "_limit must be an integer")
		}
		opts.Limit = n
	}
	return opts, nil
}

// HandleHealth reports liveness.
//
// HTTP: GET /healthz
func HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
