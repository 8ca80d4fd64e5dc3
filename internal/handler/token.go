package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/sakif/user-directory/internal/apperror"
	"github.com/sakif/user-directory/internal/service"
)

// TokenIssuer is the part of service.ClientService the token endpoint needs.
type TokenIssuer interface {
	IssueToken(ctx context.Context, clientID, secret string) (*service.Token, error)
}

// TokenHandler is the OAuth2 token endpoint. It supports only the
// client_credentials grant.
//
// OAUTH ERROR FORMAT:
// Unlike the rest of the API this endpoint answers errors the way RFC 6749
// section 5.2 prescribes, {"error":"invalid_client","error_description":...},
// because that is what OAuth2 client libraries parse.
type TokenHandler struct {
	issuer TokenIssuer
	logger *slog.Logger
}

// NewTokenHandler creates a TokenHandler.
func NewTokenHandler(issuer TokenIssuer, logger *slog.Logger) *TokenHandler {
	return &TokenHandler{issuer: issuer, logger: logger}
}

type oauthError struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

// HandleToken exchanges client credentials for an access token.
//
// HTTP: POST /oauth/token
// BODY: application/x-www-form-urlencoded, grant_type=client_credentials
//
// Credentials are accepted in HTTP Basic auth or as client_id and
// client_secret form fields. golang.org/x/oauth2 tries Basic first and
// falls back to the form, so both must work.
func (h *TokenHandler) HandleToken(w http.ResponseWriter, r *http.Request) {
	// Tokens must never be cached by intermediaries.
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")

	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, oauthError{Error: "invalid_request", Description: "malformed form body"})
		return
	}

	if gt := r.PostForm.Get("grant_type"); gt != "client_credentials" {
		writeJSON(w, http.StatusBadRequest, oauthError{
			Error:       "unsupported_grant_type",
			Description: "only client_credentials is supported",
		})
		return
	}

	clientID, secret, viaBasic := clientCredentials(r)

	tok, err := h.issuer.IssueToken(r.Context(), clientID, secret)
	if err != nil {
		if errors.Is(err, apperror.ErrUnauthorized) {
			if viaBasic {
				w.Header().Set("WWW-Authenticate", `Basic realm="oauth"`)
			}
			writeJSON(w, http.StatusUnauthorized, oauthError{Error: "invalid_client", Description: "client authentication failed"})
			return
		}
		h.logger.Error("issuing token failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, oauthError{Error: "server_error"})
		return
	}

	writeJSON(w, http.StatusOK, tok)
}

// clientCredentials reads Basic auth first and the form second. Basic
// credentials are form-urlencoded before encoding (RFC 6749 section 2.3.1).
func clientCredentials(r *http.Request) (clientID, secret string, viaBasic bool) {
	if id, sec, ok := r.BasicAuth(); ok {
		if uid, err := url.QueryUnescape(id); err == nil {
			id = uid
		}
		if usec, err := url.QueryUnescape(sec); err == nil {
			sec = usec
		}
		return id, sec, true
	}
	return r.PostForm.Get("client_id"), r.PostForm.Get("client_secret"), false
}
