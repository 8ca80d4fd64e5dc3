package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestRequireBearer(t *testing.T) {
	ts := newTestTokenService(t)
	valid, _ := ts.Issue("client-1")
	expired, _ := ts.IssueWithTTL("client-1", -time.Second)

	var seen string
	h := RequireBearer(ts)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = ClientIDFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	cases := []struct {
		name          string
		header        string
		wantStatus    int
		wantChallenge string
	}{
		{"valid", "Bearer " + valid, http.StatusNoContent, ""},
		{"lowercase scheme", "bearer " + valid, http.StatusNoContent, ""},
		{"missing", "", http.StatusUnauthorized, `Bearer realm="users"`},
		{"basic scheme", "Basic dXNlcjpwYXNz", http.StatusUnauthorized, `Bearer realm="users"`},
		{"expired", "Bearer " + expired, http.StatusUnauthorized, `error="invalid_token"`},
		{"garbage", "Bearer abc", http.StatusUnauthorized, `error="invalid_token"`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			seen = ""
			req := httptest.NewRequest(http.MethodGet, "/users", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()

			h.ServeHTTP(rec, req)

			if rec.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
			if tc.wantStatus == http.StatusNoContent {
				if seen != "client-1" {
					t.Errorf("client ID in context = %q, want %q", seen, "client-1")
				}
				return
			}
			if got := rec.Header().Get("WWW-Authenticate"); !strings.Contains(got, tc.wantChallenge) {
				t.Errorf("WWW-Authenticate = %q, want it to contain %q", got, tc.wantChallenge)
			}
			if seen != "" {
				t.Error("handler ran for an unauthenticated request")
			}
		})
	}
}

func TestClientIDFromContext_Anonymous(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if _, ok := ClientIDFromContext(req.Context()); ok {
		t.Error("ClientIDFromContext() reported a client on an anonymous request")
	}
}
