package model

import "time"

// APIClient is a machine client allowed to call the user API with the OAuth2
// client_credentials grant.
//
// The plaintext secret is never stored; SecretHash holds its bcrypt hash.
// ID is our own xid, kept separate from the public ClientID so credentials
// can be rotated without changing primary keys.
type APIClient struct {
	ID         string    `json:"id"         db:"id"`
	ClientID   string    `json:"clientId"   db:"client_id"`
	Name       string    `json:"name"       db:"name"`
	SecretHash string    `json:"-"          db:"secret_hash"`
	CreatedAt  time.Time `json:"createdAt"  db:"created_at"`
}
