// Package model defines the data structures used throughout the application.
package model

import (
	"fmt"
	"strings"
)

// User is one record of the remote user directory.
//
// The JSON tags follow the wire format of the user API exactly, so the same
// struct is decoded by the client and encoded by the stand-in server.
//
// IMMUTABILITY:
// A User is treated as a value. Collections of users are replaced wholesale on
// every fetch and never edited in place, so it is safe to hand the same slice
// to several readers.
type User struct {
	ID      int     `json:"id"`
	Name    string  `json:"name"`
	Email   string  `json:"email"`
	Phone   string  `json:"phone"`
	Address Address `json:"address"`
	Company Company `json:"company"`
}

// Address is the postal address of a user.
type Address struct {
	Street  string `json:"street"`
	Suite   string `json:"suite"`
	City    string `json:"city"`
	Zipcode string `json:"zipcode"`
}

// String renders the address on one line: "street, suite, city, zipcode".
// Empty parts are skipped so a sparse record does not print ", , ,".
func (a Address) String() string {
	parts := make([]string, 0, 4)
	for _, p := range []string{a.Street, a.Suite, a.City, a.Zipcode} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// Company is the employer of a user.
type Company struct {
	Name        string `json:"name"`
	CatchPhrase string `json:"catchPhrase"`
}

// Matches reports whether the term is a case-insensitive substring of the
// user's name or email. An empty term matches every user.
func (u User) Matches(term string) bool {
	if term == "" {
		return true
	}
	needle := strings.ToLower(term)
	return strings.Contains(strings.ToLower(u.Name), needle) ||
		strings.Contains(strings.ToLower(u.Email), needle)
}

// ValidateCollection checks the identity invariants of a fetched collection:
// every id is positive and no two records share an id.
func ValidateCollection(users []User) error {
	seen := make(map[int]struct{}, len(users))
	for i, u := range users {
		if u.ID <= 0 {
			return fmt.Errorf("user at position %d has non-positive id %d", i, u.ID)
		}
		if _, dup := seen[u.ID]; dup {
			return fmt.Errorf("duplicate user id %d at position %d", u.ID, i)
		}
		seen[u.ID] = struct{}{}
	}
	return nil
}
