// Package credstore persists the signed-in session (token plus cached
// profile) on the client.
package credstore

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/agribusiness-pro/apiserver/types"
)

const (
	KeyToken   = "auth.token"
	KeyProfile = "auth.profile"
)

// Record is a stored credential.
type Record struct {
	Token   string
	Profile types.Profile
}

// Store reads and writes the two credential keys.
type Store struct {
	backend Backend
}

func New(backend Backend) *Store {
	return &Store{backend: backend}
}

// Write overwrites the token and then the profile snapshot.
func (s *Store) Write(ctx context.Context, token string, profile types.Profile) error {
	if token == "" {
		return errors.New("credential token is empty")
	}
	snapshot, err := json.Marshal(profile)
	if err != nil {
		return err
	}
	if err := s.backend.Set(ctx, KeyToken, []byte(token)); err != nil {
		return err
	}
	return s.backend.Set(ctx, KeyProfile, snapshot)
}

// Read returns the stored record. A missing key, a backend failure and an
// unparseable profile all report (Record{}, false).
func (s *Store) Read(ctx context.Context) (Record, bool) {
	token, err := s.backend.Get(ctx, KeyToken)
	if err != nil || len(token) == 0 {
		return Record{}, false
	}
	snapshot, err := s.backend.Get(ctx, KeyProfile)
	if err != nil || len(snapshot) == 0 {
		return Record{}, false
	}

	var profile types.Profile
	if err := json.Unmarshal(snapshot, &profile); err != nil || profile.Email == "" {
		return Record{}, false
	}
	return Record{Token: string(token), Profile: profile}, true
}

// Clear deletes both keys. Clearing an empty store is a no-op.
func (s *Store) Clear(ctx context.Context) error {
	return errors.Join(
		s.backend.Delete(ctx, KeyToken),
		s.backend.Delete(ctx, KeyProfile),
	)
}
