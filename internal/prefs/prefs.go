// Package prefs is the client-persisted storage shared by the canvas
// components: the bearer credential, the cached user identity and the
// remembered topology id.
package prefs

import (
	"context"
	"errors"
	"fmt"
	"strconv"
)

// Keys under which values are persisted.
const (
	KeyToken            = "token"
	KeyUserID           = "user_id"
	KeyUsername         = "username"
	KeyUserType         = "user_type"
	KeyActiveTopologyID = "active_topology_id"
)

// identityKeys are removed together with the token when a session expires.
var identityKeys = []string{KeyToken, KeyUserID, KeyUsername, KeyUserType}

// Identity is the cached user identity that accompanies a token.
type Identity struct {
	UserID   string
	Username string
	UserType string
}

// Prefs reads and writes client-persisted values through a
// SettingsRepository.
type Prefs struct {
	repo SettingsRepository
}

// New returns Prefs backed by repo.
func New(repo SettingsRepository) *Prefs {
	return &Prefs{repo: repo}
}

// Token returns the stored bearer token, or "" when none is stored.
func (p *Prefs) Token(ctx context.Context) (string, error) {
	return p.get(ctx, KeyToken)
}

// SetCredentials stores a token and the identity it belongs to.
func (p *Prefs) SetCredentials(ctx context.Context, token string, id Identity) error {
	values := map[string]string{
		KeyToken:    token,
		KeyUserID:   id.UserID,
		KeyUsername: id.Username,
		KeyUserType: id.UserType,
	}
	for k, v := range values {
		if v == "" {
			if err := p.repo.Delete(ctx, k); err != nil {
				return err
			}
			continue
		}
		if err := p.repo.Set(ctx, k, v); err != nil {
			return err
		}
	}
	return nil
}

// Identity returns the cached identity fields.
func (p *Prefs) Identity(ctx context.Context) (Identity, error) {
	var id Identity
	var err error
	if id.UserID, err = p.get(ctx, KeyUserID); err != nil {
		return id, err
	}
	if id.Username, err = p.get(ctx, KeyUsername); err != nil {
		return id, err
	}
	id.UserType, err = p.get(ctx, KeyUserType)
	return id, err
}

// ClearCredentials removes the token and every cached identity field.
func (p *Prefs) ClearCredentials(ctx context.Context) error {
	for _, k := range identityKeys {
		if err := p.repo.Delete(ctx, k); err != nil {
			return fmt.Errorf("clear credentials: %w", err)
		}
	}
	return nil
}

// ActiveTopology returns the remembered topology id, or 0 when none is
// remembered or the stored value is unusable.
func (p *Prefs) ActiveTopology(ctx context.Context) (int, error) {
	v, err := p.get(ctx, KeyActiveTopologyID)
	if err != nil || v == "" {
		return 0, err
	}
	id, convErr := strconv.Atoi(v)
	if convErr != nil || id <= 0 {
		return 0, nil
	}
	return id, nil
}

// SetActiveTopology remembers id for the next start.
func (p *Prefs) SetActiveTopology(ctx context.Context, id int) error {
	return p.repo.Set(ctx, KeyActiveTopologyID, strconv.Itoa(id))
}

// ClearActiveTopology forgets the remembered topology.
func (p *Prefs) ClearActiveTopology(ctx context.Context) error {
	return p.repo.Delete(ctx, KeyActiveTopologyID)
}

func (p *Prefs) get(ctx context.Context, key string) (string, error) {
	s, err := p.repo.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return s.Value, nil
}
