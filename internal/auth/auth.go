// Package auth holds the process-wide login state: the API credential, the
// token bundles issued by OTP verification and the single active identity.
package auth

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"

	"github.com/example/myxl-gateway/internal/credential"
)

// Tokens is the credential material returned by OTP verification.
type Tokens struct {
	RefreshToken string `json:"refresh_token"`
	AccessToken  string `json:"access_token"`
	IDToken      string `json:"id_token"`
}

func (t Tokens) Valid() bool { return t.IDToken != "" }

var ErrNoTokens = errors.New("auth: no tokens for number")

// TokenStore persists token bundles keyed by subscriber number.
type TokenStore interface {
	Save(ctx context.Context, number int64, t Tokens) error
	// Load returns ErrNoTokens when nothing is stored for number.
	Load(ctx context.Context, number int64) (Tokens, error)
	Numbers(ctx context.Context) ([]int64, error)
}

// Identity is the result of parsing a contact into a subscriber number.
type Identity struct {
	Number int64
	OK     bool
}

// ParseIdentity parses a trimmed contact as a base-10 integer.
func ParseIdentity(contact string) Identity {
	n, err := strconv.ParseInt(strings.TrimSpace(contact), 10, 64)
	if err != nil {
		return Identity{}
	}
	return Identity{Number: n, OK: true}
}

// Registry ties the credential, the token store and the active identity
// together.
//
// The active identity is a single process-wide pointer, not scoped to a
// client: a submit from one caller changes what every later caller sees,
// and concurrent submits race with last-write-wins. The mutex only keeps
// the pointer memory safe.
type Registry struct {
	Credential *credential.Resolver
	Store      TokenStore

	mu     sync.RWMutex
	active int64
	has    bool
}

func NewRegistry(cred *credential.Resolver, store TokenStore) *Registry {
	return &Registry{Credential: cred, Store: store}
}

// ActiveUser returns the current identity, if any.
func (r *Registry) ActiveUser() (int64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active, r.has
}

func (r *Registry) SetActiveUser(number int64) {
	r.mu.Lock()
	r.active, r.has = number, true
	r.mu.Unlock()
}

// ActiveTokens returns the active identity's bundle. ok is false when there
// is no active identity or no valid bundle for it.
func (r *Registry) ActiveTokens(ctx context.Context) (Tokens, bool, error) {
	n, has := r.ActiveUser()
	if !has {
		return Tokens{}, false, nil
	}
	t, err := r.Store.Load(ctx, n)
	if errors.Is(err, ErrNoTokens) {
		return Tokens{}, false, nil
	}
	if err != nil {
		return Tokens{}, false, err
	}
	return t, t.Valid(), nil
}
