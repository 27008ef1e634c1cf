// Package tokencache almacena tokens OAuth2 de los conectores: en memoria para un solo proceso
// o en Redis cuando varias instancias comparten la rotación del refresh token.
package tokencache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/jhoicas/integraciones-api/internal/domain"
)

// Store puerto del cache de tokens. Get devuelve domain.ErrNotFound si la clave no existe.
type Store interface {
	Get(ctx context.Context, key string) (*oauth2.Token, error)
	Set(ctx context.Context, key string, tok *oauth2.Token) error
	Delete(ctx context.Context, key string) error
}

// ttlFor duración con la que se guarda un token: sin límite (0) si trae refresh token
// (el refresh token sobrevive al access token), o hasta su expiración. Negativa si ya venció.
func ttlFor(tok *oauth2.Token, now time.Time) time.Duration {
	if tok.RefreshToken != "" || tok.Expiry.IsZero() {
		return 0
	}
	if d := tok.Expiry.Sub(now); d > 0 {
		return d
	}
	return -1
}

var _ Store = (*MemoryStore)(nil)

type memEntry struct {
	tok       oauth2.Token
	expiresAt time.Time
}

// MemoryStore cache en memoria del proceso.
type MemoryStore struct {
	mu  sync.RWMutex
	m   map[string]memEntry
	now func() time.Time
}

// NewMemoryStore crea el cache vacío.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{m: make(map[string]memEntry), now: time.Now}
}

// Get devuelve una copia del token.
func (s *MemoryStore) Get(_ context.Context, key string) (*oauth2.Token, error) {
	s.mu.RLock()
	e, ok := s.m[key]
	s.mu.RUnlock()
	if !ok || (!e.expiresAt.IsZero() && !s.now().Before(e.expiresAt)) {
		return nil, fmt.Errorf("tokencache: %s: %w", key, domain.ErrNotFound)
	}
	tok := e.tok
	return &tok, nil
}

// Set guarda una copia del token.
func (s *MemoryStore) Set(_ context.Context, key string, tok *oauth2.Token) error {
	if tok == nil {
		return fmt.Errorf("tokencache: token nulo: %w", domain.ErrInvalidInput)
	}
	now := s.now()
	ttl := ttlFor(tok, now)
	s.mu.Lock()
	defer s.mu.Unlock()
	if ttl < 0 {
		delete(s.m, key)
		return nil
	}
	e := memEntry{tok: *tok}
	if ttl > 0 {
		e.expiresAt = now.Add(ttl)
	}
	s.m[key] = e
	return nil
}

// Delete elimina la clave (no falla si no existe).
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.m, key)
	s.mu.Unlock()
	return nil
}
