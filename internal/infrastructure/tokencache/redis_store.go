package tokencache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"

	"github.com/jhoicas/integraciones-api/internal/domain"
)

const defaultKeyPrefix = "integraciones:oauth:"

var _ Store = (*RedisStore)(nil)

// RedisStore cache compartido en Redis; el token se guarda como JSON.
type RedisStore struct {
	client    redis.UniversalClient
	keyPrefix string
}

// RedisConfig conexión a Redis.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisStore conecta y verifica con PING.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("tokencache: conectar a Redis: %w", err)
	}
	return &RedisStore{client: client, keyPrefix: defaultKeyPrefix}, nil
}

// NewRedisStoreWithClient usa un cliente existente (compartido o de pruebas).
func NewRedisStoreWithClient(client redis.UniversalClient, keyPrefix string) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	return &RedisStore{client: client, keyPrefix: keyPrefix}
}

// Get lee y decodifica el token.
func (s *RedisStore) Get(ctx context.Context, key string) (*oauth2.Token, error) {
	raw, err := s.client.Get(ctx, s.keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("tokencache: %s: %w", key, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("tokencache: leer %s: %w", key, err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(raw, &tok); err != nil {
		return nil, fmt.Errorf("tokencache: decodificar %s: %w", key, err)
	}
	return &tok, nil
}

// Set guarda el token con TTL hasta su expiración (sin TTL si trae refresh token).
func (s *RedisStore) Set(ctx context.Context, key string, tok *oauth2.Token) error {
	if tok == nil {
		return fmt.Errorf("tokencache: token nulo: %w", domain.ErrInvalidInput)
	}
	raw, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("tokencache: codificar token: %w", err)
	}
	ttl := ttlFor(tok, time.Now())
	if ttl < 0 {
		return s.Delete(ctx, key)
	}
	if err := s.client.Set(ctx, s.keyPrefix+key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("tokencache: guardar %s: %w", key, err)
	}
	return nil
}

// Delete elimina la clave.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("tokencache: eliminar %s: %w", key, err)
	}
	return nil
}

// Ping verifica la conexión (usado como sonda de salud).
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close cierra el cliente.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
