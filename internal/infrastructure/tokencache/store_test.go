package tokencache_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/jhoicas/integraciones-api/internal/domain"
	"github.com/jhoicas/integraciones-api/internal/infrastructure/tokencache"
)

func TestMemoryStore_GuardaYLee(t *testing.T) {
	ctx := context.Background()
	s := tokencache.NewMemoryStore()

	_, err := s.Get(ctx, "qbo:123")
	require.ErrorIs(t, err, domain.ErrNotFound)

	tok := &oauth2.Token{AccessToken: "a", RefreshToken: "r", Expiry: time.Now().Add(time.Hour)}
	require.NoError(t, s.Set(ctx, "qbo:123", tok))

	got, err := s.Get(ctx, "qbo:123")
	require.NoError(t, err)
	assert.Equal(t, "a", got.AccessToken)
	assert.Equal(t, "r", got.RefreshToken)

	got.AccessToken = "mutado"
	again, _ := s.Get(ctx, "qbo:123")
	assert.Equal(t, "a", again.AccessToken, "Get debe devolver copias")

	require.NoError(t, s.Delete(ctx, "qbo:123"))
	_, err = s.Get(ctx, "qbo:123")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMemoryStore_SinRefreshExpira(t *testing.T) {
	ctx := context.Background()
	s := tokencache.NewMemoryStore()

	vencido := &oauth2.Token{AccessToken: "a", Expiry: time.Now().Add(-time.Minute)}
	require.NoError(t, s.Set(ctx, "ns", vencido))
	_, err := s.Get(ctx, "ns")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMemoryStore_VencidoReemplazaVigente(t *testing.T) {
	ctx := context.Background()
	s := tokencache.NewMemoryStore()

	require.NoError(t, s.Set(ctx, "qbo", &oauth2.Token{AccessToken: "a", Expiry: time.Now().Add(time.Hour)}))
	require.NoError(t, s.Set(ctx, "qbo", &oauth2.Token{AccessToken: "b", Expiry: time.Now().Add(-time.Second)}))
	_, err := s.Get(ctx, "qbo")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMemoryStore_TokenNulo(t *testing.T) {
	err := tokencache.NewMemoryStore().Set(context.Background(), "x", nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestRedisStore_Integracion(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if testing.Short() || addr == "" {
		t.Skip("se requiere REDIS_ADDR para la prueba de integración con Redis")
	}
	ctx := context.Background()
	s, err := tokencache.NewRedisStore(ctx, tokencache.RedisConfig{Addr: addr})
	require.NoError(t, err)
	defer s.Close()

	key := "test:" + time.Now().Format("150405.000000000")
	tok := &oauth2.Token{AccessToken: "a", RefreshToken: "r", TokenType: "Bearer", Expiry: time.Now().Add(time.Hour).Truncate(time.Second)}
	require.NoError(t, s.Set(ctx, key, tok))

	got, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, tok.AccessToken, got.AccessToken)
	assert.True(t, tok.Expiry.Equal(got.Expiry))

	require.NoError(t, s.Delete(ctx, key))
	_, err = s.Get(ctx, key)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
