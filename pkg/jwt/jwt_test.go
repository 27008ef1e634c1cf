package jwt_test

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/integraciones-api/pkg/jwt"
)

const aud = "https://1234567-sb1.suitetalk.api.netsuite.com/services/rest/auth/oauth2/v1/token"

func newKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

func decodeSegment(t *testing.T, seg string) string {
	t.Helper()
	b, err := base64.RawURLEncoding.DecodeString(seg)
	require.NoError(t, err)
	return string(b)
}

func TestSigner_FirmaYValida(t *testing.T) {
	key := newKey(t)
	s, err := jwt.NewSigner(key, "client-1", aud, "cert-1", []string{"rest_webservices"})
	require.NoError(t, err)

	token, err := s.Sign(time.Now())
	require.NoError(t, err)

	claims, kid, err := jwt.Parse(token, &key.PublicKey, aud)
	require.NoError(t, err)
	assert.Equal(t, "cert-1", kid)
	assert.Equal(t, "client-1", claims.Issuer)
	assert.Equal(t, []string{"rest_webservices"}, claims.Scope)
	assert.NotEmpty(t, claims.ID)
	assert.Equal(t, 5*time.Minute, claims.ExpiresAt.Sub(claims.IssuedAt.Time))
}

func TestSigner_AudienciaComoCadena(t *testing.T) {
	s, err := jwt.NewSigner(newKey(t), "client-1", aud, "cert-1", nil)
	require.NoError(t, err)
	token, err := s.Sign(time.Now())
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	assert.Contains(t, decodeSegment(t, parts[0]), `"alg":"PS256"`)
	assert.Contains(t, decodeSegment(t, parts[1]), `"aud":"`+aud+`"`)
}

func TestParse_RechazaOtraLlaveYAudiencia(t *testing.T) {
	key := newKey(t)
	s, err := jwt.NewSigner(key, "client-1", aud, "cert-1", nil)
	require.NoError(t, err)
	token, err := s.Sign(time.Now())
	require.NoError(t, err)

	_, _, err = jwt.Parse(token, &newKey(t).PublicKey, aud)
	assert.Error(t, err)

	_, _, err = jwt.Parse(token, &key.PublicKey, "https://otro.example.com/token")
	assert.Error(t, err)
}

func TestParse_RechazaExpirada(t *testing.T) {
	key := newKey(t)
	s, err := jwt.NewSigner(key, "client-1", aud, "cert-1", nil)
	require.NoError(t, err)
	token, err := s.Sign(time.Now().Add(-2 * time.Hour))
	require.NoError(t, err)

	_, _, err = jwt.Parse(token, &key.PublicKey, aud)
	assert.Error(t, err)
}

func TestSigner_TTLAcotado(t *testing.T) {
	key := newKey(t)
	s, err := jwt.NewSigner(key, "client-1", aud, "cert-1", nil)
	require.NoError(t, err)
	s.TTL = 3 * time.Hour

	token, err := s.Sign(time.Now())
	require.NoError(t, err)
	claims, _, err := jwt.Parse(token, &key.PublicKey, aud)
	require.NoError(t, err)
	assert.Equal(t, jwt.MaxTTL, claims.ExpiresAt.Sub(claims.IssuedAt.Time))
}

func TestNewSigner_Obligatorios(t *testing.T) {
	_, err := jwt.NewSigner(nil, "a", aud, "k", nil)
	assert.Error(t, err)
	_, err = jwt.NewSigner(newKey(t), "", aud, "k", nil)
	assert.Error(t, err)
}

func TestLoadPrivateKey_PKCS8(t *testing.T) {
	key := newKey(t)
	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "netsuite.pem")
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), 0o600))

	got, err := jwt.LoadPrivateKey(path)
	require.NoError(t, err)
	assert.True(t, key.Equal(got))

	_, err = jwt.ParsePrivateKeyPEM([]byte("basura"))
	assert.Error(t, err)
}
