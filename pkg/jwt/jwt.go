// Package jwt firma y valida client assertions (RFC 7523) para el flujo OAuth2 client credentials.
package jwt

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AssertionType valor de client_assertion_type.
const AssertionType = "urn:ietf:params:oauth:client-assertion-type:jwt-bearer"

// MaxTTL vigencia máxima aceptada por los servidores de autorización.
const MaxTTL = time.Hour

// Claims de la assertion. aud se serializa como cadena simple y scope como arreglo.
type Claims struct {
	Issuer    string           `json:"iss"`
	Audience  string           `json:"aud"`
	Scope     []string         `json:"scope,omitempty"`
	IssuedAt  *jwt.NumericDate `json:"iat"`
	ExpiresAt *jwt.NumericDate `json:"exp"`
	ID        string           `json:"jti,omitempty"`
}

func (c Claims) GetExpirationTime() (*jwt.NumericDate, error) { return c.ExpiresAt, nil }
func (c Claims) GetIssuedAt() (*jwt.NumericDate, error)       { return c.IssuedAt, nil }
func (c Claims) GetNotBefore() (*jwt.NumericDate, error)      { return nil, nil }
func (c Claims) GetIssuer() (string, error)                   { return c.Issuer, nil }
func (c Claims) GetSubject() (string, error)                  { return "", nil }
func (c Claims) GetAudience() (jwt.ClaimStrings, error)       { return jwt.ClaimStrings{c.Audience}, nil }

// Signer genera assertions firmadas con PS256. KeyID viaja en el header kid.
type Signer struct {
	Issuer   string
	Audience string
	KeyID    string
	Scopes   []string
	TTL      time.Duration

	key *rsa.PrivateKey
}

// NewSigner crea el firmador; TTL por omisión 5 minutos.
func NewSigner(key *rsa.PrivateKey, issuer, audience, keyID string, scopes []string) (*Signer, error) {
	if key == nil {
		return nil, errors.New("jwt: llave privada nula")
	}
	if issuer == "" || audience == "" || keyID == "" {
		return nil, errors.New("jwt: issuer, audience y kid son obligatorios")
	}
	return &Signer{
		Issuer:   issuer,
		Audience: audience,
		KeyID:    keyID,
		Scopes:   scopes,
		TTL:      5 * time.Minute,
		key:      key,
	}, nil
}

// Sign firma una assertion emitida en now.
func (s *Signer) Sign(now time.Time) (string, error) {
	ttl := s.TTL
	if ttl <= 0 || ttl > MaxTTL {
		ttl = MaxTTL
	}
	claims := Claims{
		Issuer:    s.Issuer,
		Audience:  s.Audience,
		Scope:     s.Scopes,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        uuid.NewString(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodPS256, claims)
	token.Header["kid"] = s.KeyID
	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("jwt: firmar assertion: %w", err)
	}
	return signed, nil
}

// Parse valida firma PS256, audiencia y vigencia, y devuelve los claims y el kid.
func Parse(tokenString string, pub *rsa.PublicKey, audience string) (*Claims, string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSAPSS); !ok {
			return nil, fmt.Errorf("método de firma inesperado: %v", t.Header["alg"])
		}
		return pub, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodPS256.Alg()}),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	)
	if err != nil {
		return nil, "", err
	}
	if !token.Valid {
		return nil, "", fmt.Errorf("claims inválidos")
	}
	kid, _ := token.Header["kid"].(string)
	return claims, kid, nil
}

// ParsePrivateKeyPEM acepta llaves RSA en PKCS#1 o PKCS#8.
func ParsePrivateKeyPEM(data []byte) (*rsa.PrivateKey, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM(data)
	if err != nil {
		return nil, fmt.Errorf("jwt: llave privada: %w", err)
	}
	return key, nil
}

// LoadPrivateKey lee una llave RSA PEM desde disco.
func LoadPrivateKey(path string) (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("jwt: leer llave: %w", err)
	}
	return ParsePrivateKeyPEM(data)
}
