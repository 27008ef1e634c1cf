// Package signer sella comprobantes CFDI 4.0 con el CSD del emisor: RSA-SHA256 (PKCS#1 v1.5)
// sobre la cadena original, codificado en base64.
package signer

import (
	"bytes"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/beevik/etree"

	"github.com/jhoicas/integraciones-api/internal/domain/cfdi"
)

// SealResult datos producidos al sellar.
type SealResult struct {
	Cadena        string
	Sello         string
	NoCertificado string
}

// CSDSigner sella comprobantes con un CSD cargado.
type CSDSigner struct {
	cred *Credential
}

// NewCSDSigner crea el servicio de sellado.
func NewCSDSigner(cred *Credential) *CSDSigner {
	return &CSDSigner{cred: cred}
}

// Credential devuelve el CSD en uso.
func (s *CSDSigner) Credential() *Credential {
	return s.cred
}

// Seal verifica el CSD contra el emisor y la fecha del comprobante, asigna NoCertificado y
// Certificado, calcula la cadena original y deja el Sello en el comprobante.
func (s *CSDSigner) Seal(c *cfdi.Comprobante) (*SealResult, error) {
	if c == nil {
		return nil, cfdi.ErrComprobanteNil
	}
	if s.cred == nil {
		return nil, fmt.Errorf("signer: CSD no configurado")
	}
	if err := s.cred.Check(c.Fecha, c.Emisor.Rfc); err != nil {
		return nil, err
	}
	c.NoCertificado = s.cred.NoCertificado
	c.Certificado = s.cred.CertificateBase64

	cadena, err := cfdi.CadenaOriginal(c)
	if err != nil {
		return nil, err
	}
	sello, err := SignCadena(cadena, s.cred.PrivateKey)
	if err != nil {
		return nil, err
	}
	c.Sello = sello
	return &SealResult{Cadena: cadena, Sello: sello, NoCertificado: c.NoCertificado}, nil
}

// SignCadena firma la cadena con RSA-SHA256 PKCS#1 v1.5 y devuelve el sello en base64.
func SignCadena(cadena string, key *rsa.PrivateKey) (string, error) {
	digest := sha256.Sum256([]byte(cadena))
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, digest[:])
	if err != nil {
		return "", fmt.Errorf("signer: firmar cadena original: %w", err)
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

// Verify comprueba que sello (base64) sea la firma de cadena con la llave pública de cert.
func Verify(cadena, sello string, cert *x509.Certificate) error {
	if cert == nil {
		return fmt.Errorf("signer: certificado nulo")
	}
	pub, ok := cert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return ErrUnsupportedKey
	}
	sig, err := base64.StdEncoding.DecodeString(sello)
	if err != nil {
		return fmt.Errorf("signer: sello no es base64: %w", err)
	}
	digest := sha256.Sum256([]byte(cadena))
	if err := rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest[:], sig); err != nil {
		return fmt.Errorf("signer: sello inválido: %w", err)
	}
	return nil
}

// VerifyBase64Cert igual que Verify pero con el certificado tal como viaja en el atributo Certificado.
func VerifyBase64Cert(cadena, sello, certB64 string) error {
	der, err := base64.StdEncoding.DecodeString(certB64)
	if err != nil {
		return fmt.Errorf("signer: certificado no es base64: %w", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return fmt.Errorf("signer: parsear certificado: %w", err)
	}
	return Verify(cadena, sello, cert)
}

// InjectSeal escribe Sello, NoCertificado y Certificado en el nodo raíz de un XML ya generado.
func InjectSeal(xmlBytes []byte, sello, noCertificado, certB64 string) ([]byte, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(xmlBytes); err != nil {
		return nil, fmt.Errorf("signer: parsear XML: %w", err)
	}
	root := doc.Root()
	if root == nil || root.Tag != "Comprobante" {
		return nil, fmt.Errorf("signer: el documento no tiene raíz cfdi:Comprobante")
	}
	root.CreateAttr("Sello", sello)
	root.CreateAttr("NoCertificado", noCertificado)
	root.CreateAttr("Certificado", certB64)
	var out bytes.Buffer
	if _, err := doc.WriteTo(&out); err != nil {
		return nil, fmt.Errorf("signer: serializar XML: %w", err)
	}
	return out.Bytes(), nil
}

// ExpiresWithin indica si el CSD vence dentro de d a partir de now (usado por el health check).
func (s *CSDSigner) ExpiresWithin(now time.Time, d time.Duration) bool {
	return s.cred != nil && s.cred.NotAfter.Before(now.Add(d))
}
