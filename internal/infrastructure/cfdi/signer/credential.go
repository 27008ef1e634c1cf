// Carga del Certificado de Sello Digital (CSD) desde .cer/.key del SAT, par PEM o .pfx.

package signer

import (
	"bytes"
	"crypto/rsa"
	"crypto/x509"
	"encoding/asn1"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/youmark/pkcs8"
	"golang.org/x/crypto/pkcs12"
)

// oidX500UniqueIdentifier atributo del subject donde el SAT guarda "RFC / CURP".
var oidX500UniqueIdentifier = asn1.ObjectIdentifier{2, 5, 4, 45}

// Errores de verificación del CSD.
var (
	ErrKeyMismatch    = errors.New("signer: la llave privada no corresponde al certificado")
	ErrCertExpired    = errors.New("signer: el certificado no está vigente")
	ErrRFCMismatch    = errors.New("signer: el RFC del certificado no corresponde al emisor")
	ErrNotCSD         = errors.New("signer: el certificado es una e.firma (FIEL), no un CSD")
	ErrUnsupportedKey = errors.New("signer: solo se admiten llaves RSA")
)

// Credential CSD cargado y listo para sellar.
type Credential struct {
	Certificate       *x509.Certificate
	PrivateKey        *rsa.PrivateKey
	NoCertificado     string // 20 dígitos
	RFC               string
	Nombre            string
	NotBefore         time.Time
	NotAfter          time.Time
	CertificateBase64 string // DER en base64, valor del atributo Certificado
}

// LoadFromFiles carga el CSD desde archivos. Si certPath termina en .pfx/.p12 se ignora keyPath.
func LoadFromFiles(certPath, keyPath, password string) (*Credential, error) {
	certData, err := os.ReadFile(certPath)
	if err != nil {
		return nil, fmt.Errorf("signer: leer certificado: %w", err)
	}
	lower := strings.ToLower(certPath)
	if strings.HasSuffix(lower, ".pfx") || strings.HasSuffix(lower, ".p12") {
		return LoadPFX(certData, password)
	}
	keyData, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("signer: leer llave privada: %w", err)
	}
	return LoadCredential(certData, keyData, password)
}

// LoadCredential carga certificado (DER o PEM) y llave (PKCS#8 cifrada DER del SAT, o PEM).
func LoadCredential(certData, keyData []byte, password string) (*Credential, error) {
	cert, err := parseCertificate(certData)
	if err != nil {
		return nil, err
	}
	key, err := parsePrivateKey(keyData, password)
	if err != nil {
		return nil, err
	}
	return newCredential(cert, key)
}

// LoadPFX carga el CSD desde un contenedor PKCS#12.
func LoadPFX(data []byte, password string) (*Credential, error) {
	priv, cert, err := pkcs12.Decode(data, password)
	if err != nil {
		return nil, fmt.Errorf("signer: decodificar pfx: %w", err)
	}
	key, ok := priv.(*rsa.PrivateKey)
	if !ok {
		return nil, ErrUnsupportedKey
	}
	return newCredential(cert, key)
}

func parseCertificate(data []byte) (*x509.Certificate, error) {
	der := data
	if block, _ := pem.Decode(data); block != nil {
		der = block.Bytes
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("signer: parsear certificado: %w", err)
	}
	return cert, nil
}

func parsePrivateKey(data []byte, password string) (*rsa.PrivateKey, error) {
	der := data
	if block, _ := pem.Decode(data); block != nil {
		der = block.Bytes
		if block.Type == "RSA PRIVATE KEY" {
			key, err := x509.ParsePKCS1PrivateKey(der)
			if err != nil {
				return nil, fmt.Errorf("signer: parsear llave PKCS#1: %w", err)
			}
			return key, nil
		}
	}
	var (
		key *rsa.PrivateKey
		err error
	)
	if password == "" {
		key, err = pkcs8.ParsePKCS8PrivateKeyRSA(der)
	} else {
		key, err = pkcs8.ParsePKCS8PrivateKeyRSA(der, []byte(password))
	}
	if err != nil {
		return nil, fmt.Errorf("signer: descifrar llave privada (¿contraseña incorrecta?): %w", err)
	}
	return key, nil
}

func newCredential(cert *x509.Certificate, key *rsa.PrivateKey) (*Credential, error) {
	pub, ok := cert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return nil, ErrUnsupportedKey
	}
	if pub.N.Cmp(key.N) != 0 || pub.E != key.E {
		return nil, ErrKeyMismatch
	}
	return &Credential{
		Certificate:       cert,
		PrivateKey:        key,
		NoCertificado:     NoCertificado(cert),
		RFC:               subjectRFC(cert),
		Nombre:            cert.Subject.CommonName,
		NotBefore:         cert.NotBefore,
		NotAfter:          cert.NotAfter,
		CertificateBase64: base64.StdEncoding.EncodeToString(cert.Raw),
	}, nil
}

// NoCertificado decodifica el número de serie del SAT: cada byte del serial es un dígito ASCII.
// Si el serial no sigue esa convención se devuelve en decimal.
func NoCertificado(cert *x509.Certificate) string {
	b := cert.SerialNumber.Bytes()
	if len(b) > 0 && len(bytes.Trim(b, "0123456789")) == 0 {
		return string(b)
	}
	return cert.SerialNumber.Text(10)
}

func subjectRFC(cert *x509.Certificate) string {
	for _, n := range cert.Subject.Names {
		if !n.Type.Equal(oidX500UniqueIdentifier) {
			continue
		}
		if s, ok := n.Value.(string); ok {
			rfc, _, _ := strings.Cut(s, "/")
			return strings.ToUpper(strings.TrimSpace(rfc))
		}
	}
	return ""
}

// IsFIEL indica si el certificado corresponde a una e.firma: la FIEL permite cifrado y
// acuerdo de llaves, el CSD solo firma.
func (c *Credential) IsFIEL() bool {
	return c.Certificate.KeyUsage&(x509.KeyUsageDataEncipherment|x509.KeyUsageKeyAgreement) != 0
}

// Check verifica vigencia en at, que sea CSD y que el RFC coincida con emisorRfc (si no está vacío).
func (c *Credential) Check(at time.Time, emisorRfc string) error {
	if at.Before(c.NotBefore) || at.After(c.NotAfter) {
		return fmt.Errorf("%w: vigencia %s a %s", ErrCertExpired,
			c.NotBefore.Format(time.RFC3339), c.NotAfter.Format(time.RFC3339))
	}
	if c.IsFIEL() {
		return ErrNotCSD
	}
	if emisorRfc != "" && !strings.EqualFold(strings.TrimSpace(emisorRfc), c.RFC) {
		return fmt.Errorf("%w: certificado %s, emisor %s", ErrRFCMismatch, c.RFC, emisorRfc)
	}
	return nil
}
