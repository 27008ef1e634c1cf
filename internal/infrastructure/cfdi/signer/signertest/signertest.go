// Package signertest genera CSD de prueba (certificado autofirmado + llave PKCS#8 cifrada)
// con la estructura de los certificados del SAT.
package signertest

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"math/big"
	"sync"
	"time"

	"github.com/youmark/pkcs8"

	"github.com/jhoicas/integraciones-api/internal/domain/cfdi/cfditest"
	"github.com/jhoicas/integraciones-api/internal/infrastructure/cfdi/signer"
)

// Password contraseña de la llave de prueba.
const Password = "12345678a"

// Material archivos equivalentes a los que entrega el SAT.
type Material struct {
	CertDER    []byte // contenido del .cer
	KeyDER     []byte // contenido del .key (PKCS#8 cifrado)
	Password   string
	Credential *signer.Credential
}

// Options parámetros del certificado generado.
type Options struct {
	RFC       string
	Serial    string // dígitos; cada uno se codifica como byte ASCII
	NotBefore time.Time
	NotAfter  time.Time
	KeyUsage  x509.KeyUsage
}

var (
	once     sync.Once
	shared   *Material
	errShare error
	keyOnce  sync.Once
	rsaKey   *rsa.PrivateKey
	keyErr   error
)

// Key llave RSA de 2048 bits compartida por todas las pruebas del proceso.
func Key() (*rsa.PrivateKey, error) {
	keyOnce.Do(func() {
		rsaKey, keyErr = rsa.GenerateKey(rand.Reader, 2048)
	})
	return rsaKey, keyErr
}

// Default CSD del emisor de cfditest, vigente de 2023 a 2027. Se genera una sola vez por proceso.
func Default() (*Material, error) {
	once.Do(func() {
		shared, errShare = Generate(Options{})
	})
	return shared, errShare
}

// Generate crea un CSD con las opciones dadas; los campos vacíos toman valores de cfditest.
func Generate(o Options) (*Material, error) {
	if o.RFC == "" {
		o.RFC = cfditest.RFCEmisor
	}
	if o.Serial == "" {
		o.Serial = cfditest.NoCertificado
	}
	if o.NotBefore.IsZero() {
		o.NotBefore = time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	if o.NotAfter.IsZero() {
		o.NotAfter = time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	if o.KeyUsage == 0 {
		o.KeyUsage = x509.KeyUsageDigitalSignature | x509.KeyUsageContentCommitment
	}
	key, err := Key()
	if err != nil {
		return nil, err
	}
	tmpl := &x509.Certificate{
		SerialNumber: new(big.Int).SetBytes([]byte(o.Serial)),
		Subject: pkix.Name{
			CommonName:   cfditest.NombreEmisor,
			Organization: []string{cfditest.NombreEmisor},
			ExtraNames: []pkix.AttributeTypeAndValue{
				{Type: asn1.ObjectIdentifier{2, 5, 4, 45}, Value: o.RFC + " / VADA800927DJ3"},
			},
		},
		NotBefore: o.NotBefore,
		NotAfter:  o.NotAfter,
		KeyUsage:  o.KeyUsage,
	}
	certDER, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		return nil, err
	}
	keyDER, err := pkcs8.MarshalPrivateKey(key, []byte(Password), nil)
	if err != nil {
		return nil, err
	}
	cred, err := signer.LoadCredential(certDER, keyDER, Password)
	if err != nil {
		return nil, err
	}
	return &Material{CertDER: certDER, KeyDER: keyDER, Password: Password, Credential: cred}, nil
}
