// Package devicepki mints per-device TLS client certificates from a local
// signing CA. The broker authenticates devices by these certificates; the
// private key is generated here, handed out once in the credential bundle,
// and never stored.
package devicepki

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/resona-io/resona/internal/application/provisioning"
	"github.com/resona-io/resona/internal/shared/biztime"
	"github.com/resona-io/resona/internal/shared/config"
)

const defaultCertDays = 365

// CA signs device certificates with a locally held key pair.
type CA struct {
	cert      *x509.Certificate
	key       *ecdsa.PrivateKey
	caCertPEM string
	certDays  int
}

// LoadCA reads the CA certificate and key from PEM files.
func LoadCA(cfg *config.ProvisioningConfig) (*CA, error) {
	certPEM, err := os.ReadFile(cfg.CACertFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA certificate: %w", err)
	}
	keyPEM, err := os.ReadFile(cfg.CAKeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA key: %w", err)
	}

	certBlock, _ := pem.Decode(certPEM)
	if certBlock == nil || certBlock.Type != "CERTIFICATE" {
		return nil, fmt.Errorf("CA certificate file is not a PEM certificate")
	}
	cert, err := x509.ParseCertificate(certBlock.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse CA certificate: %w", err)
	}

	keyBlock, _ := pem.Decode(keyPEM)
	if keyBlock == nil {
		return nil, fmt.Errorf("CA key file is not PEM")
	}
	key, err := parseECKey(keyBlock)
	if err != nil {
		return nil, err
	}

	certDays := cfg.CertDays
	if certDays <= 0 {
		certDays = defaultCertDays
	}
	return &CA{
		cert:      cert,
		key:       key,
		caCertPEM: string(certPEM),
		certDays:  certDays,
	}, nil
}

// NewCAFromParts wires an in-memory CA; used by tests.
func NewCAFromParts(cert *x509.Certificate, key *ecdsa.PrivateKey, caCertPEM string, certDays int) *CA {
	if certDays <= 0 {
		certDays = defaultCertDays
	}
	return &CA{cert: cert, key: key, caCertPEM: caCertPEM, certDays: certDays}
}

func parseECKey(block *pem.Block) (*ecdsa.PrivateKey, error) {
	if block.Type == "EC PRIVATE KEY" {
		key, err := x509.ParseECPrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse EC CA key: %w", err)
		}
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse CA key: %w", err)
	}
	key, ok := parsed.(*ecdsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("CA key is not an ECDSA key")
	}
	return key, nil
}

// IssueDeviceCert mints a client certificate whose common name is the sensor
// ID. The broker derives the client identity from the CN, so the binding
// between certificate and sensor is structural.
func (c *CA) IssueDeviceCert(sensorID string) (*provisioning.IssuedCredentials, error) {
	deviceKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate device key: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, fmt.Errorf("failed to generate serial number: %w", err)
	}

	now := biztime.NowUTC()
	notAfter := now.AddDate(0, 0, c.certDays)
	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			CommonName:   sensorID,
			Organization: []string{"resona-devices"},
		},
		NotBefore:   now.Add(-5 * time.Minute),
		NotAfter:    notAfter,
		KeyUsage:    x509.KeyUsageDigitalSignature,
		ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
	}

	der, err := x509.CreateCertificate(rand.Reader, template, c.cert, &deviceKey.PublicKey, c.key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign device certificate: %w", err)
	}

	keyDER, err := x509.MarshalECPrivateKey(deviceKey)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal device key: %w", err)
	}

	fingerprint := sha256.Sum256(der)
	return &provisioning.IssuedCredentials{
		CertificatePEM: string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})),
		PrivateKeyPEM:  string(pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})),
		CACertPEM:      c.caCertPEM,
		Fingerprint:    hex.EncodeToString(fingerprint[:]),
		NotAfter:       notAfter,
	}, nil
}
