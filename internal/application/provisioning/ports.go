// Package provisioning creates and retires device identities: a broker-side
// thing, a client certificate, and a topic-scoped policy, tied together and
// recorded on the sensor.
package provisioning

import (
	"context"
	"time"
)

// IssuedCredentials is the output of minting a device certificate. The PEM
// material is returned to the caller exactly once and never persisted.
type IssuedCredentials struct {
	CertificatePEM string
	PrivateKeyPEM  string
	CACertPEM      string
	Fingerprint    string
	NotAfter       time.Time
}

// CertIssuer mints client certificates bound to a sensor ID.
type CertIssuer interface {
	IssueDeviceCert(sensorID string) (*IssuedCredentials, error)
}

// ControlPlane is the broker registry: things, certificates, and policies.
// All operations are idempotent where the remote state allows it, so a
// compensation pass after a partial failure can re-run steps safely.
type ControlPlane interface {
	CreateThing(ctx context.Context, thingName, sensorID string) error
	DeleteThing(ctx context.Context, thingName string) error

	// RegisterCertificate records a minted certificate as active under the
	// thing. The fingerprint is the certificate handle from here on.
	RegisterCertificate(ctx context.Context, thingName, fingerprint, certificatePEM string, notAfter time.Time) error
	DeactivateCertificate(ctx context.Context, fingerprint string) error
	DeleteCertificate(ctx context.Context, fingerprint string) error

	// EnsurePolicy creates the policy document or updates it in place.
	EnsurePolicy(ctx context.Context, policyName string, document []byte) error
	AttachPolicy(ctx context.Context, policyName, fingerprint string) error
	DetachPolicy(ctx context.Context, policyName, fingerprint string) error
}
