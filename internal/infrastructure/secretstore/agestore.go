// Package secretstore keeps credential material encrypted at rest. Values
// are age-encrypted blobs in the database, addressed by opaque references;
// plaintext exists only in process memory.
package secretstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"filippo.io/age"
	"gorm.io/gorm"

	"github.com/resona-io/resona/internal/infrastructure/persistence/models"
	"github.com/resona-io/resona/internal/shared/biztime"
	"github.com/resona-io/resona/internal/shared/errors"
)

// Store is the minimal secret-store surface the core needs.
type Store interface {
	Put(ctx context.Context, ref string, plaintext []byte) error
	Get(ctx context.Context, ref string) ([]byte, error)
	Delete(ctx context.Context, ref string) error
}

// AgeStore encrypts with a single X25519 identity loaded at startup.
type AgeStore struct {
	db       *gorm.DB
	identity *age.X25519Identity
}

// NewAgeStore loads the identity file and returns a ready store.
func NewAgeStore(db *gorm.DB, identityFile string) (*AgeStore, error) {
	raw, err := os.ReadFile(identityFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read age identity file: %w", err)
	}
	identity, err := parseIdentity(string(raw))
	if err != nil {
		return nil, err
	}
	return &AgeStore{db: db, identity: identity}, nil
}

// NewAgeStoreWithIdentity wires an in-memory identity; used by tests.
func NewAgeStoreWithIdentity(db *gorm.DB, identity *age.X25519Identity) *AgeStore {
	return &AgeStore{db: db, identity: identity}
}

func parseIdentity(raw string) (*age.X25519Identity, error) {
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		identity, err := age.ParseX25519Identity(line)
		if err != nil {
			return nil, fmt.Errorf("failed to parse age identity: %w", err)
		}
		return identity, nil
	}
	return nil, fmt.Errorf("age identity file contains no identity")
}

func (s *AgeStore) Put(ctx context.Context, ref string, plaintext []byte) error {
	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, s.identity.Recipient())
	if err != nil {
		return fmt.Errorf("failed to start encryption: %w", err)
	}
	if _, err := w.Write(plaintext); err != nil {
		return fmt.Errorf("failed to encrypt secret: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finalize encryption: %w", err)
	}

	now := biztime.NowUTC()
	model := models.SecretModel{
		Ref:        ref,
		Ciphertext: buf.Bytes(),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.db.WithContext(ctx).Save(&model).Error; err != nil {
		return fmt.Errorf("failed to store secret: %w", err)
	}
	return nil
}

func (s *AgeStore) Get(ctx context.Context, ref string) ([]byte, error) {
	var model models.SecretModel
	err := s.db.WithContext(ctx).Where("ref = ?", ref).First(&model).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NewNotFoundError("secret not found", ref)
		}
		return nil, fmt.Errorf("failed to load secret: %w", err)
	}

	r, err := age.Decrypt(bytes.NewReader(model.Ciphertext), s.identity)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt secret %s: %w", ref, err)
	}
	plaintext, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read decrypted secret: %w", err)
	}
	return plaintext, nil
}

func (s *AgeStore) Delete(ctx context.Context, ref string) error {
	if err := s.db.WithContext(ctx).Where("ref = ?", ref).Delete(&models.SecretModel{}).Error; err != nil {
		return fmt.Errorf("failed to delete secret: %w", err)
	}
	return nil
}
