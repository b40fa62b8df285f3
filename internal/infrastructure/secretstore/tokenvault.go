package secretstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// TokenMaterial is the credential bundle stored per music connection.
// ExpiresAt refers to the access token; the refresh token is long-lived
// until the provider revokes it.
type TokenMaterial struct {
	RefreshToken string    `json:"refreshToken"`
	AccessToken  string    `json:"accessToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// TokenVault reads and writes token material through the secret store.
type TokenVault struct {
	store Store
}

func NewTokenVault(store Store) *TokenVault {
	return &TokenVault{store: store}
}

func (v *TokenVault) Load(ctx context.Context, ref string) (*TokenMaterial, error) {
	plaintext, err := v.store.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	var material TokenMaterial
	if err := json.Unmarshal(plaintext, &material); err != nil {
		return nil, fmt.Errorf("failed to decode token material %s: %w", ref, err)
	}
	return &material, nil
}

func (v *TokenVault) Save(ctx context.Context, ref string, material *TokenMaterial) error {
	plaintext, err := json.Marshal(material)
	if err != nil {
		return fmt.Errorf("failed to encode token material: %w", err)
	}
	return v.store.Put(ctx, ref, plaintext)
}

func (v *TokenVault) Delete(ctx context.Context, ref string) error {
	return v.store.Delete(ctx, ref)
}
