package eventsync

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ALPE-Plaisance-du-Touch/Gestionnaire-de-Bourse-ALPE-sub000/internal/core"
	"github.com/ALPE-Plaisance-du-Touch/Gestionnaire-de-Bourse-ALPE-sub000/internal/secrets"
	"github.com/ALPE-Plaisance-du-Touch/Gestionnaire-de-Bourse-ALPE-sub000/internal/ticketing"
)

// CredentialRepository persists the encrypted ticketing credentials.
// An empty string means none are stored.
type CredentialRepository interface {
	LoadTicketingCredentials(ctx context.Context) (string, error)
	SaveTicketingCredentials(ctx context.Context, ciphertext string) error
}

// CredentialStore encrypts credentials on the way in and decrypts them on
// the way out. Plaintext credentials never reach the repository.
type CredentialStore struct {
	repo CredentialRepository
	enc  secrets.Encrypter
}

func NewCredentialStore(repo CredentialRepository, enc secrets.Encrypter) *CredentialStore {
	return &CredentialStore{repo: repo, enc: enc}
}

// Load returns the stored credentials or core.ErrCredentialsMissing.
func (s *CredentialStore) Load(ctx context.Context) (ticketing.Credentials, error) {
	ciphertext, err := s.repo.LoadTicketingCredentials(ctx)
	if err != nil {
		return ticketing.Credentials{}, fmt.Errorf("load ticketing credentials: %w", err)
	}
	if ciphertext == "" {
		return ticketing.Credentials{}, core.ErrCredentialsMissing
	}

	plain, err := s.enc.Decrypt(ciphertext)
	if err != nil {
		return ticketing.Credentials{}, fmt.Errorf("decrypt ticketing credentials: %w", err)
	}
	var creds ticketing.Credentials
	if err := json.Unmarshal(plain, &creds); err != nil {
		return ticketing.Credentials{}, fmt.Errorf("decode ticketing credentials: %w", err)
	}
	if creds.Empty() {
		return ticketing.Credentials{}, core.ErrCredentialsMissing
	}
	return creds, nil
}

// Save encrypts and stores creds, replacing any previous value.
func (s *CredentialStore) Save(ctx context.Context, creds ticketing.Credentials) error {
	if creds.Empty() {
		return core.ErrCredentialsMissing
	}
	plain, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("encode ticketing credentials: %w", err)
	}
	ciphertext, err := s.enc.Encrypt(plain)
	if err != nil {
		return fmt.Errorf("encrypt ticketing credentials: %w", err)
	}
	return s.repo.SaveTicketingCredentials(ctx, ciphertext)
}
