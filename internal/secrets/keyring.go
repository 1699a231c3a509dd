// Package secrets encrypts values stored at rest, such as the ticketing
// platform credentials.
//
// A Keyring holds one or more 32-byte keys identified by a short id. The first
// key encrypts; every key decrypts, so a key can be rotated by prepending the
// new one and keeping the old one until every value has been re-saved.
//
// Ciphertexts have the form "<key id>:<base64url(nonce || box)>".
package secrets

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/nacl/secretbox"
)

const (
	keySize   = 32
	nonceSize = 24
)

var (
	ErrNoKeys     = errors.New("secrets: no encryption key configured")
	ErrUnknownKey = errors.New("secrets: ciphertext was sealed with an unknown key")
	ErrCorrupt    = errors.New("secrets: ciphertext is corrupt or was tampered with")
)

// Encrypter seals and opens short secrets.
type Encrypter interface {
	Encrypt(plaintext []byte) (string, error)
	Decrypt(ciphertext string) ([]byte, error)
}

type namedKey struct {
	id  string
	key [keySize]byte
}

// Keyring is an Encrypter over NaCl secretbox. The zero value has no keys.
type Keyring struct {
	keys []namedKey
}

// ParseKeyring parses a comma-separated list of "id=base64key" entries, the
// format of SECRETS_KEYS. Keys may use standard or URL-safe base64, padded or
// not, and must decode to 32 bytes.
func ParseKeyring(spec string) (*Keyring, error) {
	kr := &Keyring{}
	var errs []error
	for _, entry := range strings.Split(spec, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		id, encoded, ok := strings.Cut(entry, "=")
		id = strings.TrimSpace(id)
		if !ok || id == "" {
			errs = append(errs, fmt.Errorf("key entry %q: expected id=base64key", redactEntry(entry)))
			continue
		}
		raw, err := decodeKey(strings.TrimSpace(encoded))
		if err != nil {
			errs = append(errs, fmt.Errorf("key %q: %w", id, err))
			continue
		}
		if err := kr.Add(id, raw); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return kr, nil
}

// Add appends a key. The first key added is the one used to encrypt.
func (k *Keyring) Add(id string, key []byte) error {
	if strings.ContainsRune(id, ':') {
		return fmt.Errorf("key %q: id must not contain ':'", id)
	}
	if len(key) != keySize {
		return fmt.Errorf("key %q: must be %d bytes, got %d", id, keySize, len(key))
	}
	for _, nk := range k.keys {
		if nk.id == id {
			return fmt.Errorf("key %q: duplicate id", id)
		}
	}
	nk := namedKey{id: id}
	copy(nk.key[:], key)
	k.keys = append(k.keys, nk)
	return nil
}

// Len returns the number of keys.
func (k *Keyring) Len() int { return len(k.keys) }

// Encrypt seals plaintext with the primary key and a random nonce.
func (k *Keyring) Encrypt(plaintext []byte) (string, error) {
	if len(k.keys) == 0 {
		return "", ErrNoKeys
	}
	primary := k.keys[0]

	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("secrets: generate nonce: %w", err)
	}
	sealed := secretbox.Seal(nonce[:], plaintext, &nonce, &primary.key)
	return primary.id + ":" + base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a value produced by Encrypt with any key of the ring.
func (k *Keyring) Decrypt(ciphertext string) ([]byte, error) {
	if len(k.keys) == 0 {
		return nil, ErrNoKeys
	}
	id, encoded, ok := strings.Cut(ciphertext, ":")
	if !ok {
		return nil, ErrCorrupt
	}

	var key *[keySize]byte
	for i := range k.keys {
		if k.keys[i].id == id {
			key = &k.keys[i].key
			break
		}
	}
	if key == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKey, id)
	}

	sealed, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil || len(sealed) < nonceSize+secretbox.Overhead {
		return nil, ErrCorrupt
	}
	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])

	plain, ok := secretbox.Open(nil, sealed[nonceSize:], &nonce, key)
	if !ok {
		return nil, ErrCorrupt
	}
	return plain, nil
}

// GenerateKey returns a fresh random key encoded for SECRETS_KEYS.
func GenerateKey() (string, error) {
	var key [keySize]byte
	if _, err := io.ReadFull(rand.Reader, key[:]); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(key[:]), nil
}

func decodeKey(s string) ([]byte, error) {
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding,
	} {
		if b, err := enc.DecodeString(s); err == nil {
			return b, nil
		}
	}
	return nil, errors.New("not valid base64")
}

// redactEntry keeps an invalid entry recognisable in errors without printing
// key material.
func redactEntry(entry string) string {
	if len(entry) <= 4 {
		return "****"
	}
	return entry[:4] + "****"
}
