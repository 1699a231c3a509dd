package secrets

import (
	"bytes"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(b byte) []byte {
	return bytes.Repeat([]byte{b}, keySize)
}

func TestKeyring_RoundTrip(t *testing.T) {
	kr := &Keyring{}
	require.NoError(t, kr.Add("k1", testKey(1)))

	ct, err := kr.Encrypt([]byte(`{"user":"alpe","key":"s3cret"}`))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ct, "k1:"))
	assert.NotContains(t, ct, "s3cret")

	pt, err := kr.Decrypt(ct)
	require.NoError(t, err)
	assert.Equal(t, `{"user":"alpe","key":"s3cret"}`, string(pt))
}

func TestKeyring_NonceIsRandom(t *testing.T) {
	kr := &Keyring{}
	require.NoError(t, kr.Add("k1", testKey(1)))

	a, err := kr.Encrypt([]byte("same"))
	require.NoError(t, err)
	b, err := kr.Encrypt([]byte("same"))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestKeyring_Rotation(t *testing.T) {
	old := &Keyring{}
	require.NoError(t, old.Add("2025", testKey(1)))
	ct, err := old.Encrypt([]byte("value"))
	require.NoError(t, err)

	rotated := &Keyring{}
	require.NoError(t, rotated.Add("2026", testKey(2)))
	require.NoError(t, rotated.Add("2025", testKey(1)))

	pt, err := rotated.Decrypt(ct)
	require.NoError(t, err)
	assert.Equal(t, "value", string(pt))

	fresh, err := rotated.Encrypt([]byte("value"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(fresh, "2026:"))

	_, err = old.Decrypt(fresh)
	assert.ErrorIs(t, err, ErrUnknownKey)
}

func TestKeyring_Tampered(t *testing.T) {
	kr := &Keyring{}
	require.NoError(t, kr.Add("k1", testKey(1)))
	ct, err := kr.Encrypt([]byte("value"))
	require.NoError(t, err)

	id, body, _ := strings.Cut(ct, ":")
	raw, err := base64.RawURLEncoding.DecodeString(body)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xff
	tampered := id + ":" + base64.RawURLEncoding.EncodeToString(raw)

	tests := []struct {
		name string
		in   string
	}{
		{"flipped byte", tampered},
		{"no separator", "garbage"},
		{"bad base64", "k1:!!!"},
		{"too short", "k1:AAAA"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := kr.Decrypt(tt.in)
			assert.ErrorIs(t, err, ErrCorrupt)
		})
	}
}

func TestKeyring_Empty(t *testing.T) {
	kr := &Keyring{}
	_, err := kr.Encrypt([]byte("x"))
	assert.ErrorIs(t, err, ErrNoKeys)
	_, err = kr.Decrypt("k1:abc")
	assert.ErrorIs(t, err, ErrNoKeys)
}

func TestParseKeyring(t *testing.T) {
	k1 := base64.StdEncoding.EncodeToString(testKey(1))
	k2 := base64.RawURLEncoding.EncodeToString(testKey(2))

	kr, err := ParseKeyring(" new=" + k2 + " , old=" + k1 + ",")
	require.NoError(t, err)
	assert.Equal(t, 2, kr.Len())

	ct, err := kr.Encrypt([]byte("v"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ct, "new:"))

	empty, err := ParseKeyring("")
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Len())
}

func TestParseKeyring_Invalid(t *testing.T) {
	short := base64.StdEncoding.EncodeToString([]byte("short"))
	k1 := base64.StdEncoding.EncodeToString(testKey(1))

	tests := []struct {
		name    string
		spec    string
		wantMsg string
	}{
		{"missing id", "=" + k1, "expected id=base64key"},
		{"short key", "a=" + short, "must be 32 bytes"},
		{"not base64", "a=%%%%", "not valid base64"},
		{"duplicate", "a=" + k1 + ",a=" + k1, "duplicate id"},
		{"colon in id", "a:b=" + k1, "must not contain"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseKeyring(tt.spec)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
			assert.NotContains(t, err.Error(), k1)
		})
	}
}

func TestGenerateKey(t *testing.T) {
	s, err := GenerateKey()
	require.NoError(t, err)
	kr, err := ParseKeyring("gen=" + s)
	require.NoError(t, err)
	assert.Equal(t, 1, kr.Len())
}
