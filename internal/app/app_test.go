package app

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ALPE-Plaisance-du-Touch/Gestionnaire-de-Bourse-ALPE-sub000/internal/config"
	"github.com/ALPE-Plaisance-du-Touch/Gestionnaire-de-Bourse-ALPE-sub000/internal/core"
)

func TestLoadProfiles_Default(t *testing.T) {
	tariffs, err := loadProfiles("", slog.Default())
	require.NoError(t, err)
	assert.Equal(t, core.List1000, tariffs.Map("Liste 1000"))
}

func TestLoadProfiles_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
profiles:
  - name: app-test-helloasso
    extends: fr
    headers:
      email: ["Email payeur"]
tariffs:
  "Tarif réduit": list_2000
`), 0o600))

	tariffs, err := loadProfiles(path, slog.Default())
	require.NoError(t, err)
	assert.Equal(t, core.List2000, tariffs.Map("tarif reduit"))
	assert.Equal(t, core.ListStandard, tariffs.Map("Liste standard"), "built-in labels are kept")

	p, ok := core.GetProfile("app-test-helloasso")
	require.True(t, ok)
	assert.Contains(t, p.Headers[core.FieldEmail], "Email payeur")
}

func TestLoadProfiles_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tariffs:\n  x: list_9000\n"), 0o600))

	_, err := loadProfiles(path, slog.Default())
	assert.ErrorContains(t, err, "unknown list category")

	_, err = loadProfiles(filepath.Join(t.TempDir(), "missing.yaml"), slog.Default())
	assert.Error(t, err)
}

func TestNewSender_RequiresFrom(t *testing.T) {
	_, err := NewSender(context.Background(), &config.Config{}, nil)
	assert.ErrorIs(t, err, ErrNoMailer)
}

func TestNewRenderer(t *testing.T) {
	cfg := &config.Config{
		Import: config.ImportConfig{Timezone: "Europe/Paris"},
		Mail:   config.MailConfig{ActivationURL: "https://bourse.example.org/activation"},
	}
	r, err := NewRenderer(cfg)
	require.NoError(t, err)
	assert.NotNil(t, r)
}
