package notify

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ALPE-Plaisance-du-Touch/Gestionnaire-de-Bourse-ALPE-sub000/internal/core"
)

func newRenderer(t *testing.T) *Renderer {
	t.Helper()
	r, err := NewRenderer(RendererConfig{ActivationURL: "https://bourse.example.org/activation"})
	require.NoError(t, err)
	return r
}

func invitation() core.Message {
	expires := time.Date(2026, 10, 8, 12, 0, 0, 0, time.UTC)
	return core.Message{
		ID:              uuid.New(),
		Kind:            core.MessageInvitation,
		To:              "marie@example.fr",
		FirstName:       "Marie",
		LastName:        "Dupont",
		EventName:       "Bourse d'automne 2026",
		SlotDescription: "Samedi matin",
		ListCategory:    core.List1000,
		InvitationToken: "tok/en+1",
		ExpiresAt:       &expires,
	}
}

func TestRenderer_Invitation(t *testing.T) {
	email, err := newRenderer(t).Render(invitation())
	require.NoError(t, err)

	assert.Equal(t, "marie@example.fr", email.To)
	assert.Equal(t, "Votre invitation pour Bourse d'automne 2026", email.Subject)
	assert.Contains(t, email.Text, "Bonjour Marie,")
	assert.Contains(t, email.Text, "Samedi matin")
	assert.Contains(t, email.Text, "Liste 1000")
	assert.Contains(t, email.Text, "https://bourse.example.org/activation?token=tok%2Fen%2B1")
	assert.Contains(t, email.Text, "08/10/2026 à 12h00")
	assert.Contains(t, email.HTML, "Bourse d&#39;automne 2026")
}

func TestRenderer_EscapesHTML(t *testing.T) {
	msg := invitation()
	msg.FirstName = "<script>alert(1)</script>"

	email, err := newRenderer(t).Render(msg)
	require.NoError(t, err)
	assert.NotContains(t, email.HTML, "<script>")
	assert.Contains(t, email.HTML, "&lt;script&gt;")
}

func TestRenderer_RegistrationNotice(t *testing.T) {
	msg := core.Message{
		ID:           uuid.New(),
		Kind:         core.MessageRegistrationNotice,
		To:           "paul@example.fr",
		FirstName:    "Paul",
		EventName:    "Bourse d'automne 2026",
		ListCategory: core.ListStandard,
	}
	email, err := newRenderer(t).Render(msg)
	require.NoError(t, err)

	assert.Equal(t, "Inscription confirmée pour Bourse d'automne 2026", email.Subject)
	assert.Contains(t, email.Text, "Liste standard")
	assert.NotContains(t, email.Text, "créneau", "no slot, no slot sentence")
	assert.NotContains(t, email.Text, "token=")
}

func TestRenderer_Rejects(t *testing.T) {
	r := newRenderer(t)

	_, err := r.Render(core.Message{Kind: "newsletter"})
	assert.ErrorContains(t, err, "no template")

	msg := invitation()
	msg.InvitationToken = ""
	_, err = r.Render(msg)
	assert.ErrorContains(t, err, "has no token")
}
