package notify

import (
	"embed"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/osteele/liquid"

	"github.com/ALPE-Plaisance-du-Touch/Gestionnaire-de-Bourse-ALPE-sub000/internal/core"
)

//go:embed templates/*.liquid
var templateFS embed.FS

// Email is a rendered message ready to send.
type Email struct {
	To      string
	Subject string
	HTML    string
	Text    string
	Kind    core.MessageKind
}

type compiled struct {
	subject, html, text *liquid.Template
}

// Renderer turns queued messages into emails. Templates are compiled once
// at construction; rendering is safe for concurrent use.
type Renderer struct {
	activationURL string
	loc           *time.Location
	templates     map[core.MessageKind]compiled
}

// RendererConfig configures a Renderer.
type RendererConfig struct {
	// ActivationURL is the account activation page. The invitation token is
	// appended as the "token" query parameter.
	ActivationURL string

	// Location formats dates in the recipient's time zone.
	Location *time.Location
}

var categoryLabels = map[core.ListCategory]string{
	core.ListStandard: "Liste standard",
	core.List1000:     "Liste 1000",
	core.List2000:     "Liste 2000",
}

// NewRenderer compiles the embedded templates.
func NewRenderer(cfg RendererConfig) (*Renderer, error) {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	engine := liquid.NewEngine()

	r := &Renderer{
		activationURL: cfg.ActivationURL,
		loc:           cfg.Location,
		templates:     make(map[core.MessageKind]compiled),
	}
	for _, kind := range []core.MessageKind{core.MessageInvitation, core.MessageRegistrationNotice} {
		var c compiled
		for part, dst := range map[string]**liquid.Template{
			"subject": &c.subject,
			"html":    &c.html,
			"txt":     &c.text,
		} {
			name := fmt.Sprintf("templates/%s.%s.liquid", kind, part)
			src, err := templateFS.ReadFile(name)
			if err != nil {
				return nil, fmt.Errorf("read template %s: %w", name, err)
			}
			tpl, perr := engine.ParseTemplate(src)
			if perr != nil {
				return nil, fmt.Errorf("parse template %s: %w", name, perr)
			}
			*dst = tpl
		}
		r.templates[kind] = c
	}
	return r, nil
}

// Render renders msg with the template of its kind.
func (r *Renderer) Render(msg core.Message) (Email, error) {
	c, ok := r.templates[msg.Kind]
	if !ok {
		return Email{}, fmt.Errorf("no template for message kind %q", msg.Kind)
	}
	if msg.Kind == core.MessageInvitation && msg.InvitationToken == "" {
		return Email{}, fmt.Errorf("invitation %s has no token", msg.ID)
	}

	bindings := r.bindings(msg)
	out := Email{To: msg.To, Kind: msg.Kind}

	subject, err := c.subject.RenderString(bindings)
	if err != nil {
		return Email{}, fmt.Errorf("render %s subject: %w", msg.Kind, err)
	}
	out.Subject = strings.TrimSpace(subject)

	if out.HTML, err = c.html.RenderString(bindings); err != nil {
		return Email{}, fmt.Errorf("render %s html: %w", msg.Kind, err)
	}
	if out.Text, err = c.text.RenderString(bindings); err != nil {
		return Email{}, fmt.Errorf("render %s text: %w", msg.Kind, err)
	}
	return out, nil
}

func (r *Renderer) bindings(msg core.Message) map[string]any {
	label, ok := categoryLabels[msg.ListCategory]
	if !ok {
		label = string(msg.ListCategory)
	}
	b := map[string]any{
		"first_name": msg.FirstName,
		"last_name":  msg.LastName,
		"event_name": msg.EventName,
		"list_label": label,
	}
	// Liquid treats "" as true, so optional values are left unset.
	if msg.SlotDescription != "" {
		b["slot"] = msg.SlotDescription
	}
	if msg.InvitationToken != "" {
		b["activation_url"] = r.activationLink(msg.InvitationToken)
	}
	if msg.ExpiresAt != nil {
		b["expires_at"] = msg.ExpiresAt.In(r.loc).Format("02/01/2006 à 15h04")
	}
	return b
}

func (r *Renderer) activationLink(token string) string {
	u, err := url.Parse(r.activationURL)
	if err != nil || r.activationURL == "" {
		return r.activationURL + "?token=" + url.QueryEscape(token)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}
