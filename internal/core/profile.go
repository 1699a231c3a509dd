package core

import (
	"fmt"
	"sort"
	"sync"
)

// ColumnProfile names the header spellings an export uses for each field.
// Headers are compared folded, so case, accents and spacing do not matter.
type ColumnProfile struct {
	Name    string
	Headers map[Field][]string
}

// HeaderIndex maps each recognised field to its column position.
type HeaderIndex map[Field]int

// Match locates the profile's fields in header. missing lists the required
// fields that were not found, in RequiredFields order.
func (p ColumnProfile) Match(header []string) (idx HeaderIndex, missing []Field) {
	folded := make(map[string]int, len(header))
	for i, h := range header {
		key := Fold(CleanCell(h))
		if _, dup := folded[key]; !dup && key != "" {
			folded[key] = i
		}
	}

	idx = make(HeaderIndex)
	for field, names := range p.Headers {
		for _, name := range names {
			if pos, ok := folded[Fold(name)]; ok {
				idx[field] = pos
				break
			}
		}
	}
	for _, f := range RequiredFields {
		if _, ok := idx[f]; !ok {
			missing = append(missing, f)
		}
	}
	return idx, missing
}

// Extend returns a copy of p with extra spellings appended per field.
func (p ColumnProfile) Extend(extra map[Field][]string) ColumnProfile {
	out := ColumnProfile{Name: p.Name, Headers: make(map[Field][]string, len(p.Headers))}
	for f, names := range p.Headers {
		out.Headers[f] = append([]string(nil), names...)
	}
	for f, names := range extra {
		out.Headers[f] = append(out.Headers[f], names...)
	}
	return out
}

var (
	profiles   = make(map[string]ColumnProfile)
	profilesMu sync.RWMutex
)

// RegisterProfile adds or replaces a column profile.
func RegisterProfile(p ColumnProfile) {
	profilesMu.Lock()
	defer profilesMu.Unlock()
	profiles[p.Name] = p
}

// GetProfile returns a profile by name.
func GetProfile(name string) (ColumnProfile, bool) {
	profilesMu.RLock()
	defer profilesMu.RUnlock()
	p, ok := profiles[name]
	return p, ok
}

// Profiles returns every registered profile sorted by name.
func Profiles() []ColumnProfile {
	profilesMu.RLock()
	defer profilesMu.RUnlock()

	out := make([]ColumnProfile, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ResolveProfiles returns the named profile, or every profile when name is
// empty.
func ResolveProfiles(name string) ([]ColumnProfile, error) {
	if name == "" {
		return Profiles(), nil
	}
	p, ok := GetProfile(name)
	if !ok {
		return nil, fmt.Errorf("unknown column profile %q", name)
	}
	return []ColumnProfile{p}, nil
}

// Built-in profiles for the ticketing platform's French and English exports.
var (
	ProfileFrench = ColumnProfile{
		Name: "fr",
		Headers: map[Field][]string{
			FieldLastName:   {"Nom", "Nom de famille", "Nom participant"},
			FieldFirstName:  {"Prénom", "Prénom participant"},
			FieldEmail:      {"Email", "E-mail", "Adresse email", "Email acheteur", "Courriel"},
			FieldSession:    {"Séance", "Session", "Créneau", "Date de la séance"},
			FieldTariff:     {"Tarif", "Nom du tarif", "Type de billet"},
			FieldPaid:       {"Payé", "Paiement", "Statut paiement"},
			FieldValid:      {"Valide", "Billet valide", "Statut"},
			FieldPhone:      {"Téléphone", "Tel", "Portable"},
			FieldAddress:    {"Adresse", "Adresse postale"},
			FieldPostalCode: {"Code postal", "CP"},
			FieldCity:       {"Ville", "Commune"},
			FieldOrderRef:   {"Référence commande", "N° commande", "Commande"},
		},
	}

	ProfileEnglish = ColumnProfile{
		Name: "en",
		Headers: map[Field][]string{
			FieldLastName:   {"Last name", "Surname", "Lastname"},
			FieldFirstName:  {"First name", "Firstname", "Given name"},
			FieldEmail:      {"Email", "E-mail", "Email address", "Buyer email"},
			FieldSession:    {"Session", "Session date", "Slot"},
			FieldTariff:     {"Rate", "Price name", "Ticket type", "Tariff"},
			FieldPaid:       {"Paid", "Payment status"},
			FieldValid:      {"Valid", "Ticket valid", "Status"},
			FieldPhone:      {"Phone", "Telephone", "Mobile"},
			FieldAddress:    {"Address", "Street address"},
			FieldPostalCode: {"Postal code", "Zip", "Zip code"},
			FieldCity:       {"City", "Town"},
			FieldOrderRef:   {"Order reference", "Order ID", "Order"},
		},
	}
)

func init() {
	RegisterProfile(ProfileFrench)
	RegisterProfile(ProfileEnglish)
}
