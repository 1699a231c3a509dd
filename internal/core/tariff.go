package core

// TariffMapper translates free-text tariff labels from the ticketing platform
// into list categories. Lookups are case, accent and whitespace insensitive.
// Unknown labels resolve to the fallback category.
type TariffMapper struct {
	table    map[string]ListCategory
	fallback ListCategory
}

// DefaultTariffs is the built-in label table.
var DefaultTariffs = map[string]ListCategory{
	"standard":              ListStandard,
	"liste standard":        ListStandard,
	"tarif standard":        ListStandard,
	"depot standard":        ListStandard,
	"deposant":              ListStandard,
	"liste 1000":            List1000,
	"liste 1000 adherent":   List1000,
	"adherent":              List1000,
	"liste adherent":        List1000,
	"benevole":              List1000,
	"liste 2000":            List2000,
	"liste 2000 ami":        List2000,
	"ami adherent":          List2000,
	"ami d'adherent":        List2000,
	"famille et amis":       List2000,
	"liste famille et amis": List2000,
}

// NewTariffMapper builds a mapper from a label table. Keys are folded, so the
// table may use any casing or accents.
func NewTariffMapper(table map[string]ListCategory, fallback ListCategory) *TariffMapper {
	if !fallback.Valid() {
		fallback = ListStandard
	}
	m := &TariffMapper{
		table:    make(map[string]ListCategory, len(table)),
		fallback: fallback,
	}
	for label, cat := range table {
		m.table[Fold(label)] = cat
	}
	return m
}

// DefaultTariffMapper returns a mapper over [DefaultTariffs] falling back to
// the standard list.
func DefaultTariffMapper() *TariffMapper {
	return NewTariffMapper(DefaultTariffs, ListStandard)
}

// With returns a copy of m extended with extra labels. Extra entries win.
func (m *TariffMapper) With(extra map[string]ListCategory) *TariffMapper {
	merged := make(map[string]ListCategory, len(m.table)+len(extra))
	for k, v := range m.table {
		merged[k] = v
	}
	for k, v := range extra {
		merged[Fold(k)] = v
	}
	return &TariffMapper{table: merged, fallback: m.fallback}
}

// Lookup returns the category for label and whether the label is known.
func (m *TariffMapper) Lookup(label string) (ListCategory, bool) {
	cat, ok := m.table[Fold(label)]
	if !ok {
		return m.fallback, false
	}
	return cat, true
}

// Map returns the category for label, or the fallback when unknown.
func (m *TariffMapper) Map(label string) ListCategory {
	cat, _ := m.Lookup(label)
	return cat
}

// Fallback returns the category used for unknown labels.
func (m *TariffMapper) Fallback() ListCategory {
	return m.fallback
}
