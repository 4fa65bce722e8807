package valueobjects

import (
	"strings"
	"unicode"

	pkgerrors "engram-backend/pkg/errors"
)

// EntityType classifies a graph node
type EntityType string

const (
	TypePerson       EntityType = "Person"
	TypeOrganization EntityType = "Organization"
	TypeLocation     EntityType = "Location"
	TypeProduct      EntityType = "Product"
	TypeConcept      EntityType = "Concept"
	TypeEvent        EntityType = "Event"
)

// canonicalTypes maps the aliases extraction models commonly emit onto the
// canonical type set. Unknown types fall back to Concept.
var canonicalTypes = map[string]EntityType{
	"person":       TypePerson,
	"people":       TypePerson,
	"human":        TypePerson,
	"organization": TypeOrganization,
	"organisation": TypeOrganization,
	"company":      TypeOrganization,
	"org":          TypeOrganization,
	"location":     TypeLocation,
	"place":        TypeLocation,
	"city":         TypeLocation,
	"country":      TypeLocation,
	"gpe":          TypeLocation,
	"product":      TypeProduct,
	"concept":      TypeConcept,
	"topic":        TypeConcept,
	"event":        TypeEvent,
}

// AllEntityTypes returns the canonical type set in a stable order
func AllEntityTypes() []EntityType {
	return []EntityType{TypePerson, TypeOrganization, TypeLocation, TypeProduct, TypeConcept, TypeEvent}
}

// CanonicalType maps a raw extraction type onto the canonical type set
func CanonicalType(raw string) EntityType {
	if t, ok := canonicalTypes[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return t
	}
	return TypeConcept
}

// Label is a value object pairing an entity's display label with its
// normalized form. The normalized form is what the resolver matches on;
// the raw form is what users see.
type Label struct {
	raw        string
	normalized string
}

// NewLabel creates a Label with validation and normalization
func NewLabel(raw string) (Label, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Label{}, pkgerrors.NewValidation("label cannot be empty")
	}
	return Label{raw: raw, normalized: NormalizeLabel(raw)}, nil
}

// Raw returns the label as extracted
func (l Label) Raw() string { return l.raw }

// Normalized returns the case-folded, whitespace-collapsed matching form
func (l Label) Normalized() string { return l.normalized }

// Matches checks whether another raw string normalizes to the same form
func (l Label) Matches(other string) bool {
	return l.normalized == NormalizeLabel(other)
}

// IsEmpty checks if the label is empty
func (l Label) IsEmpty() bool { return l.raw == "" }

// NormalizeLabel case-folds, trims and collapses internal whitespace so that
// "Elon  Musk " and "elon musk" resolve to the same node.
func NormalizeLabel(raw string) string {
	var b strings.Builder
	space := false
	for _, r := range strings.TrimSpace(raw) {
		if unicode.IsSpace(r) {
			space = true
			continue
		}
		if space && b.Len() > 0 {
			b.WriteRune(' ')
		}
		space = false
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}
