package conflict

// Variant identifies one of the parallel event forms on a page.
type Variant string

// Form variants.
const (
	VariantSacrament Variant = "sacrament"
	VariantRegular   Variant = "regular"
)

// Variants lists every form variant a page may carry, in wiring order.
var Variants = []Variant{VariantSacrament, VariantRegular}

// SubjectAttribute is the data attribute carrying the subject identifier.
const SubjectAttribute = "data-parishioner-id"

// Fields names the DOM elements belonging to one form variant.
type Fields struct {
	EventDate    string
	StartTime    string
	EndTime      string
	Participants string
	Panel        string // warning container
}

// ParseVariant maps a form name to its variant.
// PRE: none
// POST: returns VariantSacrament for "sacrament", VariantRegular otherwise
func ParseVariant(s string) Variant {
	if s == string(VariantSacrament) {
		return VariantSacrament
	}
	return VariantRegular
}

// Fields returns the element IDs for the variant.
// Unknown variants use the regular naming, which also covers single-form pages.
// PRE: none
// POST: all fields are non-empty
func (v Variant) Fields() Fields {
	if v == VariantSacrament {
		return Fields{
			EventDate:    "sacramentEventDate",
			StartTime:    "sacramentStartTime",
			EndTime:      "sacramentEndTime",
			Participants: "sacramentAdditionalParticipants",
			Panel:        "sacramentConflictWarning",
		}
	}
	return Fields{
		EventDate:    "regularEventDate",
		StartTime:    "regularStartTime",
		EndTime:      "regularEndTime",
		Participants: "regularAdditionalParticipants",
		Panel:        "regularEventConflictWarning",
	}
}

// TriggerIDs returns the fields whose change starts a conflict check.
func (f Fields) TriggerIDs() []string {
	return []string{f.EventDate, f.StartTime, f.EndTime, f.Participants}
}
