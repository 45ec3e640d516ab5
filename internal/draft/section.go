package draft

// Section identifies a tab of the plan form.
type Section string

const (
	SectionBasic    Section = "basic"
	SectionPricing  Section = "pricing"
	SectionFeatures Section = "features"
	SectionAddons   Section = "addons"
	SectionSLA      Section = "sla"
)

// Sections lists every valid section in display order.
func Sections() []Section {
	return []Section{SectionBasic, SectionPricing, SectionFeatures, SectionAddons, SectionSLA}
}

// ParseSection converts a stored token into a Section. Tokens outside the
// fixed set are rejected.
func ParseSection(token string) (Section, bool) {
	switch s := Section(token); s {
	case SectionBasic, SectionPricing, SectionFeatures, SectionAddons, SectionSLA:
		return s, true
	default:
		return "", false
	}
}

func (s Section) String() string { return string(s) }
