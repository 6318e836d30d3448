package tax

// FilingType describes a business entity type and the forms it files.
type FilingType struct {
	Type        string   `json:"type"`
	Label       string   `json:"label"`
	Description string   `json:"description"`
	Forms       []string `json:"forms"`
}

// FilingTypes lists the supported entity types. The first entry is the default.
var FilingTypes = []FilingType{
	{
		Type:        "sole_proprietor",
		Label:       "Sole Proprietor",
		Forms:       []string{"Schedule C", "Schedule SE", "Form 1040-ES"},
		Description: "Single owner, not incorporated",
	},
	{
		Type:        "single_llc",
		Label:       "Single-member LLC",
		Forms:       []string{"Schedule C", "Schedule SE", "Form 1040-ES"},
		Description: "Disregarded entity, taxed as sole proprietor",
	},
	{
		Type:        "s_corp",
		Label:       "S-Corporation",
		Forms:       []string{"Form 1120-S", "Schedule K-1", "Form 1040-ES"},
		Description: "Pass-through entity, officer compensation required",
	},
	{
		Type:        "partnership",
		Label:       "Partnership",
		Forms:       []string{"Form 1065", "Schedule K-1", "Form 1040-ES"},
		Description: "Multi-member partnership or LLC",
	},
	{
		Type:        "c_corp",
		Label:       "C-Corporation",
		Forms:       []string{"Form 1120"},
		Description: "Standard corporation with double taxation",
	},
}

// LookupFilingType finds a filing type by its key or label, falling back to
// the default sole proprietorship.
func LookupFilingType(key string) FilingType {
	for _, f := range FilingTypes {
		if f.Type == key || f.Label == key {
			return f
		}
	}
	return FilingTypes[0]
}

// IsFilingType reports whether key names a supported filing type.
func IsFilingType(key string) bool {
	for _, f := range FilingTypes {
		if f.Type == key {
			return true
		}
	}
	return false
}
