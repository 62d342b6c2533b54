package models

// IndustryProfile describes how one industry is analyzed: its risk
// characteristics and the indicators that matter, by priority.
type IndustryProfile struct {
	Code            string                   `json:"code" yaml:"code"`
	Name            string                   `json:"name" yaml:"name"`
	Description     string                   `json:"description" yaml:"description"`
	Characteristics []IndustryCharacteristic `json:"characteristics" yaml:"characteristics"`
	Indicators      []IndicatorSpec          `json:"indicators" yaml:"indicators"`
}

// IndustryCharacteristic is one named trait of the industry's risk profile.
type IndustryCharacteristic struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
}

// IndicatorSpec declares one indicator an industry profile tracks.
// DBFields lists the upstream database fields the indicator reads; an empty
// list means the indicator is derived rather than fetched.
type IndicatorSpec struct {
	Key         string   `json:"key" yaml:"key"`
	DisplayName string   `json:"display_name" yaml:"display_name"`
	Priority    string   `json:"priority" yaml:"priority"` // core, auxiliary, specific
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Unit        string   `json:"unit,omitempty" yaml:"unit,omitempty"`
	DBFields    []string `json:"db_fields,omitempty" yaml:"db_fields,omitempty"`
}

// ByPriority filters the profile's indicator specs by priority bucket,
// preserving declaration order.
func (p *IndustryProfile) ByPriority(priority string) []IndicatorSpec {
	if p == nil {
		return nil
	}
	var specs []IndicatorSpec
	for _, spec := range p.Indicators {
		if spec.Priority == priority {
			specs = append(specs, spec)
		}
	}
	return specs
}
