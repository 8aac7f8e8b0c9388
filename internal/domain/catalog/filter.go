package catalog

// FilterSet is a conjunction of optional constraints over catalog items.
// A nil field imposes no constraint.
type FilterSet struct {
	PriceMax     *float64 `json:"price_max,omitempty"`
	PriceMin     *float64 `json:"price_min,omitempty"`
	CargoMin     *int     `json:"cargo_min,omitempty"`
	CrewMax      *int     `json:"crew_max,omitempty"`
	Manufacturer *string  `json:"manufacturer,omitempty"`
	Role         *string  `json:"role,omitempty"`
}

// Merge returns f overlaid with every field set on override.
func (f FilterSet) Merge(override FilterSet) FilterSet {
	out := f
	if override.PriceMax != nil {
		out.PriceMax = override.PriceMax
	}
	if override.PriceMin != nil {
		out.PriceMin = override.PriceMin
	}
	if override.CargoMin != nil {
		out.CargoMin = override.CargoMin
	}
	if override.CrewMax != nil {
		out.CrewMax = override.CrewMax
	}
	if override.Manufacturer != nil {
		out.Manufacturer = override.Manufacturer
	}
	if override.Role != nil {
		out.Role = override.Role
	}
	return out
}

func (f FilterSet) IsEmpty() bool {
	return f.PriceMax == nil && f.PriceMin == nil && f.CargoMin == nil &&
		f.CrewMax == nil && f.Manufacturer == nil && f.Role == nil
}
