package core

// FilterDimensions is the fixed order in which cascading filters apply.
var FilterDimensions = []string{
	ColDate,
	ColStatus,
	ColOperation,
	ColCountry,
	ColProvider,
}

// ExportDimensions are the dimensions offered for SUCCESS-only CSV export.
var ExportDimensions = []string{
	ColCountry,
	ColProvider,
	ColMerchant,
}

type (
	// Selections maps a filter dimension to its chosen values. A missing or
	// empty entry means no filtering on that dimension.
	Selections map[string][]string

	DimensionOptions struct {
		Dimension string   `json:"dimension"`
		Available bool     `json:"available"`
		Values    []string `json:"values"`
		Selected  []string `json:"selected"`
	}
)

// IsFilterDimension reports whether name is one of FilterDimensions.
func IsFilterDimension(name string) bool {
	for _, d := range FilterDimensions {
		if d == name {
			return true
		}
	}
	return false
}

// IsExportDimension reports whether name is one of ExportDimensions.
func IsExportDimension(name string) bool {
	for _, d := range ExportDimensions {
		if d == name {
			return true
		}
	}
	return false
}

// Empty reports whether no dimension has a selected value.
func (s Selections) Empty() bool {
	for _, v := range s {
		if len(v) > 0 {
			return false
		}
	}
	return true
}
