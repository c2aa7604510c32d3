package attributes

import "capdev_portal/internal/preferences"

// Detail is the normalized detail row of a request or opportunity.
type Detail struct {
	Subthemes              []string
	SubthemesOther         *string
	CoverageActivity       *string
	ImplementationLocation *string
	TargetAudiences        []string
	SupportTypes           []string
	PriorityLevel          *string
	FundingMin             *float64
	FundingMax             *float64
}

// RelationalSource serves attributes from a Detail row.
type RelationalSource struct {
	detail Detail
}

func NewRelationalSource(d Detail) *RelationalSource {
	return &RelationalSource{detail: d}
}

func (s *RelationalSource) Lookup(t preferences.AttributeType) []string {
	if s == nil {
		return nil
	}
	d := s.detail
	switch t {
	case preferences.TypeSubtheme:
		return d.Subthemes
	case preferences.TypeCoverageActivity:
		return single(d.CoverageActivity)
	case preferences.TypeImplementationLocation:
		return single(d.ImplementationLocation)
	case preferences.TypeTargetAudience:
		return d.TargetAudiences
	case preferences.TypeSupportType:
		return d.SupportTypes
	case preferences.TypePriorityLevel:
		return single(d.PriorityLevel)
	default:
		return nil
	}
}

func (s *RelationalSource) FundingRange() (float64, float64, bool) {
	if s == nil || s.detail.FundingMax == nil {
		return 0, 0, false
	}
	var lo float64
	if s.detail.FundingMin != nil {
		lo = *s.detail.FundingMin
	}
	return lo, *s.detail.FundingMax, true
}

func single(v *string) []string {
	if v == nil {
		return nil
	}
	return []string{*v}
}
