package attributes

import (
	"strings"

	"capdev_portal/internal/preferences"
)

// Funding band labels, keyed by the upper bound of the maximum amount.
const (
	BandUnder10K   = "Under $10K"
	Band10KTo50K   = "$10K - $50K"
	Band50KTo100K  = "$50K - $100K"
	Band100KTo500K = "$100K - $500K"
	BandOver500K   = "Over $500K"
)

// FundingBand maps a maximum funding amount to its band. ok is false for
// amounts that do not describe funding.
func FundingBand(maxAmount float64) (string, bool) {
	switch {
	case maxAmount <= 0:
		return "", false
	case maxAmount <= 10_000:
		return BandUnder10K, true
	case maxAmount <= 50_000:
		return Band10KTo50K, true
	case maxAmount <= 100_000:
		return Band50KTo100K, true
	case maxAmount <= 500_000:
		return Band100KTo500K, true
	default:
		return BandOver500K, true
	}
}

// Extractor builds the attribute map of an entity from its sources.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract returns every populated dimension of e. For each dimension the first
// source with usable values wins. Calling it twice yields the same map.
func (x *Extractor) Extract(e Entity) Attributes {
	out := make(Attributes)
	for _, t := range preferences.Dimensions {
		if t == preferences.TypeFundingAmountRange {
			if band, ok := fundingBand(e.Sources); ok {
				out[t] = []string{band}
			}
			continue
		}
		for _, src := range e.Sources {
			if src == nil {
				continue
			}
			values := clean(src.Lookup(t))
			if len(values) == 0 {
				continue
			}
			if !t.MultiValued() {
				values = values[:1]
			}
			out[t] = values
			break
		}
	}
	return out
}

func fundingBand(sources []AttributeSource) (string, bool) {
	for _, src := range sources {
		if src == nil {
			continue
		}
		if _, hi, ok := src.FundingRange(); ok {
			if band, ok := FundingBand(hi); ok {
				return band, true
			}
		}
	}
	return "", false
}

// clean trims, drops blanks and removes duplicates keeping first occurrence.
func clean(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
