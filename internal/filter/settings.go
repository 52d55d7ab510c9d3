package filter

import (
	"fmt"
	"strings"

	"github.com/okian/scalefilter/internal/domain/scale"
)

// Settings is the immutable snapshot a filter applies to one batch.
type Settings struct {
	Enabled    bool    `json:"enable"`
	Factor     float64 `json:"factor"`
	FactorText string  `json:"factor_text"`
	// FactorValid is false when FactorText was not entirely numeric and the
	// strtod fallback produced Factor.
	FactorValid bool `json:"factor_valid"`
}

// ResolveSettings reads the enable switch and scale factor from c. A missing
// factor item yields the default factor; a malformed one keeps whatever
// numeric prefix it has, or 0.
func ResolveSettings(c *Category) Settings {
	s := Settings{
		Enabled:     strings.EqualFold(strings.TrimSpace(c.GetValue(ItemEnable)), "true"),
		Factor:      scale.DefaultFactor,
		FactorText:  scale.DefaultFactorText,
		FactorValid: true,
	}
	if c.ItemExists(ItemFactor) {
		s.FactorText = c.GetValue(ItemFactor)
		s.Factor, s.FactorValid = scale.ParseFactor(s.FactorText)
	}
	return s
}

func (s Settings) String() string {
	return fmt.Sprintf("enable=%t factor=%g", s.Enabled, s.Factor)
}
