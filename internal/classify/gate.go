package classify

import (
	"fmt"

	"github.com/daviskyLV/it-darbu-mekletajs/internal/vacancy"
)

// GatePolicy selects how the relevance gate combines category matches.
type GatePolicy string

const (
	// GateGeneralAndTechnical requires at least one general keyword AND at
	// least one match in a technical category. Filters both off-topic
	// listings and listings that merely mention the domain without
	// technical substance. This is the default.
	GateGeneralAndTechnical GatePolicy = "general_and_technical"

	// GateAnyCategory keeps a vacancy when any category matched at all.
	GateAnyCategory GatePolicy = "any_category"
)

// ParseGatePolicy validates a policy name from configuration.
func ParseGatePolicy(s string) (GatePolicy, error) {
	switch GatePolicy(s) {
	case GateGeneralAndTechnical, GateAnyCategory:
		return GatePolicy(s), nil
	}
	return "", fmt.Errorf("unknown gate policy %q", s)
}

// IsRelevant decides whether a classified vacancy is worth keeping.
func IsRelevant(s vacancy.Summary, policy GatePolicy) bool {
	technical := len(s.ProgrammingLanguages) > 0 ||
		len(s.Frameworks) > 0 ||
		len(s.Technologies) > 0 ||
		len(s.BusinessSoftware) > 0

	switch policy {
	case GateAnyCategory:
		return technical || len(s.GeneralKeywords) > 0
	default:
		return len(s.GeneralKeywords) > 0 && technical
	}
}
