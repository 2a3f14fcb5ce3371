package router

import (
	"strings"

	"github.com/rs/zerolog/log"
)

// ruleMaxScore normalizes keyword scores; roughly five strong matches
// saturate confidence at 1.0.
const ruleMaxScore = 5.0

// ruleRoute scores the lower-cased query against each profile's keyword
// list. Longer keywords are more specific and weigh double. Returns the
// best profile key with its normalized confidence, or "" when nothing
// matched. Ties resolve to the earliest registered profile.
func (r *Router) ruleRoute(query string) (string, float64) {
	queryLower := strings.ToLower(query)

	bestKey := ""
	bestScore := 0.0
	var bestKeywords []string

	for _, profile := range r.profiles {
		score := 0.0
		var found []string

		for _, keyword := range profile.Keywords {
			if strings.Contains(queryLower, keyword) {
				weight := 1.0
				if len(keyword) > 6 {
					weight = 2.0
				}
				score += weight
				found = append(found, keyword)
			}
		}

		if score > bestScore {
			bestKey = profile.Key
			bestScore = score
			bestKeywords = found
		}
	}

	if bestKey == "" {
		return "", 0.0
	}

	confidence := bestScore / ruleMaxScore
	if confidence > 1.0 {
		confidence = 1.0
	}

	log.Debug().
		Str("agent", bestKey).
		Float64("confidence", confidence).
		Strs("keywords", bestKeywords).
		Msg("Rule-based routing scored")

	return bestKey, confidence
}
