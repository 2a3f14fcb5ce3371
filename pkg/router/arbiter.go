package router

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// llmFallbackConfidence is reported when the arbitration reply cannot
// be parsed and the router defaults to the fallback agent.
const llmFallbackConfidence = 0.3

// llmRoute asks the completion provider to arbitrate an ambiguous
// query. The reply must be "<label>, <confidence>"; anything else
// defaults to the fallback agent. Only a provider transport failure is
// returned as an error.
func (r *Router) llmRoute(ctx context.Context, query string) (string, float64, error) {
	reply, err := r.completer.Complete(ctx, r.arbitrationPrompt(query))
	if err != nil {
		return "", 0.0, fmt.Errorf("arbitration request failed: %w", err)
	}

	key, confidence, ok := r.parseArbitration(reply)
	if !ok {
		log.Warn().Str("reply", reply).Msg("Unparseable arbitration reply, using fallback agent")
		return r.fallbackKey, llmFallbackConfidence, nil
	}

	log.Debug().
		Str("agent", key).
		Float64("confidence", confidence).
		Msg("LLM routing decided")

	return key, confidence, nil
}

func (r *Router) arbitrationPrompt(query string) string {
	var b strings.Builder
	b.WriteString("Analiza esta consulta y decide qué agente especializado debe responder.\n\n")
	fmt.Fprintf(&b, "Consulta: %q\n\n", query)
	b.WriteString("Agentes disponibles:\n")
	for _, profile := range r.profiles {
		fmt.Fprintf(&b, "- %s: %s\n", profile.Label, profile.Description)
	}
	b.WriteString("\nResponde SOLO con el nombre del agente y un número de confianza del 0.0 al 1.0 separados por coma.\n")
	b.WriteString(`Ejemplo: "OnboardingAgent, 0.85"` + "\n")
	return b.String()
}

// parseArbitration extracts "<label>, <confidence>" and maps the label
// to an internal profile key.
func (r *Router) parseArbitration(reply string) (string, float64, bool) {
	parts := strings.SplitN(strings.TrimSpace(reply), ",", 2)
	if len(parts) != 2 {
		return "", 0.0, false
	}

	label := strings.Trim(strings.TrimSpace(parts[0]), `"`)
	confidence, err := strconv.ParseFloat(strings.Trim(strings.TrimSpace(parts[1]), `"`), 64)
	if err != nil || confidence < 0.0 || confidence > 1.0 {
		return "", 0.0, false
	}

	for _, profile := range r.profiles {
		if profile.Label == label {
			return profile.Key, confidence, true
		}
	}
	return "", 0.0, false
}
