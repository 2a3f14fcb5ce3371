package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/lucahq/luca/pkg/provider"
)

// Registry keys for the closed set of agents. GeneralKey doubles as the
// designated fallback.
const (
	OnboardingKey = "onboarding"
	DTEKey        = "dte"
	GeneralKey    = "general"
)

// LLMAgent is a completion-backed agent. The pipeline does not interpret
// agent output beyond structural validation, so all three shipped agents
// share this implementation and differ only in prompt.
type LLMAgent struct {
	key          string
	systemPrompt string
	completer    provider.Completer
}

// NewOnboardingAgent handles registration flows for unauthenticated users
func NewOnboardingAgent(completer provider.Completer) *LLMAgent {
	return &LLMAgent{
		key:       OnboardingKey,
		completer: completer,
		systemPrompt: "Eres el asistente de registro de Luca. Guía a usuarios " +
			"nuevos en la creación de su cuenta y los primeros pasos.",
	}
}

// NewDTEAgent handles electronic tax document queries
func NewDTEAgent(completer provider.Completer) *LLMAgent {
	return &LLMAgent{
		key:       DTEKey,
		completer: completer,
		systemPrompt: "Eres el especialista en Documentos Tributarios Electrónicos " +
			"de Luca: facturas, boletas, notas de crédito y débito.",
	}
}

// NewGeneralAgent handles everything else and serves as the safe default
func NewGeneralAgent(completer provider.Completer) *LLMAgent {
	return &LLMAgent{
		key:       GeneralKey,
		completer: completer,
		systemPrompt: "Eres el asistente tributario general de Luca. Respondes " +
			"consultas sobre SII, tributación, información de empresa y saludos.",
	}
}

// Key returns the stable registry key for this agent
func (a *LLMAgent) Key() string {
	return a.key
}

// Run builds a prompt from the latest user turn and returns the
// completion as a single assistant message.
func (a *LLMAgent) Run(ctx context.Context, state *State) (*Result, error) {
	if state == nil {
		return nil, ErrNilState
	}

	query := state.LatestUserTurn()
	if query == "" {
		return nil, fmt.Errorf("no user turn in state")
	}

	var prompt strings.Builder
	prompt.WriteString(a.systemPrompt)
	prompt.WriteString("\n\n")
	prompt.WriteString(query)

	content, err := a.completer.Complete(ctx, prompt.String())
	if err != nil {
		return nil, fmt.Errorf("completion failed for %s: %w", a.key, err)
	}

	log.Debug().
		Str("agent", a.key).
		Str("session_id", state.SessionID).
		Int("response_len", len(content)).
		Msg("Agent completed")

	return &Result{
		Messages:  []Message{{Role: RoleAssistant, Content: content}},
		NextAgent: "supervisor",
	}, nil
}
