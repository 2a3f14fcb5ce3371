package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubCompleter returns a canned completion or error
type stubCompleter struct {
	response string
	err      error
	prompt   string
}

func (s *stubCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	s.prompt = prompt
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func (s *stubCompleter) Provider() string { return "stub" }

func TestStateClone(t *testing.T) {
	t.Run("deep copy", func(t *testing.T) {
		original := &State{
			SessionID: "sess-1",
			UserID:    "user-1",
			Messages: []Message{
				{Role: RoleUser, Content: "hola"},
			},
			Metadata: map[string]interface{}{"channel": "web"},
		}

		clone := original.Clone()
		require.NotNil(t, clone)

		clone.Messages[0].Content = "mutated"
		clone.Metadata["channel"] = "mutated"
		clone.Messages = append(clone.Messages, Message{Role: RoleAssistant, Content: "extra"})

		assert.Equal(t, "hola", original.Messages[0].Content)
		assert.Equal(t, "web", original.Metadata["channel"])
		assert.Len(t, original.Messages, 1)
	})

	t.Run("nil state", func(t *testing.T) {
		var s *State
		assert.Nil(t, s.Clone())
	})

	t.Run("empty slices stay nil", func(t *testing.T) {
		clone := (&State{SessionID: "sess-1"}).Clone()
		require.NotNil(t, clone)
		assert.Nil(t, clone.Messages)
		assert.Nil(t, clone.Metadata)
	})
}

func TestLatestUserTurn(t *testing.T) {
	tests := []struct {
		name     string
		messages []Message
		want     string
	}{
		{
			name: "most recent user message wins",
			messages: []Message{
				{Role: RoleUser, Content: "primera"},
				{Role: RoleAssistant, Content: "respuesta"},
				{Role: RoleUser, Content: "  segunda  "},
			},
			want: "segunda",
		},
		{
			name: "no user turn",
			messages: []Message{
				{Role: RoleSystem, Content: "setup"},
				{Role: RoleAssistant, Content: "hola"},
			},
			want: "",
		},
		{name: "empty state", messages: nil, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &State{Messages: tt.messages}
			assert.Equal(t, tt.want, s.LatestUserTurn())
		})
	}

	t.Run("nil state", func(t *testing.T) {
		var s *State
		assert.Equal(t, "", s.LatestUserTurn())
	})
}

func TestLLMAgentKeys(t *testing.T) {
	completer := &stubCompleter{response: "ok"}

	assert.Equal(t, OnboardingKey, NewOnboardingAgent(completer).Key())
	assert.Equal(t, DTEKey, NewDTEAgent(completer).Key())
	assert.Equal(t, GeneralKey, NewGeneralAgent(completer).Key())
}

func TestLLMAgentRun(t *testing.T) {
	t.Run("returns assistant message", func(t *testing.T) {
		completer := &stubCompleter{response: "Su factura fue emitida."}
		a := NewDTEAgent(completer)

		result, err := a.Run(context.Background(), &State{
			SessionID: "sess-1",
			Messages:  []Message{{Role: RoleUser, Content: "estado de mi factura"}},
		})
		require.NoError(t, err)
		require.Len(t, result.Messages, 1)
		assert.Equal(t, RoleAssistant, result.Messages[0].Role)
		assert.Equal(t, "Su factura fue emitida.", result.Messages[0].Content)
		assert.Equal(t, "supervisor", result.NextAgent)
		assert.Contains(t, completer.prompt, "estado de mi factura")
	})

	t.Run("nil state", func(t *testing.T) {
		a := NewGeneralAgent(&stubCompleter{response: "ok"})

		_, err := a.Run(context.Background(), nil)
		assert.ErrorIs(t, err, ErrNilState)
	})

	t.Run("no user turn", func(t *testing.T) {
		a := NewGeneralAgent(&stubCompleter{response: "ok"})

		_, err := a.Run(context.Background(), &State{
			Messages: []Message{{Role: RoleAssistant, Content: "hola"}},
		})
		assert.Error(t, err)
	})

	t.Run("completion failure propagates", func(t *testing.T) {
		wantErr := errors.New("provider down")
		a := NewOnboardingAgent(&stubCompleter{err: wantErr})

		_, err := a.Run(context.Background(), &State{
			Messages: []Message{{Role: RoleUser, Content: "quiero registrarme"}},
		})
		assert.ErrorIs(t, err, wantErr)
	})
}
