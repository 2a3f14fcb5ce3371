package router

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeedbackJournalRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feedback", "routing.jsonl")
	journal, err := NewFeedbackJournal(path)
	require.NoError(t, err)

	decision := Decision{Query: "ver facturas", AgentKey: "dte", Confidence: 0.8, Method: MethodRule}
	satisfaction := 0.9

	require.NoError(t, journal.Record(decision, "dte", &satisfaction))
	require.NoError(t, journal.Record(decision, "general", nil))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var entries []FeedbackEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry FeedbackEntry
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry))
		entries = append(entries, entry)
	}

	require.Len(t, entries, 2)
	assert.True(t, entries[0].WasCorrect)
	require.NotNil(t, entries[0].UserSatisfaction)
	assert.InDelta(t, 0.9, *entries[0].UserSatisfaction, 1e-9)
	assert.False(t, entries[1].WasCorrect)
	assert.Equal(t, "general", entries[1].ActualAgent)
}
