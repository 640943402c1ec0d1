package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkrasnow/quizwire/internal/content"
)

func TestRosterFromRecords(t *testing.T) {
	recs := []teamRecord{
		{ID: 1, Code: "RED1", Name: "Red Team", Members: "ana; bo ;"},
		{ID: 2, Code: " BLU2 ", Name: "Blue Team"},
	}

	roster, err := rosterFromRecords(recs)
	require.NoError(t, err)
	require.Len(t, roster, 2)
	assert.Equal(t, []string{"ana", "bo"}, roster[0].Members)
	assert.Equal(t, "ana", roster[0].Leader())
	assert.Equal(t, "BLU2", roster[1].Code)
}

func TestRosterFromRecordsMissingFields(t *testing.T) {
	_, err := rosterFromRecords([]teamRecord{{ID: 7, Code: "X1", Name: "  "}})
	require.Error(t, err)

	_, err = rosterFromRecords([]teamRecord{{ID: 8, Name: "No Code"}})
	require.Error(t, err)
}

func TestQuestionsFromRecordsSkipsInvalidRows(t *testing.T) {
	recs := []questionRecord{
		{ID: 1, Prompt: "ok", ChoiceA: "a", ChoiceB: "b", ChoiceC: "c", ChoiceD: "d", CorrectIndex: 2, TimeLimitSec: 15},
		{ID: 2, Prompt: "", ChoiceA: "a", ChoiceB: "b", ChoiceC: "c", ChoiceD: "d", CorrectIndex: 0},
		{ID: 3, Prompt: "missing choice", ChoiceA: "a", ChoiceB: "", ChoiceC: "c", ChoiceD: "d", CorrectIndex: 0},
		{ID: 4, Prompt: "bad index", ChoiceA: "a", ChoiceB: "b", ChoiceC: "c", ChoiceD: "d", CorrectIndex: 4},
	}

	qs := questionsFromRecords(recs)
	require.Len(t, qs, 1)
	assert.Equal(t, "q-1", qs[0].ID)
	assert.Equal(t, 2, qs[0].CorrectIndex)
	assert.Equal(t, [content.NumChoices]string{"a", "b", "c", "d"}, qs[0].Choices)
}
