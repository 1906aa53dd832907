package plan

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFencedJSON(t *testing.T) {
	response := "Here is the plan:\n```json\n{\"message\":\"ok\",\"steps\":[{\"actionId\":\"search\",\"parameters\":{\"q\":\"shoes\"}}]}\n```\nDone."
	raw, err := Parse(response)
	require.NoError(t, err)
	assert.Equal(t, "ok", raw.Message)
	require.Len(t, raw.Steps, 1)
	assert.Equal(t, "search", raw.Steps[0].ActionID)
	assert.Equal(t, "shoes", raw.Steps[0].Parameters["q"])
}

func TestParseUnlabeledFence(t *testing.T) {
	response := "```\n{\"message\":\"m\",\"steps\":[]}\n```"
	raw, err := Parse(response)
	require.NoError(t, err)
	assert.Equal(t, "m", raw.Message)
}

func TestParseBareJSON(t *testing.T) {
	raw, err := Parse(`{"message":"bare","steps":[{"noAction":true,"reason":"nothing applies"}]}`)
	require.NoError(t, err)
	assert.Equal(t, "bare", raw.Message)
	require.Len(t, raw.Steps, 1)
	assert.True(t, raw.Steps[0].NoAction)
}

func TestParseBareJSONWithLeadingWhitespace(t *testing.T) {
	raw, err := Parse("\n\t  {\"message\":\"x\",\"steps\":[]}  \n")
	require.NoError(t, err)
	assert.Equal(t, "x", raw.Message)
}

func TestParseFencedBlockWinsOverBareBraces(t *testing.T) {
	response := "{\"message\":\"decoy\"} then\n```json\n{\"message\":\"fenced\",\"steps\":[]}\n```"
	raw, err := Parse(response)
	require.NoError(t, err)
	assert.Equal(t, "fenced", raw.Message)
}

func TestParseFailures(t *testing.T) {
	cases := []struct {
		name     string
		response string
	}{
		{"blank", "   \n\t"},
		{"no JSON object", "I cannot produce a plan for that."},
		{"malformed JSON", `{"message": "unterminated`},
		{"wrong shape", `{"message": "x", "steps": "not-a-list"}`},
		{"unfenced object with prose before", `Sure! Here is the plan: {"message":"m","steps":[]}`},
		{"unfenced object with prose after", `{"message":"m","steps":[]} Hope that helps.`},
		{"unfenced object with prose both sides", `Sure! {"message":"m","steps":[]} hope that helps`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(tc.response)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrParse), "expected ErrParse, got %v", err)
		})
	}
}

func TestIsPending(t *testing.T) {
	assert.False(t, RawStep{ActionID: "a"}.IsPending())
	assert.True(t, RawStep{ActionID: "a", Status: "PENDING"}.IsPending())
	assert.True(t, RawStep{ActionID: "a", PendingParams: []PendingParam{{Name: "x"}}}.IsPending())
}
