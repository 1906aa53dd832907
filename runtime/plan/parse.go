package plan

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrParse indicates the model response contained no decodable plan JSON.
// The planner classifies attempts failing with this error as PARSE_FAILED.
var ErrParse = errors.New("plan: no parseable plan in model response")

// fencedJSON matches the first ```json fenced block (the json language tag is
// optional) and captures the enclosed object.
var fencedJSON = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// Parse extracts the plan JSON from a model response and decodes it. The
// response may wrap the object in a fenced code block or consist of the bare
// object; anything else fails with ErrParse. Structural JSON errors also map
// to ErrParse so the planner retries rather than surfacing decode internals.
func Parse(response string) (*RawPlan, error) {
	body, ok := extractJSON(response)
	if !ok {
		return nil, ErrParse
	}
	var raw RawPlan
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return &raw, nil
}

// extractJSON locates the plan object inside the response text. Fenced
// blocks win; without a fence the whole trimmed response must be the bare
// object. Prose around an unfenced object is not parseable, the planner
// retries instead.
func extractJSON(response string) (string, bool) {
	trimmed := strings.TrimSpace(response)
	if trimmed == "" {
		return "", false
	}
	if m := fencedJSON.FindStringSubmatch(trimmed); m != nil {
		return m[1], true
	}
	if strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}") {
		return trimmed, true
	}
	return "", false
}
