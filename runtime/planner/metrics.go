package planner

type (
	// Outcome classifies a single formulation attempt.
	Outcome string

	// AttemptRecord captures one model invocation attempt. Records are
	// appended in execution order, so TierIndex is non-decreasing across
	// the slice and AttemptWithinTier counts 1..maxAttempts inside a tier.
	AttemptRecord struct {
		// ModelID is the tier's configured model identifier.
		ModelID string

		// TierIndex is the zero-based tier position (0 = default tier).
		TierIndex int

		// AttemptWithinTier is the one-based attempt number inside the
		// tier.
		AttemptWithinTier int

		// Outcome classifies the attempt result.
		Outcome Outcome

		// DurationMs is the wall-clock duration of the model call plus
		// parse and resolve, in milliseconds.
		DurationMs int64

		// ErrorDetails carries the failure detail for non-success
		// outcomes: the transport error, the parse error, or the first
		// validation error message.
		ErrorDetails string
	}

	// Metrics aggregates the attempt history of one formulation.
	Metrics struct {
		// WinningModel is the model identifier that produced the accepted
		// plan, empty when every tier was exhausted.
		WinningModel string

		// TotalAttempts counts attempts across all tiers.
		TotalAttempts int

		// Attempts is the ordered attempt history.
		Attempts []AttemptRecord
	}
)

// Attempt outcomes.
const (
	// OutcomeSuccess marks an attempt that produced an accepted plan.
	OutcomeSuccess Outcome = "SUCCESS"

	// OutcomeValidationFailed marks an attempt whose plan resolved to
	// ERROR status.
	OutcomeValidationFailed Outcome = "VALIDATION_FAILED"

	// OutcomeParseFailed marks an attempt whose response contained no
	// decodable plan JSON.
	OutcomeParseFailed Outcome = "PARSE_FAILED"

	// OutcomeNetworkError marks an attempt whose model call returned an
	// error.
	OutcomeNetworkError Outcome = "NETWORK_ERROR"
)

// record appends an attempt and keeps TotalAttempts in sync.
func (m *Metrics) record(a AttemptRecord) {
	m.Attempts = append(m.Attempts, a)
	m.TotalAttempts = len(m.Attempts)
}
