package inference

import (
	"errors"
	"fmt"

	"github.com/sagecoach/engine/internal/policy"
	"github.com/sagecoach/engine/internal/security"
)

// ErrSchemaInvalid is returned when the model's structured output failed
// validation after all reformulation retries.
var ErrSchemaInvalid = errors.New("inference output failed schema validation")

// #region request

// Request parameterizes one coaching message generation.
type Request struct {
	Skill         security.SkillID
	Action        policy.ActionType
	Summary       string // rendered memory/context summary
	CallerContext string // sanitized optional caller-supplied context
}

// Response is the validated structured output of a generation.
type Response struct {
	Message string `json:"message"`
	Tone    string `json:"tone"`
}

// #endregion request

// #region errors

// Class partitions inference failures for the caller.
type Class int

const (
	// Fatal failures (schema, config, auth) must not be retried.
	Fatal Class = iota
	// Retryable failures (quota, rate limit, overload) may be retried
	// after the surfaced hint.
	Retryable
)

// Error is a classified inference failure. RawOutput holds a truncated
// copy of the offending model output for diagnosis on schema failures.
type Error struct {
	Class     Class
	Hint      string
	RawOutput string
	Err       error
}

func (e *Error) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("inference: %v (%s)", e.Err, e.Hint)
	}
	return fmt.Sprintf("inference: %v", e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsRetryable reports whether err is a retryable inference failure.
func IsRetryable(err error) bool {
	var infErr *Error
	return errors.As(err, &infErr) && infErr.Class == Retryable
}

// #endregion errors
