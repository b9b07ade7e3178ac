// Package engine coordinates one coaching decision end to end: security
// screening, context building, policy selection, safety gating, message
// generation, and the learning loop that scores delivered actions.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sagecoach/engine/internal/audit"
	"github.com/sagecoach/engine/internal/experience"
	"github.com/sagecoach/engine/internal/gate"
	"github.com/sagecoach/engine/internal/inference"
	"github.com/sagecoach/engine/internal/memory"
	"github.com/sagecoach/engine/internal/policy"
	"github.com/sagecoach/engine/internal/profiler"
	"github.com/sagecoach/engine/internal/security"
	"github.com/sagecoach/engine/internal/signals"
)

// ErrNoConsent is returned when the user has not granted coaching consent.
var ErrNoConsent = errors.New("user has not granted coaching consent")

// ErrInputRejected is returned when caller-supplied input fails security
// screening.
var ErrInputRejected = errors.New("input rejected by security screening")

// persistTimeout bounds best-effort writes that outlive the request context.
const persistTimeout = 5 * time.Second

// #region collaborators

// ConsentStore reads the user's consent state.
type ConsentStore interface {
	Consent(ctx context.Context, userID string) (bool, error)
}

// Engine wires the decision pipeline together. Per-user serialization
// guards the read-select-record sequence against concurrent requests for
// the same user; different users proceed in parallel.
type Engine struct {
	log         zerolog.Logger
	builder     *signals.Builder
	memory      *memory.Manager
	gate        *gate.Gate
	experiences *experience.Store
	profiler    *profiler.Profiler
	snapshots   *profiler.SnapshotStore
	inference   inference.Client
	sanitizer   *security.Sanitizer
	audit       *audit.Log
	consent     ConsentStore
	learn       policy.LearnConfig
	retention   int

	userLocks sync.Map // userID -> *sync.Mutex
	now       func() time.Time
}

// Deps bundles the engine's collaborators.
type Deps struct {
	Logger      zerolog.Logger
	Builder     *signals.Builder
	Memory      *memory.Manager
	Gate        *gate.Gate
	Experiences *experience.Store
	Profiler    *profiler.Profiler
	Snapshots   *profiler.SnapshotStore
	Inference   inference.Client
	Audit       *audit.Log
	Consent     ConsentStore
	Learn       policy.LearnConfig
	Retention   int
}

// New creates an engine. A zero Retention falls back to the default.
func New(deps Deps) *Engine {
	retention := deps.Retention
	if retention <= 0 {
		retention = experience.DefaultRetention
	}
	return &Engine{
		log:         deps.Logger,
		builder:     deps.Builder,
		memory:      deps.Memory,
		gate:        deps.Gate,
		experiences: deps.Experiences,
		profiler:    deps.Profiler,
		snapshots:   deps.Snapshots,
		inference:   deps.Inference,
		sanitizer:   security.NewSanitizer(),
		audit:       deps.Audit,
		consent:     deps.Consent,
		learn:       deps.Learn,
		retention:   retention,
		now:         time.Now,
	}
}

// #endregion collaborators

// #region request-result

// Request is one coaching decision request.
type Request struct {
	UserID        string
	Skill         string
	CallerContext string // optional free text from the caller; screened
}

// Result is the outcome of one decision run. When Blocked is true the
// safety gate vetoed delivery; BlockReasons lists every violated check.
type Result struct {
	CorrelationID string
	Action        policy.ActionType
	Confidence    float64
	Reasoning     string
	Message       string
	Tone          string
	Blocked       bool
	BlockReasons  []string
	DataQuality   float64
}

// #endregion request-result

// #region decide

// Decide runs the full pipeline for one request. A safety-gate block is a
// structured result, not an error. Security rejections and consent
// failures are errors, audited before returning.
func (e *Engine) Decide(ctx context.Context, req Request) (Result, error) {
	correlationID := uuid.NewString()
	log := e.log.With().
		Str("correlation_id", correlationID).
		Str("user_id", req.UserID).
		Logger()

	skill, err := security.ParseSkill(req.Skill)
	if err != nil {
		e.record(audit.Entry{
			CorrelationID: correlationID,
			UserID:        req.UserID,
			Skill:         req.Skill,
			Outcome:       audit.OutcomeSecurityRejected,
			Reasons:       []string{err.Error()},
		})
		return Result{}, fmt.Errorf("decide: %w", err)
	}

	callerContext := ""
	if req.CallerContext != "" {
		screened := e.sanitizer.Sanitize(req.CallerContext)
		if !screened.Allowed {
			log.Warn().Str("reason", screened.Reason).Int("risk", screened.RiskScore).
				Msg("caller context rejected")
			e.record(audit.Entry{
				CorrelationID: correlationID,
				UserID:        req.UserID,
				Skill:         string(skill),
				Outcome:       audit.OutcomeSecurityRejected,
				Reasons:       []string{screened.Reason},
				RiskScore:     screened.RiskScore,
			})
			return Result{}, fmt.Errorf("decide: %w: %s", ErrInputRejected, screened.Reason)
		}
		callerContext = screened.Cleaned
	}

	granted, err := e.consent.Consent(ctx, req.UserID)
	if err != nil {
		return Result{}, fmt.Errorf("decide: check consent: %w", err)
	}
	if !granted {
		return Result{}, fmt.Errorf("decide: %w", ErrNoConsent)
	}

	unlock := e.lockUser(req.UserID)
	defer unlock()

	snap, err := e.memory.Load(ctx, req.UserID)
	if err != nil {
		return Result{}, fmt.Errorf("decide: %w", err)
	}

	uc, err := e.builder.Build(ctx, req.UserID)
	if err != nil {
		return Result{}, fmt.Errorf("decide: %w", err)
	}
	vec := signals.Vector(uc)

	weights, err := e.experiences.Weights(ctx, req.UserID)
	if err != nil {
		return Result{}, fmt.Errorf("decide: %w", err)
	}
	decision := policy.Select(vec, weights)

	now := e.now()
	gateState, err := e.gate.State(ctx, req.UserID, now)
	if err != nil {
		return Result{}, fmt.Errorf("decide: %w", err)
	}
	check := e.gate.Check(uc, gateState, decision.Action, snap.Profile.DisabledActions())
	if !check.Allowed {
		reasons := check.Reasons()
		log.Info().Str("action", string(decision.Action)).Strs("reasons", reasons).
			Msg("decision blocked")
		e.record(audit.Entry{
			CorrelationID: correlationID,
			UserID:        req.UserID,
			Skill:         string(skill),
			Action:        string(decision.Action),
			Outcome:       audit.OutcomeBlocked,
			Reasons:       reasons,
			DataQuality:   uc.DataQuality,
		})
		return Result{
			CorrelationID: correlationID,
			Action:        decision.Action,
			Confidence:    decision.Confidence,
			Reasoning:     decision.Reasoning,
			Blocked:       true,
			BlockReasons:  reasons,
			DataQuality:   uc.DataQuality,
		}, nil
	}

	resp, err := e.inference.Complete(ctx, inference.Request{
		Skill:         skill,
		Action:        decision.Action,
		Summary:       snap.PromptContext(),
		CallerContext: callerContext,
	})
	if err != nil {
		log.Error().Err(err).Bool("retryable", inference.IsRetryable(err)).
			Msg("inference failed")
		e.record(audit.Entry{
			CorrelationID: correlationID,
			UserID:        req.UserID,
			Skill:         string(skill),
			Action:        string(decision.Action),
			Outcome:       audit.OutcomeFailed,
			Reasons:       []string{err.Error()},
			DataQuality:   uc.DataQuality,
		})
		return Result{}, fmt.Errorf("decide: %w", err)
	}

	// Delivery bookkeeping outlives the request context.
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	if err := e.gate.RecordAction(pctx, req.UserID, decision.Action, now); err != nil {
		log.Error().Err(err).Msg("record gate action")
	}
	if err := e.experiences.Append(pctx, experience.Experience{
		ID:     correlationID,
		UserID: req.UserID,
		Vector: vec,
		Action: decision.Action,
		Before: experience.Metrics{
			Momentum:     uc.Momentum,
			OverdueRatio: uc.TaskOverdue,
			HabitRate:    uc.HabitRate,
		},
		CreatedAt: now.UTC(),
	}); err != nil {
		log.Error().Err(err).Msg("append experience")
	}
	e.record(audit.Entry{
		CorrelationID: correlationID,
		UserID:        req.UserID,
		Skill:         string(skill),
		Action:        string(decision.Action),
		Outcome:       audit.OutcomeDelivered,
		DataQuality:   uc.DataQuality,
	})

	log.Info().Str("action", string(decision.Action)).
		Float64("confidence", decision.Confidence).
		Msg("decision delivered")

	return Result{
		CorrelationID: correlationID,
		Action:        decision.Action,
		Confidence:    decision.Confidence,
		Reasoning:     decision.Reasoning,
		Message:       resp.Message,
		Tone:          resp.Tone,
		DataQuality:   uc.DataQuality,
	}, nil
}

// #endregion decide

// #region outcome

// RecordOutcome closes the loop for a delivered decision: it rebuilds the
// user's context for after-metrics, scores the experience, updates the
// policy weights, prunes the log, and records the feedback in memory.
func (e *Engine) RecordOutcome(ctx context.Context, correlationID string, feedback experience.FeedbackKind) error {
	exp, found, err := e.experiences.Get(ctx, correlationID)
	if err != nil {
		return fmt.Errorf("record outcome: %w", err)
	}
	if !found {
		return fmt.Errorf("record outcome: experience %s not found", correlationID)
	}
	if exp.Scored {
		return fmt.Errorf("record outcome: experience %s already scored", correlationID)
	}

	unlock := e.lockUser(exp.UserID)
	defer unlock()

	uc, err := e.builder.Build(ctx, exp.UserID)
	if err != nil {
		return fmt.Errorf("record outcome: %w", err)
	}
	after := experience.Metrics{
		Momentum:     uc.Momentum,
		OverdueRatio: uc.TaskOverdue,
		HabitRate:    uc.HabitRate,
	}

	reward := experience.ComputeReward(experience.Outcome{
		Feedback:    feedback,
		Before:      exp.Before,
		After:       after,
		DataQuality: uc.DataQuality,
	})
	if err := e.experiences.Complete(ctx, correlationID, reward, after); err != nil {
		return fmt.Errorf("record outcome: %w", err)
	}

	weights, err := e.experiences.Weights(ctx, exp.UserID)
	if err != nil {
		return fmt.Errorf("record outcome: %w", err)
	}
	updated := policy.Learn(weights, exp.Vector, exp.Action, reward, e.learn)
	if err := e.experiences.SaveWeights(ctx, exp.UserID, updated); err != nil {
		return fmt.Errorf("record outcome: %w", err)
	}

	if err := e.experiences.Prune(ctx, exp.UserID, e.retention); err != nil {
		e.log.Error().Err(err).Str("user_id", exp.UserID).Msg("prune experiences")
	}

	helpful := feedback == experience.FeedbackCompleted || feedback == experience.FeedbackAccepted
	if err := e.memory.RecordFeedback(ctx, exp.UserID, memory.Feedback{
		Action:    exp.Action,
		Helpful:   helpful,
		Ignored:   feedback == experience.FeedbackIgnored,
		CreatedAt: e.now().UTC(),
	}); err != nil {
		e.log.Error().Err(err).Str("user_id", exp.UserID).Msg("record feedback")
	}

	e.log.Info().
		Str("correlation_id", correlationID).
		Str("user_id", exp.UserID).
		Str("feedback", string(feedback)).
		Float64("reward", reward).
		Msg("outcome recorded")
	return nil
}

// #endregion outcome

// #region profile

// RefreshProfile regenerates the user's behavioral profile and persists it
// under optimistic concurrency. A concurrent writer triggers one reload
// and retry before the conflict is surfaced.
func (e *Engine) RefreshProfile(ctx context.Context, userID string) (profiler.DNA, error) {
	for attempt := 0; ; attempt++ {
		current, found, err := e.snapshots.Load(ctx, userID)
		if err != nil {
			return profiler.DNA{}, fmt.Errorf("refresh profile: %w", err)
		}
		expected := int64(0)
		if found {
			expected = current.Version
		}

		dna, err := e.profiler.Generate(ctx, userID)
		if err != nil {
			return profiler.DNA{}, fmt.Errorf("refresh profile: %w", err)
		}

		version, err := e.snapshots.Save(ctx, dna, expected)
		if errors.Is(err, profiler.ErrVersionConflict) && attempt == 0 {
			continue
		}
		if err != nil {
			return profiler.DNA{}, fmt.Errorf("refresh profile: %w", err)
		}
		dna.Version = version
		return dna, nil
	}
}

// #endregion profile

// record writes an audit entry on a detached context so cancellation of
// the request cannot lose the row.
func (e *Engine) record(entry audit.Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := e.audit.Record(ctx, entry); err != nil {
		e.log.Error().Err(err).Str("correlation_id", entry.CorrelationID).Msg("audit record")
	}
}

func (e *Engine) lockUser(userID string) func() {
	v, _ := e.userLocks.LoadOrStore(userID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
