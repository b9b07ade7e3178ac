package profiler

import "time"

// #region chronotype
// Chronotype describes when a user is naturally active.
type Chronotype struct {
	PeakHours      [3]int // top-3 hour-of-day activity buckets
	LowHours       [3]int // bottom-3 buckets
	WeekendPattern string // "similar" | "different" | "inverted"
}

// #endregion chronotype

// #region discipline
// DisciplineProfile captures habit discipline traits.
type DisciplineProfile struct {
	StreakSensitivity    float64
	RecoverySpeedDays    int // coarse placeholder, 2 or 3 depending on data presence
	MotivationTriggers   []string
	DemotivationTriggers []string
}

// #endregion discipline

// #region dropout
// DropoutSignal is one detected-or-not risk indicator with its weight.
type DropoutSignal struct {
	Type     string
	Weight   float64
	Detected bool
}

// DropoutSignals groups risk indicators by horizon.
type DropoutSignals struct {
	EarlyWarnings      []DropoutSignal
	ImmediateTriggers  []DropoutSignal
	RecoveryIndicators []DropoutSignal
}

// #endregion dropout

// #region predictions
// Predictions holds forward-looking estimates derived from the signals.
type Predictions struct {
	DropoutRisk72h       float64
	StreakProbability30d float64
	ScoreTrend30d        float64
	ScoreTrend90d        float64
}

// #endregion predictions

// #region transformation
// TransformationProfile is a coarse phase label for where the user sits in
// their behavior-change arc.
type TransformationProfile struct {
	Phase string // "foundation" | "momentum" | "mastery"
	Focus string
}

// #endregion transformation

// #region dna
// DNA is the versioned descriptive snapshot of a user's longer-horizon
// behavioral patterns. Replaced wholesale per regeneration; Version only
// increases.
type DNA struct {
	UserID         string
	Version        int64
	Chronotype     Chronotype
	Discipline     DisciplineProfile
	Dropout        DropoutSignals
	Transformation TransformationProfile
	Predictions    Predictions
	TwinIDs        []string // pending an anonymized cross-user dataset
	GeneratedAt    time.Time
}

// #endregion dna
