package policy

// #region action-type
// ActionType enumerates the closed set of coaching interventions.
type ActionType string

const (
	ActionNudge     ActionType = "nudge"
	ActionReframe   ActionType = "reframe"
	ActionChallenge ActionType = "challenge"
	ActionCelebrate ActionType = "celebrate"
	ActionProtect   ActionType = "protect"
	ActionObserve   ActionType = "observe"
)

// Actions returns the full enumeration in its canonical order.
// This order is the tie-break contract for Select.
func Actions() []ActionType {
	return []ActionType{
		ActionNudge,
		ActionReframe,
		ActionChallenge,
		ActionCelebrate,
		ActionProtect,
		ActionObserve,
	}
}

// Valid reports whether a is a member of the closed enumeration.
func (a ActionType) Valid() bool {
	return a.index() >= 0
}

func (a ActionType) index() int {
	for i, v := range Actions() {
		if v == a {
			return i
		}
	}
	return -1
}

// #endregion action-type

// #region category
// Category tags an action with a coarse behavioral class. The safety gate
// matches configured forbidden categories against these tags instead of
// substring-matching action names.
type Category string

const (
	CategoryPush    Category = "push"
	CategoryStretch Category = "stretch"
	CategoryMindset Category = "mindset"
	CategoryPraise  Category = "praise"
	CategoryRest    Category = "rest"
	CategorySilent  Category = "silent"
)

var actionCategories = map[ActionType][]Category{
	ActionNudge:     {CategoryPush},
	ActionReframe:   {CategoryMindset},
	ActionChallenge: {CategoryPush, CategoryStretch},
	ActionCelebrate: {CategoryPraise},
	ActionProtect:   {CategoryRest},
	ActionObserve:   {CategorySilent},
}

// Categories returns the category tags for an action.
func (a ActionType) Categories() []Category {
	return actionCategories[a]
}

// HasCategory reports whether the action carries the given tag.
func (a ActionType) HasCategory(c Category) bool {
	for _, tag := range actionCategories[a] {
		if tag == c {
			return true
		}
	}
	return false
}

// #endregion category

// #region weights
// VectorDim is the length of context and weight vectors. The dimension
// order is a contract shared with the context builder; changing it
// invalidates every learned weight vector.
const VectorDim = 18

// Vector is a fixed-length context or weight vector.
type Vector [VectorDim]float64

// Weights holds one weight vector per action, indexed by the closed
// enumeration. Actions never learned hold the zero vector.
type Weights struct {
	vectors [6]Vector
}

// Get returns the weight vector for an action (zero vector if unknown).
func (w Weights) Get(a ActionType) Vector {
	i := a.index()
	if i < 0 {
		return Vector{}
	}
	return w.vectors[i]
}

// Set replaces the weight vector for an action. Unknown actions are ignored.
func (w *Weights) Set(a ActionType, v Vector) {
	if i := a.index(); i >= 0 {
		w.vectors[i] = v
	}
}

// IsZero reports whether every action still holds the zero vector.
func (w Weights) IsZero() bool {
	for _, v := range w.vectors {
		for _, x := range v {
			if x != 0 {
				return false
			}
		}
	}
	return true
}

// #endregion weights

// #region decision
// Decision is the output of a policy selection.
type Decision struct {
	Action     ActionType
	Confidence float64
	Reasoning  string
	Scores     map[ActionType]float64
}

// #endregion decision
