package view

// State is the lifecycle of a bound view.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateRendered
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateRendered:
		return "rendered"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// allowed lists legal transitions. Rendered may re-render in place when
// alerts or the filter change.
var allowed = map[State][]State{
	StateIdle:     {StateLoading},
	StateLoading:  {StateLoading, StateRendered, StateError},
	StateRendered: {StateLoading, StateRendered},
	StateError:    {StateLoading},
}

// CanTransition reports whether a view may move from one state to another.
func CanTransition(from, to State) bool {
	for _, s := range allowed[from] {
		if s == to {
			return true
		}
	}
	return false
}

// StateChange is published on every transition.
type StateChange struct {
	View string `json:"view"`
	From string `json:"from"`
	To   string `json:"to"`
	Err  string `json:"error,omitempty"`
}
