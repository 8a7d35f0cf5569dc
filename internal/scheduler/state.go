package scheduler

// State is the playback engine's lifecycle state.
type State int

const (
	// StateIdle means no playback session is active. Initial and terminal.
	StateIdle State = iota
	// StatePreparing means a document is loaded and chunking has begun.
	StatePreparing
	// StatePlaying means an utterance is in flight at the engine.
	StatePlaying
	// StatePaused means playback is suspended and resumable.
	StatePaused
	// StateCompleted means the document has been read to the end.
	StateCompleted
	// StateError is a transient engine-failure state that auto-recovers
	// to idle.
	StateError
)

// String returns the lowercase name of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePreparing:
		return "preparing"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateCompleted:
		return "completed"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// machine validates lifecycle transitions against a fixed table. Error is
// reachable from every state; everything funnels back to idle.
type machine struct {
	current     State
	transitions map[State][]State
}

func newMachine() *machine {
	return &machine{
		current: StateIdle,
		transitions: map[State][]State{
			StateIdle:      {StatePreparing, StateError},
			StatePreparing: {StatePlaying, StateCompleted, StateIdle, StatePreparing, StateError},
			StatePlaying:   {StatePaused, StateCompleted, StateIdle, StatePreparing, StateError},
			StatePaused:    {StatePlaying, StateIdle, StatePreparing, StateError},
			StateCompleted: {StateIdle, StatePreparing, StateError},
			StateError:     {StateIdle},
		},
	}
}

// transition moves to the target state if the table allows it.
func (m *machine) transition(to State) bool {
	for _, s := range m.transitions[m.current] {
		if s == to {
			m.current = to
			return true
		}
	}
	return false
}

func (m *machine) state() State { return m.current }
