package orchestrator

// State is the lifecycle state of an orchestrator run.
type State int

const (
	StateCreated State = iota
	StateValidated
	StateRunning
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateValidated:
		return "validated"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	}

	return "unknown"
}
