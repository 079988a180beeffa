package system

import "fmt"

type SystemState int

const (
	StateInitializing SystemState = iota
	StateCompiling
	StatePublished
	StateStopping
	StateStopped
	StateError
)

func (s SystemState) String() string {
	switch s {
	case StateInitializing:
		return "INITIALIZING"
	case StateCompiling:
		return "COMPILING"
	case StatePublished:
		return "PUBLISHED"
	case StateStopping:
		return "STOPPING"
	case StateStopped:
		return "STOPPED"
	case StateError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

var validTransitions = map[SystemState][]SystemState{
	StateInitializing: {StateCompiling, StateStopping, StateError},
	StateCompiling:    {StatePublished, StateStopping, StateError},
	StatePublished:    {StateStopping, StateError},
	StateError:        {StateStopping},
	StateStopping:     {StateStopped},
	StateStopped:      {},
}

func ValidateTransition(from, to SystemState) error {
	allowed, exists := validTransitions[from]
	if !exists {
		return fmt.Errorf("invalid current state: %s", from)
	}

	for _, validTo := range allowed {
		if validTo == to {
			return nil
		}
	}

	return fmt.Errorf("invalid state transition: %s -> %s", from, to)
}
