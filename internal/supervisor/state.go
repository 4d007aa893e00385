package supervisor

// State is the supervisor's view of the session pool.
type State int32

const (
	// StateNoPool means no pool has been launched yet.
	StateNoPool State = iota
	// StateLaunching means a launch attempt is in progress or waiting to retry.
	StateLaunching
	// StateActive means a pool is live and its workers are running.
	StateActive
	// StateRelaunching means the live pool was found dead and is being torn down.
	StateRelaunching
)

func (s State) String() string {
	switch s {
	case StateNoPool:
		return "no_pool"
	case StateLaunching:
		return "launching"
	case StateActive:
		return "active"
	case StateRelaunching:
		return "relaunching"
	default:
		return "unknown"
	}
}
