package monitor

// State is a worker's position in its cycle.
type State int32

// Worker states. A worker moves Idle → Scanning → Diffing → (Detailing →
// Fetching → Notifying per new item) → Scanning for the next producer, then
// Sleeping, then Scanning again. Stopped is entered when Run returns.
const (
	StateIdle State = iota
	StateScanning
	StateDiffing
	StateDetailing
	StateFetching
	StateNotifying
	StateSleeping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScanning:
		return "scanning"
	case StateDiffing:
		return "diffing"
	case StateDetailing:
		return "detailing"
	case StateFetching:
		return "fetching"
	case StateNotifying:
		return "notifying"
	case StateSleeping:
		return "sleeping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Kind distinguishes the steady partition workers from the on-demand lane.
type Kind string

const (
	// KindSteady workers own one bucket of the generation's partition.
	KindSteady Kind = "steady"
	// KindOnDemand workers start empty and adopt newly tracked producers.
	KindOnDemand Kind = "ondemand"
)
