package urlkeep

// ImportState is the progress of one pending entry through the import
// pipeline. States only move forward.
type ImportState string

// Import states.
const (
	StateQueued     ImportState = "queued"
	StateFetching   ImportState = "fetching"
	StateExtracting ImportState = "extracting"
	StateMerging    ImportState = "merging"
	StateCommitted  ImportState = "committed"
	StateDuplicate  ImportState = "duplicate"
	StateFailed     ImportState = "failed"
)

var stateRank = map[ImportState]int{
	StateQueued:     0,
	StateFetching:   1,
	StateExtracting: 2,
	StateMerging:    3,
	StateCommitted:  4,
	StateDuplicate:  4,
	StateFailed:     4,
}

// Valid reports whether s is a known state.
func (s ImportState) Valid() bool {
	_, ok := stateRank[s]
	return ok
}

// Terminal reports whether s is a final state.
func (s ImportState) Terminal() bool {
	return s == StateCommitted || s == StateDuplicate || s == StateFailed
}

// InFlight reports whether an entry in state s has been claimed by a
// pipeline that has not settled yet.
func (s ImportState) InFlight() bool {
	return s == StateFetching || s == StateExtracting || s == StateMerging
}

// CanTransition reports whether moving from s to next is allowed.
// Terminal states never move; everything else only moves forward.
func (s ImportState) CanTransition(next ImportState) bool {
	if !s.Valid() || !next.Valid() || s.Terminal() {
		return false
	}
	return stateRank[next] > stateRank[s]
}
