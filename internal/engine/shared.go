package engine

import "sync/atomic"

// SharedState is the process-wide state every search worker borrows for the
// duration of one search call: the transposition table and the cooperative
// abort flag, plus a summed node counter used for node-limit cutoffs and the
// nps figure in info output. Everything else a worker touches — history,
// killers, the accumulator stack, the position itself — is thread-local.
type SharedState struct {
	tt    *TranspositionTable
	abort atomic.Bool
	nodes atomic.Uint64
}

// NewSharedState creates shared state sized for a TT of ttSizeMB megabytes.
func NewSharedState(ttSizeMB int) *SharedState {
	return &SharedState{tt: NewTranspositionTable(ttSizeMB)}
}

// Reset prepares shared state for a new top-level search: bumps the TT age
// generation, clears the abort flag, and zeroes the node counter. Per §4.G,
// this happens once at the start of every `go` command, not once per worker.
func (s *SharedState) Reset() {
	s.tt.NewSearch()
	s.abort.Store(false)
	s.nodes.Store(0)
}

// Abort reports whether the search has been asked to stop.
func (s *SharedState) Abort() bool {
	return s.abort.Load()
}

// SetAbort sets the abort flag. Once set it remains set until the next
// Reset; this is the sole cancellation mechanism for the search (§5).
func (s *SharedState) SetAbort() {
	s.abort.Store(true)
}

// AddNodes adds delta to the shared node counter, called by each worker at
// its poll boundary with the nodes searched since its last poll.
func (s *SharedState) AddNodes(delta uint64) uint64 {
	return s.nodes.Add(delta)
}

// Nodes returns the total nodes searched by all workers so far this search.
func (s *SharedState) Nodes() uint64 {
	return s.nodes.Load()
}
