package engine

import (
	"github.com/tantabus/tantabus/internal/board"
	"github.com/tantabus/tantabus/internal/nnue"
)

// Search constants.
const (
	Infinity  = 30000
	MateScore = 29000
	MaxPly    = 128
)

// Pruning and reduction constants.
const (
	rfpMaxDepth   = 8   // reverse futility pruning applies up to this depth
	rfpMargin     = 75  // centipawns per remaining depth
	nmpMinDepth   = 3   // minimum depth to try null move pruning
	iirMinDepth   = 4   // minimum depth to apply internal iterative reduction
	fpMaxDepth    = 6   // futility pruning applies up to this depth
	fpBase        = 100 // futility margin base
	fpMargin      = 70  // futility margin per depth
	seePruneDepth = 8   // SEE-based move pruning applies up to this depth
	seeCapMargin  = -20 // SEE margin per depth for captures
)

// lmpThreshold[d] is how many quiet moves are searched at depth d before
// skip_quiets() triggers late move pruning.
var lmpThreshold = [9]int{0, 5, 8, 13, 20, 29, 40, 53, 68}

// PVTable stores the principal variation as reconstructed during search.
type PVTable struct {
	length [MaxPly]int
	moves  [MaxPly][MaxPly]board.Move
}

// Searcher drives a single search thread. The SMP coordinator in smp.go owns
// one Searcher per configured thread; Search itself never spawns goroutines.
type Searcher struct {
	worker *Worker
	shared *SharedState
}

// NewSearcher creates a searcher sharing tt and abort with sibling workers.
// id identifies the thread for diagnostics; only id 0 is "canonical" for
// info/bestmove output, a convention enforced by the SMP coordinator.
func NewSearcher(id int, shared *SharedState, net *nnue.Network) *Searcher {
	return &Searcher{shared: shared, worker: NewWorker(id, shared, net)}
}

// SetLimits installs the time manager and node budget for the upcoming
// search call; both are shared read-only across every iteration.
func (s *Searcher) SetLimits(tm *TimeManager, nodeLimit uint64) {
	s.worker.SetLimits(tm, nodeLimit)
}

// ID returns the thread index; only id 0 is canonical for info/bestmove.
func (s *Searcher) ID() int {
	return s.worker.ID()
}

// SetResultChannel installs the channel the worker reports completed
// iterations to.
func (s *Searcher) SetResultChannel(ch chan<- WorkerResult) {
	s.worker.SetResultChannel(ch)
}

// Reset clears per-thread node count and move ordering state for a new
// top-level search.
func (s *Searcher) Reset() {
	s.worker.Reset()
}

// Nodes returns the number of nodes searched by this thread so far.
func (s *Searcher) Nodes() uint64 {
	return s.worker.Nodes()
}

// SetRootHistory seeds the repetition-detection stack with the hashes of the
// game's positions up to the one being searched; the history may end with
// the searched position's own hash, which is then not added a second time.
func (s *Searcher) SetRootHistory(hashes []uint64) {
	s.worker.SetRootHistory(hashes)
}

// SearchWithBounds runs one iterative-deepening iteration at depth within
// [alpha, beta], used directly by aspiration windows.
func (s *Searcher) SearchWithBounds(pos *board.Position, depth, alpha, beta int) (board.Move, int) {
	s.worker.InitSearch(pos)
	return s.worker.SearchDepth(depth, alpha, beta)
}

// GetPV returns the principal variation line from the most recent completed
// search, reconstructed from the PV table built during that search.
func (s *Searcher) GetPV() []board.Move {
	return s.worker.GetPV()
}

// NewSearch prepares this thread for one top-level search: its node counter
// restarts at zero and its move ordering tables decay rather than clear.
func (s *Searcher) NewSearch() {
	s.worker.NewSearch()
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
