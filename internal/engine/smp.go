package engine

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/tantabus/tantabus/internal/board"
	"github.com/tantabus/tantabus/internal/nnue"
	"golang.org/x/sync/errgroup"
)

// InfoLine is one reportable line of iterative-deepening progress, built
// from worker 0's most recently completed iteration.
type InfoLine struct {
	Depth    int
	SelDepth int
	Score    int
	Mate     bool
	MateIn   int
	Nodes    uint64
	NPS      uint64
	HashFull int
	Time     time.Duration
	PV       []board.Move
}

// Coordinator runs Lazy SMP per §4.G: T independent Searchers share one
// SharedState (the TT and the abort flag) and each drives its own full
// iterative-deepening loop to the search's depth limit or abort. Workers
// never hand off per-depth tasks to each other; they diverge purely through
// racy TT interactions. Worker 0 is canonical for info/bestmove output.
type Coordinator struct {
	shared    *SharedState
	searchers []*Searcher
	net       *nnue.Network

	// OnInfo, if set, is invoked from a collector goroutine after every
	// iteration worker 0 completes; Search does not return until the last
	// call has finished.
	OnInfo func(InfoLine)
}

// NewCoordinator builds a coordinator with threads Searchers sharing a TT
// sized at ttSizeMB megabytes, all evaluating with net.
func NewCoordinator(threads, ttSizeMB int, net *nnue.Network) *Coordinator {
	c := &Coordinator{
		shared: NewSharedState(ttSizeMB),
		net:    net,
	}
	c.SetThreads(threads)
	return c
}

// SetThreads rebuilds the searcher pool. It drops all existing per-thread
// move ordering state; callers should not call this mid-search.
func (c *Coordinator) SetThreads(threads int) {
	if threads < 1 {
		threads = 1
	}
	c.searchers = make([]*Searcher, threads)
	for i := range c.searchers {
		c.searchers[i] = NewSearcher(i, c.shared, c.net)
	}
}

// Threads returns the current worker count.
func (c *Coordinator) Threads() int { return len(c.searchers) }

// Resize changes the transposition table's size in place.
func (c *Coordinator) Resize(mb int) {
	c.shared.tt.Resize(mb)
}

// Clear resets the transposition table and every searcher's move ordering
// state, for `ucinewgame`.
func (c *Coordinator) Clear() {
	c.shared.tt.Clear()
	for _, s := range c.searchers {
		s.Reset()
	}
}

// HashFull reports transposition table occupancy in permille, for info output.
func (c *Coordinator) HashFull() int {
	return c.shared.tt.HashFull()
}

// Stop requests every worker to abandon its search at its next poll point.
// Safe to call concurrently with Search; idempotent.
func (c *Coordinator) Stop() {
	c.shared.SetAbort()
}

// Search runs one top-level search to completion — depth limit, node limit,
// the time manager's soft bound observed between iterations, its hard bound
// polled by every worker roughly every 2048 nodes, or an external Stop —
// and returns worker 0's last completed iteration's root move. It never
// returns a move from an aborted, partially-searched iteration.
func (c *Coordinator) Search(pos *board.Position, history []uint64, limits UCILimits) board.Move {
	c.shared.Reset()

	maxDepth := limits.Depth
	if maxDepth <= 0 || maxDepth > MaxPly-1 {
		maxDepth = MaxPly - 1
	}

	tm := NewTimeManager(limits, pos.SideToMove, len(history), time.Now())

	results := make(chan WorkerResult, len(c.searchers)*4)
	best := board.NoMove
	collected := make(chan struct{})

	go func() {
		defer close(collected)
		lastDepth := 0
		for r := range results {
			if r.WorkerID != 0 || r.Depth < lastDepth {
				continue
			}
			lastDepth = r.Depth
			if r.Move != board.NoMove {
				best = r.Move
			}
			if c.OnInfo != nil {
				c.OnInfo(c.buildInfo(r, tm))
			}
		}
	}()

	g, ctx := errgroup.WithContext(context.Background())
	for _, s := range c.searchers {
		s := s
		s.NewSearch()
		s.SetRootHistory(history)
		s.SetLimits(tm, limits.Nodes)
		s.SetResultChannel(results)
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("search worker %d panicked: %v", s.ID(), r)
				}
			}()
			runIterativeDeepening(s, pos, tm, maxDepth, c.shared)
			return nil
		})
	}

	// The context errgroup derives is canceled the moment any worker's
	// goroutine returns a non-nil error, which is the first-error signal;
	// ride that to abort every other worker instead of waiting for them to
	// notice on their own timing.
	go func() {
		<-ctx.Done()
		c.shared.SetAbort()
	}()

	if err := g.Wait(); err != nil {
		log.Printf("search aborted: %v", err)
	}

	close(results)
	<-collected

	if best == board.NoMove {
		if moves := pos.GenerateLegalMoves(); moves.Len() > 0 {
			best = moves.Get(0)
		}
	}
	return best
}

func (c *Coordinator) buildInfo(r WorkerResult, tm *TimeManager) InfoLine {
	elapsed := tm.Elapsed()
	nodes := c.shared.Nodes()
	var nps uint64
	if elapsed > 0 {
		nps = uint64(float64(nodes) / elapsed.Seconds())
	}

	info := InfoLine{
		Depth:    r.Depth,
		SelDepth: r.SelDepth,
		Score:    r.Score,
		Nodes:    nodes,
		NPS:      nps,
		HashFull: c.shared.tt.HashFull(),
		Time:     elapsed,
		PV:       r.PV,
	}
	if d := MateScore - abs(r.Score); d >= 0 && d <= MaxPly {
		info.Mate = true
		info.MateIn = (d + 1) / 2
		if r.Score < 0 {
			info.MateIn = -info.MateIn
		}
	}
	return info
}

// runIterativeDeepening drives one worker's full, independent
// iterative-deepening loop with aspiration windows (§4.E). Every worker
// iterates to maxDepth, or until it observes abort or its own soft-time
// bound — there is no per-depth coordination between workers.
func runIterativeDeepening(s *Searcher, pos *board.Position, tm *TimeManager, maxDepth int, shared *SharedState) {
	prevScore := 0
	for depth := 1; depth <= maxDepth; depth++ {
		score, ok := aspirationSearch(s, pos, depth, prevScore, shared)
		if !ok {
			return
		}
		prevScore = score

		if shared.Abort() {
			return
		}
		if tm.SoftExceeded() {
			shared.SetAbort()
			return
		}
	}
}

// aspirationSearch runs one iterative-deepening iteration. Per §4.E: windows
// start at prevScore +/- 15, the failing side's delta doubles each retry,
// and the window widens to +/-Infinity after a few failures; skipped (full
// window) at depth <= 4. ok is false when the iteration was aborted
// mid-search, in which case its score must not be used as prevScore or
// reported to the caller.
func aspirationSearch(s *Searcher, pos *board.Position, depth, prevScore int, shared *SharedState) (score int, ok bool) {
	if depth <= 4 {
		_, score = s.SearchWithBounds(pos, depth, -Infinity, Infinity)
		return score, !shared.Abort()
	}

	const initialDelta = 15
	delta := initialDelta
	alpha := clampWindow(prevScore - delta)
	beta := clampWindow(prevScore + delta)

	for attempt := 0; ; attempt++ {
		_, score = s.SearchWithBounds(pos, depth, alpha, beta)
		if shared.Abort() {
			return score, false
		}

		switch {
		case score <= alpha:
			beta = (alpha + beta) / 2
			alpha = clampWindow(score - delta)
		case score >= beta:
			beta = clampWindow(score + delta)
		default:
			return score, true
		}

		delta *= 2
		if attempt >= 4 || delta >= Infinity {
			alpha, beta = -Infinity, Infinity
		}
	}
}

func clampWindow(v int) int {
	if v < -Infinity {
		return -Infinity
	}
	if v > Infinity {
		return Infinity
	}
	return v
}
