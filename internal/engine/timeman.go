package engine

import (
	"time"

	"github.com/tantabus/tantabus/internal/board"
)

// Time manager tuning constants, taken directly from spec's worked example
// values (§4.F): base = time_left/(movestogo or DEFAULT_MTG), soft =
// base*SOFT_FRAC + inc*INC_FRAC, hard = min(time_left*HARD_CAP,
// base*HARD_MULT). SAFETY_MS is subtracted from a fixed movetime budget to
// leave headroom for the engine's own overhead before the GUI's clock runs
// out; it is deliberately small relative to MoveOverhead's UCI default.
const (
	DefaultMovesToGo = 25
	SoftFraction     = 0.6
	IncFraction      = 0.75
	HardCap          = 0.4
	HardMultiple     = 5.0
	SafetyMs         = 50 * time.Millisecond
)

// UCILimits carries the raw parameters of a `go` command, one field per
// named option in spec.md §6.
type UCILimits struct {
	Time         [2]time.Duration // wtime, btime
	Inc          [2]time.Duration // winc, binc
	MovesToGo    int
	MoveTime     time.Duration
	Depth        int
	Nodes        uint64
	Infinite     bool
	MoveOverhead time.Duration
}

// TimeManager computes the soft and hard deadlines for one search and
// answers whether either has elapsed. Soft is checked by the coordinator
// between iterations; hard is polled by every worker roughly every 2048
// nodes (see Worker.negamax).
type TimeManager struct {
	soft, hard time.Duration
	start      time.Time
	infinite   bool
}

// NewTimeManager computes deadlines for limits from us's point of view. The
// ply argument is not used; a missing movestogo falls back to
// DefaultMovesToGo. A depth- or node-limited search with no clock or
// movetime has no time bound.
func NewTimeManager(limits UCILimits, us board.Color, ply int, startTime time.Time) *TimeManager {
	tm := &TimeManager{start: startTime}

	switch {
	case limits.Infinite || ((limits.Depth > 0 || limits.Nodes > 0) && limits.Time[us] == 0 && limits.MoveTime == 0):
		tm.infinite = true

	case limits.MoveTime > 0:
		budget := limits.MoveTime - SafetyMs
		if budget < 0 {
			budget = 0
		}
		tm.soft = budget
		tm.hard = budget

	default:
		timeLeft := limits.Time[us] - limits.MoveOverhead
		if timeLeft < 0 {
			timeLeft = 0
		}
		inc := limits.Inc[us]

		mtg := limits.MovesToGo
		if mtg <= 0 {
			mtg = DefaultMovesToGo
		}

		base := timeLeft / time.Duration(mtg)
		soft := time.Duration(float64(base)*SoftFraction) + time.Duration(float64(inc)*IncFraction)
		hardFromRemaining := time.Duration(float64(timeLeft) * HardCap)
		hardFromBase := time.Duration(float64(base) * HardMultiple)
		hard := hardFromRemaining
		if hardFromBase < hard {
			hard = hardFromBase
		}
		if soft > hard {
			soft = hard
		}
		tm.soft = soft
		tm.hard = hard
	}

	return tm
}

// Elapsed returns the time since the search began.
func (tm *TimeManager) Elapsed() time.Duration {
	return time.Since(tm.start)
}

// SoftExceeded reports whether the coordinator should stop after the current
// iterative-deepening iteration rather than starting another.
func (tm *TimeManager) SoftExceeded() bool {
	if tm.infinite {
		return false
	}
	return tm.Elapsed() >= tm.soft
}

// HardExceeded reports whether a worker's node-poll should set the abort
// flag, unwinding the search immediately regardless of iteration progress.
func (tm *TimeManager) HardExceeded() bool {
	if tm.infinite {
		return false
	}
	return tm.Elapsed() >= tm.hard
}
