package nnue

import "github.com/tantabus/tantabus/internal/board"

// Evaluator scores leaf positions using the network it was created with and an
// incrementally maintained accumulator stack.
type Evaluator struct {
	net   *Network
	stack *AccumulatorStack
}

// NewEvaluator builds an evaluator from in-memory weights.
func NewEvaluator(net *Network) *Evaluator {
	return &Evaluator{net: net, stack: NewAccumulatorStack()}
}

// Reset rebuilds the accumulator stack from pos and drops all pushed frames.
// Call at the start of every search, since the stack must start at the root.
func (e *Evaluator) Reset(pos *board.Position) {
	e.stack.RefreshRoot(e.net, pos)
}

// Evaluate returns the centipawn score of the current accumulator from
// side-to-move's perspective.
func (e *Evaluator) Evaluate(stm board.Color) int {
	acc := e.stack.Current()
	if stm == board.White {
		return e.net.Forward(&acc.White, &acc.Black)
	}
	return e.net.Forward(&acc.Black, &acc.White)
}

// Push duplicates the current accumulator frame; callers then Add/Remove the
// pieces changed by the move being made before calling Evaluate.
func (e *Evaluator) Push() *Accumulator {
	return e.stack.Push()
}

// Pop discards the top accumulator frame after a move is unmade.
func (e *Evaluator) Pop() {
	e.stack.Pop()
}

// Add applies the feature weights of a piece placement to the current frame.
func (e *Evaluator) Add(color board.Color, pt board.PieceType, sq board.Square) {
	e.stack.Current().add(e.net, color, pt, sq)
}

// Remove reverses the feature weights of a piece removal on the current
// frame.
func (e *Evaluator) Remove(color board.Color, pt board.PieceType, sq board.Square) {
	e.stack.Current().sub(e.net, color, pt, sq)
}

// Refresh forces a full rebuild of the current frame from pos, used by
// periodic cross-checks and whenever incremental tracking is impractical.
func (e *Evaluator) Refresh(pos *board.Position) {
	e.stack.Current().refresh(e.net, pos)
}
