package nnue

import "github.com/tantabus/tantabus/internal/board"

// Accumulator holds the first-layer activations for both perspectives.
type Accumulator struct {
	White [HL]int16
	Black [HL]int16
}

// add applies the feature weights for (color, pt, sq) to both perspectives.
func (a *Accumulator) add(net *Network, color board.Color, pt board.PieceType, sq board.Square) {
	wf := Feature(board.White, color, pt, sq)
	bf := Feature(board.Black, color, pt, sq)
	for i := 0; i < HL; i++ {
		a.White[i] += net.FeatureWeights[wf][i]
		a.Black[i] += net.FeatureWeights[bf][i]
	}
}

// sub removes the feature weights for (color, pt, sq) from both perspectives.
func (a *Accumulator) sub(net *Network, color board.Color, pt board.PieceType, sq board.Square) {
	wf := Feature(board.White, color, pt, sq)
	bf := Feature(board.Black, color, pt, sq)
	for i := 0; i < HL; i++ {
		a.White[i] -= net.FeatureWeights[wf][i]
		a.Black[i] -= net.FeatureWeights[bf][i]
	}
}

// refresh recomputes the accumulator from scratch.
func (a *Accumulator) refresh(net *Network, pos *board.Position) {
	a.White = net.FeatureBias
	a.Black = net.FeatureBias
	for c := board.White; c <= board.Black; c++ {
		for pt := board.Pawn; pt <= board.King; pt++ {
			bb := pos.Pieces[c][pt]
			for bb != 0 {
				sq := bb.PopLSB()
				a.add(net, c, pt, sq)
			}
		}
	}
}

// maxStackDepth bounds the accumulator stack; it must be at least as deep as
// the search's maximum ply plus quiescence's extra plies.
const maxStackDepth = 256

// AccumulatorStack mirrors the move stack: one entry pushed per make, popped
// per unmake, each an incrementally updated copy of its parent.
type AccumulatorStack struct {
	stack [maxStackDepth]Accumulator
	top   int
}

// NewAccumulatorStack creates a stack rooted at an empty accumulator.
func NewAccumulatorStack() *AccumulatorStack {
	return &AccumulatorStack{}
}

// Reset drops all pushed frames, returning to the root.
func (s *AccumulatorStack) Reset() {
	s.top = 0
}

// Current returns the accumulator at the top of the stack.
func (s *AccumulatorStack) Current() *Accumulator {
	return &s.stack[s.top]
}

// Push duplicates the current accumulator onto a new frame for in-place
// incremental update.
func (s *AccumulatorStack) Push() *Accumulator {
	s.stack[s.top+1] = s.stack[s.top]
	s.top++
	return &s.stack[s.top]
}

// Pop discards the top frame, returning to the parent.
func (s *AccumulatorStack) Pop() {
	s.top--
}

// RefreshRoot rebuilds the bottom-of-stack accumulator from a position and
// resets the stack to depth zero.
func (s *AccumulatorStack) RefreshRoot(net *Network, pos *board.Position) {
	s.top = 0
	s.stack[0].refresh(net, pos)
}
