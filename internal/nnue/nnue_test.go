package nnue

import (
	"bytes"
	"testing"

	"github.com/tantabus/tantabus/internal/board"
)

func TestWeightsRoundTrip(t *testing.T) {
	net := InitRandom(1)

	var buf bytes.Buffer
	if err := SaveWeights(&buf, net); err != nil {
		t.Fatalf("SaveWeights: %v", err)
	}

	got, err := LoadWeights(&buf)
	if err != nil {
		t.Fatalf("LoadWeights: %v", err)
	}

	if got.OutputBias != net.OutputBias {
		t.Errorf("OutputBias = %d, want %d", got.OutputBias, net.OutputBias)
	}
	if got.FeatureWeights[0] != net.FeatureWeights[0] {
		t.Errorf("FeatureWeights[0] mismatch")
	}
	if got.FeatureWeights[NumFeatures-1] != net.FeatureWeights[NumFeatures-1] {
		t.Errorf("FeatureWeights[last] mismatch")
	}
}

func TestIncrementalMatchesFullRefresh(t *testing.T) {
	net := InitRandom(42)
	pos := board.NewPosition()
	eval := NewEvaluator(net)
	eval.Reset(pos)

	moves := pos.GenerateLegalMoves()
	for ply := 0; ply < 40 && moves.Len() > 0; ply++ {
		move := moves.Get(ply % moves.Len())

		eval.Push()
		undo := pos.MakeMove(move)
		if !undo.Valid {
			eval.Pop()
			moves = pos.GenerateLegalMoves()
			continue
		}
		applyIncremental(eval, pos, move, undo)

		var rebuilt Accumulator
		rebuilt.refresh(net, pos)
		cur := eval.stack.Current()
		if *cur != rebuilt {
			t.Fatalf("incremental accumulator diverged from full rebuild at ply %d", ply)
		}

		moves = pos.GenerateLegalMoves()
		if moves.Len() == 0 {
			break
		}
	}
}

// applyIncremental mirrors the engine's post-make bookkeeping for the test:
// remove the piece from its origin, add it at its destination, and handle
// capture/castling/promotion/en-passant side effects.
func applyIncremental(e *Evaluator, pos *board.Position, m board.Move, undo board.UndoInfo) {
	to := m.To()
	from := m.From()
	moved := pos.PieceAt(to)
	us := moved.Color()

	if undo.CapturedPiece != board.NoPiece {
		capSq := to
		if m.IsEnPassant() {
			if us == board.White {
				capSq = to - 8
			} else {
				capSq = to + 8
			}
		}
		e.Remove(undo.CapturedPiece.Color(), undo.CapturedPiece.Type(), capSq)
	}

	if m.IsPromotion() {
		e.Remove(us, board.Pawn, from)
		e.Add(us, m.Promotion(), to)
	} else {
		e.Remove(us, moved.Type(), from)
		e.Add(us, moved.Type(), to)
	}

	if m.IsCastling() {
		// Standard castling squares (also covers the HAha Chess960 case,
		// where rook files coincide with standard chess).
		var rookFrom, rookTo board.Square
		if to > from {
			rookFrom = from + 3
			rookTo = from + 1
		} else {
			rookFrom = from - 4
			rookTo = from - 1
		}
		e.Remove(us, board.Rook, rookFrom)
		e.Add(us, board.Rook, rookTo)
	}
}
