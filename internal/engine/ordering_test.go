package engine

import (
	"math/rand"
	"testing"

	"github.com/tantabus/tantabus/internal/board"
)

// TestHistorySaturation checks that arbitrary sequences of bonus/malus
// updates never push a history entry outside [-HistMax, HistMax].
func TestHistorySaturation(t *testing.T) {
	mo := NewMoveOrderer()
	rng := rand.New(rand.NewSource(2))

	m := board.NewMove(board.E2, board.E4)
	for i := 0; i < 100000; i++ {
		depth := rng.Intn(40) + 1
		good := rng.Intn(2) == 0
		mo.UpdateHistory(board.White, m, depth, good)
		mo.UpdateCaptureHistory(board.NewPiece(board.Knight, board.White), board.E5, board.Pawn, depth, good)
	}

	if h := mo.GetHistoryScore(board.White, m); h < -HistMax || h > HistMax {
		t.Errorf("history score %d outside [-%d, %d]", h, HistMax, HistMax)
	}
	if h := mo.captureHistory[board.NewPiece(board.Knight, board.White)][board.E5][board.Pawn]; h < -HistMax || h > HistMax {
		t.Errorf("capture history score %d outside [-%d, %d]", h, HistMax, HistMax)
	}
}

func TestDecayHalvesNotClears(t *testing.T) {
	mo := NewMoveOrderer()
	m := board.NewMove(board.E2, board.E4)
	mo.UpdateHistory(board.White, m, 40, true)

	before := mo.GetHistoryScore(board.White, m)
	if before == 0 {
		t.Fatal("expected nonzero history after a cutoff update")
	}

	mo.Decay()
	after := mo.GetHistoryScore(board.White, m)
	if after == 0 {
		t.Error("Decay should halve history, not clear it")
	}
	if after >= before {
		t.Errorf("Decay should reduce magnitude: before=%d after=%d", before, after)
	}
}

func TestClearZeroesEverything(t *testing.T) {
	mo := NewMoveOrderer()
	m := board.NewMove(board.E2, board.E4)
	mo.UpdateHistory(board.White, m, 40, true)
	mo.UpdateKillers(m, 3)

	mo.Clear()

	if h := mo.GetHistoryScore(board.White, m); h != 0 {
		t.Errorf("expected zero history after Clear, got %d", h)
	}
	if mo.killers[3][0] != board.NoMove {
		t.Error("expected killers cleared after Clear")
	}
}

// TestMovePickerLegalityAndNoDuplicates checks that every move the staged
// picker yields from the starting position is legal and yielded exactly
// once, across all stages (TT move, captures, killers, quiets).
func TestMovePickerLegalityAndNoDuplicates(t *testing.T) {
	pos := board.NewPosition()
	mo := NewMoveOrderer()

	legal := pos.GenerateLegalMoves()
	legalSet := make(map[board.Move]bool, legal.Len())
	for i := 0; i < legal.Len(); i++ {
		legalSet[legal.Get(i)] = true
	}

	ttMove := legal.Get(0)
	picker := NewMovePicker(pos, mo, ttMove, 0, false)

	seen := make(map[board.Move]bool)
	for {
		m := picker.Next()
		if m == board.NoMove {
			break
		}
		if !legalSet[m] {
			t.Errorf("picker yielded illegal move %s", m.String())
		}
		if seen[m] {
			t.Errorf("picker yielded duplicate move %s", m.String())
		}
		seen[m] = true
	}

	if len(seen) != len(legalSet) {
		t.Errorf("picker yielded %d moves, want %d", len(seen), len(legalSet))
	}
}

// TestQuiescencePickerOnlyCapturesAndGoodSEE checks that the quiescence
// variant never yields a quiet move, and never yields a capture with
// SEE < 0 (those are pruned outright per §4.D).
func TestQuiescencePickerOnlyCapturesAndGoodSEE(t *testing.T) {
	pos, err := board.ParseFEN("r3k2r/pp3ppp/2n1pn2/q1pp4/3P4/2N1PN2/PPPQ1PPP/R3K2R w KQkq - 0 1")
	if err != nil {
		t.Fatalf("ParseFEN: %v", err)
	}
	mo := NewMoveOrderer()

	picker := NewQuiescencePicker(pos, mo, board.NoMove, pos.InCheck())
	for {
		m := picker.Next()
		if m == board.NoMove {
			break
		}
		if !picker.isCapture(m) && !pos.InCheck() {
			t.Errorf("quiescence picker yielded a quiet move %s", m.String())
		}
		if see := SEE(pos, m); see < 0 {
			t.Errorf("quiescence picker yielded losing capture %s (SEE=%d)", m.String(), see)
		}
	}
}
