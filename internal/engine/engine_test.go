package engine

import (
	"testing"
	"time"

	"github.com/tantabus/tantabus/internal/board"
	"github.com/tantabus/tantabus/internal/nnue"
)

func testNet() *nnue.Network {
	return nnue.InitRandom(1)
}

func TestSearchBasicReturnsLegalMove(t *testing.T) {
	pos := board.NewPosition()
	eng := NewEngine(16, testNet())

	move := eng.Search(pos, nil, UCILimits{Depth: 5})
	if move == board.NoMove {
		t.Fatal("search returned NoMove for starting position")
	}

	legal := pos.GenerateLegalMoves()
	found := false
	for i := 0; i < legal.Len(); i++ {
		if legal.Get(i) == move {
			found = true
			break
		}
	}
	if !found {
		t.Errorf("search returned %s, not a legal move", move.String())
	}
}

// TestSearchDeterministicSingleThread checks that, with one thread, the same
// position searched to the same fixed depth twice returns the same move:
// single-threaded search has no racy TT interaction to diverge it.
func TestSearchDeterministicSingleThread(t *testing.T) {
	pos := board.NewPosition()
	net := testNet()

	eng1 := NewEngine(16, net)
	move1 := eng1.Search(pos, nil, UCILimits{Depth: 6})

	eng2 := NewEngine(16, net)
	move2 := eng2.Search(pos, nil, UCILimits{Depth: 6})

	if move1 != move2 {
		t.Errorf("single-threaded search not deterministic: %s vs %s", move1, move2)
	}
}

// TestSearchFindsMateInOne gives the engine a position with a forced mate in
// one and checks it finds a mating move.
func TestSearchFindsMateInOne(t *testing.T) {
	// Back-rank mate: white rook delivers mate next move.
	pos, err := board.ParseFEN("6k1/5ppp/8/8/8/8/8/R3K3 w - - 0 1")
	if err != nil {
		t.Fatalf("ParseFEN: %v", err)
	}

	eng := NewEngine(16, testNet())
	move := eng.Search(pos, nil, UCILimits{Depth: 4})
	if move == board.NoMove {
		t.Fatal("search returned NoMove")
	}

	undo := pos.MakeMove(move)
	defer pos.UnmakeMove(move, undo)

	if !pos.InCheck() {
		t.Fatal("chosen move does not give check")
	}
	if pos.GenerateLegalMoves().Len() != 0 {
		t.Errorf("chosen move %s is not mate", move.String())
	}
}

func TestSearchRespectsDepthLimit(t *testing.T) {
	pos := board.NewPosition()
	eng := NewEngine(16, testNet())

	var maxDepthSeen int
	eng.OnInfo = func(info InfoLine) {
		if info.Depth > maxDepthSeen {
			maxDepthSeen = info.Depth
		}
	}

	eng.Search(pos, nil, UCILimits{Depth: 3})
	if maxDepthSeen > 3 {
		t.Errorf("search exceeded requested depth: reached %d", maxDepthSeen)
	}
}

func TestStopAbortsSearchPromptly(t *testing.T) {
	pos := board.NewPosition()
	eng := NewEngine(16, testNet())

	done := make(chan board.Move, 1)
	go func() {
		done <- eng.Search(pos, nil, UCILimits{Infinite: true})
	}()

	time.Sleep(20 * time.Millisecond)
	eng.Stop()

	select {
	case move := <-done:
		if move == board.NoMove {
			t.Error("aborted search returned NoMove")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("search did not return within 2s of Stop()")
	}
}

func TestPerftStartingPosition(t *testing.T) {
	eng := NewEngine(16, testNet())
	pos := board.NewPosition()

	// Known perft counts for the standard starting position.
	cases := []struct {
		depth int
		want  uint64
	}{
		{1, 20},
		{2, 400},
		{3, 8902},
	}

	for _, c := range cases {
		got := eng.Perft(pos, c.depth)
		if got != c.want {
			t.Errorf("perft(%d) = %d, want %d", c.depth, got, c.want)
		}
	}
}
