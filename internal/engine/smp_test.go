package engine

import (
	"testing"
	"time"

	"github.com/tantabus/tantabus/internal/board"
)

// TestAbortResponsiveness checks that once SharedState.Abort is set, an
// in-flight single-thread search stops polling and returns well under the
// coarse 2s bound TestStopAbortsSearchPromptly uses, since the node-count
// poll granularity (every ~2048 nodes, worker.go's stopped()) is far finer
// than any nominal per-node search cost.
func TestAbortResponsiveness(t *testing.T) {
	pos := board.NewPosition()
	net := testNet()
	eng := NewEngine(16, net)

	started := make(chan struct{})
	done := make(chan board.Move, 1)
	eng.OnInfo = func(info InfoLine) {
		select {
		case started <- struct{}{}:
		default:
		}
	}

	go func() {
		done <- eng.Search(pos, nil, UCILimits{Infinite: true})
	}()

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("search never reported an iteration within 1s")
	}

	abortAt := time.Now()
	eng.Stop()

	select {
	case move := <-done:
		elapsed := time.Since(abortAt)
		if move == board.NoMove {
			t.Error("aborted search returned NoMove")
		}
		if elapsed > 200*time.Millisecond {
			t.Errorf("search took %v to return after Stop(), want well under 200ms", elapsed)
		}
	case <-time.After(time.Second):
		t.Fatal("search did not return within 1s of Stop()")
	}
}

// TestMultiThreadAbortResponsiveness checks the same property holds when
// every Lazy SMP worker must independently notice the shared abort flag.
func TestMultiThreadAbortResponsiveness(t *testing.T) {
	pos := board.NewPosition()
	net := testNet()
	eng := NewEngine(16, net)
	eng.SetThreads(4)

	done := make(chan board.Move, 1)
	go func() {
		done <- eng.Search(pos, nil, UCILimits{Infinite: true})
	}()

	time.Sleep(50 * time.Millisecond)
	abortAt := time.Now()
	eng.Stop()

	select {
	case move := <-done:
		elapsed := time.Since(abortAt)
		if move == board.NoMove {
			t.Error("aborted search returned NoMove")
		}
		if elapsed > 500*time.Millisecond {
			t.Errorf("4-thread search took %v to return after Stop(), want well under 500ms", elapsed)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("search did not return within 2s of Stop()")
	}
}
