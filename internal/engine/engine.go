package engine

import (
	"github.com/tantabus/tantabus/internal/board"
	"github.com/tantabus/tantabus/internal/nnue"
)

// Default UCI option values (§6). NewEngine starts with DefaultThreads;
// the hash size is NewEngine's ttSizeMB argument, for which
// cmd/tantabus-uci passes DefaultHashMB.
const (
	DefaultHashMB  = 16
	DefaultThreads = 1
)

// Engine is the façade internal/uci drives: one Lazy SMP Coordinator plus
// the NNUE network every worker evaluates with. It owns no UCI- or
// Chess960-specific logic — that translation happens entirely at the UCI
// boundary in internal/uci.
type Engine struct {
	coord *Coordinator

	// OnInfo, if set, is invoked after every iteration worker 0 completes.
	OnInfo func(InfoLine)
}

// NewEngine creates an engine with a ttSizeMB-megabyte hash table, one
// search thread, evaluating with net.
func NewEngine(ttSizeMB int, net *nnue.Network) *Engine {
	e := &Engine{}
	e.coord = NewCoordinator(DefaultThreads, ttSizeMB, net)
	e.coord.OnInfo = func(info InfoLine) {
		if e.OnInfo != nil {
			e.OnInfo(info)
		}
	}
	return e
}

// SetThreads changes the worker pool size (the UCI "Threads" option).
// Must not be called while a search is in flight.
func (e *Engine) SetThreads(n int) {
	e.coord.SetThreads(n)
}

// Threads returns the current worker count.
func (e *Engine) Threads() int {
	return e.coord.Threads()
}

// Resize changes the transposition table's size in megabytes (the UCI
// "Hash" option). Must not be called while a search is in flight.
func (e *Engine) Resize(mb int) {
	e.coord.Resize(mb)
}

// Clear resets the transposition table and every thread's move ordering
// state, for `ucinewgame`.
func (e *Engine) Clear() {
	e.coord.Clear()
}

// HashFull reports transposition table occupancy in permille.
func (e *Engine) HashFull() int {
	return e.coord.HashFull()
}

// Stop requests the in-flight search to return as soon as every worker next
// polls, without waiting for the current iteration to finish.
func (e *Engine) Stop() {
	e.coord.Stop()
}

// Search runs one top-level search from pos to completion — per limits'
// depth/node/time bounds, or until Stop is called — and returns the chosen
// move. history supplies the Zobrist hash of every position since the last
// irreversible move, oldest first, for repetition detection. Search blocks
// the calling goroutine until the search ends; callers that need a
// responsive `stop` command run it in its own goroutine.
func (e *Engine) Search(pos *board.Position, history []uint64, limits UCILimits) board.Move {
	return e.coord.Search(pos, history, limits)
}

// Perft counts leaf nodes reachable in exactly depth plies, for move
// generator validation (the standard "go perft N" debugging command).
func (e *Engine) Perft(pos *board.Position, depth int) uint64 {
	if depth == 0 {
		return 1
	}

	moves := pos.GenerateLegalMoves()
	if depth == 1 {
		return uint64(moves.Len())
	}

	var nodes uint64
	for i := 0; i < moves.Len(); i++ {
		m := moves.Get(i)
		undo := pos.MakeMove(m)
		nodes += e.Perft(pos, depth-1)
		pos.UnmakeMove(m, undo)
	}
	return nodes
}
