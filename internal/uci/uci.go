// Package uci implements the Universal Chess Interface protocol loop: a
// line-oriented stdin/stdout command parser driving an *engine.Engine.
package uci

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/tantabus/tantabus/internal/board"
	"github.com/tantabus/tantabus/internal/engine"
)

// defaultMoveOverhead is the UCI "MoveOverhead" option default (§6): time in
// milliseconds reserved per move for network/GUI latency, subtracted from
// the time budget before the time manager ever sees it.
const defaultMoveOverhead = 10 * time.Millisecond

// UCI drives an engine.Engine from UCI protocol commands read off stdin.
type UCI struct {
	engine   *engine.Engine
	position *board.Position

	// positionHashes holds the Zobrist hash of every position from the
	// `position` command's start position through the root, oldest first,
	// for repetition detection inside the search.
	positionHashes []uint64

	chess960     bool
	moveOverhead time.Duration

	searching     bool
	searchDone    chan struct{}
	stopRequested atomic.Bool
}

// New creates a UCI handler driving eng, starting from the standard position.
func New(eng *engine.Engine) *UCI {
	return &UCI{
		engine:       eng,
		position:     board.NewPosition(),
		moveOverhead: defaultMoveOverhead,
	}
}

// Run reads commands from stdin until "quit" or EOF.
func (u *UCI) Run() {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		fields := strings.Fields(line)
		cmd, args := fields[0], fields[1:]

		switch cmd {
		case "uci":
			u.handleUCI()
		case "isready":
			fmt.Println("readyok")
		case "ucinewgame":
			u.handleNewGame()
		case "position":
			u.handlePosition(args)
		case "go":
			u.handleGo(args)
		case "stop":
			u.handleStop()
		case "quit":
			u.handleQuit()
		case "setoption":
			u.handleSetOption(args)
		case "d":
			fmt.Println(u.position.String())
		case "perft":
			u.handlePerft(args)
		}
		// Any other line, including malformed ones, is silently ignored
		// and the loop continues — per §7's protocol-error handling.
	}
}

// handleUCI responds to "uci": identity, the four supported options, then
// uciok.
func (u *UCI) handleUCI() {
	fmt.Println("id name Tantabus")
	fmt.Println("id author Tantabus Authors")
	fmt.Println()
	fmt.Printf("option name Hash type spin default %d min 1 max 4096\n", engine.DefaultHashMB)
	fmt.Println("option name Threads type spin default 1 min 1 max 256")
	fmt.Println("option name UCI_Chess960 type check default false")
	fmt.Println("option name MoveOverhead type spin default 10 min 0 max 5000")
	fmt.Println("uciok")
}

// handleNewGame clears the TT and every thread's move ordering state.
func (u *UCI) handleNewGame() {
	u.engine.Clear()
	u.position = board.NewPosition()
	u.positionHashes = []uint64{u.position.Hash}
}

// handleSetOption applies "setoption name <N> value <V>".
func (u *UCI) handleSetOption(args []string) {
	var name, value string
	var readingName, readingValue bool

	for _, arg := range args {
		switch arg {
		case "name":
			readingName, readingValue = true, false
		case "value":
			readingName, readingValue = false, true
		default:
			if readingName {
				name = appendToken(name, arg)
			} else if readingValue {
				value = appendToken(value, arg)
			}
		}
	}

	switch strings.ToLower(name) {
	case "hash":
		if mb, err := strconv.Atoi(value); err == nil && mb >= 1 {
			u.engine.Resize(mb)
		}
	case "threads":
		if n, err := strconv.Atoi(value); err == nil && n >= 1 {
			u.engine.SetThreads(n)
		}
	case "uci_chess960":
		u.chess960 = strings.EqualFold(value, "true")
	case "moveoverhead":
		if ms, err := strconv.Atoi(value); err == nil && ms >= 0 {
			u.moveOverhead = time.Duration(ms) * time.Millisecond
		}
	}
}

func appendToken(s, tok string) string {
	if s == "" {
		return tok
	}
	return s + " " + tok
}

// handlePosition parses "position {startpos|fen <fen>} [moves <m>...]".
func (u *UCI) handlePosition(args []string) {
	if len(args) == 0 {
		return
	}

	var moveStart int
	switch args[0] {
	case "startpos":
		u.position = board.NewPosition()
		moveStart = 1
	case "fen":
		fenEnd := len(args)
		for i := 1; i < len(args); i++ {
			if args[i] == "moves" {
				fenEnd = i
				break
			}
		}
		pos, err := board.ParseFEN(strings.Join(args[1:fenEnd], " "))
		if err != nil {
			return
		}
		u.position = pos
		moveStart = fenEnd
	default:
		return
	}

	hashes := []uint64{u.position.Hash}
	for i := moveStart; i < len(args); i++ {
		if args[i] == "moves" {
			continue
		}
		m := u.parseMove(args[i])
		if m == board.NoMove {
			return
		}
		u.position.MakeMove(m)
		hashes = append(hashes, u.position.Hash)
	}
	u.positionHashes = hashes
}

// parseMove converts one UCI long-algebraic move token to a legal board.Move
// in the current position, translating Chess960 king-captures-rook notation
// to the board package's internal king-destination castling encoding first.
func (u *UCI) parseMove(s string) board.Move {
	if len(s) < 4 {
		return board.NoMove
	}

	from, errFrom := board.ParseSquare(s[0:2])
	to, errTo := board.ParseSquare(s[2:4])
	if errFrom != nil || errTo != nil {
		return board.NoMove
	}

	if u.chess960 {
		if dest, isCastle := u.chess960CastleDest(from, to); isCastle {
			to = dest
		}
	}

	var promo board.PieceType
	if len(s) >= 5 {
		switch s[4] {
		case 'q':
			promo = board.Queen
		case 'r':
			promo = board.Rook
		case 'b':
			promo = board.Bishop
		case 'n':
			promo = board.Knight
		}
	}

	moves := u.position.GenerateLegalMoves()
	for i := 0; i < moves.Len(); i++ {
		m := moves.Get(i)
		if m.From() != from || m.To() != to {
			continue
		}
		if promo != 0 {
			if m.IsPromotion() && m.Promotion() == promo {
				return m
			}
			continue
		}
		if !m.IsPromotion() {
			return m
		}
	}
	return board.NoMove
}

// chess960CastleDest reports whether (from, to) is a king-captures-own-rook
// move and, if so, the king's actual destination square — the board
// package's internal castling encoding, since it only ever generates
// castling moves with standard start squares (e1/e8 king, a1/a8/h1/h8 rook).
func (u *UCI) chess960CastleDest(from, to board.Square) (board.Square, bool) {
	king := u.position.PieceAt(from)
	if king == board.NoPiece || king.Type() != board.King {
		return board.NoSquare, false
	}
	rook := u.position.PieceAt(to)
	if rook == board.NoPiece || rook.Type() != board.Rook || rook.Color() != king.Color() {
		return board.NoSquare, false
	}

	kingside := to > from
	switch king.Color() {
	case board.White:
		if kingside {
			return board.G1, true
		}
		return board.C1, true
	default:
		if kingside {
			return board.G8, true
		}
		return board.C8, true
	}
}

// chess960CastleOrigin is the inverse of chess960CastleDest, used when
// printing a castling move in Chess960 notation: given the king's actual
// destination, returns the rook's origin square to print as the move's "to".
func chess960CastleOrigin(color board.Color, dest board.Square) board.Square {
	switch {
	case color == board.White && dest == board.G1:
		return board.H1
	case color == board.White && dest == board.C1:
		return board.A1
	case color == board.Black && dest == board.G8:
		return board.H8
	default:
		return board.A8
	}
}

// moveString renders m in UCI long algebraic notation, translating castling
// to Chess960 king-captures-rook form when u.chess960 is set.
func (u *UCI) moveString(pos *board.Position, m board.Move) string {
	if u.chess960 && m.IsCastling() {
		color := pos.PieceAt(m.From()).Color()
		origin := chess960CastleOrigin(color, m.To())
		return m.From().String() + origin.String()
	}
	return m.String()
}

// goOptions holds one "go" command's parsed arguments.
type goOptions struct {
	depth     int
	nodes     uint64
	moveTime  time.Duration
	infinite  bool
	wtime     time.Duration
	btime     time.Duration
	winc      time.Duration
	binc      time.Duration
	movesToGo int
}

func (u *UCI) parseGoOptions(args []string) goOptions {
	var o goOptions
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "depth":
			i++
			if i < len(args) {
				o.depth, _ = strconv.Atoi(args[i])
			}
		case "nodes":
			i++
			if i < len(args) {
				o.nodes, _ = strconv.ParseUint(args[i], 10, 64)
			}
		case "movetime":
			i++
			if i < len(args) {
				ms, _ := strconv.Atoi(args[i])
				o.moveTime = time.Duration(ms) * time.Millisecond
			}
		case "infinite":
			o.infinite = true
		case "wtime":
			i++
			if i < len(args) {
				ms, _ := strconv.Atoi(args[i])
				o.wtime = time.Duration(ms) * time.Millisecond
			}
		case "btime":
			i++
			if i < len(args) {
				ms, _ := strconv.Atoi(args[i])
				o.btime = time.Duration(ms) * time.Millisecond
			}
		case "winc":
			i++
			if i < len(args) {
				ms, _ := strconv.Atoi(args[i])
				o.winc = time.Duration(ms) * time.Millisecond
			}
		case "binc":
			i++
			if i < len(args) {
				ms, _ := strconv.Atoi(args[i])
				o.binc = time.Duration(ms) * time.Millisecond
			}
		case "movestogo":
			i++
			if i < len(args) {
				o.movesToGo, _ = strconv.Atoi(args[i])
			}
		}
	}
	return o
}

// handleGo starts a search in its own goroutine so "stop" stays responsive.
func (u *UCI) handleGo(args []string) {
	if len(args) > 0 && args[0] == "perft" {
		u.handlePerft(args[1:])
		return
	}
	opts := u.parseGoOptions(args)

	limits := engine.UCILimits{
		Depth:        opts.depth,
		Nodes:        opts.nodes,
		MoveTime:     opts.moveTime,
		Infinite:     opts.infinite,
		MovesToGo:    opts.movesToGo,
		MoveOverhead: u.moveOverhead,
	}
	limits.Time[board.White] = opts.wtime
	limits.Time[board.Black] = opts.btime
	limits.Inc[board.White] = opts.winc
	limits.Inc[board.Black] = opts.binc

	u.engine.OnInfo = func(info engine.InfoLine) {
		u.sendInfo(info)
	}

	u.searching = true
	u.stopRequested.Store(false)
	u.searchDone = make(chan struct{})

	pos := u.position.Copy()
	history := u.positionHashes

	go func() {
		defer close(u.searchDone)

		move := u.engine.Search(pos, history, limits)
		u.searching = false

		root := u.position.Copy()
		legal := root.GenerateLegalMoves()
		for i := 0; i < legal.Len(); i++ {
			if legal.Get(i) == move {
				fmt.Printf("bestmove %s\n", u.moveString(root, move))
				return
			}
		}

		if legal.Len() > 0 {
			fmt.Printf("bestmove %s\n", u.moveString(root, legal.Get(0)))
		} else {
			fmt.Println("bestmove 0000")
		}
	}()
}

// sendInfo prints one "info ..." line, re-validating the PV against a
// scratch copy of the root position move by move and truncating at the
// first illegal move, repeated position, or end of the reported PV — the
// TT and the search's own triangular PV table can both race with an abort
// mid-store, so a stale or illegal move must never reach the GUI.
func (u *UCI) sendInfo(info engine.InfoLine) {
	parts := []string{
		fmt.Sprintf("depth %d", info.Depth),
		fmt.Sprintf("seldepth %d", info.SelDepth),
	}
	if info.Mate {
		parts = append(parts, fmt.Sprintf("score mate %d", info.MateIn))
	} else {
		parts = append(parts, fmt.Sprintf("score cp %d", info.Score))
	}
	parts = append(parts,
		fmt.Sprintf("nodes %d", info.Nodes),
		fmt.Sprintf("nps %d", info.NPS),
		fmt.Sprintf("hashfull %d", info.HashFull),
		fmt.Sprintf("time %d", info.Time.Milliseconds()),
	)

	if len(info.PV) > 0 {
		scratch := u.position.Copy()
		seen := map[uint64]bool{scratch.Hash: true}
		pvStrings := make([]string, 0, len(info.PV))
		for _, m := range info.PV {
			legal := scratch.GenerateLegalMoves()
			found := false
			for i := 0; i < legal.Len(); i++ {
				if legal.Get(i) == m {
					found = true
					break
				}
			}
			if !found {
				break
			}
			pvStrings = append(pvStrings, u.moveString(scratch, m))
			scratch.MakeMove(m)
			if seen[scratch.Hash] {
				break
			}
			seen[scratch.Hash] = true
		}
		if len(pvStrings) > 0 {
			parts = append(parts, "pv "+strings.Join(pvStrings, " "))
		}
	}

	fmt.Printf("info %s\n", strings.Join(parts, " "))
}

// handleStop requests the search stop and blocks until bestmove is sent,
// per §6's contract that `stop` is answered with `bestmove`.
func (u *UCI) handleStop() {
	if u.searching {
		u.stopRequested.Store(true)
		u.engine.Stop()
		<-u.searchDone
	}
}

func (u *UCI) handleQuit() {
	u.handleStop()
	os.Exit(0)
}

// handlePerft runs a perft test from the current position (a debugging
// command, not part of the UCI command table in §6).
func (u *UCI) handlePerft(args []string) {
	depth := 5
	if len(args) > 0 {
		depth, _ = strconv.Atoi(args[0])
	}

	start := time.Now()
	nodes := u.engine.Perft(u.position, depth)
	elapsed := time.Since(start)

	fmt.Printf("Nodes: %d\n", nodes)
	fmt.Printf("Time: %v\n", elapsed)
	if elapsed > 0 {
		fmt.Printf("NPS: %.0f\n", float64(nodes)/elapsed.Seconds())
	}
}
