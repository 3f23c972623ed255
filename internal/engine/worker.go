package engine

import (
	"math"

	"github.com/tantabus/tantabus/internal/board"
	"github.com/tantabus/tantabus/internal/nnue"
)

// lmrTable[depth][moveIndex] is a precomputed logarithmic base reduction,
// R = round(a + ln(depth)*ln(moveIndex)/b), in the shape of a tuned two
// dimensional lookup table rather than a closed-form per-call computation.
var lmrTable [64][64]int

func init() {
	const a, b = 0.2, 2.4
	for d := 1; d < 64; d++ {
		for m := 1; m < 64; m++ {
			lmrTable[d][m] = int(math.Round(a + math.Log(float64(d))*math.Log(float64(m))/b))
		}
	}
}

// Worker is one Lazy SMP search thread. Everything here is thread-local
// except shared, which every worker of one search borrows.
type Worker struct {
	id int

	pos     *board.Position
	orderer *MoveOrderer
	eval    *nnue.Evaluator

	nodes          uint64
	lastPolled     uint64
	pv             PVTable

	evalStack      [MaxPly]int
	killerExcluded [MaxPly]board.Move

	posHistory    []uint64
	rootPosHashes []uint64

	shared    *SharedState
	tm        *TimeManager
	nodeLimit uint64

	resultCh chan<- WorkerResult
	depth    int
	seldepth int
}

// WorkerResult reports the outcome of one completed iterative-deepening
// iteration by a single worker.
type WorkerResult struct {
	WorkerID int
	Depth    int
	SelDepth int
	Score    int
	Move     board.Move
	PV       []board.Move
	Nodes    uint64
}

// NewWorker creates a search thread sharing shared state with its siblings.
// net supplies the NNUE evaluator; each worker gets its own Evaluator
// instance (and accumulator stack) for thread safety.
func NewWorker(id int, shared *SharedState, net *nnue.Network) *Worker {
	return &Worker{
		id:      id,
		orderer: NewMoveOrderer(),
		eval:    nnue.NewEvaluator(net),
		shared:  shared,
	}
}

func (w *Worker) ID() int { return w.id }

func (w *Worker) Nodes() uint64 { return w.nodes }

// Reset clears per-thread move ordering state for a new game (`ucinewgame`).
func (w *Worker) Reset() {
	w.nodes = 0
	w.lastPolled = 0
	w.orderer.Clear()
}

// NewSearch prepares this worker for one top-level search (one `go`
// command): the node counter restarts at zero and move ordering state decays
// rather than clears, per §4.G's start-of-search sequence.
func (w *Worker) NewSearch() {
	w.nodes = 0
	w.lastPolled = 0
	w.orderer.Decay()
}

// SetRootHistory seeds repetition detection with the game's move history.
func (w *Worker) SetRootHistory(hashes []uint64) {
	w.rootPosHashes = make([]uint64, len(hashes))
	copy(w.rootPosHashes, hashes)
}

func (w *Worker) SetResultChannel(ch chan<- WorkerResult) {
	w.resultCh = ch
}

// SetLimits installs this iteration's time manager and node budget (0 = no
// node limit); both are read-only from the worker's point of view.
func (w *Worker) SetLimits(tm *TimeManager, nodeLimit uint64) {
	w.tm = tm
	w.nodeLimit = nodeLimit
}

// InitSearch copies pos for this thread's exclusive use and rebuilds the
// NNUE accumulator from scratch at the root.
func (w *Worker) InitSearch(pos *board.Position) {
	w.pos = pos.Copy()
	w.eval.Reset(w.pos)

	w.posHistory = make([]uint64, 0, len(w.rootPosHashes)+MaxPly)
	w.posHistory = append(w.posHistory, w.rootPosHashes...)
	// Add the root's hash unless the supplied history already ends with it,
	// so that stepping back two entries always reaches the same side to move.
	if n := len(w.posHistory); n == 0 || w.posHistory[n-1] != w.pos.Hash {
		w.posHistory = append(w.posHistory, w.pos.Hash)
	}

	w.seldepth = 0
}

// SearchDepth runs one iterative-deepening iteration at depth within
// [alpha, beta] and reports the result on the worker's channel, if set.
func (w *Worker) SearchDepth(depth, alpha, beta int) (board.Move, int) {
	w.depth = depth

	score := w.negamax(depth, 0, alpha, beta)

	var bestMove board.Move
	if w.pv.length[0] > 0 {
		bestMove = w.pv.moves[0][0]
	}
	if bestMove == board.NoMove && !w.shared.Abort() {
		moves := w.pos.GenerateLegalMoves()
		if moves.Len() > 0 {
			bestMove = moves.Get(0)
		}
	}

	if w.resultCh != nil && !w.shared.Abort() {
		pv := make([]board.Move, w.pv.length[0])
		copy(pv, w.pv.moves[0][:w.pv.length[0]])
		w.resultCh <- WorkerResult{
			WorkerID: w.id,
			Depth:    depth,
			SelDepth: w.seldepth,
			Score:    score,
			Move:     bestMove,
			PV:       pv,
			Nodes:    w.nodes,
		}
	}

	return bestMove, score
}

func (w *Worker) evaluate() int {
	return w.eval.Evaluate(w.pos.SideToMove)
}

// stopped is the node-poll boundary: called every 2048 nodes from both
// negamax and quiescence. It folds this worker's node count into the shared
// counter and decides whether the search must abort — either because another
// worker/the coordinator already requested it, a shared node budget was
// exhausted, or this worker's own hard time deadline has passed. Setting the
// flag here (rather than only reading it) is what satisfies spec's "worker
// polls every ~2048 nodes: if elapsed >= hard -> set abort".
func (w *Worker) stopped() bool {
	if w.nodes&2047 != 0 {
		return w.shared.Abort()
	}

	delta := w.nodes - w.lastPolled
	w.lastPolled = w.nodes
	total := w.shared.AddNodes(delta)

	if w.shared.Abort() {
		return true
	}
	if w.nodeLimit > 0 && total >= w.nodeLimit {
		w.shared.SetAbort()
		return true
	}
	if w.tm != nil && w.tm.HardExceeded() {
		w.shared.SetAbort()
		return true
	}
	return false
}

// GetPV returns the principal variation line from the most recent search.
func (w *Worker) GetPV() []board.Move {
	pv := make([]board.Move, w.pv.length[0])
	copy(pv, w.pv.moves[0][:w.pv.length[0]])
	return pv
}

// isDraw reports 50-move, insufficient material, and repetition draws.
// Repetition walks posHistory every other ply (same side to move), skipping
// the current position's own entry, matching the search's own ancestor
// stack rather than the full game history beyond the last irreversible move.
func (w *Worker) isDraw() bool {
	if w.pos.HalfMoveClock >= 100 {
		return true
	}
	if w.pos.IsInsufficientMaterial() {
		return true
	}

	n := len(w.posHistory)
	if n < 5 {
		return false
	}
	current := w.posHistory[n-1]
	limit := n - 1 - int(w.pos.HalfMoveClock)
	if limit < 0 {
		limit = 0
	}
	for i := n - 3; i >= limit; i -= 2 {
		if w.posHistory[i] == current {
			return true
		}
	}
	return false
}

// pushMove applies a move to the thread-local position, accumulator, and
// position-history stack. Returns the undo info; callers must check Valid.
func (w *Worker) pushMove(ply int, m board.Move) board.UndoInfo {
	captured := board.NoPiece
	if m.IsCapture(w.pos) {
		if m.IsEnPassant() {
			captured = board.NewPiece(board.Pawn, w.pos.SideToMove.Other())
		} else {
			captured = w.pos.PieceAt(m.To())
		}
	}
	movedPiece := w.pos.PieceAt(m.From())
	us := w.pos.SideToMove

	acc := w.eval.Push()
	_ = acc

	undo := w.pos.MakeMove(m)
	if !undo.Valid {
		w.eval.Pop()
		return undo
	}

	if captured != board.NoPiece {
		capSq := m.To()
		if m.IsEnPassant() {
			if us == board.White {
				capSq = m.To() - 8
			} else {
				capSq = m.To() + 8
			}
		}
		w.eval.Remove(captured.Color(), captured.Type(), capSq)
	}
	if m.IsPromotion() {
		w.eval.Remove(us, board.Pawn, m.From())
		w.eval.Add(us, m.Promotion(), m.To())
	} else {
		w.eval.Remove(us, movedPiece.Type(), m.From())
		w.eval.Add(us, movedPiece.Type(), m.To())
	}
	if m.IsCastling() {
		from, to := m.From(), m.To()
		var rookFrom, rookTo board.Square
		if to > from {
			rookFrom, rookTo = from+3, from+1
		} else {
			rookFrom, rookTo = from-4, from-1
		}
		w.eval.Remove(us, board.Rook, rookFrom)
		w.eval.Add(us, board.Rook, rookTo)
	}

	w.posHistory = append(w.posHistory, w.pos.Hash)
	return undo
}

func (w *Worker) popMove(m board.Move, undo board.UndoInfo) {
	w.posHistory = w.posHistory[:len(w.posHistory)-1]
	w.pos.UnmakeMove(m, undo)
	w.eval.Pop()
}

// negamax is the search core. Step numbers in comments mirror the ten
// contractual steps of the negamax/PVS body: bounds and cut checks, TT
// probe, depth==0 dispatch to quiescence, static eval and pruning, internal
// iterative reduction, the move loop with per-move pruning/extensions/LMR
// and the PVS re-search ladder, and end-of-moves handling.
func (w *Worker) negamax(depth, ply int, alpha, beta int) int {
	isPV := beta-alpha > 1

	// Step 1: bounds, cut checks, draw and mate-distance pruning.
	if ply >= MaxPly-1 {
		return w.evaluate()
	}
	if w.stopped() {
		return 0
	}
	w.nodes++
	if ply > w.seldepth {
		w.seldepth = ply
	}
	w.pv.length[ply] = ply

	if ply > 0 {
		if w.isDraw() {
			return 0
		}
		// Mate distance pruning: no line from here can beat a shorter mate
		// already proven above this node.
		matedScore := -MateScore + ply
		mateScore := MateScore - ply - 1
		if matedScore > alpha {
			alpha = matedScore
		}
		if mateScore < beta {
			beta = mateScore
		}
		if alpha >= beta {
			return alpha
		}
	}

	inCheck := w.pos.InCheck()
	// Check extension folded in before the depth==0 cutoff.
	if inCheck {
		depth++
	}

	// Step 2: TT probe.
	var ttMove board.Move
	ttEntry, found := w.shared.tt.Probe(w.pos.Hash)
	if found {
		ttMove = ttEntry.BestMove
		if ttMove != board.NoMove {
			p := w.pos.PieceAt(ttMove.From())
			if p == board.NoPiece || p.Color() != w.pos.SideToMove {
				ttMove = board.NoMove
			}
		}
		if !isPV && int(ttEntry.Depth) >= depth {
			score := AdjustScoreFromTT(int(ttEntry.Score), ply)
			switch ttEntry.Flag {
			case TTExact:
				return score
			case TTLowerBound:
				if score >= beta {
					return score
				}
			case TTUpperBound:
				if score <= alpha {
					return score
				}
			}
		}
	}

	// Step 3: quiescence at the horizon.
	if depth <= 0 {
		return w.quiescence(ply, alpha, beta)
	}

	// Step 4: static eval, used by every pruning heuristic below.
	staticEval := w.evaluate()
	w.evalStack[ply] = staticEval
	improving := ply >= 2 && !inCheck && staticEval > w.evalStack[ply-2]

	if !inCheck && !isPV {
		// Reverse futility pruning.
		if depth <= rfpMaxDepth {
			margin := rfpMargin * depth
			if !improving {
				margin -= rfpMargin / 4
			}
			if staticEval-margin >= beta {
				return staticEval
			}
		}

		// Null move pruning.
		if depth >= nmpMinDepth && ply > 0 && w.pos.HasNonPawnMaterial() && staticEval >= beta {
			r := 3 + depth/4
			if d := depth - 1 - r; d >= 0 {
				nullUndo := w.pos.MakeNullMove()
				score := -w.negamax(depth-1-r, ply+1, -beta, -beta+1)
				w.pos.UnmakeNullMove(nullUndo)
				if score >= beta {
					return beta
				}
			}
		}
	}

	// Step 5: internal iterative reduction — a plain depth decrement when
	// this node has no TT move to seed ordering with.
	if depth >= iirMinDepth && ttMove == board.NoMove && (isPV || !inCheck) {
		depth--
	}

	// Futility pruning flag for the move loop below.
	futilityPrune := !inCheck && !isPV && depth <= fpMaxDepth && staticEval+fpBase+fpMargin*depth <= alpha

	picker := NewMovePicker(w.pos, w.orderer, ttMove, ply, inCheck)

	bestScore := -Infinity
	bestMove := board.NoMove
	flag := TTUpperBound
	movesSearched := 0
	quietsSearched := make([]board.Move, 0, 32)
	capturesSearched := make([]board.Move, 0, 16)

	for {
		move := picker.Next()
		if move == board.NoMove {
			break
		}

		isCapture := move.IsCapture(w.pos)
		isPromotion := move.IsPromotion()
		isQuiet := !isCapture && !isPromotion

		// Step 6: per-move pruning (skipped for the first move and in PV/check
		// nodes where safety margins are tighter).
		if ply > 0 && movesSearched > 0 && !isPV && !inCheck && bestScore > -MateScore+MaxPly {
			if isQuiet {
				if futilityPrune {
					continue
				}
				if depth <= len(lmpThreshold)-1 {
					threshold := lmpThreshold[depth]
					if !improving {
						threshold = threshold * 2 / 3
					}
					if movesSearched >= threshold {
						picker.SkipQuiets()
						continue
					}
				}
			}
			if isCapture && depth <= seePruneDepth {
				margin := seeCapMargin * depth
				if SEE(w.pos, move) < margin {
					continue
				}
			}
		}

		undo := w.pushMove(ply, move)
		if !undo.Valid {
			continue
		}
		movesSearched++
		if isQuiet {
			quietsSearched = append(quietsSearched, move)
		} else if isCapture {
			capturesSearched = append(capturesSearched, move)
		}

		newDepth := depth - 1

		var score int
		if movesSearched == 1 {
			// Step 7: first move searched full-width (PVS).
			score = -w.negamax(newDepth, ply+1, -beta, -alpha)
		} else {
			// Step 8: late move reduction for quiet, non-check later moves.
			reduction := 0
			if depth >= 3 && movesSearched > 3 && isQuiet && !inCheck {
				d := depth
				if d > 63 {
					d = 63
				}
				m := movesSearched
				if m > 63 {
					m = 63
				}
				reduction = lmrTable[d][m]
				if !isPV {
					reduction++
				}
				if !improving {
					reduction++
				}
				histScore := w.orderer.GetHistoryScore(w.pos.SideToMove.Other(), move)
				reduction -= histScore / 4096
				if reduction < 0 {
					reduction = 0
				}
				if reduction > newDepth-1 {
					reduction = newDepth - 1
				}
				if reduction < 0 {
					reduction = 0
				}
			}

			// Step 9: PVS null-window search with re-search escalation.
			score = -w.negamax(newDepth-reduction, ply+1, -alpha-1, -alpha)
			if score > alpha && reduction > 0 {
				score = -w.negamax(newDepth, ply+1, -alpha-1, -alpha)
			}
			if score > alpha && score < beta {
				score = -w.negamax(newDepth, ply+1, -beta, -alpha)
			}
		}

		w.popMove(move, undo)

		if w.shared.Abort() {
			return 0
		}

		if score > bestScore {
			bestScore = score
			bestMove = move

			if score > alpha {
				alpha = score
				flag = TTExact

				w.pv.moves[ply][ply] = move
				for j := ply + 1; j < w.pv.length[ply+1]; j++ {
					w.pv.moves[ply][j] = w.pv.moves[ply+1][j]
				}
				w.pv.length[ply] = w.pv.length[ply+1]
			}
		}

		if score >= beta {
			flag = TTLowerBound
			w.recordCutoff(move, ply, depth, isQuiet, isCapture, quietsSearched, capturesSearched)
			break
		}
	}

	// Step 10: end-of-moves handling — checkmate, stalemate, or a normal
	// fail-low/exact result stored to the table.
	if movesSearched == 0 {
		if inCheck {
			return -MateScore + ply
		}
		return 0
	}

	w.shared.tt.Store(w.pos.Hash, depth, AdjustScoreToTT(bestScore, ply), flag, bestMove)
	return bestScore
}

// recordCutoff updates killers/history on a beta cutoff: the cutoff move is
// rewarded, every quiet/capture move tried before it at this node is
// penalized, per the gravity formula's symmetric good/bad update.
func (w *Worker) recordCutoff(move board.Move, ply, depth int, isQuiet, isCapture bool, quiets, captures []board.Move) {
	side := w.pos.SideToMove
	if isQuiet {
		w.orderer.UpdateKillers(move, ply)
		w.orderer.UpdateHistory(side, move, depth, true)
		for _, m := range quiets {
			if m != move {
				w.orderer.UpdateHistory(side, m, depth, false)
			}
		}
	} else if isCapture {
		attacker := w.pos.PieceAt(move.From())
		victim := w.captureVictimType(move)
		w.orderer.UpdateCaptureHistory(attacker, move.To(), victim, depth, true)
	}
	for _, m := range captures {
		if m != move {
			attacker := w.pos.PieceAt(m.From())
			victim := w.captureVictimType(m)
			w.orderer.UpdateCaptureHistory(attacker, m.To(), victim, depth, false)
		}
	}
}

func (w *Worker) captureVictimType(m board.Move) board.PieceType {
	if m.IsEnPassant() {
		return board.Pawn
	}
	p := w.pos.PieceAt(m.To())
	if p == board.NoPiece {
		return board.Pawn
	}
	return p.Type()
}

// quiescence searches captures (and, if in check, evasions) until the
// position is quiet, to avoid the horizon effect at the end of the main
// search. SEE < 0 captures are pruned outright by the quiescence move
// picker rather than explored and discarded.
func (w *Worker) quiescence(ply, alpha, beta int) int {
	if ply >= MaxPly-1 {
		return w.evaluate()
	}
	if w.stopped() {
		return 0
	}
	w.nodes++
	if ply > w.seldepth {
		w.seldepth = ply
	}

	inCheck := w.pos.InCheck()

	var ttMove board.Move
	ttEntry, found := w.shared.tt.Probe(w.pos.Hash)
	if found {
		ttMove = ttEntry.BestMove
		score := AdjustScoreFromTT(int(ttEntry.Score), ply)
		switch ttEntry.Flag {
		case TTExact:
			return score
		case TTLowerBound:
			if score >= beta {
				return score
			}
		case TTUpperBound:
			if score <= alpha {
				return score
			}
		}
	}

	standPat := -Infinity
	if !inCheck {
		standPat = w.evaluate()
		if standPat >= beta {
			return standPat
		}
		if standPat > alpha {
			alpha = standPat
		}
	}

	picker := NewQuiescencePicker(w.pos, w.orderer, ttMove, inCheck)
	bestScore := standPat
	movesSearched := 0

	for {
		move := picker.Next()
		if move == board.NoMove {
			break
		}

		undo := w.pushMove(ply, move)
		if !undo.Valid {
			continue
		}
		movesSearched++

		score := -w.quiescence(ply+1, -beta, -alpha)
		w.popMove(move, undo)

		if w.shared.Abort() {
			return 0
		}

		if score > bestScore {
			bestScore = score
			if score > alpha {
				alpha = score
			}
		}
		if score >= beta {
			return score
		}
	}

	if inCheck && movesSearched == 0 {
		return -MateScore + ply
	}

	return bestScore
}
