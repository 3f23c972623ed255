package engine

import (
	"github.com/tantabus/tantabus/internal/board"
)

// Move ordering priorities, highest first.
const (
	ttMoveScore     = 1 << 30
	goodCaptureBase = 1 << 20
	killerScore1    = 1 << 19
	killerScore2    = (1 << 19) - 1
	badCaptureBase  = -(1 << 20)
)

// HistMax bounds the magnitude of every history/capture-history score; the
// gravity update keeps scores inside [-HistMax, HistMax] without a periodic
// rescale pass.
const HistMax = 16384

// mvvLva[victim][attacker], used only as a tiebreaker within the good- and
// bad-capture stages (SEE*seeWeight+capture-history is the primary key).
var mvvLva = [6][6]int{
	/* P */ {15, 14, 14, 13, 12, 11},
	/* N */ {25, 24, 24, 23, 22, 21},
	/* B */ {35, 34, 34, 33, 32, 31},
	/* R */ {45, 44, 44, 43, 42, 41},
	/* Q */ {55, 54, 54, 53, 52, 51},
	/* K */ {0, 0, 0, 0, 0, 0},
}

// seeWeight is the K factor in SEE*K + captureHistory capture ordering.
const seeWeight = 8

// MoveOrderer holds the per-thread history tables and killer slots that
// drive move ordering. None of this state is shared across threads.
type MoveOrderer struct {
	killers [MaxPly][2]board.Move

	// quiet history, indexed by [side][from][to]
	history [2][64][64]int

	// capture history, indexed by [attackerPiece][toSquare][victimType]
	captureHistory [12][64][6]int
}

func NewMoveOrderer() *MoveOrderer {
	return &MoveOrderer{}
}

// Clear drops all ordering state for a new game (`ucinewgame`).
func (mo *MoveOrderer) Clear() {
	for i := range mo.killers {
		mo.killers[i][0] = board.NoMove
		mo.killers[i][1] = board.NoMove
	}
	for s := range mo.history {
		for i := range mo.history[s] {
			for j := range mo.history[s][i] {
				mo.history[s][i][j] = 0
			}
		}
	}
	for i := range mo.captureHistory {
		for j := range mo.captureHistory[i] {
			for k := range mo.captureHistory[i][j] {
				mo.captureHistory[i][j][k] = 0
			}
		}
	}
}

// Decay halves history and capture-history scores at the start of a new
// top-level search, keeping useful signal across searches of the same game
// while letting stale entries fade. Killers are cleared outright since they
// are ply-indexed and meaningless across different root positions.
func (mo *MoveOrderer) Decay() {
	for i := range mo.killers {
		mo.killers[i][0] = board.NoMove
		mo.killers[i][1] = board.NoMove
	}
	for s := range mo.history {
		for i := range mo.history[s] {
			for j := range mo.history[s][i] {
				mo.history[s][i][j] /= 2
			}
		}
	}
	for i := range mo.captureHistory {
		for j := range mo.captureHistory[i] {
			for k := range mo.captureHistory[i][j] {
				mo.captureHistory[i][j][k] /= 2
			}
		}
	}
}

// gravity applies the bounded history update h += bonus - h*|bonus|/HistMax,
// with bonus = min(depth*depth, HistMax) signed by whether the move caused a
// cutoff (good) or was merely searched without one (penalized).
func gravity(h int, depth int, good bool) int {
	bonus := depth * depth
	if bonus > HistMax {
		bonus = HistMax
	}
	if !good {
		bonus = -bonus
	}
	h += bonus - h*abs(bonus)/HistMax
	if h > HistMax {
		h = HistMax
	}
	if h < -HistMax {
		h = -HistMax
	}
	return h
}

// UpdateHistory applies the gravity formula to a quiet move that either
// caused a beta cutoff (good) or was searched and failed to (!good).
func (mo *MoveOrderer) UpdateHistory(side board.Color, m board.Move, depth int, good bool) {
	from, to := m.From(), m.To()
	mo.history[side][from][to] = gravity(mo.history[side][from][to], depth, good)
}

// UpdateCaptureHistory applies the same gravity formula to a capture move.
func (mo *MoveOrderer) UpdateCaptureHistory(attacker board.Piece, to board.Square, victim board.PieceType, depth int, good bool) {
	if attacker == board.NoPiece || victim >= board.King {
		return
	}
	mo.captureHistory[attacker][to][victim] = gravity(mo.captureHistory[attacker][to][victim], depth, good)
}

// GetHistoryScore returns the raw quiet-history score for a move, used for
// LMR's history-bucket adjustment.
func (mo *MoveOrderer) GetHistoryScore(side board.Color, m board.Move) int {
	return mo.history[side][m.From()][m.To()]
}

// UpdateKillers records a quiet beta-cutoff move as a killer at ply, shifting
// the previous first killer into the second slot. Captures are never stored
// as killers: they're already ordered ahead of killers by SEE.
func (mo *MoveOrderer) UpdateKillers(m board.Move, ply int) {
	if ply >= MaxPly {
		return
	}
	if mo.killers[ply][0] == m {
		return
	}
	mo.killers[ply][1] = mo.killers[ply][0]
	mo.killers[ply][0] = m
}

// pickStage enumerates the staged move generation states, in search order.
type pickStage int

const (
	stageTT pickStage = iota
	stageGenCaptures
	stageGoodCaptures
	stageKiller1
	stageKiller2
	stageGenQuiets
	stageQuiets
	stageBadCaptures
	stageDone

	// quiescence-only stages
	qStageTT pickStage = 100 + iota
	qStageGenCaptures
	qStageCaptures
	qStageEvasions
	qStageDone
)

// scoredMove pairs a move with its ordering key for a single stage's
// internal lazy selection sort.
type scoredMove struct {
	move  board.Move
	score int
}

// MovePicker lazily generates and orders moves one stage at a time, as
// described by the move-ordering design this engine follows: TT move, good
// captures (SEE >= 0) by SEE*K+captureHistory, killer 1, killer 2, quiets by
// history, bad captures (SEE < 0) last. Quiescence search uses a restricted
// variant that yields only the TT move, captures, and — if in check —
// check evasions, pruning SEE < 0 captures outright rather than deferring
// them to a bad-capture stage.
type MovePicker struct {
	pos        *board.Position
	orderer    *MoveOrderer
	ttMove     board.Move
	ply        int
	inCheck    bool
	legalMoves *board.MoveList

	stage pickStage

	goodCaptures []scoredMove
	badCaptures  []scoredMove
	quiets       []scoredMove
	idx          int

	skipQuiets bool
}

// NewMovePicker creates a picker for the main search at ply, seeded with the
// TT move (board.NoMove if none) and whether the side to move is in check.
func NewMovePicker(pos *board.Position, orderer *MoveOrderer, ttMove board.Move, ply int, inCheck bool) *MovePicker {
	legal := pos.GenerateLegalMoves()
	stage := stageTT
	if ttMove == board.NoMove || !legal.Contains(ttMove) {
		stage = stageGenCaptures
	}
	return &MovePicker{pos: pos, orderer: orderer, ttMove: ttMove, ply: ply, inCheck: inCheck, legalMoves: legal, stage: stage}
}

// NewQuiescencePicker creates a picker restricted to the TT move, captures,
// and (if inCheck) evasions, for use inside quiescence search.
func NewQuiescencePicker(pos *board.Position, orderer *MoveOrderer, ttMove board.Move, inCheck bool) *MovePicker {
	stage := qStageTT
	if ttMove == board.NoMove {
		stage = qStageGenCaptures
	}
	return &MovePicker{pos: pos, orderer: orderer, ttMove: ttMove, inCheck: inCheck, stage: stage}
}

// SkipQuiets instructs the picker to skip straight from killers to bad
// captures, implementing late move pruning's skip_quiets().
func (mp *MovePicker) SkipQuiets() {
	mp.skipQuiets = true
}

func sortScored(list []scoredMove) {
	for i := 1; i < len(list); i++ {
		for j := i; j > 0 && list[j].score > list[j-1].score; j-- {
			list[j], list[j-1] = list[j-1], list[j]
		}
	}
}

// Next returns the next move in staged order, or board.NoMove when exhausted.
func (mp *MovePicker) Next() board.Move {
	for {
		switch mp.stage {
		case stageTT:
			mp.stage = stageGenCaptures
			return mp.ttMove

		case stageGenCaptures:
			mp.generateCapturesAndQuiets()
			mp.stage = stageGoodCaptures
			mp.idx = 0

		case stageGoodCaptures:
			if mp.idx < len(mp.goodCaptures) {
				m := mp.goodCaptures[mp.idx].move
				mp.idx++
				if m == mp.ttMove {
					continue
				}
				return m
			}
			mp.stage = stageKiller1

		case stageKiller1:
			mp.stage = stageKiller2
			k := mp.orderer.killers[mp.ply][0]
			if k != board.NoMove && k != mp.ttMove && mp.legalMoves.Contains(k) && !mp.isCapture(k) {
				return k
			}

		case stageKiller2:
			mp.stage = stageGenQuiets
			k := mp.orderer.killers[mp.ply][1]
			if k != board.NoMove && k != mp.ttMove && mp.legalMoves.Contains(k) && !mp.isCapture(k) {
				return k
			}

		case stageGenQuiets:
			mp.stage = stageQuiets
			mp.idx = 0
			if !mp.skipQuiets {
				sortScored(mp.quiets)
			}

		case stageQuiets:
			if mp.skipQuiets {
				mp.stage = stageBadCaptures
				mp.idx = 0
				continue
			}
			if mp.idx < len(mp.quiets) {
				m := mp.quiets[mp.idx].move
				mp.idx++
				if m == mp.ttMove || m == mp.orderer.killers[mp.ply][0] || m == mp.orderer.killers[mp.ply][1] {
					continue
				}
				return m
			}
			mp.stage = stageBadCaptures
			mp.idx = 0

		case stageBadCaptures:
			if mp.idx < len(mp.badCaptures) {
				m := mp.badCaptures[mp.idx].move
				mp.idx++
				if m == mp.ttMove {
					continue
				}
				return m
			}
			mp.stage = stageDone

		case stageDone:
			return board.NoMove

		// Quiescence stages.
		case qStageTT:
			mp.stage = qStageGenCaptures
			return mp.ttMove

		case qStageGenCaptures:
			mp.generateQCaptures()
			mp.stage = qStageCaptures
			mp.idx = 0

		case qStageCaptures:
			if mp.idx < len(mp.goodCaptures) {
				m := mp.goodCaptures[mp.idx].move
				mp.idx++
				if m == mp.ttMove {
					continue
				}
				return m
			}
			if mp.inCheck {
				mp.stage = qStageEvasions
			} else {
				mp.stage = qStageDone
			}

		case qStageEvasions:
			if mp.quiets == nil {
				mp.generateQuietEvasions()
				sortScored(mp.quiets)
				mp.idx = 0
			}
			if mp.idx < len(mp.quiets) {
				m := mp.quiets[mp.idx].move
				mp.idx++
				if m == mp.ttMove {
					continue
				}
				return m
			}
			mp.stage = qStageDone

		case qStageDone:
			return board.NoMove
		}
	}
}

func (mp *MovePicker) isCapture(m board.Move) bool {
	return m.IsCapture(mp.pos)
}

// generateCapturesAndQuiets splits the legal move list into good captures
// (SEE >= 0), bad captures (SEE < 0), and quiets, scoring each for its
// stage's lazy selection sort.
func (mp *MovePicker) generateCapturesAndQuiets() {
	moves := mp.legalMoves
	mp.goodCaptures = mp.goodCaptures[:0]
	mp.badCaptures = mp.badCaptures[:0]
	mp.quiets = mp.quiets[:0]

	for i := 0; i < moves.Len(); i++ {
		m := moves.Get(i)
		if m == mp.ttMove {
			continue
		}
		if m.IsCapture(mp.pos) {
			see := SEE(mp.pos, m)
			attacker := mp.pos.PieceAt(m.From())
			victim := mp.victimType(m)
			score := see*seeWeight + mp.orderer.captureHistory[attacker][m.To()][victim] + mvvLva[victim][attacker.Type()]
			sm := scoredMove{move: m, score: score}
			if see >= 0 {
				mp.goodCaptures = append(mp.goodCaptures, sm)
			} else {
				mp.badCaptures = append(mp.badCaptures, sm)
			}
			continue
		}
		if m == mp.orderer.killers[mp.ply][0] || m == mp.orderer.killers[mp.ply][1] {
			continue
		}
		score := mp.orderer.history[mp.pos.SideToMove][m.From()][m.To()]
		mp.quiets = append(mp.quiets, scoredMove{move: m, score: score})
	}

	sortScored(mp.goodCaptures)
	sortScored(mp.badCaptures)
}

// generateQCaptures fills goodCaptures with captures whose SEE is
// non-negative; SEE < 0 captures are pruned outright per the quiescence
// move-picker contract.
func (mp *MovePicker) generateQCaptures() {
	moves := mp.pos.GenerateCaptures()
	mp.goodCaptures = mp.goodCaptures[:0]
	for i := 0; i < moves.Len(); i++ {
		m := moves.Get(i)
		if m == mp.ttMove {
			continue
		}
		see := SEE(mp.pos, m)
		if see < 0 {
			continue
		}
		attacker := mp.pos.PieceAt(m.From())
		victim := mp.victimType(m)
		score := see*seeWeight + mp.orderer.captureHistory[attacker][m.To()][victim] + mvvLva[victim][attacker.Type()]
		mp.goodCaptures = append(mp.goodCaptures, scoredMove{move: m, score: score})
	}
}

// generateQuietEvasions fills quiets with every legal move when in check,
// since a side in check may have to block or move the king with a quiet
// move — captures were already handled by generateQCaptures.
func (mp *MovePicker) generateQuietEvasions() {
	moves := mp.pos.GenerateLegalMoves()
	mp.quiets = mp.quiets[:0]
	for i := 0; i < moves.Len(); i++ {
		m := moves.Get(i)
		if m == mp.ttMove || m.IsCapture(mp.pos) {
			continue
		}
		mp.quiets = append(mp.quiets, scoredMove{move: m, score: mp.orderer.history[mp.pos.SideToMove][m.From()][m.To()]})
	}
}

func (mp *MovePicker) victimType(m board.Move) board.PieceType {
	if m.IsEnPassant() {
		return board.Pawn
	}
	p := mp.pos.PieceAt(m.To())
	if p == board.NoPiece {
		return board.Pawn
	}
	return p.Type()
}
