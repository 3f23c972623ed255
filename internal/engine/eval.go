// Package engine implements the search core: negamax/PVS, the transposition
// table, move ordering, time management, and the Lazy SMP coordinator.
package engine

import (
	"github.com/tantabus/tantabus/internal/board"
)

// pieceValues gives the material value of a capture's victim for SEE, in the
// same units the move picker's capture ordering expects. Leaf evaluation
// itself is the NNUE evaluator (internal/nnue); these values exist only to
// drive the capture-sequence swap algorithm below, which is a search-ordering
// concern independent of how leaves are scored.
var pieceValues = [7]int{100, 320, 330, 500, 900, 20000, 0}

// SEE (Static Exchange Evaluation) estimates the material result of the
// capture sequence starting with m, from the moving side's perspective.
func SEE(pos *board.Position, m board.Move) int {
	from := m.From()
	to := m.To()

	attacker := pos.PieceAt(from)
	if attacker == board.NoPiece {
		return 0
	}

	var capturedValue int
	if m.IsEnPassant() {
		capturedValue = pieceValues[board.Pawn]
	} else {
		victim := pos.PieceAt(to)
		if victim == board.NoPiece {
			return 0
		}
		capturedValue = pieceValues[victim.Type()]
	}

	if m.IsPromotion() {
		capturedValue += pieceValues[m.Promotion()] - pieceValues[board.Pawn]
	}

	return seeSwap(pos, to, from, attacker, capturedValue)
}

// seeSwap simulates alternating captures on target, starting with the piece
// at excludeFrom already removed from the board, and negamaxes the resulting
// gain sequence to the value a rational player would stop at.
func seeSwap(pos *board.Position, target, excludeFrom board.Square, firstAttacker board.Piece, initialGain int) int {
	var gain [32]int
	d := 0
	gain[d] = initialGain

	occupied := pos.AllOccupied &^ board.SquareBB(excludeFrom)
	attackerValue := pieceValues[firstAttacker.Type()]
	side := firstAttacker.Color().Other()

	for {
		d++
		gain[d] = attackerValue - gain[d-1]
		if max(-gain[d-1], gain[d]) < 0 {
			break
		}

		attackerSq, attackerPiece := getLeastValuableAttacker(pos, target, side, occupied)
		if attackerSq == board.NoSquare {
			break
		}

		occupied &^= board.SquareBB(attackerSq)
		attackerValue = pieceValues[attackerPiece.Type()]
		side = side.Other()
	}

	for d--; d > 0; d-- {
		gain[d-1] = -max(-gain[d-1], gain[d])
	}

	return gain[0]
}

// getLeastValuableAttacker finds the cheapest piece of side attacking target
// given occupied, in ascending value order, or board.NoSquare if none remain.
func getLeastValuableAttacker(pos *board.Position, target board.Square, side board.Color, occupied board.Bitboard) (board.Square, board.Piece) {
	pawns := pos.Pieces[side][board.Pawn]
	pawnAttacks := board.PawnAttacks(target, side.Other())
	if attackers := pawns & pawnAttacks & occupied; attackers != 0 {
		return attackers.LSB(), board.NewPiece(board.Pawn, side)
	}

	knights := pos.Pieces[side][board.Knight]
	knightAttacks := board.KnightAttacks(target)
	if attackers := knights & knightAttacks & occupied; attackers != 0 {
		return attackers.LSB(), board.NewPiece(board.Knight, side)
	}

	bishops := pos.Pieces[side][board.Bishop]
	bishopAttacks := board.BishopAttacks(target, occupied)
	if attackers := bishops & bishopAttacks & occupied; attackers != 0 {
		return attackers.LSB(), board.NewPiece(board.Bishop, side)
	}

	rooks := pos.Pieces[side][board.Rook]
	rookAttacks := board.RookAttacks(target, occupied)
	if attackers := rooks & rookAttacks & occupied; attackers != 0 {
		return attackers.LSB(), board.NewPiece(board.Rook, side)
	}

	queens := pos.Pieces[side][board.Queen]
	if attackers := queens & (bishopAttacks | rookAttacks) & occupied; attackers != 0 {
		return attackers.LSB(), board.NewPiece(board.Queen, side)
	}

	kingBB := pos.Pieces[side][board.King]
	kingAttacks := board.KingAttacks(target)
	if attackers := kingBB & kingAttacks & occupied; attackers != 0 {
		return attackers.LSB(), board.NewPiece(board.King, side)
	}

	return board.NoSquare, board.NoPiece
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
