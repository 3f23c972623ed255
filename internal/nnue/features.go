// Package nnue implements the quantised evaluator: a flat (768 -> 128) x 2 -> 1
// network whose first layer is maintained incrementally across make/unmake.
package nnue

import (
	"github.com/tantabus/tantabus/internal/board"
)

// Architecture constants.
const (
	NumColors     = 2
	NumPieceTypes = 6 // Pawn, Knight, Bishop, Rook, Queen, King
	NumSquares    = 64
	NumFeatures   = NumColors * NumPieceTypes * NumSquares // 768
	HL            = 128                                    // first-layer width per perspective

	QA         = 127 // activation range / clipped-ReLU ceiling
	WeightScale = 64
	OutputScale = 115
)

// Feature returns the flat one-hot index of (color, pieceType, square) as seen
// from perspective. Black's perspective mirrors the rank and swaps color, so
// the same weight row is reused for the mirror-image position.
func Feature(perspective, color board.Color, pt board.PieceType, sq board.Square) int {
	if perspective == board.Black {
		sq = sq ^ 56 // flip rank: rank r -> rank 7-r
		color = color.Other()
	}
	idx := int(color)
	idx = idx*NumPieceTypes + int(pt)
	idx = idx*NumSquares + int(sq)
	return idx
}

// ActiveFeatures appends the feature index of every piece on the board
// (including kings) as seen from perspective.
func ActiveFeatures(pos *board.Position, perspective board.Color, out []int) []int {
	for c := board.White; c <= board.Black; c++ {
		for pt := board.Pawn; pt <= board.King; pt++ {
			bb := pos.Pieces[c][pt]
			for bb != 0 {
				sq := bb.PopLSB()
				out = append(out, Feature(perspective, c, pt, sq))
			}
		}
	}
	return out
}
