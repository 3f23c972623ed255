package nnue

// Network holds the quantised weights of the (768 -> 128) x 2 -> 1 evaluator.
// Layout mirrors the binary weights-file format of weights.go: feature weights, feature
// bias, then the output layer's two halves (side-to-move, then the other
// side) concatenated, then the output bias.
type Network struct {
	FeatureWeights [NumFeatures][HL]int16
	FeatureBias    [HL]int16
	OutputWeights  [2 * HL]int16
	OutputBias     int16
}

// clippedReLU clamps x into [0, QA], matching the architecture's
// clamp(x, 0, QA) activation.
func clippedReLU(x int16) int32 {
	v := int32(x)
	if v < 0 {
		return 0
	}
	if v > QA {
		return QA
	}
	return v
}

// Forward evaluates the output layer given the two perspective accumulators,
// stm first. Returns centipawns from the side-to-move's perspective.
func (n *Network) Forward(stm, nstm *[HL]int16) int {
	var sum int64
	sum += dotClipped(stm[:], n.OutputWeights[:HL])
	sum += dotClipped(nstm[:], n.OutputWeights[HL:])
	sum += int64(n.OutputBias)

	// sum is in QA * WeightScale units; rescale to centipawns.
	out := sum * OutputScale / int64(WeightScale) / int64(QA)
	return int(out)
}

// dotClipped computes sum(clippedReLU(acc[i]) * weights[i]) using the
// SIMD-chunked helper in simd.go.
func dotClipped(acc []int16, weights []int16) int64 {
	return dotProductClipped(acc, weights)
}
