package nnue

import (
	"encoding/binary"
	"fmt"
	"io"
)

// expectedBlobSize is the byte length of the fixed binary layout: feature
// weights, feature bias, output weights, output bias. Scale constants
// (QA/WeightScale/OutputScale) are compiled in, not stored in the blob, since
// they are architecture constants rather than trained parameters.
const expectedBlobSize = NumFeatures*HL*2 + HL*2 + 2*HL*2 + 2

// LoadWeights reads a quantised network in this binary layout from r (no
// weights are embedded in the binary; cmd/tantabus-uci reads a file):
// [feature_weights: 768xHL i16][feature_bias: HL i16][output_weights: 2xHL i16]
// [output_bias: i16], little-endian throughout.
func LoadWeights(r io.Reader) (*Network, error) {
	net := &Network{}

	for f := 0; f < NumFeatures; f++ {
		if err := binary.Read(r, binary.LittleEndian, &net.FeatureWeights[f]); err != nil {
			return nil, fmt.Errorf("nnue: reading feature weights row %d: %w", f, err)
		}
	}
	if err := binary.Read(r, binary.LittleEndian, &net.FeatureBias); err != nil {
		return nil, fmt.Errorf("nnue: reading feature bias: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &net.OutputWeights); err != nil {
		return nil, fmt.Errorf("nnue: reading output weights: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &net.OutputBias); err != nil {
		return nil, fmt.Errorf("nnue: reading output bias: %w", err)
	}

	return net, nil
}

// SaveWeights writes a network in the layout LoadWeights expects.
func SaveWeights(w io.Writer, net *Network) error {
	for f := 0; f < NumFeatures; f++ {
		if err := binary.Write(w, binary.LittleEndian, net.FeatureWeights[f]); err != nil {
			return fmt.Errorf("nnue: writing feature weights row %d: %w", f, err)
		}
	}
	if err := binary.Write(w, binary.LittleEndian, net.FeatureBias); err != nil {
		return fmt.Errorf("nnue: writing feature bias: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, net.OutputWeights); err != nil {
		return fmt.Errorf("nnue: writing output weights: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, net.OutputBias); err != nil {
		return fmt.Errorf("nnue: writing output bias: %w", err)
	}
	return nil
}

// prng is a small xorshift64* generator, used only to fabricate
// reproducible weights when no trained network blob is available (tests,
// and cmd/tantabus-uci when no -evalfile is given).
type prng struct{ state uint64 }

func newPRNG(seed uint64) *prng {
	if seed == 0 {
		seed = 1
	}
	return &prng{state: seed}
}

func (p *prng) next() uint64 {
	p.state ^= p.state >> 12
	p.state ^= p.state << 25
	p.state ^= p.state >> 27
	return p.state * 0x2545F4914F6CDD1D
}

// InitRandom fills a network with small reproducible pseudo-random weights.
// Used for testing the search machinery independent of a trained network.
func InitRandom(seed uint64) *Network {
	net := &Network{}
	rng := newPRNG(seed)
	for f := 0; f < NumFeatures; f++ {
		for i := 0; i < HL; i++ {
			net.FeatureWeights[f][i] = int16(rng.next()%41) - 20
		}
	}
	for i := 0; i < HL; i++ {
		net.FeatureBias[i] = int16(rng.next()%21) - 10
	}
	for i := 0; i < 2*HL; i++ {
		net.OutputWeights[i] = int16(rng.next()%41) - 20
	}
	net.OutputBias = int16(rng.next()%21) - 10
	return net
}
