// Command tantabus-uci is the UCI entrypoint: it builds an engine.Engine
// around an NNUE network and runs the UCI protocol loop over stdin/stdout.
package main

import (
	"flag"
	"log"
	"os"

	"github.com/tantabus/tantabus/internal/engine"
	"github.com/tantabus/tantabus/internal/nnue"
	"github.com/tantabus/tantabus/internal/uci"
)

// placeholderSeed seeds the reproducible random network used when no
// trained weights file is given. It has no tactical strength of its own —
// it exists so the search machinery (TT, move ordering, pruning, SMP) runs
// end to end without a trained net checked into the repository.
const placeholderSeed = 1

var evalFile = flag.String("evalfile", "", "path to a trained NNUE weights file (binary layout per internal/nnue/weights.go); uses a reproducible placeholder network if empty")

func main() {
	flag.Parse()

	net := loadNetwork(*evalFile)
	eng := engine.NewEngine(engine.DefaultHashMB, net)

	protocol := uci.New(eng)
	protocol.Run()
}

func loadNetwork(path string) *nnue.Network {
	if path == "" {
		log.Printf("no -evalfile given, using placeholder network (seed %d)", placeholderSeed)
		return nnue.InitRandom(placeholderSeed)
	}

	f, err := os.Open(path)
	if err != nil {
		log.Fatalf("opening evalfile %s: %v", path, err)
	}
	defer f.Close()

	net, err := nnue.LoadWeights(f)
	if err != nil {
		log.Fatalf("loading evalfile %s: %v", path, err)
	}
	log.Printf("loaded NNUE weights from %s", path)
	return net
}
