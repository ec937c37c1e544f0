// Command osmdelta applies one JSON-encoded diff batch to the on-disk
// attic store. It is a thin CLI shell around wayupdate.RunBatch, in the
// same single-purpose style as imposm3's cmd/imposm3 subcommand binaries,
// minus their import/diff-download machinery (out of scope here — the
// batch is supplied fully formed, by whatever replication client a
// deployment already runs).
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	golog "log"
	"os"
	"path/filepath"
	"runtime"

	"github.com/omniscale/osmdelta/config"
	"github.com/omniscale/osmdelta/log"
	"github.com/omniscale/osmdelta/spatial"
	"github.com/omniscale/osmdelta/stats"
	"github.com/omniscale/osmdelta/wayupdate"
)

var waysPerSec = stats.NewRpsCounter()

func main() {
	golog.SetFlags(golog.LstdFlags | golog.Lshortfile)
	if os.Getenv("GOMAXPROCS") == "" {
		runtime.GOMAXPROCS(runtime.NumCPU())
	}

	basedir := flag.String("basedir", ".", "directory holding the current/attic/meta/nodes stores")
	batchPath := flag.String("batch", "", "path to a JSON batch file")
	partial := flag.Bool("partial", false, "stage this batch through the fan-out merge cascade instead of sinking it directly")
	flag.Parse()

	if *batchPath == "" {
		fmt.Fprintln(os.Stderr, "usage: osmdelta -batch batch.json [-basedir dir]")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("loading config: %s", err)
	}

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		if err := config.Watch(stop, func(c config.Config) {
			log.Println("config reloaded")
			cfg = c
		}); err != nil {
			log.Printf("config watcher stopped: %s", err)
		}
	}()

	defer log.Step(fmt.Sprintf("applying batch %s", *batchPath))()

	raw, err := os.ReadFile(*batchPath)
	if err != nil {
		log.Fatalf("reading batch file: %s", err)
	}
	in, err := loadBatch(raw, cfg.SpatialMaxZoom)
	if err != nil {
		log.Fatalf("parsing batch file: %s", err)
	}

	stores, err := openStores(*basedir, cfg)
	if err != nil {
		log.Fatalf("opening stores: %s", err)
	}
	defer stores.Close()

	in.Current = stores.current
	in.Ids = stores.ids
	in.Attic = stores.attic
	in.Meta = stores.meta
	in.Nodes = stores.nodes
	in.Spatial = spatial.NewHelper(cfg.SpatialMaxZoom)
	in.Callback = progressLogger{}

	statePath := filepath.Join(*basedir, "partial_merge_state.json")
	if *partial {
		in.Partial = true
		state, err := loadPartialMergeState(statePath, cfg)
		if err != nil {
			log.Fatalf("loading partial merge state: %s", err)
		}
		in.PartialState = state
	}

	result, err := wayupdate.RunBatch(in)
	if err != nil {
		log.Fatalf("running batch: %s", err)
	}
	waysPerSec.Add(len(in.ExplicitVersions))
	waysPerSec.Tick()
	log.Printf("batch applied: %d ways moved, %d attic buckets written, %.1f ways/s",
		len(result.Moved), len(result.AtticToInsert), waysPerSec.Rps())

	if *partial && result.PartialMerge != nil {
		log.Printf("partial merge: stage %d -> %d (merge=%v), %d ids fanned out",
			result.PartialMerge.Stage, result.PartialMerge.NextStage,
			result.PartialMerge.ShouldMerge, len(result.PartialMerge.FanoutBuckets))
		if err := savePartialMergeState(statePath, in.PartialState); err != nil {
			log.Fatalf("saving partial merge state: %s", err)
		}
	}
}

// loadPartialMergeState reads the staged-merge counter persisted by a prior
// -partial run, or starts a fresh one at StageFanout0 if none exists yet —
// the CLI is one-shot per process, so this file is what lets the cascade's
// update_counter (§5) survive across invocations.
func loadPartialMergeState(path string, cfg config.Config) (*wayupdate.PartialMergeState, error) {
	state := &wayupdate.PartialMergeState{
		Stage0Threshold: cfg.PartialMergeStage0Threshold,
		Stage1Threshold: cfg.PartialMergeStage1Threshold,
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return state, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, state); err != nil {
		return nil, err
	}
	state.Stage0Threshold = cfg.PartialMergeStage0Threshold
	state.Stage1Threshold = cfg.PartialMergeStage1Threshold
	return state, nil
}

func savePartialMergeState(path string, state *wayupdate.PartialMergeState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

type progressLogger struct {
	wayupdate.NopCallback
}

func (progressLogger) ComputeStarted()     { log.Println("compute started") }
func (progressLogger) ComputeFinished()    { log.Println("compute finished") }
func (progressLogger) UpdateFinished()     { log.Println("store write finished") }
func (progressLogger) AtticUpdateStarted() { log.Println("attic write started") }
