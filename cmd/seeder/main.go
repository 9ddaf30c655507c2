// Command seeder writes deterministic sample sales call transcripts into a
// data directory and can ingest them right away.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"iter"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"

	"github.com/poiesic/callscope"
	"github.com/poiesic/callscope/config"
)

var utterances = []string{
	"Thanks for making time today, let's start with introductions.",
	"We are evaluating tools to replace our current spreadsheet process.",
	"Pricing seems high for a team of our size.",
	"Can you walk me through how the integration with our CRM works?",
	"Security review is usually the longest part of procurement for us.",
	"We need single sign-on before we can roll this out.",
	"Our renewal with the current vendor is up at the end of the quarter.",
	"The per-seat price is the main blocker for the finance team.",
	"Could we start with a pilot for one region?",
	"Onboarding took us three months last time, that was painful.",
	"What does support look like outside business hours?",
	"I'd like to bring our CTO into the next conversation.",
	"Reporting is the feature our managers care about most.",
	"We had issues with data exports from the previous tool.",
	"Is there a discount for annual billing?",
	"Let's schedule a technical deep dive next week.",
	"Our legal team will want to review the data processing terms.",
	"The demo answered most of my questions, thank you.",
	"Budget approval happens in the first week of every month.",
	"Can the dashboards be shared with people outside the company?",
	"We are also talking to two other vendors.",
	"How long does a typical implementation take?",
	"I'll send over our requirements document after this call.",
	"Who else on your side would be involved in the rollout?",
}

var (
	seedDir     = flag.String("dir", config.DefaultDataDir, "directory to write transcripts to")
	seedCount   = flag.Int("count", 5, "number of transcripts to write")
	seedTurns   = flag.Int("turns", 12, "turns per transcript")
	seedValue   = flag.Uint64("seed", 1, "random seed")
	seedSource  = flag.String("src", "", "file of utterances, one per line")
	seedIngest  = flag.Bool("ingest", false, "ingest the written transcripts")
	seedConfig  = flag.String("config", "", "config file used with -ingest")
	seedSellers = []string{"AE (Jordan)", "SE (Priya)", "AE (Marcus)"}
	seedBuyers  = []string{"Prospect (Dana)", "Prospect (Lee)", "CFO (Sam)", "IT Lead (Alex)"}
)

func init() {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(handler))
}

// linesFromFile returns an iterator over non-blank lines in a file.
func linesFromFile(filename string) (iter.Seq[string], error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}

	return func(yield func(string) bool) {
		defer f.Close()
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			if !yield(line) {
				return
			}
		}
	}, nil
}

// linesFromSlice returns an iterator over a slice of strings.
func linesFromSlice(lines []string) iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, line := range lines {
			if !yield(line) {
				return
			}
		}
	}
}

// renderTranscript renders one call. Speakers alternate between a seller and a
// buyer, and timestamps advance by one to three minutes per turn.
func renderTranscript(rng *rand.Rand, lines []string, turns int) string {
	seller := seedSellers[rng.IntN(len(seedSellers))]
	buyer := seedBuyers[rng.IntN(len(seedBuyers))]

	var b strings.Builder
	minute := 0
	for i := range turns {
		speaker := seller
		if i%2 == 1 {
			speaker = buyer
		}
		fmt.Fprintf(&b, "[%02d:%02d] %s: %s\n", minute/60, minute%60, speaker, lines[rng.IntN(len(lines))])
		minute += 1 + rng.IntN(3)
	}
	return b.String()
}

// writeTranscripts writes count transcripts named N_call.txt into dir and
// returns their paths.
func writeTranscripts(dir string, source iter.Seq[string], count, turns int, seed uint64) ([]string, error) {
	var lines []string
	for line := range source {
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("no utterances to seed from")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewPCG(seed, seed))
	paths := make([]string, 0, count)
	for i := range count {
		path := filepath.Join(dir, fmt.Sprintf("%d_call.txt", i+1))
		if err := os.WriteFile(path, []byte(renderTranscript(rng, lines, turns)), 0o644); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func main() {
	flag.Parse()

	var source iter.Seq[string]
	if *seedSource != "" {
		var err error
		source, err = linesFromFile(*seedSource)
		if err != nil {
			panic(err)
		}
	} else {
		source = linesFromSlice(utterances)
	}

	paths, err := writeTranscripts(*seedDir, source, *seedCount, *seedTurns, *seedValue)
	if err != nil {
		panic(err)
	}
	slog.Info("wrote transcripts", "dir", *seedDir, "count", len(paths))

	if !*seedIngest {
		return
	}

	cfg, err := config.Load(*seedConfig)
	if err != nil {
		panic(err)
	}
	cfg.Paths.DataDir = *seedDir
	ctx := context.Background()
	copilot, err := callscope.Open(ctx, cfg)
	if err != nil {
		panic(err)
	}
	defer copilot.Close()

	report, err := copilot.IngestFiles(ctx, paths)
	if err != nil {
		panic(err)
	}
	slog.Info("ingested transcripts", "succeeded", report.Succeeded, "failed", report.Failed)
}
