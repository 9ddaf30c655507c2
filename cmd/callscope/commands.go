package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/urfave/cli/v2"

	"github.com/poiesic/callscope"
	"github.com/poiesic/callscope/config"
	"github.com/poiesic/callscope/core"
	"github.com/poiesic/callscope/ingestion"
	"github.com/poiesic/callscope/mcpserver"
	"github.com/poiesic/callscope/tui"
)

const goodbyeText = "Thank you for using the call copilot."

// commands holds the actions of the CLI.
type commands struct {
	extra optionsFunc
}

func (cmds *commands) ingest(c *cli.Context) error {
	return cmds.withCopilot(c, func(ctx context.Context, copilot *callscope.Copilot) error {
		var (
			report *ingestion.BatchReport
			err    error
		)
		if c.Args().Present() {
			report, err = copilot.IngestFiles(ctx, c.Args().Slice())
		} else {
			report, err = copilot.IngestDirectory(ctx, c.String("dir"), c.String("pattern"))
		}
		if report != nil {
			printReport(c.App.Writer, report)
		}
		if err != nil {
			return err
		}
		if report.Total > 0 && report.Succeeded == 0 {
			return errors.New("no files were ingested")
		}
		return nil
	})
}

func printReport(w io.Writer, report *ingestion.BatchReport) {
	for _, o := range report.Outcomes {
		switch {
		case o.Err != nil:
			fmt.Fprintf(w, "FAILED  %s: %v\n", o.Filename, o.Err)
		default:
			fmt.Fprintf(w, "OK      %s  call=%s chunks=%d participants=%s\n",
				o.Filename, o.CallID, o.ChunkCount, strings.Join(o.Participants, ", "))
		}
	}
	fmt.Fprintf(w, "Ingested %d of %d file(s), %d failed\n", report.Succeeded, report.Total, report.Failed)
}

func (cmds *commands) ask(c *cli.Context) error {
	question := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if question == "" {
		return errors.New("a question is required")
	}
	return cmds.withCopilot(c, func(ctx context.Context, copilot *callscope.Copilot) error {
		fmt.Fprint(c.App.Writer, tui.FormatAnswer(copilot.Ask(ctx, question)))
		return nil
	})
}

func (cmds *commands) chat(c *cli.Context) error {
	return cmds.withCopilot(c, func(ctx context.Context, copilot *callscope.Copilot) error {
		if c.Bool("plain") {
			return plainChat(ctx, copilot, c.App.Reader, c.App.Writer)
		}
		return tui.Run(ctx, copilot)
	})
}

// plainChat reads one question per line until a quit command or end of input.
func plainChat(ctx context.Context, asker tui.Asker, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "Your question: ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch {
		case tui.IsQuit(line):
			fmt.Fprintln(out, "\n"+goodbyeText)
			return nil
		case line == "":
			continue
		}
		fmt.Fprintln(out, "\nProcessing your query...")
		fmt.Fprintln(out, tui.FormatAnswer(asker.Ask(ctx, line)))
		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

func (cmds *commands) summarize(c *cli.Context) error {
	if !c.Args().Present() {
		return errors.New("at least one call ID or file name is required")
	}
	return cmds.withCopilot(c, func(ctx context.Context, copilot *callscope.Copilot) error {
		answer, err := copilot.Summarizer().SummarizeCalls(ctx, c.Args().Slice())
		if err != nil {
			return err
		}
		fmt.Fprint(c.App.Writer, tui.FormatAnswer(answer))
		return nil
	})
}

func (cmds *commands) search(c *cli.Context) error {
	query := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if query == "" {
		return errors.New("a query is required")
	}
	limit := c.Int("limit")
	if limit < 1 {
		return fmt.Errorf("limit must be greater than 0")
	}
	return cmds.withCopilot(c, func(ctx context.Context, copilot *callscope.Copilot) error {
		hits, err := copilot.Search(ctx, query, limit)
		if err != nil {
			return err
		}
		w := c.App.Writer
		fmt.Fprintf(w, "Found %d hits\n", len(hits))
		for i, h := range hits {
			name := h.Chunk.CallID
			if h.Call != nil {
				name = h.Call.Filename
			}
			fmt.Fprintf(w, "%d: %s [%s] (%s) [%0.3f]\n%s\n\n",
				i+1, name, h.Chunk.Timestamp, strings.Join(h.Chunk.Speakers, ", "), h.Score, h.Chunk.Content)
		}
		return nil
	})
}

func (cmds *commands) stats(c *cli.Context) error {
	return cmds.withCopilot(c, func(ctx context.Context, copilot *callscope.Copilot) error {
		s, err := copilot.Stats(ctx)
		if err != nil {
			return err
		}
		t := table.New().
			Border(lipgloss.NormalBorder()).
			Headers("METRIC", "VALUE").
			Row("calls", strconv.Itoa(s.Calls)).
			Row("chunks", strconv.Itoa(s.Chunks)).
			Row("vectors", strconv.Itoa(s.Vectors)).
			Row("index rows", strconv.Itoa(s.IndexRows)).
			Row("dimension", strconv.Itoa(s.Dimension)).
			Row("failed jobs", strconv.Itoa(s.FailedJobs))
		fmt.Fprintln(c.App.Writer, t.String())
		return nil
	})
}

func (cmds *commands) jobs(c *cli.Context) error {
	return cmds.withCopilot(c, func(ctx context.Context, copilot *callscope.Copilot) error {
		jobs, err := copilot.ListJobs(ctx, c.Int("limit"))
		if err != nil {
			return err
		}
		if len(jobs) == 0 {
			fmt.Fprintln(c.App.Writer, "No ingestion jobs recorded")
			return nil
		}
		t := table.New().
			Border(lipgloss.NormalBorder()).
			Headers("JOB", "STATE", "STARTED", "FILE", "DETAIL")
		for _, j := range jobs {
			t.Row(j.ID, string(j.State), j.StartedAt.Local().Format(time.DateTime), j.Path, jobDetail(j))
		}
		fmt.Fprintln(c.App.Writer, t.String())
		return nil
	})
}

func jobDetail(j *core.Job) string {
	if j.State == core.JobFailed {
		return fmt.Sprintf("%s: %s", j.FailedStage, j.Error)
	}
	if j.CallID != "" {
		return fmt.Sprintf("call=%s chunks=%d", j.CallID, j.ChunkCount)
	}
	return ""
}

func (cmds *commands) reindex(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if model := c.String("model"); model != "" {
		cfg.AI.EmbeddingModel = model
	}
	copilot, err := cmds.open(c, cfg)
	if err != nil {
		return err
	}
	defer copilot.Close()

	fmt.Fprintf(c.App.ErrWriter, "Database: %s\n", cfg.Paths.DatabasePath)
	fmt.Fprintf(c.App.ErrWriter, "Embedding host: %s\n", cfg.AI.BaseURL)
	fmt.Fprintf(c.App.ErrWriter, "Embedding model: %s\n", cfg.AI.EmbeddingModel)
	fmt.Fprintln(c.App.ErrWriter)

	result, err := copilot.Reindex(c.Context, c.App.ErrWriter)
	if err != nil {
		return fmt.Errorf("reindexing failed: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "Reindexed %d chunk(s) at dimension %d in %s\n",
		result.Chunks, result.Dimension, result.Elapsed.Round(time.Millisecond))
	return nil
}

func (cmds *commands) exportIndex(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		return errors.New("an output file is required")
	}
	return cmds.withCopilot(c, func(_ context.Context, copilot *callscope.Copilot) error {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		if err := copilot.ExportIndex(f); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "Exported %d vector(s) to %s\n", copilot.Index().Live(), path)
		return nil
	})
}

func (cmds *commands) importIndex(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		return errors.New("a snapshot file is required")
	}
	return cmds.withCopilot(c, func(ctx context.Context, copilot *callscope.Copilot) error {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		dropped, err := copilot.ImportIndex(ctx, f)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "Imported %d vector(s) from %s, dropped %d without stored chunks\n",
			copilot.Index().Live(), path, dropped)
		return nil
	})
}

func (cmds *commands) watch(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	c.Context = ctx

	return cmds.withCopilot(c, func(ctx context.Context, copilot *callscope.Copilot) error {
		w := c.App.Writer
		watcher, err := copilot.NewWatcher(ingestion.WithOutcomeHandler(func(o *ingestion.Outcome) {
			printReport(w, &ingestion.BatchReport{
				Total:     1,
				Succeeded: boolInt(o.Succeeded()),
				Failed:    boolInt(!o.Succeeded()),
				Outcomes:  []*ingestion.Outcome{o},
			})
		}))
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "Watching %s for new transcripts (Ctrl+C to stop)\n", copilot.Config().Paths.DataDir)
		return watcher.Run(ctx)
	})
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (cmds *commands) serveMCP(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	c.Context = ctx

	return cmds.withCopilot(c, func(ctx context.Context, copilot *callscope.Copilot) error {
		server, err := mcpserver.NewServer(mcpserver.PortsFor(copilot))
		if err != nil {
			return err
		}
		if addr := c.String("http"); addr != "" {
			return server.RunHTTP(ctx, addr)
		}
		return server.Run(ctx)
	})
}

func (cmds *commands) showConfig(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	format := config.Format(strings.ToLower(c.String("format")))
	if format != config.FormatTOML && format != config.FormatYAML {
		return fmt.Errorf("%w: %s", config.ErrUnknownFormat, format)
	}
	return config.Write(c.App.Writer, cfg.Redacted(), format)
}
