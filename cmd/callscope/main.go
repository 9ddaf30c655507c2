// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/poiesic/callscope"
	"github.com/poiesic/callscope/config"
)

// optionsFunc supplies extra copilot options for each command that opens
// the copilot.
type optionsFunc func() []callscope.Option

func main() {
	if err := newApp(nil).Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp(extra optionsFunc) *cli.App {
	cmds := &commands{extra: extra}
	return &cli.App{
		Name:  "callscope",
		Usage: "Question answering over sales call transcripts",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a TOML or YAML config file",
				EnvVars: []string{"CALLSCOPE_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Path to a .env file (empty to skip)",
				Value: ".env",
			},
			&cli.StringFlag{
				Name:  "data-dir",
				Usage: "Directory holding transcript files (overrides the config)",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "ingest",
				Usage:     "Ingest transcript files, or every matching file in a directory",
				ArgsUsage: "[file...]",
				Action:    cmds.ingest,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "dir",
						Usage: "Directory to ingest when no files are given (defaults to the data directory)",
					},
					&cli.StringFlag{
						Name:  "pattern",
						Usage: "Glob matched against file names in the directory",
						Value: "*.txt",
					},
				},
			},
			{
				Name:      "ask",
				Usage:     "Ask one question and print the answer",
				ArgsUsage: "<question>",
				Action:    cmds.ask,
			},
			{
				Name:   "chat",
				Usage:  "Start an interactive session",
				Action: cmds.chat,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "plain",
						Usage: "Read questions line by line instead of using the full-screen interface",
					},
				},
			},
			{
				Name:      "summarize",
				Usage:     "Summarize calls by ID or transcript file name",
				ArgsUsage: "<call>...",
				Action:    cmds.summarize,
			},
			{
				Name:      "search",
				Usage:     "Print the transcript chunks most similar to a query",
				ArgsUsage: "<query>",
				Action:    cmds.search,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"k"},
						Usage:   "Number of chunks to print",
						Value:   5,
					},
				},
			},
			{
				Name:   "stats",
				Usage:  "Count stored calls, chunks and index rows",
				Action: cmds.stats,
			},
			{
				Name:   "jobs",
				Usage:  "List recent ingestion jobs",
				Action: cmds.jobs,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Number of jobs to list",
						Value: 20,
					},
				},
			},
			{
				Name:   "reindex",
				Usage:  "Rebuild the vector index from stored chunks",
				Action: cmds.reindex,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "model",
						Usage: "Embedding model to switch to (defaults to the configured model)",
					},
				},
			},
			{
				Name:      "export-index",
				Usage:     "Write a snapshot of the vector index",
				ArgsUsage: "<file>",
				Action:    cmds.exportIndex,
			},
			{
				Name:      "import-index",
				Usage:     "Replace the vector index with a snapshot",
				ArgsUsage: "<file>",
				Action:    cmds.importIndex,
			},
			{
				Name:   "watch",
				Usage:  "Ingest transcripts as they are written to the data directory",
				Action: cmds.watch,
			},
			{
				Name:   "serve-mcp",
				Usage:  "Serve the copilot as MCP tools",
				Action: cmds.serveMCP,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "http",
						Usage: "Listen address for streamable HTTP (stdio when empty)",
					},
				},
			},
			{
				Name:   "config",
				Usage:  "Print the effective configuration with secrets masked",
				Action: cmds.showConfig,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "format",
						Usage: "Output format (toml, yaml)",
						Value: string(config.FormatTOML),
					},
				},
			},
		},
	}
}

// loadConfig layers the config file, .env, the environment and the global
// flag overrides.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"), config.WithDotenv(c.String("env-file")))
	if err != nil {
		return nil, err
	}
	if dir := c.String("data-dir"); dir != "" {
		cfg.Paths.DataDir = dir
	}
	return cfg, nil
}

func (cmds *commands) open(c *cli.Context, cfg *config.Config) (*callscope.Copilot, error) {
	var opts []callscope.Option
	if cmds.extra != nil {
		opts = cmds.extra()
	}
	copilot, err := callscope.Open(c.Context, cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open copilot: %w", err)
	}
	return copilot, nil
}

// withCopilot loads the configuration, opens the copilot, runs fn and
// closes the copilot.
func (cmds *commands) withCopilot(c *cli.Context, fn func(context.Context, *callscope.Copilot) error) (err error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	copilot, err := cmds.open(c, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := copilot.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(c.Context, copilot)
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	// Logs go to stderr so stdout stays usable for answers and MCP over stdio.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
