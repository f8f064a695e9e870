package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/cadenza/internal"
	pkgconfig "github.com/starford/cadenza/pkg/config"
)

var version = "dev"

func loadConfig(cmd *cli.Command, optional bool) (*internal.Config, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	load := pkgconfig.Load[internal.Config]
	if optional {
		load = pkgconfig.LoadOptional[internal.Config]
	}
	if err := load(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd, false)
	if err != nil {
		return err
	}

	opts := []internal.Option{
		internal.WithConfig(cfg),
		internal.WithVersion(version),
	}

	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}

	return nil
}

func mcp(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd, false)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx, internal.WithConfig(cfg), internal.WithVersion(version))
}

func evaluate(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd, true)
	if err != nil {
		return err
	}

	reference, err := os.ReadFile(cmd.String("reference"))
	if err != nil {
		return fmt.Errorf("read reference: %w", err)
	}
	student, err := os.ReadFile(cmd.String("student"))
	if err != nil {
		return fmt.Errorf("read student: %w", err)
	}

	report, err := internal.Evaluate(ctx, reference, student, int(cmd.Int("semitones")), internal.WithConfig(cfg))
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func main() {
	cmd := &cli.Command{
		Name:    "cadenza",
		Usage:   "Grades transposition exercises written in MusicXML",
		Version: version,
		Action:  serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API (default)",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve the grading tools over MCP on stdio",
				Action: mcp,
			},
			{
				Name:      "evaluate",
				Usage:     "Grade one answer and print the report as JSON",
				ArgsUsage: " ",
				Action:    evaluate,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "reference",
						Aliases:  []string{"r"},
						Usage:    "Reference score (.xml, .musicxml or .mxl)",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "student",
						Aliases:  []string{"s"},
						Usage:    "Student score (.xml, .musicxml or .mxl)",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "semitones",
						Usage: "Requested transposition in semitones",
					},
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
