package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/hikelog/internal"
	pkgconfig "github.com/starford/hikelog/pkg/config"
)

func loadOptions(cmd *cli.Command, extra ...internal.Option) ([]internal.Option, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	read, err := pkgconfig.LoadOptional(configPath, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if !read {
		slog.Warn("config file not found, using defaults", slog.String("path", configPath))
	}

	return append([]internal.Option{internal.WithConfig(cfg)}, extra...), nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	opts, err := loadOptions(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	opts, err := loadOptions(cmd, internal.WithLogOutput(os.Stderr))
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx, opts...)
}

func exportHike(ctx context.Context, cmd *cli.Command) error {
	id, err := strconv.ParseInt(cmd.String("id"), 10, 64)
	if err != nil || id <= 0 {
		return fmt.Errorf("--id must be a positive integer")
	}
	opts, err := loadOptions(cmd, internal.WithLogOutput(os.Stderr))
	if err != nil {
		return err
	}

	var out io.Writer = os.Stdout
	if path := cmd.String("out"); path != "" && path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create %s: %w", path, err)
		}
		defer f.Close()
		out = f
	}
	return internal.Export(ctx, id, out, opts...)
}

func importHike(ctx context.Context, cmd *cli.Command) error {
	path := cmd.Args().First()
	if path == "" {
		return fmt.Errorf("usage: import <file|->")
	}

	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	opts, err := loadOptions(cmd, internal.WithLogOutput(os.Stderr))
	if err != nil {
		return err
	}
	res, err := internal.Import(ctx, string(data), opts...)
	if err != nil {
		return err
	}
	if !res.Success {
		return fmt.Errorf("import failed: %s", res.Message)
	}
	fmt.Println(res.Message)
	return nil
}

func main() {
	cmd := &cli.Command{
		Name:   "hikelog",
		Usage:  "Personal hiking log with observations, search, sharing and live updates",
		Action: serve,
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
				Usage:  "Serve MCP tools over stdio",
				Action: serveMCP,
			},
			{
				Name:  "export",
				Usage: "Write a hike in the shareable text format",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "id", Usage: "Hike id", Required: true},
					&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "Output file (default stdout)"},
				},
				Action: exportHike,
			},
			{
				Name:      "import",
				Usage:     "Import a hike from an exported text file",
				ArgsUsage: "<file|->",
				Action:    importHike,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
