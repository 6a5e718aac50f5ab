package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/wikimapper/internal"
	pkgconfig "github.com/starford/wikimapper/pkg/config"
)

var version = "dev"

const defaultConfigFile = "config/config.yaml"

// loadOptions reads the config file, falling back to the default one when
// it does not exist, and applies the flags shared by all commands.
func loadOptions(cmd *cli.Command) ([]internal.Option, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadWithDefaults(cmd.String("config"), defaultConfigFile, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if root := cmd.String("root"); root != "" {
		cfg.Paths.Root = root
	}
	return []internal.Option{
		internal.WithConfig(cfg),
		internal.WithVersion(version),
	}, nil
}

func runMap(ctx context.Context, cmd *cli.Command) error {
	opts, err := loadOptions(cmd)
	if err != nil {
		return err
	}
	opts = append(opts,
		internal.WithWatch(cmd.Bool("watch")),
		internal.WithSources(cmd.StringSlice("source")...),
	)
	if err := internal.RunMap(ctx, opts...); err != nil {
		return fmt.Errorf("map error: %w", err)
	}
	return nil
}

func runServe(ctx context.Context, cmd *cli.Command) error {
	opts, err := loadOptions(cmd)
	if err != nil {
		return err
	}
	opts = append(opts, internal.WithWatch(cmd.Bool("watch")))
	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func runMCP(ctx context.Context, cmd *cli.Command) error {
	opts, err := loadOptions(cmd)
	if err != nil {
		return err
	}
	return internal.ServeMCP(ctx, opts...)
}

func runImport(ctx context.Context, cmd *cli.Command) error {
	opts, err := loadOptions(cmd)
	if err != nil {
		return err
	}
	opts = append(opts, internal.WithFiles(cmd.Args().Slice()...))
	return internal.Import(ctx, opts...)
}

func runMetadata(ctx context.Context, cmd *cli.Command) error {
	opts, err := loadOptions(cmd)
	if err != nil {
		return err
	}
	return internal.Metadata(ctx, opts...)
}

func watchFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:  "watch",
		Usage: "Keep remapping Sources when their dump files change",
	}
}

func main() {
	cmd := &cli.Command{
		Name:    "wikimapper",
		Usage:   "Rewrite wiki RDF dumps into per-wiki namespaces and map their URIs to a reference knowledge base",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: defaultConfigFile,
				Value:       defaultConfigFile,
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
			&cli.StringFlag{
				Name:    "root",
				Usage:   "Root directory holding the sources dir; overrides paths.root",
				Sources: cli.EnvVars("WIKIMAPPER_ROOT"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "map",
				Usage:  "Rewrite every Source and write its mapping files, the statistics and the ontology",
				Action: runMap,
				Flags: []cli.Flag{
					watchFlag(),
					&cli.StringSliceFlag{
						Name:  "source",
						Usage: "Map only the named Source (repeatable)",
					},
				},
			},
			{
				Name:   "serve",
				Usage:  "Serve the lookup HTTP API and mapping events",
				Action: runServe,
				Flags:  []cli.Flag{watchFlag()},
			},
			{
				Name:   "mcp",
				Usage:  "Serve the lookup tools over MCP stdio",
				Action: runMCP,
			},
			{
				Name:      "import",
				Usage:     "Load reference dumps (N-Triples or Turtle) into the local oracle",
				ArgsUsage: "FILE...",
				Action:    runImport,
			},
			{
				Name:   "metadata",
				Usage:  "Download the wiki listing and count wikis per language",
				Action: runMetadata,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
