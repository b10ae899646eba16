// Command jobfilter serves the job postings filter over HTTP and runs
// one-off filter queries from the command line.
package main

import (
	"log/slog"
	"os"

	"github.com/Adithya-Monish-Kumar-K/Job-Filter-Service/pkg/config"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		slog.Error("jobfilter failed", "error", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:                      "jobfilter",
		Usage:                     "Filter job postings by date and word rules",
		DisableSliceFlagSeparator: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to YAML config file (defaults are used when empty)",
				EnvVars: []string{"JF_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Override logging level (debug, info, warn, error)",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Provision the membership indexes and serve the HTTP API",
				Action: serveCommand,
			},
			{
				Name:      "query",
				Usage:     "Run one filter against an in-memory index and print the result as JSON",
				ArgsUsage: " ",
				Action:    queryCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "data",
						Aliases: []string{"d"},
						Usage:   "Path to the precomputed jobs file (defaults to jobs.path)",
					},
					&cli.StringFlag{
						Name:    "after",
						Aliases: []string{"a"},
						Usage:   "Only keep jobs posted after this date (YYYY-MM-DD)",
					},
					&cli.StringSliceFlag{
						Name:    "rule",
						Aliases: []string{"r"},
						Usage:   "Rule as mode:field:words, e.g. require:title:\"go engineer\" (repeatable)",
					},
					&cli.IntFlag{
						Name:  "max-results",
						Usage: "Override filter.maxResults",
					},
				},
			},
		},
	}
}

// loadConfig reads the global --config and --log-level flags.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	if lvl := c.String("log-level"); lvl != "" {
		cfg.Logging.Level = lvl
	}
	return cfg, nil
}
