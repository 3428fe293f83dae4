// Command backfill runs box score ingestion from the command line.
//
// Usage:
//
//	backfill run --season 2023-24
//	backfill run --season 2023-24 --start 2023-12-01 --end 2023-12-31 --dry-run
//	backfill run --job-file jobs/2023-24.toml
//	backfill scrape --season 2023-24 --out data
//	backfill process --season 2023-24 --file data/2023-24_Season.csv
//	backfill process --season 2023-24 --bucket
//	backfill process --season 2023-24 --file data/2023-24_Season.csv --dry-run --export clean.csv
//	backfill migrate
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/fortuna/boxscore/internal/app"
	"github.com/fortuna/boxscore/internal/config"
	"github.com/fortuna/boxscore/internal/logging"
	"github.com/fortuna/boxscore/internal/pipeline"
	"github.com/fortuna/boxscore/internal/store"
	"github.com/fortuna/boxscore/internal/tabular"
)

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	root := &cobra.Command{
		Use:          "backfill",
		Short:        "NBA box score ingestion CLI",
		SilenceUsage: true,
	}

	root.AddCommand(runCmd())
	root.AddCommand(scrapeCmd())
	root.AddCommand(processCmd())
	root.AddCommand(migrateCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// jobFlags are the selectors shared by every ingestion command.
type jobFlags struct {
	season  string
	start   string
	end     string
	jobFile string
	dryRun  bool
}

func (f *jobFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.season, "season", "", "Season token, e.g. 2023-24")
	cmd.Flags().StringVar(&f.start, "start", "", "First date to include (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.end, "end", "", "Last date to include (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.jobFile, "job-file", "", "TOML job file; flags override its values")
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "Resolve and validate without writing to the database")
}

// spec merges the job file with explicit flags.
func (f *jobFlags) spec() (pipeline.Spec, error) {
	var job config.JobSection
	if f.jobFile != "" {
		jf, err := config.LoadJobFile(f.jobFile)
		if err != nil {
			return pipeline.Spec{}, err
		}
		job = jf.Job
	}
	if f.season != "" {
		job.Season = f.season
	}
	if f.start != "" {
		job.StartDate = f.start
	}
	if f.end != "" {
		job.EndDate = f.end
	}
	if f.dryRun {
		job.DryRun = true
	}
	if job.Season == "" {
		return pipeline.Spec{}, fmt.Errorf("--season or a job file with a season is required")
	}
	if (job.StartDate == "") != (job.EndDate == "") {
		return pipeline.Spec{}, fmt.Errorf("a date range needs both --start and --end")
	}

	spec, err := pipeline.NewSpec(job.Season, job.StartDate, job.EndDate)
	if err != nil {
		return pipeline.Spec{}, err
	}
	spec.DryRun = job.DryRun
	return spec, nil
}

// --------------------------------------------------------------------------
// run command
// --------------------------------------------------------------------------

func runCmd() *cobra.Command {
	var flags jobFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Scrape a season window and store the box scores",
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := flags.spec()
			if err != nil {
				return err
			}
			return withApp(app.Options{Scraping: true}, nil, func(ctx context.Context, a *app.App, log *logrus.Entry) error {
				result, err := a.Pipeline.Run(ctx, spec, newConsoleReporter(log))
				printSummary(result)
				return err
			})
		},
	}
	flags.register(cmd)
	return cmd
}

// --------------------------------------------------------------------------
// scrape command
// --------------------------------------------------------------------------

func scrapeCmd() *cobra.Command {
	var (
		flags  jobFlags
		outDir string
	)
	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Scrape a season window to CSV without touching stored stats",
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := flags.spec()
			if err != nil {
				return err
			}
			// A dry run would skip staging, which is all scrape does.
			spec.DryRun = false
			override := func(cfg *config.Config) {
				if outDir != "" {
					cfg.OutputDir = outDir
				}
			}
			return withApp(app.Options{Scraping: true}, override, func(ctx context.Context, a *app.App, log *logrus.Entry) error {
				result, _, err := a.Pipeline.Scrape(ctx, spec, newConsoleReporter(log))
				printSummary(result)
				if err != nil {
					return err
				}
				for _, staged := range result.Staged {
					fmt.Printf("  wrote:     %s\n", staged)
				}
				return nil
			})
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&outDir, "out", "", "Directory for the season CSV (defaults to OUTPUT_DIR)")
	return cmd
}

// --------------------------------------------------------------------------
// process command
// --------------------------------------------------------------------------

func processCmd() *cobra.Command {
	var (
		flags      jobFlags
		file       string
		fromBucket bool
		export     string
	)
	cmd := &cobra.Command{
		Use:   "process",
		Short: "Load scraped season CSV files into the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			if (file == "") == !fromBucket {
				return fmt.Errorf("exactly one of --file or --bucket is required")
			}
			spec, err := flags.spec()
			if err != nil {
				return err
			}
			return withApp(app.Options{}, nil, func(ctx context.Context, a *app.App, log *logrus.Entry) error {
				var results []*pipeline.Result
				if file != "" {
					results, err = processFile(ctx, a, spec, file, log)
				} else {
					results, err = processBucket(ctx, a, spec, log)
				}
				if err != nil || export == "" {
					return err
				}
				return exportStats(export, results)
			})
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&file, "file", "", "Season CSV to load")
	cmd.Flags().BoolVar(&fromBucket, "bucket", false, "Load the season's CSV files from the object store")
	cmd.Flags().StringVar(&export, "export", "", "Also write the cleaned rows, with their ids, to this CSV file")
	return cmd
}

func processFile(ctx context.Context, a *app.App, spec pipeline.Spec, file string, log *logrus.Entry) ([]*pipeline.Result, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	result, err := a.Pipeline.ProcessCSV(ctx, spec, f, newConsoleReporter(log))
	printSummary(result)
	if err != nil {
		return nil, err
	}
	return []*pipeline.Result{result}, nil
}

func processBucket(ctx context.Context, a *app.App, spec pipeline.Spec, log *logrus.Entry) ([]*pipeline.Result, error) {
	if a.Objects == nil {
		return nil, fmt.Errorf("MINIO_ENDPOINT is not configured")
	}
	names, err := a.Objects.ListCSV(ctx)
	if err != nil {
		return nil, err
	}

	prefix := spec.Season.String() + "_"
	var results []*pipeline.Result
	for _, name := range names {
		if !strings.HasPrefix(path.Base(name), prefix) {
			continue
		}
		log.WithField("object", name).Info("Processing staged CSV")

		obj, err := a.Objects.Get(ctx, name)
		if err != nil {
			return nil, err
		}
		result, err := a.Pipeline.ProcessCSV(ctx, spec, obj, newConsoleReporter(log))
		obj.Close()
		printSummary(result)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		results = append(results, result)
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("no staged CSV for season %s in bucket %s", spec.Season, a.Objects.Bucket())
	}
	return results, nil
}

// exportStats writes the cleaned rows of every result to one CSV file.
func exportStats(file string, results []*pipeline.Result) error {
	var stats []store.PlayerGameStat
	for _, r := range results {
		if r != nil && r.Batch != nil {
			stats = append(stats, r.Batch.Stats...)
		}
	}

	f, err := os.Create(file)
	if err != nil {
		return err
	}
	if err := tabular.WriteStats(f, stats); err != nil {
		f.Close()
		return fmt.Errorf("exporting %s: %w", file, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Printf("  exported:  %s (%d rows)\n", file, len(stats))
	return nil
}

// --------------------------------------------------------------------------
// migrate command
// --------------------------------------------------------------------------

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(app.Options{}, nil, func(ctx context.Context, a *app.App, log *logrus.Entry) error {
				log.Info("✓ Database is up to date")
				return nil
			})
		},
	}
}

// --------------------------------------------------------------------------
// Shared setup
// --------------------------------------------------------------------------

// withApp handles config loading, wiring, and context cancellation.
func withApp(opts app.Options, override func(*config.Config), fn func(ctx context.Context, a *app.App, log *logrus.Entry) error) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if override != nil {
		override(cfg)
	}

	log := logging.Component(logging.New(cfg.LogLevel, cfg.LogFormat, !cfg.IsProduction()), "backfill")

	a, err := app.Build(ctx, cfg, log, opts)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, a, log)
}

func printSummary(result *pipeline.Result) {
	if result != nil {
		fmt.Println(result.Summary())
	}
}
