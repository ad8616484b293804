package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"olx-scraper/models"
	"olx-scraper/pipeline"
	"olx-scraper/scraper/olx"
	"olx-scraper/services"
	"olx-scraper/storage"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run scrape, parse, transform and load in order",
		Long: `Run executes the whole pipeline for one keyword. Each stage writes an output
file; stages whose output already exists are skipped, so an interrupted run
resumes where it stopped. Use --force to redo every stage.`,
		Args: cobra.NoArgs,
		RunE: runPipelineCmd,
	}
	cmd.Flags().Bool("force", false, "Rerun every stage even if its output exists")
	addLoadFlags(cmd)
	cmd.Flags().String("html", "", "HTML path")
	cmd.Flags().String("parsed", "", "Parsed CSV path")
	cmd.Flags().String("transformed", "", "Transformed CSV path")
	cmd.Flags().String("inserted", "", "Audit JSON path")
	return cmd
}

func runPipelineCmd(cmd *cobra.Command, _ []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer e.logger.Sync()

	ctx, stop := signalContext(cmd)
	defer stop()

	force, _ := cmd.Flags().GetBool("force")
	replace, _ := cmd.Flags().GetBool("replace")

	e.logger.Info("[cli] ===== START pipeline for keyword=%q =====", e.keyword)

	load := pipeline.NewLoadStage(pipeline.DefaultStoreOpener(e.cfg, e.logger),
		e.paths.Transformed, e.paths.Inserted, replace, e.logger)
	runner := pipeline.NewRunner(e.logger, force,
		pipeline.NewScrapeStage(olx.New(e.cfg, e.logger), e.keyword, e.paths.HTML, e.logger),
		pipeline.NewParseStage(olx.NewParser(e.logger), e.paths.HTML, e.paths.Parsed, e.logger),
		pipeline.NewTransformStage(services.NewCleaner(e.cfg, e.logger), e.paths.Parsed, e.paths.Transformed, e.logger),
		load,
	)

	report, err := runner.Run(ctx)
	if err != nil {
		return err
	}
	e.logger.Info("[cli] ===== pipeline DONE for keyword=%q =====", e.keyword)
	printSummary(cmd.OutOrStdout(), report)

	if want, _ := cmd.Flags().GetBool("insights"); want {
		printInsights(ctx, e, load.Loaded())
	}
	return checkRecords(cmd, e, report.Records())
}

func printSummary(w io.Writer, r *pipeline.Report) {
	fmt.Fprintln(w)
	for _, s := range r.Stages {
		if s.Skipped {
			fmt.Fprintf(w, "  %-10s skipped  %s\n", s.Name, s.Output)
			continue
		}
		fmt.Fprintf(w, "  %-10s %7d  %s\n", s.Name, s.Records, s.Output)
	}
	fmt.Fprintln(w)
}

// printInsights summarizes the stored listings. When the database cannot be
// read it falls back to the listings this run loaded, then to the
// transformed CSV.
func printInsights(ctx context.Context, e *env, loaded []*models.Listing) {
	listings, err := fetchStored(ctx, e)
	if err != nil {
		e.logger.Error("[insights] Failed to fetch listings from DB: %v", err)
		listings = loaded
		if listings == nil {
			if listings, err = storage.ReadListingsCSV(e.paths.Transformed); err != nil {
				e.logger.Error("[insights] No listings available: %v", err)
				return
			}
		}
	}

	svc := services.NewInsightService(e.logger)
	svc.Print(svc.Generate(listings))
}

// fetchStored pings the database once; insights fall back rather than wait.
func fetchStored(ctx context.Context, e *env) ([]*models.Listing, error) {
	store, err := storage.Open(ctx, e.cfg, e.logger, storage.WithPingAttempts(1))
	if err != nil {
		return nil, err
	}
	defer store.Close()
	return store.FetchAll(ctx)
}
