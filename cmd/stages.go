package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"olx-scraper/pipeline"
	"olx-scraper/scraper/olx"
	"olx-scraper/services"
)

func newScrapeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Render the search results page and save its markup",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStage(cmd, func(e *env) pipeline.Stage {
				return pipeline.NewScrapeStage(olx.New(e.cfg, e.logger), e.keyword, e.paths.HTML, e.logger)
			})
		},
	}
	cmd.Flags().String("html", "", "Output HTML path")
	return cmd
}

func newParseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parse",
		Short: "Extract raw listing fields from saved markup",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStage(cmd, func(e *env) pipeline.Stage {
				return pipeline.NewParseStage(olx.NewParser(e.logger), e.paths.HTML, e.paths.Parsed, e.logger)
			})
		},
	}
	cmd.Flags().String("html", "", "Input HTML path")
	cmd.Flags().String("parsed", "", "Output parsed CSV path")
	return cmd
}

func newTransformCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transform",
		Short: "Normalize a parsed CSV into typed listings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStage(cmd, func(e *env) pipeline.Stage {
				return pipeline.NewTransformStage(services.NewCleaner(e.cfg, e.logger), e.paths.Parsed, e.paths.Transformed, e.logger)
			})
		},
	}
	cmd.Flags().String("parsed", "", "Input parsed CSV path")
	cmd.Flags().String("transformed", "", "Output transformed CSV path")
	return cmd
}

func newLoadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "load",
		Short: "Insert a transformed CSV into the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStage(cmd, func(e *env) pipeline.Stage {
				replace, _ := cmd.Flags().GetBool("replace")
				return pipeline.NewLoadStage(pipeline.DefaultStoreOpener(e.cfg, e.logger),
					e.paths.Transformed, e.paths.Inserted, replace, e.logger)
			})
		},
	}
	addLoadFlags(cmd)
	cmd.Flags().String("transformed", "", "Input transformed CSV path")
	cmd.Flags().String("inserted", "", "Output audit JSON path")
	return cmd
}

func addLoadFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("replace", false, "Delete existing rows before inserting")
	cmd.Flags().String("table", "", "Target table (default: $DB_TABLE or scrape_data)")
	cmd.Flags().Bool("insights", false, "Print a summary of the stored listings afterwards")
}

// runStage executes a single stage unconditionally.
func runStage(cmd *cobra.Command, build func(e *env) pipeline.Stage) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer e.logger.Sync()

	ctx, stop := signalContext(cmd)
	defer stop()

	stage := build(e)
	report, err := pipeline.NewRunner(e.logger, true, stage).Run(ctx)
	if err != nil {
		return err
	}

	if load, ok := stage.(*pipeline.LoadStage); ok {
		if want, _ := cmd.Flags().GetBool("insights"); want {
			printInsights(ctx, e, load.Loaded())
		}
	}
	return checkRecords(cmd, e, report.Records())
}

func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}
