// Package cmd implements the olx-scraper command line.
package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"olx-scraper/config"
	"olx-scraper/utils"
)

var errNoRecords = errors.New("no records produced")

// NewRootCmd creates the root command with every pipeline stage attached.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "olx-scraper",
		Short: "Scrape, normalize and store OLX used-car listings",
		Long: `olx-scraper collects used-car listings from the OLX Indonesia catalog for a
search keyword and runs them through four stages:

  scrape     render the search page and reveal every listing  -> data/raw_html/<kw>.html
  parse      extract raw listing fields                       -> data/parsed/<kw>.csv
  transform  normalize prices, dates, mileage and installments -> data/transformed/<kw>_transformed.csv
  load       insert into the database                         -> data/inserted/<kw>_inserted.json

Examples:
  # Full pipeline, resuming after the last completed stage
  olx-scraper run -k "toyota calya"

  # Redo everything and print a summary of the stored listings
  olx-scraper run -k "bmw 3 series" --force --insights

  # Only re-normalize an existing parsed CSV
  olx-scraper transform -k "toyota calya"`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringP("keyword", "k", "", "Search keyword (default: $KEYWORD)")
	cmd.PersistentFlags().StringP("config", "c", "", "YAML configuration file (default: $CONFIG_FILE)")
	cmd.PersistentFlags().String("log-level", "", "Console log level: debug, info, warn, error")
	cmd.PersistentFlags().Bool("allow-empty", false, "Exit successfully even when no records were produced")

	cmd.AddCommand(newScrapeCmd())
	cmd.AddCommand(newParseCmd())
	cmd.AddCommand(newTransformCmd())
	cmd.AddCommand(newLoadCmd())
	cmd.AddCommand(newRunCmd())

	return cmd
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// env is what every subcommand needs after flags and config are resolved.
type env struct {
	cfg     *config.Config
	logger  *utils.Logger
	keyword string
	paths   config.Paths
}

func setup(cmd *cobra.Command) (*env, error) {
	flags := cmd.Flags()

	configPath, err := flags.GetString("config")
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	if level, _ := flags.GetString("log-level"); level != "" {
		cfg.LogLevel = level
	}
	if table, _ := flags.GetString("table"); table != "" {
		cfg.TableName = table
	}

	keyword, _ := flags.GetString("keyword")
	if keyword == "" {
		keyword = cfg.Keyword
	}
	if config.Slug(keyword) == "" {
		return nil, errors.New("a search keyword is required (--keyword or KEYWORD)")
	}

	logger, err := utils.NewLoggerWithOptions(utils.LoggerOptions{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		logger = utils.NewLogger()
		logger.Warn("[cli] %v; logging to console only", err)
	}

	paths := cfg.Paths(keyword)
	for name, dst := range map[string]*string{
		"html":        &paths.HTML,
		"parsed":      &paths.Parsed,
		"transformed": &paths.Transformed,
		"inserted":    &paths.Inserted,
	} {
		if f := flags.Lookup(name); f != nil && f.Changed {
			*dst = f.Value.String()
		}
	}

	return &env{cfg: cfg, logger: logger, keyword: keyword, paths: paths}, nil
}

// checkRecords turns an empty run into an error unless --allow-empty is set.
func checkRecords(cmd *cobra.Command, e *env, records int) error {
	if records != 0 {
		return nil
	}
	if allow, _ := cmd.Flags().GetBool("allow-empty"); allow {
		e.logger.Warn("[cli] No records produced for keyword=%q", e.keyword)
		return nil
	}
	return fmt.Errorf("%w for keyword %q (pass --allow-empty to accept)", errNoRecords, e.keyword)
}
