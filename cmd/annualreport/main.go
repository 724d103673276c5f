// annualreport downloads BSE and NSE annual reports.
//
// Main CLI entrypoint using cobra command framework.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/tidwall/pretty"
	"go.uber.org/zap"

	"github.com/seenimoa/annualreport/internal/config"
	"github.com/seenimoa/annualreport/internal/feed"
	"github.com/seenimoa/annualreport/internal/logging"
	"github.com/seenimoa/annualreport/internal/yearmatch"
	"github.com/seenimoa/annualreport/pkg/models"
	"github.com/seenimoa/annualreport/pkg/utils"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Global config and logger, set by the root command's pre-run.
var (
	cfg    *config.Config
	logger *zap.Logger
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if logger != nil {
		logger.Sync() //nolint:errcheck // stderr sync fails on some terminals
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "annualreport",
	Short: "Download company annual reports from BSE and NSE",
	Long: `annualreport locates and downloads the annual report PDF of a company
for a given year from BSE India and NSE India. Each exchange is driven the
way a person would: search, open the filings page, pick the year, download.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load .env: %w", err)
		}

		var err error
		configFile, _ := cmd.Flags().GetString("config")
		if configFile != "" {
			cfg, err = config.LoadFromFile(configFile)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
			cfg.Logging.Level = lvl
		}
		logger, err = logging.New(cfg.Logging)
		if err != nil {
			return fmt.Errorf("failed to set up logging: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(recentCmd)
	rootCmd.AddCommand(rulesCmd)
	rootCmd.AddCommand(serveCmd)
}

// --- Version Command ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("annualreport %s\n", version)
		fmt.Printf("  commit:  %s\n", commit)
		fmt.Printf("  built:   %s\n", date)
	},
}

// --- Resolve Command ---

var resolveCmd = &cobra.Command{
	Use:   "resolve [name...]",
	Short: "Guess the NSE ticker for company names",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		for _, name := range utils.SplitList(strings.Join(args, " ")) {
			fmt.Printf("%-30s → %s\n", name, utils.ResolveSymbol(name))
		}
	},
}

// --- Rules Command ---

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Show how each exchange labels fiscal years",
	RunE: func(cmd *cobra.Command, args []string) error {
		year, _ := cmd.Flags().GetInt("year")
		for _, r := range yearmatch.Rules() {
			fmt.Printf("%s: %s\n", r.Exchange, r.Description)
		}
		fmt.Println()
		fmt.Printf("For %d: BSE accepts labels containing %d, -%s or /%s; NSE looks for %d or %s.\n",
			year, year, yearmatch.NextYearSuffix(year), yearmatch.NextYearSuffix(year), year, yearmatch.CanonicalLabel(year))
		return nil
	},
}

func init() {
	rulesCmd.Flags().Int("year", utils.CurrentYearIST(), "target year to illustrate")
}

// --- Recent Command ---

var recentCmd = &cobra.Command{
	Use:   "recent",
	Short: "List recently filed annual reports from the NSE feed",
	RunE: func(cmd *cobra.Command, args []string) error {
		company, _ := cmd.Flags().GetString("company")
		year, _ := cmd.Flags().GetInt("year")
		limit, _ := cmd.Flags().GetInt("limit")
		asJSON, _ := cmd.Flags().GetBool("json")

		client := feed.New(cfg.NSE.FeedURL, cfg.Browser.UserAgent, cfg.Download.Timeout, logger)
		filings, err := client.Recent(cmd.Context(), feed.Query{Company: company, Year: year, Limit: limit})
		if err != nil {
			return err
		}

		if asJSON {
			return printJSON(filings)
		}
		if len(filings) == 0 {
			fmt.Println("No matching filings in the feed.")
			return nil
		}
		for _, f := range filings {
			when := "-"
			if !f.Published.IsZero() {
				when = utils.FormatDateTimeIST(f.Published)
			}
			fmt.Printf("%-22s %-8s %s\n  %s\n", when, f.YearLabel, f.Company, f.URL)
		}
		return nil
	},
}

func init() {
	recentCmd.Flags().String("company", "", "filter by company name")
	recentCmd.Flags().Int("year", 0, "filter by target year (NSE convention)")
	recentCmd.Flags().Int("limit", 20, "maximum number of filings")
	recentCmd.Flags().Bool("json", false, "print JSON")
}

// printJSON writes v as indented JSON to stdout.
func printJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(pretty.Pretty(data))
	return err
}

// withTimeout bounds a command when --timeout is set.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// outcomeSummary is one line of the fetch summary.
func outcomeSummary(o models.Outcome) string {
	mark := "✔"
	if !o.Success {
		mark = "✘"
	}
	return fmt.Sprintf("%s %-3s %-30s %s", mark, o.Exchange, o.Query, o.Detail())
}
