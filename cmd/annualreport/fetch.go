package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/seenimoa/annualreport/api"
	"github.com/seenimoa/annualreport/internal/browser"
	"github.com/seenimoa/annualreport/internal/engine"
	"github.com/seenimoa/annualreport/internal/feed"
	"github.com/seenimoa/annualreport/pkg/models"
	"github.com/seenimoa/annualreport/pkg/utils"
)

// fiscalNote is printed before every fetch; the two exchanges disagree on
// what a bare year means.
const fiscalNote = "Note: NSE %d refers to FY %d-%s, while BSE %d refers to FY %d-%s."

// --- Fetch Command ---

var fetchCmd = &cobra.Command{
	Use:   "fetch [company,...]",
	Short: "Download annual reports for one or more companies",
	Long: `Download the annual report PDF of each company for the given year.

Companies may be passed as arguments or with --companies, separated by
commas or newlines. Each company is looked up on the selected exchanges
and the report is saved as <EXCHANGE>_<Name>_<Year>_AnnualReport.pdf.`,
	Example: `  annualreport fetch "Reliance Industries" --year 2024
  annualreport fetch --companies "TCS, Infosys" --exchange nse --json`,
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().String("companies", "", "comma or newline separated company names")
	fetchCmd.Flags().Int("year", utils.CurrentYearIST(), "target year")
	fetchCmd.Flags().String("exchange", "both", "exchange to query (bse, nse, both)")
	fetchCmd.Flags().String("out", "", "output directory (default: download.dir from config)")
	fetchCmd.Flags().Bool("json", false, "print outcomes as JSON")
	fetchCmd.Flags().Bool("resolve-symbol", false, "map company names to NSE tickers before searching")
	fetchCmd.Flags().Bool("headed", false, "show the browser window")
	fetchCmd.Flags().Duration("timeout", 0, "overall time limit (0 = none)")
}

func runFetch(cmd *cobra.Command, args []string) error {
	listFlag, _ := cmd.Flags().GetString("companies")
	year, _ := cmd.Flags().GetInt("year")
	exFlag, _ := cmd.Flags().GetString("exchange")
	dir, _ := cmd.Flags().GetString("out")
	asJSON, _ := cmd.Flags().GetBool("json")
	resolve, _ := cmd.Flags().GetBool("resolve-symbol")
	headed, _ := cmd.Flags().GetBool("headed")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	companies := utils.SplitList(strings.Join(append(args, listFlag), ","))
	if len(companies) == 0 {
		return fmt.Errorf("no companies given")
	}
	if resolve {
		for i, c := range companies {
			companies[i] = utils.ResolveSymbol(c)
		}
	}
	exchanges, err := models.ParseExchanges(exFlag)
	if err != nil {
		return err
	}
	if dir == "" {
		dir = cfg.Download.Dir
	}
	if headed {
		cfg.Browser.Headless = false
	}

	ctx, cancel := withTimeout(cmd.Context(), timeout)
	defer cancel()

	say := func(msg string) {
		if !asJSON {
			fmt.Println(msg)
		}
	}
	fmt.Fprintf(cmd.ErrOrStderr(), fiscalNote+"\n\n",
		year, year, twoDigits(year+1), year, year-1, twoDigits(year))

	launcher := browser.NewChrome(browser.ChromeOptionsFromConfig(cfg.Browser), logger)
	eng := engine.NewFromConfig(cfg, launcher, logger).WithNarrator(say)

	start := time.Now()
	outcomes := eng.RunBatch(ctx, companies, year, exchanges, dir)
	logger.Info("Fetch finished",
		zap.Int("companies", len(companies)),
		zap.Int("outcomes", len(outcomes)),
		zap.Duration("elapsed", time.Since(start)),
	)

	if asJSON {
		if err := printJSON(outcomes); err != nil {
			return err
		}
	} else {
		fmt.Println()
		fmt.Println("Summary:")
		for _, o := range outcomes {
			fmt.Println(outcomeSummary(o))
		}
	}
	return fetchError(outcomes, ctx.Err())
}

// fetchError turns the batch result into the command's exit status.
// "Not found" and "no report for year" are answers, not faults; only
// navigation or download failures make the command fail.
func fetchError(outcomes []models.Outcome, ctxErr error) error {
	if ctxErr != nil {
		return fmt.Errorf("fetch interrupted: %w", ctxErr)
	}
	faults := 0
	for _, o := range outcomes {
		if !o.Success && o.Kind.Fatal() {
			faults++
		}
	}
	if faults > 0 {
		return fmt.Errorf("%d of %d lookups failed", faults, len(outcomes))
	}
	return nil
}

func twoDigits(y int) string { return fmt.Sprintf("%02d", y%100) }

// --- Serve Command ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server with live job logs over WebSocket",
	RunE: func(cmd *cobra.Command, args []string) error {
		if port, _ := cmd.Flags().GetInt("port"); port > 0 {
			cfg.API.Port = port
		}
		if headed, _ := cmd.Flags().GetBool("headed"); headed {
			cfg.Browser.Headless = false
		}

		launcher := browser.NewChrome(browser.ChromeOptionsFromConfig(cfg.Browser), logger)
		srv := api.NewServer(api.Options{
			Config:  cfg,
			Engine:  engine.NewFromConfig(cfg, launcher, logger),
			Feed:    feed.New(cfg.NSE.FeedURL, cfg.Browser.UserAgent, cfg.Download.Timeout, logger).WithCache(cfg.Cache.FeedTTL),
			Logger:  logger,
			Version: version,
		})

		addr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
		fmt.Printf("annualreport API listening on http://%s\n", addr)
		return srv.ListenAndServe(cmd.Context(), addr)
	},
}

func init() {
	serveCmd.Flags().Int("port", 0, "listen port (default: api.port from config)")
	serveCmd.Flags().Bool("headed", false, "show the browser window")
}
