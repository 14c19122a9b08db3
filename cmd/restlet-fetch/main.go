// Command restlet-fetch retrieves NetSuite saved-search results from a
// RESTlet endpoint, with filtering and a local result cache.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/ledgerline/netsuite-restlet-client/internal/config"
	"github.com/ledgerline/netsuite-restlet-client/pkg/cache"
	"github.com/ledgerline/netsuite-restlet-client/pkg/filter"
	"github.com/ledgerline/netsuite-restlet-client/pkg/logging"
	"github.com/ledgerline/netsuite-restlet-client/pkg/oauth"
	"github.com/ledgerline/netsuite-restlet-client/pkg/pagination"
	"github.com/ledgerline/netsuite-restlet-client/pkg/restlet"
	"github.com/ledgerline/netsuite-restlet-client/pkg/retrieval"
)

var version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "restlet-fetch",
		Short: "NetSuite saved-search retrieval client",
		Long: `restlet-fetch pulls complete saved-search result sets from a
NetSuite RESTlet: OAuth 1.0a signing, parallel pagination with
rate-limit aware retries, server-side filtering and a TTL result
cache.

Credentials and the endpoint come from NETSUITE_* environment
variables; run with --help on a subcommand for the filter flags.`,
		Version: version,
	}

	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error (default from LOG_LEVEL)")
	rootCmd.PersistentFlags().Bool("pretty", false, "human-readable log output")

	rootCmd.AddCommand(fetchCmd())
	rootCmd.AddCommand(cacheCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func fetchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch [search-id]",
		Short: "Fetch all pages of a saved search",
		Long: `Fetch every page of a saved search and print the assembled
result. The search ID defaults to NETSUITE_SAVED_SEARCH_ID.

Examples:
  restlet-fetch fetch customsearch_gl_detail
  restlet-fetch fetch customsearch_gl_detail --periods "Jan 2025,Feb 2025" --departments Sales
  restlet-fetch fetch customsearch_gl_detail --start-date 01/01/2025 --end-date 03/31/2025 --summary`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup(cmd)
			if err != nil {
				return err
			}

			searchID := cfg.DefaultSearchID
			if len(args) > 0 {
				searchID = args[0]
			}
			if searchID == "" {
				return fmt.Errorf("no search ID given and %s is unset", config.EnvSavedSearchID)
			}

			periods, _ := cmd.Flags().GetStringSlice("periods")
			startDate, _ := cmd.Flags().GetString("start-date")
			endDate, _ := cmd.Flags().GetString("end-date")
			dateField, _ := cmd.Flags().GetString("date-field")
			departments, _ := cmd.Flags().GetStringSlice("departments")
			accountPrefixes, _ := cmd.Flags().GetStringSlice("account-prefixes")
			accountName, _ := cmd.Flags().GetString("account-name")
			txnTypes, _ := cmd.Flags().GetStringSlice("types")
			subsidiary, _ := cmd.Flags().GetString("subsidiary")
			noCache, _ := cmd.Flags().GetBool("no-cache")
			snapshot, _ := cmd.Flags().GetBool("snapshot")
			summaryOnly, _ := cmd.Flags().GetBool("summary")

			filters := filter.Params{
				PeriodNames:      periods,
				StartDate:        startDate,
				EndDate:          endDate,
				DateField:        dateField,
				Departments:      departments,
				AccountPrefixes:  accountPrefixes,
				AccountName:      accountName,
				TransactionTypes: txnTypes,
				Subsidiary:       subsidiary,
				ExcludeTotals:    true,
			}

			retriever, err := buildRetriever(cfg)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			opts := retrieval.Options{BypassCache: noCache}
			if snapshot {
				opts.CacheTTL = cfg.SnapshotTTL
			}

			result, err := retriever.Retrieve(ctx, searchID, filters, opts)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if summaryOnly {
				return enc.Encode(result.Summary())
			}
			return enc.Encode(result)
		},
	}

	cmd.Flags().StringSlice("periods", nil, "accounting period names, e.g. \"Jan 2025\" (overrides date range)")
	cmd.Flags().String("start-date", "", "start date, MM/DD/YYYY")
	cmd.Flags().String("end-date", "", "end date, MM/DD/YYYY")
	cmd.Flags().String("date-field", "", "transaction date field for the range (default trandate)")
	cmd.Flags().StringSlice("departments", nil, "department names")
	cmd.Flags().StringSlice("account-prefixes", nil, "account number prefixes, e.g. 6,7")
	cmd.Flags().String("account-name", "", "account name substring")
	cmd.Flags().StringSlice("types", nil, "transaction types, e.g. Journal,Bill")
	cmd.Flags().String("subsidiary", "", "subsidiary internal ID")
	cmd.Flags().Bool("no-cache", false, "bypass the result cache")
	cmd.Flags().Bool("snapshot", false, "cache the result with the longer snapshot TTL")
	cmd.Flags().Bool("summary", false, "print row counts and numeric stats instead of rows")

	return cmd
}

func cacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the result cache",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List cached retrievals",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup(cmd)
			if err != nil {
				return err
			}
			manager, err := buildCache(cfg)
			if err != nil {
				return err
			}

			infos, err := manager.List(cmd.Context())
			if err != nil {
				return err
			}
			if len(infos) == 0 {
				fmt.Println("cache is empty")
				return nil
			}
			for _, info := range infos {
				state := "fresh"
				if info.Expired {
					state = "expired"
				}
				fmt.Printf("%s  %-30s  rows=%-7d  cached %s  [%s]\n",
					info.Key[:12], info.SearchID, info.RowCount,
					info.CachedAt.Format(time.RFC3339), state)
				if info.FilterSummary != "" {
					fmt.Printf("              %s\n", info.FilterSummary)
				}
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove all cached retrievals",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup(cmd)
			if err != nil {
				return err
			}
			manager, err := buildCache(cfg)
			if err != nil {
				return err
			}

			removed, err := manager.Clear(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("removed %d cache entries\n", removed)
			return nil
		},
	})

	return cmd
}

// setup loads configuration and configures logging from the
// persistent flags.
func setup(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	level := cfg.LogLevel
	if flagLevel, _ := cmd.Flags().GetString("log-level"); flagLevel != "" {
		level = flagLevel
	}
	pretty, _ := cmd.Flags().GetBool("pretty")

	logging.Setup(logging.Config{
		Level:  logging.LogLevel(level),
		Pretty: pretty,
		Output: os.Stderr,
	})

	return cfg, nil
}

func buildCache(cfg *config.Config) (*cache.Manager, error) {
	var store cache.Store
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", config.EnvRedisURL, err)
		}
		store = cache.NewRedisStore(redis.NewClient(opts))
	} else {
		diskStore, err := cache.NewDiskStore(cfg.CacheDir)
		if err != nil {
			return nil, err
		}
		store = diskStore
	}
	return cache.NewManager(store, cfg.CacheTTL), nil
}

func buildRetriever(cfg *config.Config) (*retrieval.Retriever, error) {
	fetcherCfg := restlet.DefaultConfig()
	fetcherCfg.PageSize = cfg.PageSize
	fetcherCfg.HTTPTimeout = cfg.HTTPTimeout

	fetcher, err := restlet.NewFetcher(cfg.RESTletURL, oauth.NewSigner(cfg.Credentials()), fetcherCfg)
	if err != nil {
		return nil, err
	}

	orchCfg := pagination.DefaultConfig()
	orchCfg.MaxWorkers = cfg.MaxWorkers
	orchCfg.MinParallelPages = cfg.MinParallelPages
	orchCfg.IntraWaveDelay = cfg.IntraWaveDelay
	orchCfg.InterWaveDelay = cfg.InterWaveDelay
	orchestrator := pagination.NewOrchestrator(fetcher, orchCfg)

	manager, err := buildCache(cfg)
	if err != nil {
		return nil, err
	}

	return retrieval.New(orchestrator, manager), nil
}
