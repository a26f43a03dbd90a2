package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"text/tabwriter"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/semaphore"

	"review_action/internal/adapters/csvio"
	"review_action/internal/adapters/observability"
	redisad "review_action/internal/adapters/redis"
	"review_action/internal/adapters/serpapi"
	"review_action/internal/app"
	"review_action/internal/domain"
	"review_action/internal/shared"
	"review_action/internal/storage/sqlstore"
)

// env carries what every subcommand needs once config has been loaded.
type env struct {
	cfg    shared.Config
	repo   *sqlstore.Repo
	cache  domain.Cache
	source domain.ReviewSource
	closer []func()
}

func (e *env) Close() {
	for i := len(e.closer) - 1; i >= 0; i-- {
		e.closer[i]()
	}
}

func setup(ctx context.Context, cfgPath string) (*env, error) {
	cfg, err := shared.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	log.Logger = observability.NewLogger("review-ingestor", cfg.AppEnv, cfg.LogLevel)

	repo, err := sqlstore.Open(ctx, cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return nil, err
	}
	e := &env{cfg: cfg, repo: repo}
	e.closer = append(e.closer, func() { _ = repo.Close() })
	if err := repo.EnsureSchema(ctx); err != nil {
		e.Close()
		return nil, err
	}

	// The API caches analyses in redis; writes from here must invalidate
	// them too. Without redis the CLI still works, uncached.
	if cfg.RedisAddr != "" {
		rc := redisad.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := rc.Ping(ctx); err != nil {
			log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unavailable; analysis cache not invalidated")
			_ = rc.Close()
		} else {
			e.cache = rc
			e.closer = append(e.closer, func() { _ = rc.Close() })
		}
	}

	if cfg.SerpAPIKey != "" {
		cl, err := serpapi.New(cfg.SerpAPIBaseURL, cfg.SerpAPIKey, cfg.SerpAPIRPS)
		if err != nil {
			e.Close()
			return nil, err
		}
		e.source = cl
	}
	return e, nil
}

// newRootCmd builds the command tree. The returned func releases whatever
// the executed command opened; it is safe to call when nothing ran.
func newRootCmd() (*cobra.Command, func()) {
	var cfgPath string
	var tenant string
	var e *env

	root := &cobra.Command{
		Use:           "ingestor",
		Short:         "Load reviews into a tenant and turn them into a ranked action list",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			e, err = setup(cmd.Context(), cfgPath)
			return err
		},
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "YAML config file (defaults to $CONFIG_FILE)")
	root.PersistentFlags().StringVarP(&tenant, "tenant", "t", "", "business id the command acts on")

	envFn := func() *env { return e }
	tenantFn := func() string { return tenant }

	root.AddCommand(
		newTenantCmd(envFn),
		newIngestCmd(envFn, tenantFn),
		newAnalyzeCmd(envFn, tenantFn),
		newPurgeCmd(envFn, tenantFn),
	)
	return root, func() {
		if e != nil {
			e.Close()
		}
	}
}

func newTenantCmd(envFn func() *env) *cobra.Command {
	cmd := &cobra.Command{Use: "tenant", Short: "Manage business accounts"}

	var password string
	add := &cobra.Command{
		Use:   "add <business-id>",
		Short: "Register a business id with a password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e := envFn()
			if password == "" {
				password = os.Getenv("TENANT_PASSWORD")
			}
			// sessions are not created here, so no cache is needed
			auth := app.NewAuthService(e.repo, nil, 0)
			if err := auth.Register(cmd.Context(), args[0], password); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "tenant %s created\n", args[0])
			return nil
		},
	}
	add.Flags().StringVar(&password, "password", "", "password (or $TENANT_PASSWORD)")
	cmd.AddCommand(add)
	return cmd
}

func newIngestCmd(envFn func() *env, tenantFn func() string) *cobra.Command {
	cmd := &cobra.Command{Use: "ingest", Short: "Add reviews to a tenant"}

	service := func() *app.IngestionService {
		e := envFn()
		return app.NewIngestionService(e.repo, e.source, e.cache)
	}

	csvCmd := &cobra.Command{
		Use:   "csv <file|->",
		Short: "Import a CSV export (text column required; rating, date optional)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, closeFn, err := openInput(cmd, args[0])
			if err != nil {
				return err
			}
			defer closeFn()
			rep, err := service().IngestCSV(cmd.Context(), tenantFn(), r)
			if err != nil {
				return err
			}
			printReport(cmd.OutOrStdout(), rep)
			return nil
		},
	}

	textCmd := &cobra.Command{
		Use:   "text <file|->",
		Short: "Import pasted reviews, one per line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, closeFn, err := openInput(cmd, args[0])
			if err != nil {
				return err
			}
			defer closeFn()
			b, err := io.ReadAll(r)
			if err != nil {
				return err
			}
			rep, err := service().IngestText(cmd.Context(), tenantFn(), string(b))
			if err != nil {
				return err
			}
			printReport(cmd.OutOrStdout(), rep)
			return nil
		},
	}

	var limit int
	placesCmd := &cobra.Command{
		Use:   "places <place-id>...",
		Short: "Import public Google Maps reviews through SerpAPI",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e := envFn()
			if e.source == nil {
				return fmt.Errorf("SERPAPI_KEY is not set")
			}
			return importPlaces(cmd.Context(), service(), tenantFn(), args, limit, e.cfg.IngestWorkers, cmd.OutOrStdout())
		},
	}
	placesCmd.Flags().IntVar(&limit, "limit", app.DefaultImportLimit, "max reviews per place")

	var location string
	searchCmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Look up place ids by business name",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cl, ok := envFn().source.(*serpapi.Client)
			if !ok {
				return fmt.Errorf("SERPAPI_KEY is not set")
			}
			places, err := cl.SearchPlaces(cmd.Context(), strings.Join(args, " "), location)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "PLACE_ID\tTITLE\tADDRESS")
			for _, p := range places {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", p.PlaceID, p.Title, p.Address)
			}
			return tw.Flush()
		},
	}
	searchCmd.Flags().StringVar(&location, "location", "", "optional location hint")

	cmd.AddCommand(csvCmd, textCmd, placesCmd, searchCmd)
	return cmd
}

// importPlaces fans the place ids out over at most workers goroutines.
func importPlaces(ctx context.Context, ing *app.IngestionService, tenant string, ids []string, limit, workers int, out io.Writer) error {
	if workers <= 0 {
		workers = 1
	}
	sem := semaphore.NewWeighted(int64(workers))
	var wg sync.WaitGroup
	var mu sync.Mutex
	var failed int

	for _, id := range ids {
		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}

		wg.Add(1)
		go func(placeID string) {
			defer wg.Done()
			defer sem.Release(1)

			rep, err := ing.ImportPlace(ctx, tenant, placeID, limit)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				log.Warn().Str("place", placeID).Err(err).Msg("import failed")
				return
			}
			log.Info().Str("place", placeID).Int("inserted", rep.Inserted).Msg("import ok")
			fmt.Fprintf(out, "%s: %d new reviews\n", placeID, rep.Inserted)
		}(id)
	}

	wg.Wait()
	if err := ctx.Err(); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d places failed", failed, len(ids))
	}
	return nil
}

func newAnalyzeCmd(envFn func() *env, tenantFn func() string) *cobra.Command {
	var k int
	var out string
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Cluster the tenant's reviews and print the ranked action list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e := envFn()
			actions, err := shared.LoadActions(e.cfg.ActionsFile)
			if err != nil {
				return err
			}
			svc, err := app.NewAnalysisService(e.repo, e.cache, e.cfg.CacheTTL(), app.Options{
				K:           e.cfg.Clusters,
				Seed:        e.cfg.ClusterSeed,
				MaxFeatures: e.cfg.MaxFeatures,
				Weights:     e.cfg.Weights,
				Actions:     actions,
			})
			if err != nil {
				return err
			}
			a, err := svc.Analyze(cmd.Context(), tenantFn(), k)
			if err != nil {
				return err
			}
			if out == "" {
				return printAnalysis(cmd.OutOrStdout(), a)
			}
			f, err := os.Create(out)
			if err != nil {
				return err
			}
			if err := csvio.WriteIssues(f, a.Clusters); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d issues to %s\n", len(a.Clusters), out)
			return nil
		},
	}
	cmd.Flags().IntVar(&k, "k", 0, "number of issue clusters (default from config)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the action list as CSV to this file")
	return cmd
}

func newPurgeCmd(envFn func() *env, tenantFn func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Delete every review of the tenant",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e := envFn()
			n, err := app.NewIngestionService(e.repo, nil, e.cache).DeleteAll(cmd.Context(), tenantFn())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d reviews\n", n)
			return nil
		},
	}
}

func openInput(cmd *cobra.Command, name string) (io.Reader, func(), error) {
	if name == "-" {
		return cmd.InOrStdin(), func() {}, nil
	}
	f, err := os.Open(name)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { _ = f.Close() }, nil
}

func printReport(w io.Writer, rep app.IngestReport) {
	fmt.Fprintf(w, "inserted %d reviews\n", rep.Inserted)
	for _, s := range rep.Skipped {
		fmt.Fprintf(w, "  skipped line %d: %s\n", s.Line, s.Reason)
	}
}

func printAnalysis(w io.Writer, a domain.Analysis) error {
	fmt.Fprintf(w, "%d reviews, %.1f%% negative, avg sentiment %.3f\n\n",
		a.Summary.Reviews, a.Summary.NegativePct, a.Summary.AvgSentiment)
	if len(a.Clusters) == 0 {
		fmt.Fprintln(w, "no reviews yet")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tISSUE\tSIZE\tFREQ%\tSENTIMENT\tPRIORITY\tACTION")
	for i, c := range a.Clusters {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%.1f\t%.3f\t%.3f\t%s\n",
			i+1, c.Label, c.Size, c.FrequencyPct, c.MeanSentiment, c.PriorityScore, c.RecommendedAction)
	}
	return tw.Flush()
}
