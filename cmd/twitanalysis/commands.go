package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/lisanmuaddib/twitanalysis/internal/harvestconfig"
	"github.com/lisanmuaddib/twitanalysis/pkg/annotate"
	"github.com/lisanmuaddib/twitanalysis/pkg/db"
	"github.com/lisanmuaddib/twitanalysis/pkg/harvest"
	"github.com/lisanmuaddib/twitanalysis/pkg/interfaces/twitter"
	"github.com/lisanmuaddib/twitanalysis/pkg/metrics"
	"github.com/lisanmuaddib/twitanalysis/pkg/store"
	"github.com/lisanmuaddib/twitanalysis/pkg/store/backend"
)

// storeError marks a failure to reach the configured store
type storeError struct {
	engine string
	err    error
}

func (e *storeError) Error() string {
	return fmt.Sprintf("opening %s store: %v", e.engine, e.err)
}

func (e *storeError) Unwrap() error { return e.err }

// dbFlags override the DB_* environment
type dbFlags struct {
	engine   string
	name     string
	user     string
	password string
	host     string
	port     string
}

func (f *dbFlags) register(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.StringVar(&f.engine, "engine", "", "storage engine: postgres or sqlite (env DB_ENGINE)")
	flags.StringVar(&f.name, "db-name", "", "database name, or file path for sqlite (env DB_NAME)")
	flags.StringVar(&f.user, "db-user", "", "database user (env DB_USER)")
	flags.StringVar(&f.password, "db-password", "", "database password (env DB_PASSWORD)")
	flags.StringVar(&f.host, "db-host", "", "database host (env DB_HOST)")
	flags.StringVar(&f.port, "db-port", "", "database port (env DB_PORT)")
}

func (f *dbFlags) config() db.Config {
	cfg := db.NewConfig()
	override(&cfg.Engine, f.engine)
	override(&cfg.Name, f.name)
	override(&cfg.User, f.user)
	override(&cfg.Password, f.password)
	override(&cfg.Host, f.host)
	override(&cfg.Port, f.port)
	return cfg
}

// searchFlags override the TWITTER_* environment and describe the searches
type searchFlags struct {
	consumerKey       string
	consumerSecret    string
	accessToken       string
	accessTokenSecret string
	bearerToken       string

	terms     string
	geofilter string
	lat       string
	long      string
	radius    string
	pages     int
	pageSize  int
	cursor    string
	queries   string
}

func (f *searchFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&f.consumerKey, "consumer-key", "", "OAuth consumer key (env TWITTER_CONSUMER_KEY)")
	flags.StringVar(&f.consumerSecret, "consumer-secret", "", "OAuth consumer secret (env TWITTER_CONSUMER_SECRET)")
	flags.StringVar(&f.accessToken, "access-token", "", "OAuth access token (env TWITTER_ACCESS_TOKEN)")
	flags.StringVar(&f.accessTokenSecret, "access-token-secret", "", "OAuth access token secret (env TWITTER_ACCESS_TOKEN_SECRET)")
	flags.StringVar(&f.bearerToken, "bearer-token", "", "application bearer token (env TWITTER_BEARER_TOKEN)")

	flags.StringVar(&f.terms, "terms", "", "search terms")
	flags.StringVar(&f.geofilter, "geofilter", "", `restrict results to "lat,long,radiuskm"`)
	flags.StringVar(&f.lat, "lat", "", "geofilter latitude, used with --long and --radius")
	flags.StringVar(&f.long, "long", "", "geofilter longitude, used with --lat and --radius")
	flags.StringVar(&f.radius, "radius", "", "geofilter radius in km, used with --lat and --long")
	flags.IntVar(&f.pages, "pages", 0, "maximum pages per search (env TWITTER_MAX_PAGES)")
	flags.IntVar(&f.pageSize, "page-size", 0, "results per page, 1-100 (env TWITTER_PAGE_SIZE)")
	flags.StringVar(&f.cursor, "cursor", "", "resume a search from a reported next cursor")
	flags.StringVar(&f.queries, "queries", "", "YAML file of searches to run")
}

func (f *searchFlags) client(log *logrus.Logger) (*twitter.TwitterClient, error) {
	cfg, err := twitter.NewTwitterConfig()
	if err != nil {
		return nil, err
	}
	cfg.Logger = log

	creds := &cfg.Credentials
	override(&creds.ConsumerKey, f.consumerKey)
	override(&creds.ConsumerSecret, f.consumerSecret)
	override(&creds.AccessToken, f.accessToken)
	override(&creds.AccessTokenSecret, f.accessTokenSecret)
	override(&creds.BearerToken, f.bearerToken)

	return twitter.NewTwitterClient(cfg)
}

// searches lists the queries file entries followed by the --terms search
func (f *searchFlags) searches() ([]twitter.SearchParams, error) {
	var params []twitter.SearchParams
	if f.queries != "" {
		file, err := harvestconfig.Load(f.queries)
		if err != nil {
			return nil, err
		}
		params = file.SearchParams()
	}

	if f.terms != "" || f.cursor != "" {
		geofilter := f.geofilter
		if geofilter != "" {
			if _, err := twitter.ParseGeofilter(geofilter); err != nil {
				return nil, err
			}
		} else {
			geo, err := twitter.NewGeofilter(f.lat, f.long, f.radius)
			if err != nil {
				return nil, err
			}
			if geo != nil {
				geofilter = geo.String()
			}
		}
		params = append(params, twitter.SearchParams{
			Terms:     f.terms,
			Geofilter: geofilter,
			PageSize:  f.pageSize,
			MaxPages:  f.pages,
			Cursor:    f.cursor,
		})
	}

	if len(params) == 0 {
		return nil, &twitter.ValidationError{Field: "terms", Message: "pass --terms or --queries"}
	}
	return params, nil
}

// app holds the state shared by every subcommand
type app struct {
	log         *logrus.Logger
	db          dbFlags
	search      searchFlags
	passes      []string
	metricsFile string
	logLevel    string
	metrics     *metrics.RunMetrics
}

// NewRootCommand builds the command tree around log
func NewRootCommand(log *logrus.Logger) *cobra.Command {
	a := &app{log: log, metrics: metrics.New()}

	root := &cobra.Command{
		Use:   "twitanalysis",
		Short: "Harvest tweets into a store and annotate them",
		Long: `twitanalysis fetches paginated search results, stores each new tweet once,
and annotates the stored corpus with emoticon, retweet, clean text and link data.

Credentials are read from TWITTER_* variables and database settings from DB_*
variables, either of which may come from a .env file. Flags override both.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if a.logLevel != "" {
				level, err := logrus.ParseLevel(a.logLevel)
				if err != nil {
					return &twitter.ValidationError{Field: "log level", Value: a.logLevel, Message: err.Error()}
				}
				a.log.SetLevel(level)
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.metricsFile == "" {
				return nil
			}
			return a.metrics.WriteTextfile(a.metricsFile)
		},
	}

	a.db.register(root)
	root.PersistentFlags().StringVar(&a.metricsFile, "metrics-file", "", "write run counters to this node-exporter textfile")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level (env LOG_LEVEL)")

	root.AddCommand(a.harvestCommand(), a.annotateCommand(), a.runCommand(), a.migrateCommand())
	return root
}

func (a *app) harvestCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "harvest",
		Short: "Fetch search results and store new tweets",
		Example: `  twitanalysis harvest --terms golang --pages 3
  twitanalysis harvest --terms coffee --lat 51.5072 --long -0.1276 --radius 10
  twitanalysis harvest --queries queries.yaml --engine sqlite --db-name tweets.db`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.execute(cmd, true, false)
		},
	}
	a.search.register(cmd)
	return cmd
}

func (a *app) annotateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "annotate",
		Short: "Run the annotation passes over every stored tweet",
		Example: `  twitanalysis annotate
  twitanalysis annotate --passes emoticon,retweet`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.execute(cmd, false, true)
		},
	}
	cmd.Flags().StringSliceVar(&a.passes, "passes", nil,
		"passes to run: "+strings.Join(passNames(), ", ")+" (default all)")
	return cmd
}

func (a *app) runCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Harvest and then annotate",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.execute(cmd, true, true)
		},
	}
	a.search.register(cmd)
	cmd.Flags().StringSliceVar(&a.passes, "passes", nil, "passes to run after harvesting (default all)")
	return cmd
}

func (a *app) migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the store schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.db.config()
			st, err := a.openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			if cfg.Engine != db.EnginePostgres {
				fmt.Fprintf(cmd.OutOrStdout(), "schema up to date (%s %s)\n", cfg.Engine, cfg.Name)
				return nil
			}
			version, dirty, err := db.MigrationStatus(a.log, cfg)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (dirty: %t)\n", version, dirty)
			return nil
		},
	}
}

// execute runs the harvest and/or annotate stages. Credentials and
// searches are checked before the store is opened.
func (a *app) execute(cmd *cobra.Command, harvesting, annotating bool) error {
	ctx := cmd.Context()
	start := time.Now()

	cfg := harvest.Config{Metrics: a.metrics, Logger: a.log}

	var searches []twitter.SearchParams
	if harvesting {
		client, err := a.search.client(a.log)
		if err != nil {
			return err
		}
		cfg.Searcher = client

		searches, err = a.search.searches()
		if err != nil {
			return err
		}
	}

	passes, err := annotate.SelectPasses(a.passes)
	if err != nil {
		return &twitter.ValidationError{Field: "passes", Value: strings.Join(a.passes, ","), Message: err.Error()}
	}
	cfg.Passes = passes

	st, err := a.openStore(ctx, a.db.config())
	if err != nil {
		return err
	}
	defer st.Close()
	cfg.Store = st

	h, err := harvest.New(cfg)
	if err != nil {
		return err
	}
	a.log.WithField("run_id", h.RunID()).Debug("Run starting")

	var report *harvest.Report
	switch {
	case harvesting && annotating:
		if report, err = h.Run(ctx, searches); err != nil {
			return err
		}
	default:
		report = &harvest.Report{RunID: h.RunID()}
		if harvesting {
			if report.Searches, err = h.Harvest(ctx, searches); err != nil {
				return err
			}
		}
		if annotating {
			if report.Passes, err = h.Annotate(ctx); err != nil {
				return err
			}
		}
		if report.Counts, err = st.Counts(ctx); err != nil {
			return fmt.Errorf("counting rows: %w", err)
		}
	}

	a.metrics.ObserveStage("total", start)
	return writeSummary(cmd.OutOrStdout(), report)
}

func (a *app) openStore(ctx context.Context, cfg db.Config) (store.Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, &storeError{engine: cfg.Engine, err: err}
	}
	st, err := backend.Open(ctx, a.log, cfg)
	if err != nil {
		return nil, &storeError{engine: cfg.Engine, err: err}
	}
	return st, nil
}

// summary is the YAML document printed after a run
type summary struct {
	RunID    string          `yaml:"run_id"`
	Searches []searchSummary `yaml:"searches,omitempty"`
	Passes   []passSummary   `yaml:"passes,omitempty"`
	Totals   totals          `yaml:"totals"`
}

type searchSummary struct {
	Terms      string `yaml:"terms"`
	Pages      int    `yaml:"pages"`
	Received   int    `yaml:"received"`
	Inserted   int    `yaml:"inserted"`
	Duplicates int    `yaml:"duplicates"`
	Mentions   int    `yaml:"user_mentions"`
	NextCursor string `yaml:"next_cursor,omitempty"`
	Stopped    string `yaml:"stopped,omitempty"`
}

type passSummary struct {
	Pass     string `yaml:"pass"`
	Examined int    `yaml:"examined"`
	Updated  int    `yaml:"updated"`
	Links    int    `yaml:"links,omitempty"`
}

type totals struct {
	Tweets        int64 `yaml:"tweets"`
	Resources     int64 `yaml:"resources"`
	ResourceLinks int64 `yaml:"resource_links"`
	UserMentions  int64 `yaml:"user_mentions"`
}

func writeSummary(w io.Writer, r *harvest.Report) error {
	s := summary{
		RunID: r.RunID,
		Totals: totals{
			Tweets:        r.Counts.Tweets,
			Resources:     r.Counts.Resources,
			ResourceLinks: r.Counts.ResourceLinks,
			UserMentions:  r.Counts.UserMentionLinks,
		},
	}
	for _, sr := range r.Searches {
		ss := searchSummary{
			Terms:      sr.Params.Terms,
			Pages:      sr.Stats.Pages,
			Received:   sr.Stats.Received,
			Inserted:   sr.Stats.Inserted,
			Duplicates: sr.Stats.Duplicates,
			Mentions:   sr.Stats.Mentions,
			NextCursor: sr.Stats.NextCursor,
		}
		if sr.Stats.Stopped != nil {
			ss.Stopped = sr.Stats.Stopped.Error()
		}
		s.Searches = append(s.Searches, ss)
	}
	for _, pr := range r.Passes {
		s.Passes = append(s.Passes, passSummary{Pass: pr.Pass, Examined: pr.Examined, Updated: pr.Updated, Links: pr.Links})
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("writing summary: %w", err)
	}
	return enc.Close()
}

func passNames() []string {
	var names []string
	for _, p := range annotate.DefaultPasses() {
		names = append(names, p.Name())
	}
	return names
}

func override(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}
