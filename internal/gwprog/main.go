// Public domain.

// Package gwprog implements the gwagn command.
package gwprog

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/soniakeys/exit"
	"github.com/soniakeys/unit"
	"github.com/spf13/cobra"

	"github.com/soniakeys/gwagn/astro"
	"github.com/soniakeys/gwagn/dust"
	"github.com/soniakeys/gwagn/internal/catalog"
	"github.com/soniakeys/gwagn/internal/config"
	"github.com/soniakeys/gwagn/internal/gwclass"
	"github.com/soniakeys/gwagn/internal/gwclust"
	"github.com/soniakeys/gwagn/internal/gwext"
	"github.com/soniakeys/gwagn/internal/gwmatch"
	"github.com/soniakeys/gwagn/internal/gwpipe"
	"github.com/soniakeys/gwagn/internal/gwregion"
	"github.com/soniakeys/gwagn/internal/gwsky"
	"github.com/soniakeys/gwagn/internal/gwz"
	"github.com/soniakeys/gwagn/internal/logger"
	"github.com/soniakeys/gwagn/internal/metrics"
)

const versionString = "gwagn version 0.1 Go source."
const copyrightString = "Public domain."

// Main runs the command line.  Errors are reported through exit.
func Main() {
	defer exit.Handler()
	if err := NewCommand().ExecuteContext(context.Background()); err != nil {
		exit.Log(err)
	}
}

// flags are command line overrides of config values.  Only flags given
// on the command line are applied.
type flags struct {
	config    string
	logLevel  string
	credible  float64
	ndays     float64
	alpha     float64
	sigmaCut  string
	batchSize int
	noCuts    bool
	out       string
	plot      string
}

// NewCommand returns the root command with its subcommands.
func NewCommand() *cobra.Command {
	f := &flags{}
	root := &cobra.Command{
		Use:           "gwagn",
		Short:         "Crossmatch a gravitational wave skymap with ALeRCE AGN candidates",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&f.config, "config", "", "YAML config file (default $GWAGN_CONFIG)")
	pf.StringVar(&f.logLevel, "log-level", "", "debug, info, warn or error")
	pf.Float64Var(&f.credible, "credible-level", 0, "credible region level, default .9")

	run := &cobra.Command{
		Use:   "run <skymap-url> <milliquas.csv>",
		Short: "Run the full crossmatch pipeline",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd, f, args[0], args[1])
		},
	}
	rf := run.Flags()
	rf.Float64Var(&f.ndays, "ndays", 0, "first detection window after MJD-OBS, days")
	rf.Float64Var(&f.alpha, "alpha", 0, "alpha shape parameter, <= 0 for convex hulls")
	rf.StringVar(&f.sigmaCut, "sigma-cut", "", "redshift window: 1sigma, 2sigma, 3sigma or ksigma")
	rf.IntVar(&f.batchSize, "batch-size", 0, "objects per classifier query")
	rf.BoolVar(&f.noCuts, "no-cuts", false, "skip sky plane and extinction cuts")
	rf.StringVar(&f.out, "out", "", "directory for stage CSV snapshots")
	rf.StringVar(&f.plot, "plot", "", "write a PNG plot of clusters and candidates")

	skymap := &cobra.Command{
		Use:   "skymap <skymap-url>",
		Short: "Summarize the credible region of a skymap",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSkymap(cmd, f, args[0])
		},
	}
	distance := &cobra.Command{
		Use:   "distance <skymap-url>",
		Short: "Show the distance posterior and redshift windows of a skymap",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDistance(cmd, f, args[0])
		},
	}
	version := &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), versionString)
			fmt.Fprintln(cmd.OutOrStdout(), copyrightString)
		},
	}
	root.AddCommand(run, skymap, distance, version)
	return root
}

// setup loads config, applies flags and initializes logging.
func setup(cmd *cobra.Command, f *flags) (*config.Config, logger.Logger, error) {
	cfg, err := config.Load(cmd.Context(), f.config)
	if err != nil {
		return nil, nil, err
	}
	f.apply(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	if err := logger.Init(cfg.LogLevel, cfg.LogJSON); err != nil {
		return nil, nil, err
	}
	return cfg, logger.Named("gwagn"), nil
}

func (f *flags) apply(cmd *cobra.Command, cfg *config.Config) {
	set := cmd.Flags().Changed
	if set("log-level") {
		cfg.LogLevel = f.logLevel
	}
	if set("credible-level") {
		cfg.Skymap.CredibleLevel = f.credible
	}
	if set("ndays") {
		cfg.Region.NDays = f.ndays
	}
	if set("alpha") {
		cfg.Region.Alpha = f.alpha
	}
	if set("sigma-cut") {
		cfg.Redshift.SigmaCut = f.sigmaCut
	}
	if set("batch-size") {
		cfg.Classify.BatchSize = f.batchSize
	}
	if set("no-cuts") {
		cfg.Extinction.ApplyCuts = !f.noCuts
	}
	if set("out") {
		cfg.OutDir = f.out
	}
}

func httpClient() *http.Client {
	return &http.Client{Timeout: 10 * time.Minute}
}

func skymapLoader(cfg *config.Config, log logger.Logger) *gwsky.Loader {
	return &gwsky.Loader{Client: httpClient(), CacheDir: cfg.CacheDir, Log: log.Named("skymap")}
}

func clusterOptions(c config.Cluster) gwclust.Options {
	return gwclust.Options{
		MaxClusters: c.MaxClusters,
		SampleSize:  c.SampleSize,
		Threshold:   c.Threshold,
		Restarts:    c.Restarts,
		MaxIter:     c.MaxIter,
		Repeatable:  c.Repeatable,
		Seed:        c.Seed,
	}
}

func matchColumns(m config.Match) gwmatch.Columns {
	return gwmatch.Columns{RA: m.RACol, Dec: m.DecCol, Z: m.ZCol, Name: m.NameCol, Type: m.TypeCol}
}

// pipeline assembles the stages from cfg.
func pipeline(ctx context.Context, cfg *config.Config, log logger.Logger, m *metrics.Run, cat gwpipe.Catalog) (*gwpipe.Pipeline, error) {
	client := httpClient()
	sfd, n, err := dust.Load(ctx, client, cfg.Extinction.DustDir)
	if err != nil {
		return nil, fmt.Errorf("dust map: %w", err)
	}
	if n > 0 {
		log.Info(ctx, "dust maps downloaded", logger.String("dir", cfg.Extinction.DustDir),
			logger.Bytes("size", n))
	}
	law, err := astro.NewF99(cfg.Extinction.Rv)
	if err != nil {
		return nil, err
	}
	snap, err := gwpipe.NewSnapshots(cfg.OutDir)
	if err != nil {
		return nil, err
	}
	return &gwpipe.Pipeline{
		Skymaps:  skymapLoader(cfg, log),
		Credible: cfg.Skymap.CredibleLevel,
		Clusters: gwclust.New(clusterOptions(cfg.Cluster), log.Named("cluster")),
		Regions: &gwregion.Engine{
			Alpha:    cfg.Region.Alpha,
			Simplify: cfg.Region.Simplify,
			NDays:    cfg.Region.NDays,
			Log:      log.Named("region"),
			Metrics:  m,
		},
		Catalog: cat,
		NewMatcher: gwpipe.ReferenceMatcher(matchColumns(cfg.Match),
			unit.AngleFromSec(cfg.Match.RadiusArcsec), log.Named("match")),
		Redshift: &gwz.Stage{
			Selector: gwz.ParseSelector(ctx, cfg.Redshift.SigmaCut, log),
			Log:      log.Named("redshift"),
		},
		Enricher: &gwclass.Enricher{
			BatchSize: cfg.Classify.BatchSize,
			MinProb:   cfg.Classify.MinProb,
			Log:       log.Named("classify"),
			Metrics:   m,
		},
		Extinction: &gwext.Filter{
			Dust:      sfd,
			Law:       law,
			ApplyCuts: cfg.Extinction.ApplyCuts,
			Cuts: gwext.Cuts{
				MinEclLat: cfg.Extinction.MinEclLat,
				MinGalLat: cfg.Extinction.MinGalLat,
				MaxAg:     cfg.Extinction.MaxAg,
			},
			Log:     log.Named("extinction"),
			Metrics: m,
		},
		Snapshots: snap,
		Log:       log,
		Metrics:   m,
	}, nil
}

func runPipeline(cmd *cobra.Command, f *flags, skymapURL, refPath string) error {
	ctx := cmd.Context()
	cfg, log, err := setup(cmd, f)
	if err != nil {
		return err
	}
	m := metrics.New()
	cat, err := catalog.Connect(ctx, cfg.Catalog, httpClient(), log.Named("catalog"))
	if err != nil {
		return err
	}
	defer cat.Close()
	p, err := pipeline(ctx, cfg, log, m, cat)
	if err != nil {
		return err
	}
	r, err := p.Run(ctx, skymapURL, refPath)
	if err != nil {
		return err
	}
	if err := gwpipe.Report(cmd.OutOrStdout(), r); err != nil {
		return err
	}
	if f.plot != "" {
		if err := Plot(r, f.plot); err != nil {
			return err
		}
		log.Info(ctx, "plot written", logger.String("file", f.plot))
	}
	d := m.Done()
	log.Info(ctx, "run finished", logger.String("run_id", r.RunID),
		logger.String("duration", d.Round(time.Millisecond).String()))
	if cfg.Metrics.PushURL != "" {
		if err := m.Push(cfg.Metrics.PushURL, cfg.Metrics.Job); err != nil {
			log.Warn(ctx, "metrics push failed", logger.Error(err))
		}
	}
	return nil
}

func runSkymap(cmd *cobra.Command, f *flags, rawURL string) error {
	ctx := cmd.Context()
	cfg, log, err := setup(cmd, f)
	if err != nil {
		return err
	}
	s, err := skymapLoader(cfg, log).Load(ctx, rawURL, cfg.Skymap.CredibleLevel)
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Event %q, MJD-OBS %.5f\n", s.Event, s.MJDObs)
	fmt.Fprintf(w, "%d pixels, %d in the %g credible region\n",
		len(s.Pixels), len(s.Points), s.Credible)
	if len(s.Points) == 0 {
		return nil
	}
	part := gwclust.New(clusterOptions(cfg.Cluster), log.Named("cluster"))
	k := part.FindMinClusters(ctx, s.Points)
	p, err := part.Divide(ctx, k, s.Points)
	if err != nil {
		return err
	}
	e := &gwregion.Engine{Alpha: cfg.Region.Alpha, Simplify: cfg.Region.Simplify,
		Log: log.Named("region")}
	fmt.Fprintf(w, "%d clusters\n", k)
	for _, r := range e.Regions(ctx, p) {
		fmt.Fprintln(w, r)
	}
	return nil
}

func runDistance(cmd *cobra.Command, f *flags, rawURL string) error {
	ctx := cmd.Context()
	cfg, log, err := setup(cmd, f)
	if err != nil {
		return err
	}
	s, err := skymapLoader(cfg, log).Load(ctx, rawURL, cfg.Skymap.CredibleLevel)
	if err != nil {
		return err
	}
	r, err := gwz.Compute(s)
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	src := "header"
	if r.Distance.FromPixels {
		src = "pixels"
	}
	fmt.Fprintf(w, "Event %q distance %.1f ± %.1f Mpc (%s), k = %g\n",
		r.Event, r.Distance.Mean, r.Distance.Std, src, r.Distance.K)
	for _, sel := range gwz.Selectors {
		win := r.Windows[sel]
		fmt.Fprintf(w, "%-7s %5.2fσ  %8.1f - %8.1f Mpc  z %.5f - %.5f\n",
			sel, win.N, win.DMin, win.DMax, win.ZMin, win.ZMax)
	}
	return nil
}
