// Public domain.

// Package gwpipe sequences the crossmatch stages: skymap, clusters,
// region queries, reference match, redshift window, classification and
// extinction.
package gwpipe

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/soniakeys/unit"

	"github.com/soniakeys/gwagn/internal/catalog"
	"github.com/soniakeys/gwagn/internal/gwclass"
	"github.com/soniakeys/gwagn/internal/gwclust"
	"github.com/soniakeys/gwagn/internal/gwext"
	"github.com/soniakeys/gwagn/internal/gwmatch"
	"github.com/soniakeys/gwagn/internal/gwregion"
	"github.com/soniakeys/gwagn/internal/gwsky"
	"github.com/soniakeys/gwagn/internal/gwz"
	"github.com/soniakeys/gwagn/internal/logger"
	"github.com/soniakeys/gwagn/internal/metrics"
)

// Stage interfaces.  The concrete types in the stage packages satisfy
// them.
type (
	SkymapLoader interface {
		Load(ctx context.Context, rawURL string, c float64) (*gwsky.Skymap, error)
	}
	Clusterer interface {
		FindMinClusters(ctx context.Context, pts []gwsky.Point) int
		Divide(ctx context.Context, k int, pts []gwsky.Point) (*gwclust.Partition, error)
	}
	RegionQuerier interface {
		Query(ctx context.Context, part *gwclust.Partition, mjdObs float64, q gwregion.Querier) ([]catalog.Object, error)
	}
	CrossMatcher interface {
		Match(ctx context.Context, objs []catalog.Object) []gwmatch.Match
	}
	RedshiftFilter interface {
		Apply(ctx context.Context, s *gwsky.Skymap, ms []gwmatch.Match) (*gwz.Result, gwz.Window, []gwmatch.Match, error)
	}
	Enricher interface {
		Enrich(ctx context.Context, q gwclass.Querier, oids []string) (*gwclass.Result, error)
	}
	ExtinctionFilter interface {
		Apply(ctx context.Context, cands []gwclass.Candidate) (all, kept []gwext.Row)
	}
)

// Catalog is the database surface used by the region and classifier
// stages.
type Catalog interface {
	gwregion.Querier
	gwclass.Querier
}

// Stage names, as reported in Result.Stopped.
const (
	StageRegion     = "region"
	StageMatch      = "match"
	StageRedshift   = "redshift"
	StageClassify   = "classify"
	StageExtinction = "extinction"
)

// Pipeline holds the stages and the parameters passed between them.
type Pipeline struct {
	Skymaps  SkymapLoader
	Credible float64
	Clusters Clusterer
	Regions  RegionQuerier
	Catalog  Catalog
	// NewMatcher loads the reference catalog at a path.
	NewMatcher func(path string) (CrossMatcher, error)
	Redshift   RedshiftFilter
	Enricher   Enricher
	Extinction ExtinctionFilter

	// Snapshots writes stage tables.  Nil disables them.
	Snapshots *Snapshots
	Log       logger.Logger
	Metrics   *metrics.Run
}

// Result is the outcome of a run.  Fields for stages after Stopped are
// zero.
type Result struct {
	RunID  string
	Event  string
	MJDObs float64

	// RA and Dec of every skymap pixel, by descending density.
	RA, Dec []float64

	Credible  []gwsky.Point
	K         int
	Partition *gwclust.Partition

	Objects   []catalog.Object
	Matches   []gwmatch.Match
	Redshift  *gwz.Result
	Window    gwz.Window
	ZFiltered []gwmatch.Match
	Enriched  *gwclass.Result
	// Annotated holds every enriched candidate with extinction values.
	Annotated []gwext.Row
	// Candidates are the rows passing the extinction stage.
	Candidates []gwext.Row
	URL        string

	// Stopped names the stage that produced no rows, "" for a complete
	// run.
	Stopped string
}

func (p *Pipeline) log() logger.Logger {
	if p.Log == nil {
		return logger.Nop()
	}
	return p.Log
}

// Run executes the stages in order.  A stage producing no rows ends the
// run early with a nil error, Stopped set and URL "".
func (p *Pipeline) Run(ctx context.Context, skymapURL, refPath string) (*Result, error) {
	log := p.log()
	r := &Result{RunID: uuid.NewString()}
	log = log.Named(r.RunID[:8])
	log.Info(ctx, "pipeline started", logger.String("skymap", skymapURL),
		logger.String("reference", refPath))
	stop := func(stage string) (*Result, error) {
		r.Stopped = stage
		log.Warn(ctx, "no rows remain, stopping early", logger.String("stage", stage))
		return r, nil
	}

	s, err := p.Skymaps.Load(ctx, skymapURL, p.Credible)
	if err != nil {
		return nil, fmt.Errorf("skymap: %w", err)
	}
	r.Event, r.MJDObs, r.RA, r.Dec, r.Credible = s.Event, s.MJDObs, s.RA, s.Dec, s.Points

	r.K = p.Clusters.FindMinClusters(ctx, s.Points)
	if r.Partition, err = p.Clusters.Divide(ctx, r.K, s.Points); err != nil {
		return nil, fmt.Errorf("clusters: %w", err)
	}
	p.Metrics.Clusters(r.K)

	if r.Objects, err = p.Regions.Query(ctx, r.Partition, s.MJDObs, p.Catalog); err != nil {
		return nil, fmt.Errorf("region query: %w", err)
	}
	if len(r.Objects) == 0 {
		return stop(StageRegion)
	}

	m, err := p.NewMatcher(refPath)
	if err != nil {
		return nil, fmt.Errorf("reference catalog: %w", err)
	}
	r.Matches = m.Match(ctx, r.Objects)
	p.Metrics.Rows(StageMatch, len(r.Matches))
	if len(r.Matches) == 0 {
		return stop(StageMatch)
	}

	if r.Redshift, r.Window, r.ZFiltered, err = p.Redshift.Apply(ctx, s, r.Matches); err != nil {
		return nil, fmt.Errorf("redshift: %w", err)
	}
	p.Metrics.Rows(StageRedshift, len(r.ZFiltered))
	if err = p.Snapshots.Matches(r.Event, r.ZFiltered); err != nil {
		return nil, err
	}
	if len(r.ZFiltered) == 0 {
		return stop(StageRedshift)
	}

	oids := make([]string, len(r.ZFiltered))
	for i, m := range r.ZFiltered {
		oids[i] = m.OID
	}
	if r.Enriched, err = p.Enricher.Enrich(ctx, p.Catalog, oids); err != nil {
		return nil, fmt.Errorf("classify: %w", err)
	}
	if err = p.Snapshots.Classified(r.Event, r.Enriched.Classified); err != nil {
		return nil, err
	}
	if err = p.Snapshots.Joined(r.Event, r.Enriched.Candidates); err != nil {
		return nil, err
	}
	if len(r.Enriched.Candidates) == 0 {
		return stop(StageClassify)
	}

	r.Annotated, r.Candidates = p.Extinction.Apply(ctx, r.Enriched.Candidates)
	if err = p.Snapshots.Final(r.Event, r.Candidates); err != nil {
		return nil, err
	}
	if len(r.Candidates) == 0 {
		return stop(StageExtinction)
	}

	ids := make([]string, len(r.Candidates))
	for i, c := range r.Candidates {
		ids[i] = c.OID
	}
	r.URL = ViewerURL(ids)
	log.Info(ctx, "pipeline complete", logger.String("event", r.Event),
		logger.Count("candidates", len(r.Candidates)))
	return r, nil
}

const (
	viewerBase   = "https://alerce.online/?"
	viewerSuffix = "&count=true&page=1&perPage=1000&sortDesc=true&selectedClassifier=stamp_classifier"
)

// ViewerURL returns an ALeRCE explorer link listing oids.  No oids gives
// "".
func ViewerURL(oids []string) string {
	if len(oids) == 0 {
		return ""
	}
	q := make([]string, len(oids))
	for i, id := range oids {
		q[i] = "oid=" + url.QueryEscape(id)
	}
	return viewerBase + strings.Join(q, "&") + viewerSuffix
}

// ReferenceMatcher returns a NewMatcher function reading a reference
// catalog CSV with columns cols and matching within radius.
func ReferenceMatcher(cols gwmatch.Columns, radius unit.Angle, log logger.Logger) func(string) (CrossMatcher, error) {
	return func(path string) (CrossMatcher, error) {
		ref, err := gwmatch.ReadFile(path, cols, radius)
		if err != nil {
			return nil, err
		}
		if log != nil && ref.Skipped > 0 {
			log.Warn(context.Background(), "reference rows skipped",
				logger.String("file", path), logger.Count("skipped", ref.Skipped))
		}
		return &gwmatch.Matcher{Ref: ref, Radius: radius, Log: log}, nil
	}
}
