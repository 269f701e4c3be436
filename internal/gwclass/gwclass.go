// Public domain.

// Package gwclass enriches candidates with alert broker classifications
// and detection history.
package gwclass

import (
	"context"
	"fmt"

	"github.com/soniakeys/gwagn/internal/catalog"
	"github.com/soniakeys/gwagn/internal/logger"
	"github.com/soniakeys/gwagn/internal/metrics"
)

const stage = "classify"

// Classifier names and the classes retained from each.
const (
	StampClassifier = "stamp_classifier"
	LCClassifier    = "lc_classifier"
)

var (
	StampClasses = []string{"SN", "AGN"}
	LCClasses    = []string{"AGN", "QSO", "Blazar", "SLSN", "SNII", "SNIbc", "SNIa"}
)

// Querier is the catalog surface used by Enricher.
type Querier interface {
	Classifications(ctx context.Context, classifier string, classes []string, topRanked bool, oids []string) ([]catalog.Classification, error)
	Detections(ctx context.Context, oids []string) ([]catalog.Detections, error)
}

// Candidate is a classified object joined with its detection summary.
type Candidate struct {
	catalog.Classification
	// ProbSum is the summed probability over the retained classes.
	ProbSum float64
	Det     catalog.Detections
}

// Enricher queries classifications and detections in batches.
type Enricher struct {
	BatchSize int
	MinProb   float64 // summed probability an object must exceed
	Log       logger.Logger
	Metrics   *metrics.Run
}

func (e *Enricher) log() logger.Logger {
	if e.Log == nil {
		return logger.Nop()
	}
	return e.Log
}

// Dedupe returns oids without repeats, in first seen order.
func Dedupe(oids []string) []string {
	seen := make(map[string]bool, len(oids))
	out := make([]string, 0, len(oids))
	for _, id := range oids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// Batches splits oids into ceil(len/size) consecutive batches.
func Batches(oids []string, size int) [][]string {
	if size < 1 {
		size = 1
	}
	var b [][]string
	for i := 0; i < len(oids); i += size {
		j := i + size
		if j > len(oids) {
			j = len(oids)
		}
		b = append(b, oids[i:j])
	}
	return b
}

// Aggregate keeps objects whose probabilities sum to more than minProb.
// The record kept for an object is its most probable row.  Output order
// is the order objects first appear in rows.
func Aggregate(rows []catalog.Classification, minProb float64) []Candidate {
	type agg struct {
		best catalog.Classification
		sum  float64
	}
	var order []string
	m := map[string]*agg{}
	for _, r := range rows {
		a, ok := m[r.OID]
		if !ok {
			a = &agg{best: r}
			m[r.OID] = a
			order = append(order, r.OID)
		} else if r.Probability > a.best.Probability {
			a.best = r
		}
		a.sum += r.Probability
	}
	out := []Candidate{}
	for _, id := range order {
		if a := m[id]; a.sum > minProb {
			out = append(out, Candidate{Classification: a.best, ProbSum: a.sum})
		}
	}
	return out
}

// Merge returns every stamp candidate followed by lc candidates whose
// object is not among them.
func Merge(stamp, lc []Candidate) []Candidate {
	in := make(map[string]bool, len(stamp))
	out := make([]Candidate, 0, len(stamp)+len(lc))
	for _, c := range stamp {
		in[c.OID] = true
		out = append(out, c)
	}
	for _, c := range lc {
		if !in[c.OID] {
			out = append(out, c)
		}
	}
	return out
}

// Join attaches detection summaries, dropping candidates without one.
func Join(cands []Candidate, dets []catalog.Detections) []Candidate {
	byID := make(map[string]catalog.Detections, len(dets))
	for _, d := range dets {
		byID[d.OID] = d
	}
	out := []Candidate{}
	for _, c := range cands {
		if d, ok := byID[c.OID]; ok {
			c.Det = d
			out = append(out, c)
		}
	}
	return out
}

// Result holds the enrichment stages.
type Result struct {
	// Classified is the merged classifier table before the detection
	// join.
	Classified []Candidate
	// Candidates are the classified objects with detections.
	Candidates []Candidate
}

// Enrich classifies oids and joins detection summaries.  Query errors are
// returned; the catalog connection is assumed healthy at this stage.
func (e *Enricher) Enrich(ctx context.Context, q Querier, oids []string) (*Result, error) {
	ids := Dedupe(oids)
	batches := Batches(ids, e.BatchSize)
	e.log().Info(ctx, "querying classifiers",
		logger.Count("objects", len(ids)), logger.Int("batches", len(batches)),
		logger.Int("batch_size", e.BatchSize))

	var stampRows, lcRows []catalog.Classification
	for i, b := range batches {
		e.Metrics.Query(stage)
		st, err := q.Classifications(ctx, StampClassifier, StampClasses, false, b)
		if err != nil {
			e.Metrics.Failure(stage)
			return nil, fmt.Errorf("batch %d: %w", i+1, err)
		}
		e.Metrics.Query(stage)
		lc, err := q.Classifications(ctx, LCClassifier, LCClasses, true, b)
		if err != nil {
			e.Metrics.Failure(stage)
			return nil, fmt.Errorf("batch %d: %w", i+1, err)
		}
		stampRows = append(stampRows, st...)
		lcRows = append(lcRows, lc...)
		e.log().Debug(ctx, "classifier batch", logger.Int("batch", i+1),
			logger.Int("stamp", len(st)), logger.Int("lc", len(lc)))
	}
	stamp := Aggregate(stampRows, e.MinProb)
	lc := Aggregate(lcRows, e.MinProb)
	merged := Merge(stamp, lc)
	e.log().Info(ctx, "classifiers merged", logger.Count("stamp", len(stamp)),
		logger.Count("lc", len(lc)), logger.Count("merged", len(merged)))

	mergedIDs := make([]string, len(merged))
	for i, c := range merged {
		mergedIDs[i] = c.OID
	}
	var dets []catalog.Detections
	for i, b := range Batches(mergedIDs, e.BatchSize) {
		e.Metrics.Query(stage)
		d, err := q.Detections(ctx, b)
		if err != nil {
			e.Metrics.Failure(stage)
			return nil, fmt.Errorf("detection batch %d: %w", i+1, err)
		}
		dets = append(dets, d...)
	}
	cands := Join(merged, dets)
	e.Metrics.Rows(stage, len(cands))
	e.log().Info(ctx, "detections joined", logger.Count("candidates", len(cands)))
	return &Result{Classified: merged, Candidates: cands}, nil
}
