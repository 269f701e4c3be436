// Public domain.

package gwpipe

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/soniakeys/gwagn/internal/gwclass"
	"github.com/soniakeys/gwagn/internal/gwext"
	"github.com/soniakeys/gwagn/internal/gwmatch"
)

// Snapshot file names.
const (
	RedshiftFile   = "redshift.csv"
	ClassifierFile = "classifiers.csv"
	JoinedFile     = "final1.csv"
	FinalFile      = "candidates.csv"
)

// Snapshots writes stage tables as CSV files in Dir.  Methods on a nil
// *Snapshots do nothing.
type Snapshots struct {
	Dir string
}

// NewSnapshots returns Snapshots writing to dir, creating it if needed.
// An empty dir gives nil.
func NewSnapshots(dir string) (*Snapshots, error) {
	if dir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Snapshots{Dir: dir}, nil
}

func ff(x float64) string { return strconv.FormatFloat(x, 'g', -1, 64) }

func (s *Snapshots) write(name string, head []string, rows [][]string) (err error) {
	fn := filepath.Join(s.Dir, name)
	f, err := os.Create(fn)
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("snapshot %s: %w", fn, cerr)
		}
	}()
	w := csv.NewWriter(f)
	w.Write(head)
	w.WriteAll(rows)
	if err = w.Error(); err != nil {
		return fmt.Errorf("snapshot %s: %w", fn, err)
	}
	return nil
}

// Matches writes the redshift filtered matches.
func (s *Snapshots) Matches(event string, ms []gwmatch.Match) error {
	if s == nil {
		return nil
	}
	rows := make([][]string, len(ms))
	for i, m := range ms {
		rows[i] = []string{event, m.OID, ff(m.MeanRA), ff(m.MeanDec),
			ff(m.FirstMJD), strconv.Itoa(m.NDet), m.RefName, m.RefType,
			ff(m.Z), ff(m.Sep.Sec())}
	}
	return s.write(RedshiftFile, []string{"event_id", "oid", "meanra", "meandec",
		"firstmjd", "ndet", "ref_name", "ref_type", "z", "sep_arcsec"}, rows)
}

var classHead = []string{"event_id", "oid", "meanra", "meandec", "firstmjd",
	"ndet", "classifier_name", "class_name", "probability", "prob_sum"}

func classRow(event string, c gwclass.Candidate) []string {
	return []string{event, c.OID, ff(c.MeanRA), ff(c.MeanDec), ff(c.FirstMJD),
		strconv.Itoa(c.NDet), c.Classifier, c.ClassName, ff(c.Probability),
		ff(c.ProbSum)}
}

var detHead = []string{"n_det", "first_det_mjd", "last_det_mjd", "min_magpsf"}

func detRow(c gwclass.Candidate) []string {
	return []string{strconv.Itoa(c.Det.Count), ff(c.Det.FirstMJD),
		ff(c.Det.LastMJD), ff(c.Det.MinMag)}
}

// Classified writes the merged classifier table.
func (s *Snapshots) Classified(event string, cs []gwclass.Candidate) error {
	if s == nil {
		return nil
	}
	rows := make([][]string, len(cs))
	for i, c := range cs {
		rows[i] = classRow(event, c)
	}
	return s.write(ClassifierFile, classHead, rows)
}

// Joined writes classified candidates with their detection summaries.
func (s *Snapshots) Joined(event string, cs []gwclass.Candidate) error {
	if s == nil {
		return nil
	}
	rows := make([][]string, len(cs))
	for i, c := range cs {
		rows[i] = append(classRow(event, c), detRow(c)...)
	}
	return s.write(JoinedFile, append(append([]string{}, classHead...), detHead...), rows)
}

// Final writes candidates with extinction values.
func (s *Snapshots) Final(event string, rs []gwext.Row) error {
	if s == nil {
		return nil
	}
	head := append(append([]string{}, classHead...), detHead...)
	head = append(head, "ecl_lat", "gal_lat", "ebv", "ag", "ar")
	rows := make([][]string, len(rs))
	for i, r := range rs {
		row := append(classRow(event, r.Candidate), detRow(r.Candidate)...)
		rows[i] = append(row, ff(r.EclLat), ff(r.GalLat), ff(r.EBV), ff(r.Ag), ff(r.Ar))
	}
	return s.write(FinalFile, head, rows)
}
