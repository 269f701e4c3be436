// Public domain.

// Package gwmatch crossmatches catalog objects against a quasar and AGN
// reference catalog such as Milliquas.
package gwmatch

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/soniakeys/coord"
	"github.com/soniakeys/unit"

	"github.com/soniakeys/gwagn/astro"
)

// ErrColumns is returned when the reference catalog lacks position columns.
var ErrColumns = errors.New("gwmatch: missing column")

// Columns names the reference catalog columns.  Matching is case
// insensitive.
type Columns struct {
	RA, Dec, Z, Name, Type string
}

// DefaultColumns are the column names of the Milliquas CSV export.
var DefaultColumns = Columns{RA: "ra", Dec: "dec", Z: "z", Name: "name", Type: "type"}

// Ref is a reference catalog entry.
type Ref struct {
	Name string
	Type string
	RA   float64 // degrees
	Dec  float64
	Z    float64 // NaN if not given

	v *coord.Cart
}

// Reference is a reference catalog indexed by declination zone.
type Reference struct {
	Refs    []Ref
	Skipped int // rows that could not be parsed

	zoneH unit.Angle
	zones map[int][]int // zone -> Refs indexes sorted by RA
}

// ReadFile reads a reference catalog CSV file.
func ReadFile(fn string, cols Columns, radius unit.Angle) (*Reference, error) {
	f, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f, cols, radius)
}

// Read reads a reference catalog with a header line and indexes it in
// declination zones radius high, or one arcminute if radius is smaller.
// Rows with unparsable or invalid coordinates are skipped and counted.
func Read(r io.Reader, cols Columns, radius unit.Angle) (*Reference, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reference catalog header: %w", err)
	}
	col := map[string]int{}
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	find := func(name string) int {
		if i, ok := col[strings.ToLower(name)]; ok {
			return i
		}
		return -1
	}
	iRA, iDec, iZ, iName, iType := find(cols.RA), find(cols.Dec),
		find(cols.Z), find(cols.Name), find(cols.Type)
	if iRA < 0 || iDec < 0 {
		return nil, fmt.Errorf("%w: need %q and %q", ErrColumns, cols.RA, cols.Dec)
	}
	field := func(rec []string, i int) string {
		if i < 0 || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}
	ref := &Reference{}
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				ref.Skipped++
				continue
			}
			return nil, err
		}
		ra, err1 := strconv.ParseFloat(field(rec, iRA), 64)
		dec, err2 := strconv.ParseFloat(field(rec, iDec), 64)
		if err1 != nil || err2 != nil {
			ref.Skipped++
			continue
		}
		α, δ, err := astro.Equatorial(ra, dec)
		if err != nil {
			ref.Skipped++
			continue
		}
		z, err := strconv.ParseFloat(field(rec, iZ), 64)
		if err != nil {
			z = math.NaN()
		}
		ref.Refs = append(ref.Refs, Ref{
			Name: field(rec, iName),
			Type: field(rec, iType),
			RA:   α.Rad() * 180 / math.Pi,
			Dec:  dec,
			Z:    z,
			v:    astro.UnitVector(α, δ),
		})
	}
	ref.index(radius)
	return ref, nil
}

func (r *Reference) zone(dec float64) int {
	return int(math.Floor((dec + 90) / r.zoneH.Deg()))
}

// index builds declination zones at least radius high.
func (r *Reference) index(radius unit.Angle) {
	r.zoneH = radius
	if floor := unit.AngleFromMin(1); r.zoneH < floor {
		r.zoneH = floor
	}
	r.zones = map[int][]int{}
	for i, e := range r.Refs {
		z := r.zone(e.Dec)
		r.zones[z] = append(r.zones[z], i)
	}
	for _, ix := range r.zones {
		sort.Slice(ix, func(a, b int) bool { return r.Refs[ix[a]].RA < r.Refs[ix[b]].RA })
	}
}

// Nearest returns the index of the entry nearest to α, δ within radius,
// or -1 if there is none, and its separation.  Any radius works with the
// index built by Read; larger ones scan more zones.  Nearest does not
// modify r.
func (r *Reference) Nearest(α unit.RA, δ unit.Angle, radius unit.Angle) (int, unit.Angle) {
	v := astro.UnitVector(α, δ)
	dec := δ.Deg()
	rDeg := radius.Deg()
	// RA half width of the search window
	w := 360.
	if c := math.Cos(math.Min(math.Abs(dec)+rDeg, 90) * math.Pi / 180); c > 1e-9 {
		w = math.Min(rDeg/c, 360)
	}
	ra := α.Rad() * 180 / math.Pi
	best, bestSep := -1, radius
	check := func(ix []int, lo, hi float64) {
		i := sort.Search(len(ix), func(i int) bool { return r.Refs[ix[i]].RA >= lo })
		for ; i < len(ix) && r.Refs[ix[i]].RA <= hi; i++ {
			if s := astro.Separation(v, r.Refs[ix[i]].v); s <= bestSep {
				best, bestSep = ix[i], s
			}
		}
	}
	for z := r.zone(dec - rDeg); z <= r.zone(dec+rDeg); z++ {
		ix := r.zones[z]
		if len(ix) == 0 {
			continue
		}
		lo, hi := ra-w, ra+w
		switch {
		case w >= 180:
			check(ix, 0, 360)
		case lo < 0:
			check(ix, 0, hi)
			check(ix, lo+360, 360)
		case hi >= 360:
			check(ix, lo, 360)
			check(ix, 0, hi-360)
		default:
			check(ix, lo, hi)
		}
	}
	if best < 0 {
		return -1, 0
	}
	return best, bestSep
}
