// Public domain.

// Package dust reads the Schlegel, Finkbeiner & Davis (1998) dust maps and
// looks up E(B-V) color excess by galactic position.
//
// The maps are a pair of Zenithal Equal Area projections, one centered on
// each galactic pole.
package dust

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"path/filepath"

	"github.com/astrogo/fitsio"
	"github.com/soniakeys/unit"

	"github.com/soniakeys/gwagn/internal/fetch"
)

// BaseURL is the present location of the SFD map files.
var BaseURL = "https://github.com/kbarbary/sfddata/raw/master/"

// Map file names, as published.
const (
	NGPFile = "SFD_dust_4096_ngp.fits"
	SGPFile = "SFD_dust_4096_sgp.fits"
)

// ErrMap is wrapped by errors for files that are not usable SFD maps.
var ErrMap = errors.New("dust: invalid map")

// Map is one hemisphere of the SFD map.
type Map struct {
	NX, NY int
	Data   []float32 // x varies fastest

	n              float64 // +1 north, -1 south
	scale          float64
	crpix1, crpix2 float64 // 0 based
}

// Fetch gets fresh copies of the map files missing from dir.  It returns
// the total bytes downloaded.
func Fetch(ctx context.Context, client *http.Client, dir string) (int64, error) {
	var total int64
	for _, fn := range []string{NGPFile, SGPFile} {
		p := filepath.Join(dir, fn)
		if _, err := os.Stat(p); err == nil {
			continue
		}
		n, err := fetch.File(ctx, client, BaseURL+fn, p)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

func headerFloat(h *fitsio.Header, name string, def float64) (float64, error) {
	c := h.Get(name)
	if c == nil {
		return def, nil
	}
	switch v := c.Value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	}
	return 0, fmt.Errorf("%w: keyword %s has type %T", ErrMap, name, c.Value)
}

// ReadMap reads a single hemisphere map from r.
func ReadMap(r io.Reader) (*Map, error) {
	f, err := fitsio.Open(r)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, ok := f.HDU(0).(fitsio.Image)
	if !ok {
		return nil, fmt.Errorf("%w: primary HDU is not an image", ErrMap)
	}
	h := img.Header()
	axes := h.Axes()
	if len(axes) != 2 || axes[0] < 2 || axes[1] < 2 {
		return nil, fmt.Errorf("%w: axes %v", ErrMap, axes)
	}
	m := &Map{NX: axes[0], NY: axes[1]}
	if m.n, err = headerFloat(h, "LAM_NSGP", 1); err != nil {
		return nil, err
	}
	if m.n != 1 && m.n != -1 {
		return nil, fmt.Errorf("%w: LAM_NSGP = %v", ErrMap, m.n)
	}
	if m.scale, err = headerFloat(h, "LAM_SCAL", float64(m.NX/2)); err != nil {
		return nil, err
	}
	if m.crpix1, err = headerFloat(h, "CRPIX1", float64(m.NX+1)/2); err != nil {
		return nil, err
	}
	if m.crpix2, err = headerFloat(h, "CRPIX2", float64(m.NY+1)/2); err != nil {
		return nil, err
	}
	m.crpix1--
	m.crpix2--
	m.Data = make([]float32, m.NX*m.NY)
	if err = img.Read(&m.Data); err != nil {
		return nil, err
	}
	if len(m.Data) != m.NX*m.NY {
		return nil, fmt.Errorf("%w: %d pixels, want %d", ErrMap, len(m.Data), m.NX*m.NY)
	}
	return m, nil
}

func readMapFile(fn string) (*Map, error) {
	r, err := fetch.Open(fn)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	m, err := ReadMap(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fn, err)
	}
	return m, nil
}

// Pixel returns the 0 based pixel coordinates of l, b in the projection.
func (m *Map) Pixel(l, b unit.Angle) (x, y float64) {
	sl, cl := l.Sincos()
	ρ := m.scale * math.Sqrt(1-m.n*b.Sin())
	return ρ*cl + m.crpix1, -m.n*ρ*sl + m.crpix2
}

// At returns the bilinearly interpolated map value at l, b.
func (m *Map) At(l, b unit.Angle) float64 {
	x, y := m.Pixel(l, b)
	if math.IsNaN(x) || math.IsNaN(y) {
		return math.NaN()
	}
	x0, fx := cell(x, m.NX)
	y0, fy := cell(y, m.NY)
	i := y0*m.NX + x0
	v00 := float64(m.Data[i])
	v10 := float64(m.Data[i+1])
	v01 := float64(m.Data[i+m.NX])
	v11 := float64(m.Data[i+m.NX+1])
	return (1-fy)*((1-fx)*v00+fx*v10) + fy*((1-fx)*v01+fx*v11)
}

// cell returns the lower index and fraction of interpolation cell holding
// p, clamped to the n pixel axis.
func cell(p float64, n int) (int, float64) {
	i := int(math.Floor(p))
	switch {
	case i < 0:
		return 0, 0
	case i >= n-1:
		return n - 2, 1
	}
	return i, p - float64(i)
}

// SFD is the full sky, both hemisphere maps.
type SFD struct {
	North, South *Map
}

// Read reads both map files from dir.
func Read(dir string) (*SFD, error) {
	n, err := readMapFile(filepath.Join(dir, NGPFile))
	if err != nil {
		return nil, err
	}
	s, err := readMapFile(filepath.Join(dir, SGPFile))
	if err != nil {
		return nil, err
	}
	if n.n != 1 || s.n != -1 {
		return nil, fmt.Errorf("%w: hemisphere maps swapped in %s", ErrMap, dir)
	}
	return &SFD{North: n, South: s}, nil
}

// Load reads the maps from dir.  If that doesn't work it fetches fresh
// copies of missing files and tries again.
func Load(ctx context.Context, client *http.Client, dir string) (*SFD, int64, error) {
	sfd, readErr := Read(dir)
	if readErr == nil {
		return sfd, 0, nil
	}
	n, err := Fetch(ctx, client, dir)
	if err != nil {
		return nil, n, fmt.Errorf("%v; fetch: %w", readErr, err)
	}
	sfd, err = Read(dir)
	return sfd, n, err
}

// EBV returns E(B-V) at galactic coordinates l, b.
func (s *SFD) EBV(l, b unit.Angle) float64 {
	if b >= 0 {
		return s.North.At(l, b)
	}
	return s.South.At(l, b)
}
