// Public domain.

// Package gwsky loads multi-order gravitational wave sky localizations and
// truncates them to a credible region.
package gwsky

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/astrogo/fitsio"

	"github.com/soniakeys/gwagn/healpix"
	"github.com/soniakeys/gwagn/internal/fetch"
	"github.com/soniakeys/gwagn/internal/logger"
)

// ErrFormat is wrapped by errors for files that are not multi-order
// skymaps.
var ErrFormat = errors.New("gwsky: not a multi-order skymap")

// Pixel is one row of a multi-order skymap.
type Pixel struct {
	UNIQ      int64
	Level     int
	Ipix      int64
	Nside     int64
	RA, Dec   float64 // degrees, pixel center
	Density   float64 // probability per steradian
	Area      float64 // steradians
	Prob      float64 // Density × Area
	DistMu    float64 // Mpc, NaN if the map has no distance layer
	DistSigma float64
}

// Point is a pixel of the credible region.
type Point struct {
	RA, Dec float64 // degrees
	UNIQ    int64
	Prob    float64 // cumulative probability through this pixel
}

// Skymap is a loaded sky localization.
type Skymap struct {
	URL   string
	Event string // "" when the URL does not name one

	// MJDObs is the observation time from the MJD-OBS keyword, NaN if
	// absent.
	MJDObs float64

	// Header distance summary, NaN if absent.
	DistMean, DistStd float64

	// HasDistance is true when pixels carry DISTMU and DISTSIGMA.
	HasDistance bool

	// Pixels holds all pixels, by descending probability density.
	Pixels []Pixel

	// RA and Dec of all pixels, in the order of Pixels.
	RA, Dec []float64

	// Credible is the level Points was truncated at.
	Credible float64
	Points   []Point
}

type row struct {
	UNIQ    int64   `fits:"UNIQ"`
	Density float64 `fits:"PROBDENSITY"`
}

type distRow struct {
	UNIQ      int64   `fits:"UNIQ"`
	Density   float64 `fits:"PROBDENSITY"`
	DistMu    float64 `fits:"DISTMU"`
	DistSigma float64 `fits:"DISTSIGMA"`
}

func headerFloat(h *fitsio.Header, name string) float64 {
	c := h.Get(name)
	if c == nil {
		return math.NaN()
	}
	switch v := c.Value.(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return math.NaN()
}

// Read reads a multi-order skymap.  The result is sorted but not yet
// truncated; see Truncate.
func Read(r io.Reader) (*Skymap, error) {
	f, err := fitsio.Open(r)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if len(f.HDUs()) < 2 {
		return nil, fmt.Errorf("%w: no table extension", ErrFormat)
	}
	tbl, ok := f.HDU(1).(*fitsio.Table)
	if !ok {
		return nil, fmt.Errorf("%w: HDU 1 is not a table", ErrFormat)
	}
	if tbl.Index("UNIQ") < 0 || tbl.Index("PROBDENSITY") < 0 {
		return nil, fmt.Errorf("%w: missing UNIQ or PROBDENSITY column", ErrFormat)
	}
	h := tbl.Header()
	s := &Skymap{
		MJDObs:      headerFloat(h, "MJD-OBS"),
		DistMean:    headerFloat(h, "DISTMEAN"),
		DistStd:     headerFloat(h, "DISTSTD"),
		HasDistance: tbl.Index("DISTMU") >= 0 && tbl.Index("DISTSIGMA") >= 0,
	}

	rows, err := tbl.Read(0, tbl.NumRows())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	s.Pixels = make([]Pixel, 0, tbl.NumRows())
	for rows.Next() {
		var p Pixel
		if s.HasDistance {
			var d distRow
			if err := rows.Scan(&d); err != nil {
				return nil, err
			}
			p = Pixel{UNIQ: d.UNIQ, Density: d.Density,
				DistMu: d.DistMu, DistSigma: d.DistSigma}
		} else {
			var d row
			if err := rows.Scan(&d); err != nil {
				return nil, err
			}
			p = Pixel{UNIQ: d.UNIQ, Density: d.Density,
				DistMu: math.NaN(), DistSigma: math.NaN()}
		}
		if p.Level, p.Ipix, err = healpix.UniqToLevelIpix(p.UNIQ); err != nil {
			return nil, fmt.Errorf("%w: UNIQ %d", err, p.UNIQ)
		}
		p.Nside = healpix.LevelToNside(p.Level)
		if p.Ipix >= healpix.Npix(p.Nside) {
			return nil, fmt.Errorf("%w: UNIQ %d", healpix.ErrUniq, p.UNIQ)
		}
		lon, lat := healpix.NestToLonLat(p.Nside, p.Ipix)
		p.RA, p.Dec = lon*180/math.Pi, lat*180/math.Pi
		p.Area = healpix.PixelArea(p.Nside)
		p.Prob = p.Area * p.Density
		s.Pixels = append(s.Pixels, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.SliceStable(s.Pixels, func(i, j int) bool {
		return s.Pixels[i].Density > s.Pixels[j].Density
	})
	s.RA = make([]float64, len(s.Pixels))
	s.Dec = make([]float64, len(s.Pixels))
	for i, p := range s.Pixels {
		s.RA[i], s.Dec[i] = p.RA, p.Dec
	}
	return s, nil
}

// Truncate returns the credible region at level c: pixels in order of
// descending density up to, not including, the first one at which the
// cumulative probability reaches c.  If c is never reached all pixels are
// returned.
func (s *Skymap) Truncate(c float64) []Point {
	pts := []Point{}
	cum := 0.
	for _, p := range s.Pixels {
		cum += p.Prob
		if cum >= c {
			break
		}
		pts = append(pts, Point{RA: p.RA, Dec: p.Dec, UNIQ: p.UNIQ, Prob: cum})
	}
	return pts
}

// EventName returns the path segment following "superevents" in a
// GraceDB style URL, provided a later "files" segment closes it.  Anything
// else gives "".
func EventName(rawURL string) string {
	parts := strings.Split(rawURL, "/")
	i1, i2 := -1, -1
	for i, p := range parts {
		if p == "superevents" && i1 < 0 {
			i1 = i
		}
		if p == "files" && i2 < 0 {
			i2 = i
		}
	}
	if i1 < 0 || i2 <= i1+1 {
		return ""
	}
	return parts[i1+1]
}

// Loader fetches skymaps, keeping downloads in a cache directory.
type Loader struct {
	Client   *http.Client
	CacheDir string
	Log      logger.Logger
}

// local returns a file name if rawURL refers to a local file.
func local(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" {
		return rawURL, true
	}
	if u.Scheme == "file" {
		return u.Path, true
	}
	return "", false
}

// Load reads the skymap at rawURL, downloading it unless it is a local
// file or already cached, and truncates it at credible level c.
func (l *Loader) Load(ctx context.Context, rawURL string, c float64) (*Skymap, error) {
	log := l.Log
	if log == nil {
		log = logger.Nop()
	}
	fn, isLocal := local(rawURL)
	if !isLocal {
		var n int64
		var err error
		fn, n, err = fetch.Cached(ctx, l.Client, l.CacheDir, rawURL)
		if err != nil {
			return nil, fmt.Errorf("download skymap: %w", err)
		}
		if n > 0 {
			log.Info(ctx, "skymap downloaded", logger.String("url", rawURL),
				logger.Bytes("size", n))
		} else {
			log.Debug(ctx, "skymap cached", logger.String("file", fn))
		}
	}
	r, err := fetch.Open(fn)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	s, err := Read(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fn, err)
	}
	s.URL = rawURL
	s.Event = EventName(rawURL)
	s.Credible = c
	s.Points = s.Truncate(c)
	log.Info(ctx, "skymap loaded",
		logger.String("event", s.Event),
		logger.Float64("mjd_obs", s.MJDObs),
		logger.Count("pixels", len(s.Pixels)),
		logger.Count("credible_pixels", len(s.Points)),
		logger.Float64("credible_level", c))
	return s, nil
}
