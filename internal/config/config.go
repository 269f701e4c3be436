// Public domain.

// Package config defines gwagn configuration and its loading.
//
// Values are layered, lowest precedence first: built in defaults, an
// optional YAML file, then GWAGN_ environment variables.  Command line flags
// are applied on top by the caller.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Sentinel errors for this package.
var (
	ErrInvalidConfig = errors.New("invalid config")
	ErrLoadConfig    = errors.New("load config failed")
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	LogJSON  bool   `koanf:"log_json"`

	// CacheDir holds downloaded skymaps.
	CacheDir string `koanf:"cache_dir"`

	// OutDir receives CSV snapshots of intermediate stages.  Empty
	// disables snapshots.
	OutDir string `koanf:"out_dir"`

	Skymap     Skymap     `koanf:"skymap"`
	Cluster    Cluster    `koanf:"cluster"`
	Region     Region     `koanf:"region"`
	Catalog    Catalog    `koanf:"catalog"`
	Match      Match      `koanf:"match"`
	Redshift   Redshift   `koanf:"redshift"`
	Classify   Classify   `koanf:"classify"`
	Extinction Extinction `koanf:"extinction"`
	Metrics    Metrics    `koanf:"metrics"`
}

type Skymap struct {
	CredibleLevel float64 `koanf:"credible_level"`
}

type Cluster struct {
	MaxClusters int     `koanf:"max_clusters"`
	SampleSize  int     `koanf:"sample_size"`
	Threshold   float64 `koanf:"threshold"`
	Restarts    int     `koanf:"restarts"`
	MaxIter     int     `koanf:"max_iter"`
	// Repeatable seeds the random source with Seed; otherwise it is seeded
	// from the clock.
	Repeatable bool   `koanf:"repeatable"`
	Seed       uint64 `koanf:"seed"`
}

type Region struct {
	Alpha float64 `koanf:"alpha"`
	// Simplify is a Douglas-Peucker tolerance in degrees, 0 for none.
	Simplify float64 `koanf:"simplify"`
	NDays    float64 `koanf:"ndays"`
}

// Catalog configures the alert broker database.
//
// With driver pgx, credentials are fetched from CredentialsURL; the local
// Host, DBName, User and Password are the fallback.  A non-empty DSN skips
// both.
type Catalog struct {
	Driver         string        `koanf:"driver"`
	DSN            string        `koanf:"dsn"`
	CredentialsURL string        `koanf:"credentials_url"`
	Timeout        time.Duration `koanf:"timeout"`
	Host           string        `koanf:"host"`
	DBName         string        `koanf:"dbname"`
	User           string        `koanf:"user"`
	Password       string        `koanf:"password"`
}

type Match struct {
	RadiusArcsec float64 `koanf:"radius_arcsec"`
	RACol        string  `koanf:"ra_col"`
	DecCol       string  `koanf:"dec_col"`
	ZCol         string  `koanf:"z_col"`
	NameCol      string  `koanf:"name_col"`
	TypeCol      string  `koanf:"type_col"`
}

type Redshift struct {
	// SigmaCut is one of 1sigma, 2sigma, 3sigma, ksigma.
	SigmaCut string `koanf:"sigma_cut"`
}

type Classify struct {
	BatchSize int     `koanf:"batch_size"`
	MinProb   float64 `koanf:"min_prob"`
}

type Extinction struct {
	Rv        float64 `koanf:"rv"`
	DustDir   string  `koanf:"dust_dir"`
	ApplyCuts bool    `koanf:"apply_cuts"`
	MinEclLat float64 `koanf:"min_ecl_lat"`
	MinGalLat float64 `koanf:"min_gal_lat"`
	MaxAg     float64 `koanf:"max_ag"`
}

type Metrics struct {
	// PushURL is a Prometheus Pushgateway.  Empty disables pushing.
	PushURL string `koanf:"push_url"`
	Job     string `koanf:"job"`
}

// DefaultCredentialsURL is the published read-only ALeRCE access.
const DefaultCredentialsURL = "https://raw.githubusercontent.com/alercebroker/usecases/master/alercereaduser_v4.json"

// New returns a Config holding the defaults.
func New() *Config {
	cache, err := os.UserCacheDir()
	if err != nil {
		cache = os.TempDir()
	}
	cache = filepath.Join(cache, "gwagn")
	return &Config{
		LogLevel: "info",
		CacheDir: cache,
		Skymap:   Skymap{CredibleLevel: .9},
		Cluster: Cluster{
			MaxClusters: 20,
			SampleSize:  2000,
			Threshold:   .5,
			Restarts:    3,
			MaxIter:     300,
			Repeatable:  true,
			Seed:        3,
		},
		Region: Region{Alpha: .01, NDays: 200},
		Catalog: Catalog{
			Driver:         "pgx",
			CredentialsURL: DefaultCredentialsURL,
			Timeout:        10 * time.Second,
			Host:           "localhost",
			DBName:         "ztf",
			User:           "alerceread",
		},
		Match: Match{
			RadiusArcsec: 1,
			RACol:        "ra",
			DecCol:       "dec",
			ZCol:         "z",
			NameCol:      "name",
			TypeCol:      "type",
		},
		Redshift: Redshift{SigmaCut: "2sigma"},
		Classify: Classify{BatchSize: 10_000, MinProb: .5},
		Extinction: Extinction{
			Rv:        3.1,
			DustDir:   filepath.Join(cache, "sfd"),
			ApplyCuts: true,
			MinEclLat: 20,
			MinGalLat: 20,
			MaxAg:     1,
		},
		Metrics: Metrics{Job: "gwagn"},
	}
}

// Validate checks ranges.  The sigma cut is not checked; an unknown value
// falls back to 2sigma where it is used.
func (c *Config) Validate() error {
	bad := func(format string, a ...interface{}) error {
		return fmt.Errorf("%w: "+format, append([]interface{}{ErrInvalidConfig}, a...)...)
	}
	switch {
	case !(c.Skymap.CredibleLevel > 0 && c.Skymap.CredibleLevel <= 1):
		return bad("skymap.credible_level %v not in (0, 1]", c.Skymap.CredibleLevel)
	case c.Cluster.MaxClusters < 2:
		return bad("cluster.max_clusters %d < 2", c.Cluster.MaxClusters)
	case c.Cluster.SampleSize < 2:
		return bad("cluster.sample_size %d < 2", c.Cluster.SampleSize)
	case c.Cluster.Threshold < -1 || c.Cluster.Threshold > 1:
		return bad("cluster.threshold %v not in [-1, 1]", c.Cluster.Threshold)
	case c.Cluster.Restarts < 1 || c.Cluster.MaxIter < 1:
		return bad("cluster.restarts and cluster.max_iter must be positive")
	case c.Region.NDays < 0:
		return bad("region.ndays %v < 0", c.Region.NDays)
	case c.Region.Simplify < 0:
		return bad("region.simplify %v < 0", c.Region.Simplify)
	case c.Catalog.Driver != "pgx" && c.Catalog.Driver != "sqlite":
		return bad("catalog.driver %q, want pgx or sqlite", c.Catalog.Driver)
	case c.Catalog.Driver == "sqlite" && c.Catalog.DSN == "":
		return bad("catalog.dsn required for sqlite")
	case c.Catalog.Driver == "pgx" && c.Catalog.CredentialsURL != "" && c.Catalog.Timeout <= 0:
		return bad("catalog.timeout %v <= 0 with credentials_url set", c.Catalog.Timeout)
	case c.Match.RadiusArcsec <= 0:
		return bad("match.radius_arcsec %v <= 0", c.Match.RadiusArcsec)
	case c.Classify.BatchSize < 1:
		return bad("classify.batch_size %d < 1", c.Classify.BatchSize)
	case c.Extinction.Rv <= 0:
		return bad("extinction.rv %v <= 0", c.Extinction.Rv)
	}
	return nil
}
