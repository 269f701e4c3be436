// Public domain.

// Package catalog queries the ALeRCE alert broker database, or a local
// SQLite mirror of its object, probability and detection tables.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // registers driver "pgx"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	_ "modernc.org/sqlite" // registers driver "sqlite"

	"github.com/soniakeys/gwagn/internal/logger"
)

// ErrPolygon is returned for region coordinates that do not form a ring.
var ErrPolygon = errors.New("catalog: invalid polygon")

// Object is a row of the object table.
type Object struct {
	OID      string
	MeanRA   float64 // degrees
	MeanDec  float64
	FirstMJD float64
	Stellar  bool
	NDet     int
}

// Classification is an object joined with one of its classifier
// probabilities.
type Classification struct {
	OID         string
	MeanRA      float64
	MeanDec     float64
	FirstMJD    float64
	NDet        int
	Probability float64
	ClassName   string
	Classifier  string
}

// Detections summarizes the detection history of an object.
type Detections struct {
	OID      string
	Count    int
	FirstMJD float64
	LastMJD  float64
	MinMag   float64 // brightest magpsf, NaN if none recorded
}

// Catalog is the query surface used by the pipeline.
type Catalog interface {
	// Objects returns objects inside the polygon given as flat x, y
	// coordinates with first <= firstmjd <= last.
	Objects(ctx context.Context, poly []float64, first, last int) ([]Object, error)

	// Classifications returns probabilities of classifier for the listed
	// classes and objects.  With topRanked only ranking = 1 rows are
	// returned.
	Classifications(ctx context.Context, classifier string, classes []string, topRanked bool, oids []string) ([]Classification, error)

	// Detections returns detection summaries of the listed objects.
	// Objects without detections are absent from the result.
	Detections(ctx context.Context, oids []string) ([]Detections, error)
}

// DB is a Catalog over database/sql.
type DB struct {
	db     *sql.DB
	driver string
	Log    logger.Logger
}

var _ Catalog = (*DB)(nil)

// Open opens a catalog database with driver "pgx" or "sqlite".
func Open(driver, dsn string) (*DB, error) {
	if driver != "pgx" && driver != "sqlite" {
		return nil, fmt.Errorf("catalog: unsupported driver %q", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s catalog: %w", driver, err)
	}
	if driver == "sqlite" && strings.Contains(dsn, ":memory:") {
		// each connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}
	return &DB{db: db, driver: driver, Log: logger.Nop()}, nil
}

// Ping verifies the connection.
func (c *DB) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Exec runs a statement, for loading a local mirror.
func (c *DB) Exec(ctx context.Context, query string, args ...interface{}) error {
	_, err := c.db.ExecContext(ctx, query, args...)
	return err
}

func (c *DB) Close() error {
	return c.db.Close()
}

// quote returns s as an SQL string literal.
func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func quoteList(ss []string) string {
	q := make([]string, len(ss))
	for i, s := range ss {
		q[i] = quote(s)
	}
	return strings.Join(q, ",")
}

func (c *DB) placeholder(i int) string {
	if c.driver == "pgx" {
		return "$" + strconv.Itoa(i)
	}
	return "?"
}

// Ring converts flat x, y coordinates to a ring.
func Ring(poly []float64) (orb.Ring, error) {
	if len(poly)%2 != 0 || len(poly) < 8 {
		return nil, fmt.Errorf("%w: %d coordinates", ErrPolygon, len(poly))
	}
	r := make(orb.Ring, len(poly)/2)
	for i := range r {
		r[i] = orb.Point{poly[2*i], poly[2*i+1]}
	}
	return r, nil
}

const objectCols = "object.oid, object.meanra, object.meandec, object.firstmjd, object.stellar, object.ndet"

func (c *DB) Objects(ctx context.Context, poly []float64, first, last int) ([]Object, error) {
	ring, err := Ring(poly)
	if err != nil {
		return nil, err
	}
	var q string
	var args []interface{}
	if c.driver == "pgx" {
		coords := make([]string, len(poly))
		for i, v := range poly {
			coords[i] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		q = "SELECT " + objectCols + " FROM object" +
			" WHERE q3c_poly_query(meanra, meandec, ARRAY[" + strings.Join(coords, ",") + "])" +
			" AND firstmjd >= $1 AND firstmjd <= $2"
		args = []interface{}{first, last}
	} else {
		b := ring.Bound()
		q = "SELECT " + objectCols + " FROM object" +
			" WHERE meanra BETWEEN ? AND ? AND meandec BETWEEN ? AND ?" +
			" AND firstmjd >= ? AND firstmjd <= ?"
		args = []interface{}{b.Min[0], b.Max[0], b.Min[1], b.Max[1], first, last}
	}
	rows, err := c.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("region query: %w", err)
	}
	defer rows.Close()
	poly2 := orb.Polygon{ring}
	objs := []Object{}
	for rows.Next() {
		var o Object
		var stellar sql.NullBool
		var ndet sql.NullInt64
		if err := rows.Scan(&o.OID, &o.MeanRA, &o.MeanDec, &o.FirstMJD, &stellar, &ndet); err != nil {
			return nil, err
		}
		o.Stellar, o.NDet = stellar.Bool, int(ndet.Int64)
		if c.driver == "sqlite" && !planar.PolygonContains(poly2, orb.Point{o.MeanRA, o.MeanDec}) {
			continue
		}
		objs = append(objs, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	c.Log.Debug(ctx, "region query", logger.Int("first_mjd", first),
		logger.Int("last_mjd", last), logger.Count("rows", len(objs)))
	return objs, nil
}

func (c *DB) Classifications(ctx context.Context, classifier string, classes []string, topRanked bool, oids []string) ([]Classification, error) {
	if len(oids) == 0 || len(classes) == 0 {
		return []Classification{}, nil
	}
	q := "SELECT object.oid, object.meanra, object.meandec, object.firstmjd, object.ndet," +
		" probability.probability, probability.class_name, probability.classifier_name" +
		" FROM object INNER JOIN probability ON object.oid = probability.oid" +
		" WHERE object.oid IN (" + quoteList(oids) + ")" +
		" AND probability.classifier_name = " + c.placeholder(1) +
		" AND probability.class_name IN (" + quoteList(classes) + ")"
	if topRanked {
		q += " AND probability.ranking = 1"
	}
	rows, err := c.db.QueryContext(ctx, q, classifier)
	if err != nil {
		return nil, fmt.Errorf("%s query: %w", classifier, err)
	}
	defer rows.Close()
	cls := []Classification{}
	for rows.Next() {
		var r Classification
		var ndet sql.NullInt64
		if err := rows.Scan(&r.OID, &r.MeanRA, &r.MeanDec, &r.FirstMJD, &ndet,
			&r.Probability, &r.ClassName, &r.Classifier); err != nil {
			return nil, err
		}
		r.NDet = int(ndet.Int64)
		cls = append(cls, r)
	}
	return cls, rows.Err()
}

func (c *DB) Detections(ctx context.Context, oids []string) ([]Detections, error) {
	if len(oids) == 0 {
		return []Detections{}, nil
	}
	q := "SELECT oid, COUNT(*), MIN(mjd), MAX(mjd), MIN(magpsf) FROM detection" +
		" WHERE oid IN (" + quoteList(oids) + ") GROUP BY oid"
	rows, err := c.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("detection query: %w", err)
	}
	defer rows.Close()
	ds := []Detections{}
	for rows.Next() {
		var d Detections
		var mag sql.NullFloat64
		if err := rows.Scan(&d.OID, &d.Count, &d.FirstMJD, &d.LastMJD, &mag); err != nil {
			return nil, err
		}
		d.MinMag = math.NaN()
		if mag.Valid {
			d.MinMag = mag.Float64
		}
		ds = append(ds, d)
	}
	return ds, rows.Err()
}
