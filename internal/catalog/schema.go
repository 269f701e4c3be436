// Public domain.

package catalog

import "context"

// Schema creates the subset of the ALeRCE tables queried here, for a local
// SQLite mirror.
const Schema = `
CREATE TABLE IF NOT EXISTS object (
	oid      TEXT PRIMARY KEY,
	meanra   REAL NOT NULL,
	meandec  REAL NOT NULL,
	firstmjd REAL NOT NULL,
	stellar  INTEGER,
	ndet     INTEGER
);
CREATE TABLE IF NOT EXISTS probability (
	oid             TEXT NOT NULL,
	classifier_name TEXT NOT NULL,
	class_name      TEXT NOT NULL,
	probability     REAL NOT NULL,
	ranking         INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS detection (
	oid    TEXT NOT NULL,
	mjd    REAL NOT NULL,
	magpsf REAL
);
CREATE INDEX IF NOT EXISTS object_pos ON object (meandec, meanra);
CREATE INDEX IF NOT EXISTS probability_oid ON probability (oid);
CREATE INDEX IF NOT EXISTS detection_oid ON detection (oid);
`

// CreateSchema creates the mirror tables if they do not exist.
func (c *DB) CreateSchema(ctx context.Context) error {
	return c.Exec(ctx, Schema)
}
