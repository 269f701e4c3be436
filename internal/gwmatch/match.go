// Public domain.

package gwmatch

import (
	"context"

	"github.com/soniakeys/unit"

	"github.com/soniakeys/gwagn/astro"
	"github.com/soniakeys/gwagn/internal/catalog"
	"github.com/soniakeys/gwagn/internal/logger"
)

// Match is a catalog object with its nearest reference entry.
type Match struct {
	catalog.Object
	RefName string
	RefType string
	Z       float64    // reference redshift, NaN if unknown
	Sep     unit.Angle // separation from the reference position
}

// Matcher matches objects to a Reference.
type Matcher struct {
	Ref    *Reference
	Radius unit.Angle
	Log    logger.Logger
}

// Match returns the objects with a reference entry within Radius, each
// carrying its nearest entry, in input order.  Objects with invalid
// coordinates are logged and dropped.
func (m *Matcher) Match(ctx context.Context, objs []catalog.Object) []Match {
	log := m.Log
	if log == nil {
		log = logger.Nop()
	}
	out := []Match{}
	for _, o := range objs {
		α, δ, err := astro.Equatorial(o.MeanRA, o.MeanDec)
		if err != nil {
			log.Warn(ctx, "object not matched", logger.String("oid", o.OID), logger.Error(err))
			continue
		}
		i, sep := m.Ref.Nearest(α, δ, m.Radius)
		if i < 0 {
			continue
		}
		r := &m.Ref.Refs[i]
		out = append(out, Match{Object: o, RefName: r.Name, RefType: r.Type, Z: r.Z, Sep: sep})
	}
	log.Info(ctx, "reference crossmatch",
		logger.Count("objects", len(objs)),
		logger.Count("reference", len(m.Ref.Refs)),
		logger.Count("matched", len(out)),
		logger.Float64("radius_arcsec", m.Radius.Sec()))
	return out
}
