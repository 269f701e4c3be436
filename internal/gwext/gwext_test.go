// Public domain.

package gwext_test

import (
	"context"
	"math"
	"testing"

	"github.com/soniakeys/unit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soniakeys/gwagn/astro"
	"github.com/soniakeys/gwagn/internal/catalog"
	"github.com/soniakeys/gwagn/internal/gwclass"
	"github.com/soniakeys/gwagn/internal/gwext"
)

type uniformDust float64

func (d uniformDust) EBV(l, b unit.Angle) float64 { return float64(d) }

func cand(oid string, ra, dec float64, ndet int) gwclass.Candidate {
	return gwclass.Candidate{Classification: catalog.Classification{
		OID: oid, MeanRA: ra, MeanDec: dec, NDet: ndet}}
}

var cands = []gwclass.Candidate{
	cand("ngp", 192.85948, 27.12825, 1),
	cand("center", 266.405, -28.936, 5),
	cand("ecliptic", 180, 0, 1),
	cand("ecliptic, detected", 180, 0, 3),
	cand("invalid", 10, 95, 3),
}

func filter(t *testing.T, ebv float64) *gwext.Filter {
	law, err := astro.NewF99(3.1)
	require.NoError(t, err)
	return &gwext.Filter{Dust: uniformDust(ebv), Law: law, ApplyCuts: true,
		Cuts: gwext.DefaultCuts}
}

func TestApply(t *testing.T) {
	all, kept := filter(t, .1).Apply(context.Background(), cands)
	require.Len(t, all, 5)
	assert.InDelta(t, 90, all[0].GalLat, .01)
	assert.InDelta(t, 0, all[2].EclLat, .01)
	assert.InDelta(t, .37, all[0].Ag, .03)
	assert.Less(t, all[0].Ar, all[0].Ag)
	assert.Equal(t, .1, all[0].EBV)

	inv := all[4]
	assert.Equal(t, "invalid", inv.OID)
	assert.True(t, math.IsNaN(inv.EclLat))
	assert.True(t, math.IsNaN(inv.GalLat))
	assert.True(t, math.IsNaN(inv.Ag))

	var ids []string
	for _, r := range kept {
		ids = append(ids, r.OID)
	}
	assert.Equal(t, []string{"ngp", "ecliptic, detected"}, ids)
}

func TestApplyExtinction(t *testing.T) {
	_, kept := filter(t, .5).Apply(context.Background(), cands)
	assert.Empty(t, kept)
}

func TestApplyNoCuts(t *testing.T) {
	f := filter(t, .5)
	f.ApplyCuts = false
	all, kept := f.Apply(context.Background(), cands)
	assert.Len(t, kept, 5)
	assert.Equal(t, all, kept)
}

func TestKeep(t *testing.T) {
	c := gwext.DefaultCuts
	row := func(ndet int, ecl, gal, ag float64) gwext.Row {
		r := gwext.Row{EclLat: ecl, GalLat: gal, Ag: ag}
		r.NDet = ndet
		return r
	}
	assert.True(t, c.Keep(row(1, 21, -21, .9)))
	assert.False(t, c.Keep(row(1, 20, -21, .9)))
	assert.True(t, c.Keep(row(2, -80, 21, .9)))
	assert.False(t, c.Keep(row(2, 50, 20, .9)))
	assert.False(t, c.Keep(row(2, 50, 50, 1)))
	assert.False(t, c.Keep(row(2, 50, 50, math.NaN())))
	assert.False(t, c.Keep(row(2, math.NaN(), math.NaN(), .1)))
}
