// Public domain.

package gwmatch_test

import (
	"context"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/soniakeys/unit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soniakeys/gwagn/internal/catalog"
	"github.com/soniakeys/gwagn/internal/gwmatch"
)

const milliquas = `NAME,RA,DEC,TYPE,Z
QSO A,10.0,20.0,Q,0.05
QSO B,10.0005,20.0,A,0.5
QSO C,359.99995,-5.0,Q,
bad,x,1,Q,0.1
off sky,10,95,Q,0.1
bad"quote,1,2,Q,0.1
QSO D,180.0,89.9999,Q,1.2
`

func read(t *testing.T) *gwmatch.Reference {
	t.Helper()
	ref, err := gwmatch.Read(strings.NewReader(milliquas), gwmatch.DefaultColumns,
		unit.AngleFromSec(1))
	require.NoError(t, err)
	return ref
}

func TestRead(t *testing.T) {
	ref := read(t)
	require.Len(t, ref.Refs, 4)
	assert.Equal(t, 3, ref.Skipped)
	assert.Equal(t, "QSO A", ref.Refs[0].Name)
	assert.Equal(t, "Q", ref.Refs[0].Type)
	assert.Equal(t, .05, ref.Refs[0].Z)
	assert.True(t, math.IsNaN(ref.Refs[2].Z))

	_, err := gwmatch.Read(strings.NewReader("name,z\nx,1\n"), gwmatch.DefaultColumns,
		unit.AngleFromSec(1))
	assert.ErrorIs(t, err, gwmatch.ErrColumns)
}

func TestMatch(t *testing.T) {
	m := &gwmatch.Matcher{Ref: read(t), Radius: unit.AngleFromSec(1)}
	objs := []catalog.Object{
		{OID: "near A", MeanRA: 10.0001, MeanDec: 20.0001}, // 0.49"
		{OID: "far", MeanRA: 10.01, MeanDec: 20},
		{OID: "across 0h", MeanRA: 0.00005, MeanDec: -5},
		{OID: "pole", MeanRA: 0, MeanDec: 89.9999},
		{OID: "invalid", MeanRA: math.NaN(), MeanDec: 0},
		{OID: "between", MeanRA: 10.00035, MeanDec: 20}, // nearer B
	}
	got := m.Match(context.Background(), objs)
	require.Len(t, got, 4)

	assert.Equal(t, "near A", got[0].OID)
	assert.Equal(t, "QSO A", got[0].RefName)
	assert.InDelta(t, .494, got[0].Sep.Sec(), .005)

	assert.Equal(t, "across 0h", got[1].OID)
	assert.Equal(t, "QSO C", got[1].RefName)
	assert.InDelta(t, .36, got[1].Sep.Sec(), .01)

	// 0.0002° from the pole on either side is 0.72"
	assert.Equal(t, "pole", got[2].OID)
	assert.Equal(t, "QSO D", got[2].RefName)

	assert.Equal(t, "between", got[3].OID)
	assert.Equal(t, "QSO B", got[3].RefName)
	assert.Equal(t, .5, got[3].Z)
}

func TestMatchRadius(t *testing.T) {
	ref := read(t)
	o := []catalog.Object{{OID: "x", MeanRA: 10.002, MeanDec: 20}}
	assert.Empty(t, (&gwmatch.Matcher{Ref: ref, Radius: unit.AngleFromSec(1)}).
		Match(context.Background(), o))
	got := (&gwmatch.Matcher{Ref: ref, Radius: unit.AngleFromSec(10)}).
		Match(context.Background(), o)
	require.Len(t, got, 1)
	assert.Equal(t, "QSO B", got[0].RefName)
}

func TestNearestWideRadius(t *testing.T) {
	ref := read(t)
	// 1.5° away spans many one arcminute zones
	α, δ := unit.RAFromDeg(10.0005), unit.AngleFromDeg(21.5)
	i, sep := ref.Nearest(α, δ, unit.AngleFromDeg(2))
	require.GreaterOrEqual(t, i, 0)
	assert.Equal(t, "QSO B", ref.Refs[i].Name)
	assert.InDelta(t, 1.5, sep.Deg(), 1e-6)

	// the index is unchanged, so narrow lookups still miss
	i, _ = ref.Nearest(α, δ, unit.AngleFromSec(1))
	assert.Equal(t, -1, i)
	i, _ = ref.Nearest(unit.RAFromDeg(10.0001), unit.AngleFromDeg(20.0001), unit.AngleFromSec(1))
	require.GreaterOrEqual(t, i, 0)
	assert.Equal(t, "QSO A", ref.Refs[i].Name)
}

func TestNearestConcurrent(t *testing.T) {
	ref := read(t)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			radius := unit.AngleFromSec(1)
			if g%2 == 1 {
				radius = unit.AngleFromDeg(float64(g))
			}
			for n := 0; n < 100; n++ {
				i, _ := ref.Nearest(unit.RAFromDeg(10.0001), unit.AngleFromDeg(20.0001), radius)
				assert.Equal(t, 0, i)
			}
		}(g)
	}
	wg.Wait()
}
