// Public domain.

// Package fitstest writes small FITS files for tests: a float32 primary
// image, or an empty primary HDU followed by a binary table.
package fitstest

import (
	"fmt"
	"io"

	"github.com/astrogo/fitsio"
)

// Card is a header keyword and value.  Value may be bool, int, float64 or
// string.
type Card struct {
	Name  string
	Value interface{}
}

func cards(cs []Card) []fitsio.Card {
	out := make([]fitsio.Card, len(cs))
	for i, c := range cs {
		out[i] = fitsio.Card{Name: c.Name, Value: c.Value}
	}
	return out
}

// Image writes a primary HDU holding an nx by ny float32 image, data in
// FITS order (x varying fastest).  Extra cards follow the mandatory ones.
func Image(w io.Writer, nx, ny int, data []float32, extra ...Card) error {
	if len(data) != nx*ny {
		return fmt.Errorf("fitstest: %d values for %dx%d image", len(data), nx, ny)
	}
	f, err := fitsio.Create(w)
	if err != nil {
		return err
	}
	defer f.Close()
	img := fitsio.NewImage(-32, []int{nx, ny})
	defer img.Close()
	if err = img.Header().Append(cards(extra)...); err != nil {
		return err
	}
	if err = img.Write(data); err != nil {
		return err
	}
	return f.Write(img)
}

// Column is a binary table column.  Data must be []int64 (TFORM K) or
// []float64 (TFORM D).
type Column struct {
	Name string
	Data interface{}
}

func (c Column) form() (string, int, error) {
	switch d := c.Data.(type) {
	case []int64:
		return "K", len(d), nil
	case []float64:
		return "D", len(d), nil
	}
	return "", 0, fmt.Errorf("fitstest: unsupported column type %T", c.Data)
}

// Table writes an empty primary HDU then a BINTABLE extension.  Extra
// cards go in the table header.
func Table(w io.Writer, cols []Column, extra ...Card) error {
	nRows := -1
	fcols := make([]fitsio.Column, len(cols))
	for i, c := range cols {
		form, n, err := c.form()
		if err != nil {
			return err
		}
		if nRows >= 0 && n != nRows {
			return fmt.Errorf("fitstest: column %s has %d rows, want %d", c.Name, n, nRows)
		}
		nRows = n
		fcols[i] = fitsio.Column{Name: c.Name, Format: form}
	}

	f, err := fitsio.Create(w)
	if err != nil {
		return err
	}
	defer f.Close()
	phdu, err := fitsio.NewPrimaryHDU(nil)
	if err != nil {
		return err
	}
	if err = f.Write(phdu); err != nil {
		return err
	}

	tbl, err := fitsio.NewTable("SKYMAP", fcols, fitsio.BINARY_TBL)
	if err != nil {
		return err
	}
	defer tbl.Close()
	if err = tbl.Header().Append(cards(extra)...); err != nil {
		return err
	}
	row := make([]interface{}, len(cols))
	for r := 0; r < nRows; r++ {
		for i, c := range cols {
			switch d := c.Data.(type) {
			case []int64:
				row[i] = &d[r]
			case []float64:
				row[i] = &d[r]
			}
		}
		if err = tbl.Write(row...); err != nil {
			return err
		}
	}
	return f.Write(tbl)
}
