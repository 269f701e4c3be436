// Public domain.

package gwpipe

import (
	"fmt"
	"io"
	"math"

	sexa "github.com/soniakeys/sexagesimal"
	"github.com/soniakeys/unit"
)

// Report writes a summary of r followed by one line per candidate and the
// viewer URL.
func Report(w io.Writer, r *Result) error {
	event := r.Event
	if event == "" {
		event = "(unnamed)"
	}
	fmt.Fprintf(w, "Event %s, run %s\n", event, r.RunID)
	fmt.Fprintf(w, "%d credible pixels in %d clusters, %d objects, %d matches",
		len(r.Credible), r.K, len(r.Objects), len(r.Matches))
	if r.Redshift != nil {
		fmt.Fprintf(w, ", %d in %s window z %.4f-%.4f",
			len(r.ZFiltered), r.Window.Selector, r.Window.ZMin, r.Window.ZMax)
	}
	fmt.Fprintln(w)
	if r.Stopped != "" {
		_, err := fmt.Fprintf(w, "No candidates remain after %s stage.\n", r.Stopped)
		return err
	}

	ref := map[string]int{}
	for i, m := range r.ZFiltered {
		ref[m.OID] = i
	}
	fmt.Fprintln(w, "oid               RA            Dec          class    P     ndet  reference                z       A_g")
	for _, c := range r.Candidates {
		ra, dec := "?", "?"
		if !math.IsNaN(c.MeanRA) && !math.IsNaN(c.MeanDec) {
			ra = fmt.Sprintf("%.2s", sexa.FmtRA(unit.RAFromDeg(c.MeanRA)))
			dec = fmt.Sprintf("%+.1s", sexa.FmtAngle(unit.AngleFromDeg(c.MeanDec)))
		}
		name, z := "", math.NaN()
		if i, ok := ref[c.OID]; ok {
			name, z = r.ZFiltered[i].RefName, r.ZFiltered[i].Z
		}
		fmt.Fprintf(w, "%-17s %-13s %-12s %-8s %.3f %5d  %-24s %.4f %5.2f\n",
			c.OID, ra, dec, c.ClassName, c.ProbSum, c.Det.Count, name, z, c.Ag)
	}
	_, err := fmt.Fprintf(w, "%s\n", r.URL)
	return err
}
