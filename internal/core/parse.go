package core

import (
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// parallelThreshold is the row count above which validation is spread over
// several goroutines. Smaller sources are validated inline.
const parallelThreshold = 256

// parseChunk is the number of rows validated by one goroutine.
const parseChunk = 64

type rowOutcome struct {
	row     NormalizedRow
	err     *RowError
	skipped bool
}

// Parse validates every raw row. Output order always matches input order,
// whether or not validation ran in parallel.
func (v *RowValidator) Parse(raws []RawRow) *ParseResult {
	outcomes := make([]rowOutcome, len(raws))
	eval := func(i int) {
		raw := raws[i]
		if !v.Eligible(raw) {
			outcomes[i].skipped = true
			return
		}
		outcomes[i].row, outcomes[i].err = v.Normalize(raw)
	}

	if len(raws) < parallelThreshold {
		for i := range raws {
			eval(i)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(runtime.GOMAXPROCS(0))
		for start := 0; start < len(raws); start += parseChunk {
			end := min(start+parseChunk, len(raws))
			g.Go(func() error {
				for i := start; i < end; i++ {
					eval(i)
				}
				return nil
			})
		}
		_ = g.Wait()
	}

	res := &ParseResult{TotalRows: len(raws)}

	// Unknown labels are counted by folded form; the first spelling seen is
	// the one reported.
	unknown := make(map[string]int)
	var unknownOrder []string
	spelling := make(map[string]string)

	for _, o := range outcomes {
		switch {
		case o.skipped:
			res.SkippedUnpaid++
		case o.err != nil:
			res.Errors = append(res.Errors, *o.err)
		default:
			res.Rows = append(res.Rows, o.row)
			if _, known := v.tariffs.Lookup(o.row.TariffLabel); !known {
				key := Fold(o.row.TariffLabel)
				if unknown[key] == 0 {
					unknownOrder = append(unknownOrder, key)
					spelling[key] = o.row.TariffLabel
				}
				unknown[key]++
			}
		}
	}

	for _, key := range unknownOrder {
		if key == "" {
			res.Warnings = append(res.Warnings, fmt.Sprintf(
				"%d row(s) have no tariff label, filed under list %s", unknown[key], v.tariffs.Fallback()))
			continue
		}
		res.Warnings = append(res.Warnings, fmt.Sprintf(
			"tariff label %q is not recognised, %d row(s) filed under list %s", spelling[key], unknown[key], v.tariffs.Fallback()))
	}

	return res
}
