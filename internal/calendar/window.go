package calendar

import (
	"errors"
	"fmt"
	"time"

	"github.com/LuisMesaGLocation/ser-fur-downloader-storage-service-ia/internal/types"
)

// ErrEmptyWindow is returned when the adjusted start falls after the adjusted end,
// which happens when the requested period has not started yet.
var ErrEmptyWindow = errors.New("search window is empty")

// QuarterBounds returns the first and last calendar day of quarter q in year.
func QuarterBounds(year, q int) (time.Time, time.Time) {
	first := time.Date(year, time.Month(3*(q-1)+1), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 3, -1)
	return first, last
}

// Window computes the search window for a case file's resolved year and quarters.
// Without quarters the whole year is searched. The end is capped at the day
// before today, so the current year is searched only up to yesterday.
func Window(year int, quarters []int, today time.Time) (types.SearchWindow, error) {
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)

	if len(quarters) > 0 {
		lo, hi := quarters[0], quarters[0]
		for _, q := range quarters {
			if q < 1 || q > 4 {
				return types.SearchWindow{}, fmt.Errorf("invalid quarter %d", q)
			}
			lo = min(lo, q)
			hi = max(hi, q)
		}
		start, _ = QuarterBounds(year, lo)
		_, end = QuarterBounds(year, hi)
	}

	cutoff := Date(today).AddDate(0, 0, -1)
	if end.After(cutoff) {
		end = cutoff
	}

	w := types.SearchWindow{
		Start: AdjustForward(start),
		End:   AdjustBackward(end),
	}
	if !w.Valid() {
		return types.SearchWindow{}, fmt.Errorf("%w: %s", ErrEmptyWindow, w)
	}
	return w, nil
}
