package btscontext

import (
	"fmt"
	"time"

	"github.com/lestrrat-go/strftime"
)

// StatsFilename renders c.StatsFilePattern (a strftime(3)-style
// pattern, e.g. "stats-%Y%m%d-%H%M%S.log") at time now, for the
// rotating statistics/ring-buffer dump the channel supervisor and CCCH
// scheduler write counters to.
func StatsFilename(pattern string, now time.Time) (string, error) {
	f, err := strftime.New(pattern)
	if err != nil {
		return "", fmt.Errorf("btscontext: parse stats filename pattern %q: %w", pattern, err)
	}
	return f.FormatString(now), nil
}
