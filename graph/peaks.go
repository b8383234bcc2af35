package graph

import (
	"sort"
	"time"

	"vecScope/telemetry"
)

const NoiseFloor = 1.0

type Peak struct {
	At    time.Time
	Value float64
}

// LocalMaxima returns samples strictly greater than both neighbours and
// than floor, in time order. The first and last samples never qualify.
func LocalMaxima(w telemetry.Window, c telemetry.Channel, floor float64) []Peak {
	var out []Peak
	for i := 1; i < len(w)-1; i++ {
		v := c.Value(w[i])
		if v > c.Value(w[i-1]) && v > c.Value(w[i+1]) && v > floor {
			out = append(out, Peak{At: w[i].At, Value: v})
		}
	}
	return out
}

// SelectPeaks keeps the highest candidates greedily, rejecting any that
// lies within separation (inclusive) of one already kept. Equal values
// prefer the earlier peak. The result is in time order.
func SelectPeaks(candidates []Peak, separation time.Duration) []Peak {
	ranked := append([]Peak(nil), candidates...)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Value > ranked[j].Value })

	var kept []Peak
	for _, p := range ranked {
		ok := true
		for _, k := range kept {
			if absDuration(p.At.Sub(k.At)) <= separation {
				ok = false
				break
			}
		}
		if ok {
			kept = append(kept, p)
		}
	}

	sort.SliceStable(kept, func(i, j int) bool { return kept[i].At.Before(kept[j].At) })
	return kept
}

// FindPeaks selects peaks of c whose timestamps lie in [from, to].
func FindPeaks(w telemetry.Window, c telemetry.Channel, from, to time.Time, separation time.Duration) []Peak {
	var candidates []Peak
	for _, p := range LocalMaxima(w, c, NoiseFloor) {
		if p.At.Before(from) || p.At.After(to) {
			continue
		}
		candidates = append(candidates, p)
	}
	return SelectPeaks(candidates, separation)
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
