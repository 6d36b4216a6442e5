package timeline

import (
	"fmt"
	"time"
)

// ToStep converts (xs, ys) samples into a sample-and-hold curve. The first
// point is kept; every later sample becomes two points, (x, previous y) and
// (x, y), so a polyline through the result jumps vertically at each sample
// instead of interpolating. The result has 2n-1 points.
func ToStep[V any](xs []time.Time, ys []V) ([]time.Time, []V, error) {
	if len(xs) != len(ys) {
		return nil, nil, fmt.Errorf("step: %d timestamps but %d values", len(xs), len(ys))
	}
	if len(xs) == 0 {
		return []time.Time{}, []V{}, nil
	}

	xx := make([]time.Time, 0, 2*len(xs)-1)
	yy := make([]V, 0, 2*len(ys)-1)
	xx = append(xx, xs[0])
	yy = append(yy, ys[0])
	for i := 1; i < len(xs); i++ {
		xx = append(xx, xs[i], xs[i])
		yy = append(yy, yy[len(yy)-1], ys[i])
	}
	return xx, yy, nil
}
