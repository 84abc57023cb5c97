// Package walk generates reproducible signed random walks of trade sizes.
package walk

import (
	"math/big"
	"math/rand"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/swapsim/internal/domain"
)

// Walk lazily produces a signed random walk. Only the step size is bounded,
// the cumulative value is not clamped.
type Walk struct {
	rnd      *rand.Rand
	min      *big.Int
	span     *big.Int
	steps    int
	produced int
	current  *big.Int
}

// New validates the parameters and seeds a walk.
func New(minMagnitude, maxMagnitude *big.Int, steps int, seed int64) (*Walk, error) {
	if minMagnitude == nil || maxMagnitude == nil {
		return nil, errors.Wrap(domain.ErrInvalidRange, "magnitudes are required")
	}
	if minMagnitude.Cmp(big.NewInt(1)) < 0 {
		return nil, errors.Wrapf(domain.ErrInvalidRange, "min magnitude must be >= 1, got %s", minMagnitude)
	}
	if minMagnitude.Cmp(maxMagnitude) > 0 {
		return nil, errors.Wrapf(domain.ErrInvalidRange, "min magnitude %s exceeds max magnitude %s", minMagnitude, maxMagnitude)
	}
	if steps < 1 {
		return nil, errors.Wrapf(domain.ErrInvalidRange, "steps must be >= 1, got %d", steps)
	}

	span := new(big.Int).Sub(maxMagnitude, minMagnitude)
	span.Add(span, big.NewInt(1))

	return &Walk{
		rnd:   rand.New(rand.NewSource(seed)),
		min:   new(big.Int).Set(minMagnitude),
		span:  span,
		steps: steps,
	}, nil
}

// Next returns the next walk value, or false once all steps were produced.
func (w *Walk) Next() (*big.Int, bool) {
	if w.produced >= w.steps {
		return nil, false
	}

	step := w.draw()
	if w.current == nil {
		w.current = step
	} else {
		w.current = new(big.Int).Add(w.current, step)
	}
	w.produced++

	return new(big.Int).Set(w.current), true
}

// draw returns a magnitude uniform in [min, max] with an independent uniform sign.
func (w *Walk) draw() *big.Int {
	magnitude := new(big.Int).Rand(w.rnd, w.span)
	magnitude.Add(magnitude, w.min)
	if w.rnd.Intn(2) == 0 {
		magnitude.Neg(magnitude)
	}
	return magnitude
}

// Generate materializes a walk of the given length into a trade plan.
func Generate(minMagnitude, maxMagnitude *big.Int, steps int, seed int64) (domain.TradePlan, error) {
	w, err := New(minMagnitude, maxMagnitude, steps, seed)
	if err != nil {
		return domain.TradePlan{}, err
	}

	values := make([]*big.Int, 0, steps)
	for v, ok := w.Next(); ok; v, ok = w.Next() {
		values = append(values, v)
	}

	return domain.NewTradePlan(values), nil
}
