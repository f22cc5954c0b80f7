// Package jitter размывает интервалы повторов случайной добавкой,
// чтобы параллельные ретраи не выстреливали синхронно.
package jitter

import (
	"math/rand/v2"
	"time"
)

// DefaultJitter — доля случайной добавки к интервалу (50%).
const DefaultJitter = 0.5

// Duration возвращает d, увеличенную на случайную долю до jitterFactor.
// Результат лежит в диапазоне [d, d*(1+jitterFactor)].
func Duration(d time.Duration, jitterFactor float64) time.Duration {
	return d + time.Duration(rand.Float64()*jitterFactor*float64(d))
}

// DurationWithRand — вариант Duration с внешним генератором,
// для детерминированного поведения в тестах.
func DurationWithRand(d time.Duration, jitterFactor float64, rng *rand.Rand) time.Duration {
	return d + time.Duration(rng.Float64()*jitterFactor*float64(d))
}

// ExponentialBackoff возвращает интервал экспоненциального отступа с джиттером:
// base удваивается attempt раз, но не превышает max.
func ExponentialBackoff(base, max time.Duration, attempt int, jitterFactor float64) time.Duration {
	backoff := base
	for i := 0; i < attempt && backoff < max; i++ {
		backoff *= 2
	}
	if backoff > max {
		backoff = max
	}

	return Duration(backoff, jitterFactor)
}
