package closer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Closer закрывает зарегистрированные ресурсы в обратном порядке (LIFO).
// Потокобезопасен; Close выполняется только один раз.
type Closer struct {
	funcs         []Func
	mu            sync.Mutex
	once          sync.Once
	forcedTimeout time.Duration
}

// Func — функция освобождения одного ресурса.
type Func func(ctx context.Context) error

// NewCloser создает Closer. forcedTimeout ограничивает принудительное
// закрытие остатка ресурсов после отмены контекста в Close.
func NewCloser(forcedTimeout time.Duration) *Closer {
	const defaultForcedTimeout = 2 * time.Second

	if forcedTimeout == 0 {
		forcedTimeout = defaultForcedTimeout
	}

	return &Closer{forcedTimeout: forcedTimeout}
}

// Add регистрирует функцию закрытия.
func (c *Closer) Add(f Func) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.funcs = append(c.funcs, f)
}

// Close последовательно закрывает ресурсы в порядке LIFO. Если контекст
// отменяется до завершения, оставшиеся ресурсы закрываются принудительно
// с собственным таймаутом.
func (c *Closer) Close(ctx context.Context) error {
	var err error
	c.once.Do(func() {
		c.mu.Lock()
		funcs := c.funcs
		c.mu.Unlock()

		stopIdx, closeErr := c.gracefulClose(ctx, funcs)
		if stopIdx < 0 {
			if closeErr != nil {
				err = fmt.Errorf("shutdown finished with error(s): %w", closeErr)
			}

			return
		}

		forcedErr := c.forcedClose(funcs[:stopIdx+1])

		msg := fmt.Sprintf("shutdown interrupted after %d/%d funcs", len(funcs)-1-stopIdx, len(funcs))
		if joined := errors.Join(closeErr, forcedErr); joined != nil {
			err = fmt.Errorf("%s: %w", msg, joined)
		} else {
			err = errors.New(msg)
		}
	})

	return err
}

// gracefulClose закрывает функции с конца списка, пока контекст жив.
// Возвращает индекс первой незакрытой функции (-1, если закрыты все)
// и собранные ошибки.
func (c *Closer) gracefulClose(ctx context.Context, funcs []Func) (int, error) {
	var errs []error
	for i := len(funcs) - 1; i >= 0; i-- {
		done := make(chan error, 1)
		go func() {
			done <- funcs[i](ctx)
		}()

		select {
		case err := <-done:
			if err != nil {
				errs = append(errs, err)
			}
		case <-ctx.Done():
			return i, errors.Join(errs...)
		}
	}

	return -1, errors.Join(errs...)
}

// forcedClose параллельно закрывает оставшиеся функции с таймаутом forcedTimeout.
func (c *Closer) forcedClose(funcs []Func) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.forcedTimeout)
	defer cancel()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)

	for _, f := range funcs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := f(ctx); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}()
	}

	wg.Wait()
	return errors.Join(errs...)
}
