package health

import (
	"context"
	"runtime"

	"github.com/go-faster/errors"
)

// GoroutineCountCheck fails when more than threshold goroutines run.
func GoroutineCountCheck(threshold int) CheckFunc {
	return func(context.Context) error {
		if n := runtime.NumGoroutine(); n > threshold {
			return errors.Errorf("goroutine count %d exceeds threshold %d", n, threshold)
		}
		return nil
	}
}

// Loader is implemented by caches that fill asynchronously, such as the
// coupon catalog.
type Loader interface {
	IsLoaded() bool
}

// LoadedCheck fails until l reports loaded.
func LoadedCheck(name string, l Loader) CheckFunc {
	return func(context.Context) error {
		if !l.IsLoaded() {
			return errors.Errorf("%s not loaded", name)
		}
		return nil
	}
}

// Pinger is implemented by pgxpool.Pool and the Redis session store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck wraps a Pinger.
func PingCheck(p Pinger) CheckFunc {
	return p.Ping
}
