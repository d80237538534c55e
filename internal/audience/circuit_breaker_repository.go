package audience

import (
	"context"
	"fmt"

	"audience/internal/config"
	"audience/pkg/circuitbreaker"
)

// CircuitBreakerRepository guards a Store with a circuit breaker. With the
// breaker disabled it delegates directly.
type CircuitBreakerRepository struct {
	store Store
	cb    *circuitbreaker.Wrapper
}

func NewCircuitBreakerRepository(store Store, cfg config.CircuitBreakerConfig) *CircuitBreakerRepository {
	if !cfg.Enabled {
		return &CircuitBreakerRepository{store: store}
	}

	name := store.Name() + "-audience"
	return &CircuitBreakerRepository{
		store: store,
		cb:    circuitbreaker.NewWrapper(circuitbreaker.FromSettings(name, cfg)),
	}
}

func (r *CircuitBreakerRepository) Name() string {
	return r.store.Name()
}

func (r *CircuitBreakerRepository) CountMatching(ctx context.Context, collection string, filter Filter) (int64, error) {
	if r.cb == nil {
		return r.store.CountMatching(ctx, collection, filter)
	}

	count, err := circuitbreaker.Execute(ctx, r.cb, func(ctx context.Context) (int64, error) {
		return r.store.CountMatching(ctx, collection, filter)
	})
	if err != nil {
		return 0, fmt.Errorf("%s: %w", r.cb.Name(), err)
	}
	return count, nil
}

func (r *CircuitBreakerRepository) State() string {
	if r.cb == nil {
		return "disabled"
	}
	return r.cb.State().String()
}
