package repo

import "sync"

// validatedCache holds one value together with the validator it was
// computed for. The value is recomputed whenever the current validator
// differs from the stored one.
type validatedCache[T any] struct {
	mu        sync.Mutex
	validator string
	value     T
	valid     bool
}

// GetOrRecompute returns the cached value when validator matches, and
// otherwise calls produce and stores its result. Errors are not cached.
func (c *validatedCache[T]) GetOrRecompute(validator string, produce func() (T, error)) (T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.valid && c.validator == validator {
		return c.value, nil
	}
	v, err := produce()
	if err != nil {
		var zero T
		return zero, err
	}
	c.validator, c.value, c.valid = validator, v, true
	return v, nil
}
