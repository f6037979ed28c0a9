// Package settings holds the token lifetimes that operators may change while
// the service is running, and notifies subscribers when they do.
package settings

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

type Key string

const (
	AccessTokenLifetime  Key = "ACCESS_TOKEN_LIFETIME"
	RefreshTokenLifetime Key = "REFRESH_TOKEN_LIFETIME"
)

// Keys lists every known setting.
var Keys = []Key{AccessTokenLifetime, RefreshTokenLifetime}

var (
	ErrUnknownKey   = errors.New("unknown setting")
	ErrInvalidValue = errors.New("invalid setting value")
)

// Change describes a value that differs from what was held before.
type Change struct {
	Key   Key
	Old   time.Duration
	Value time.Duration
}

type Listener func(Change)

// Provider is the runtime configuration consumed by the token engine.
// Getters never block on I/O.
type Provider interface {
	AccessTokenLifetime() time.Duration
	RefreshTokenLifetime() time.Duration
	Set(ctx context.Context, key Key, value time.Duration) error
	// Subscribe registers fn for every future change. Listeners run on the
	// goroutine that applied the change and must return quickly.
	Subscribe(fn Listener) (unsubscribe func())
}

// Defaults seeds a store before anything was persisted.
type Defaults struct {
	AccessTokenLifetime  time.Duration
	RefreshTokenLifetime time.Duration
}

func (d Defaults) values() map[Key]time.Duration {
	return map[Key]time.Duration{
		AccessTokenLifetime:  d.AccessTokenLifetime.Truncate(time.Second),
		RefreshTokenLifetime: d.RefreshTokenLifetime.Truncate(time.Second),
	}
}

// Validate checks a candidate value. Lifetimes are whole seconds, at least one.
func Validate(key Key, value time.Duration) error {
	if !known(key) {
		return fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	if value < time.Second || value%time.Second != 0 {
		return fmt.Errorf("%w: %s must be a positive whole number of seconds", ErrInvalidValue, key)
	}
	return nil
}

func known(key Key) bool {
	for _, k := range Keys {
		if k == key {
			return true
		}
	}
	return false
}

// values is the cache shared by both stores: current values plus the
// listener registry.
type values struct {
	mu        sync.RWMutex
	current   map[Key]time.Duration
	listeners map[int]Listener
	nextID    int
}

func newValues(d Defaults) *values {
	return &values{
		current:   d.values(),
		listeners: make(map[int]Listener),
	}
}

func (v *values) get(key Key) time.Duration {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.current[key]
}

// apply stores value and, if it differs, notifies listeners outside the lock.
func (v *values) apply(key Key, value time.Duration) {
	v.mu.Lock()
	old := v.current[key]
	if old == value {
		v.mu.Unlock()
		return
	}
	v.current[key] = value
	fns := make([]Listener, 0, len(v.listeners))
	for _, fn := range v.listeners {
		fns = append(fns, fn)
	}
	v.mu.Unlock()

	change := Change{Key: key, Old: old, Value: value}
	for _, fn := range fns {
		fn(change)
	}
}

// seed replaces a value without notifying anyone.
func (v *values) seed(key Key, value time.Duration) {
	v.mu.Lock()
	v.current[key] = value
	v.mu.Unlock()
}

func (v *values) subscribe(fn Listener) func() {
	v.mu.Lock()
	id := v.nextID
	v.nextID++
	v.listeners[id] = fn
	v.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			v.mu.Lock()
			delete(v.listeners, id)
			v.mu.Unlock()
		})
	}
}
