// Package prefs persists small UI scalars, namespaced per view so two
// views storing the same key never collide.
package prefs

import (
	"context"
	"strconv"
)

// Store is a string-keyed scalar store. Keys are already namespaced by
// the time they reach a Store implementation.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// View scopes a Store to one named view and guards the initial
// hydration: Sets issued while hydrating are dropped so a component
// default never clobbers the stored value.
type View struct {
	store     Store
	name      string
	hydrating bool
}

func NewView(store Store, name string) *View {
	return &View{store: store, name: name}
}

// BeginHydration marks the start of the view's initial load. Until
// EndHydration is called, writes are silently skipped.
func (v *View) BeginHydration() { v.hydrating = true }

// EndHydration re-enables writes.
func (v *View) EndHydration() { v.hydrating = false }

func (v *View) key(field string) string {
	return v.name + "_" + field
}

// GetString reads a scalar, falling back to def when unset or on error.
func (v *View) GetString(ctx context.Context, field, def string) string {
	val, ok, err := v.store.Get(ctx, v.key(field))
	if err != nil || !ok {
		return def
	}
	return val
}

// SetString writes a scalar unless the view is hydrating.
func (v *View) SetString(ctx context.Context, field, value string) error {
	if v.hydrating {
		return nil
	}
	return v.store.Set(ctx, v.key(field), value)
}

// GetInt reads an integer scalar, falling back to def when unset,
// unparsable or on error.
func (v *View) GetInt(ctx context.Context, field string, def int) int {
	val, ok, err := v.store.Get(ctx, v.key(field))
	if err != nil || !ok {
		return def
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return def
	}
	return n
}

// SetInt writes an integer scalar unless the view is hydrating.
func (v *View) SetInt(ctx context.Context, field string, value int) error {
	return v.SetString(ctx, field, strconv.Itoa(value))
}
