package tracks

import (
	"fmt"
	"sync"

	"github.com/banshee-data/trackline/internal/geom"
)

// Registry is a concurrency-safe set of presets that keeps registration order.
type Registry struct {
	mu      sync.RWMutex
	presets map[string]Preset
	order   []string
}

// NewRegistry returns a registry holding presets. It fails on the first
// preset that does not validate.
func NewRegistry(presets ...Preset) (*Registry, error) {
	r := &Registry{presets: make(map[string]Preset)}
	for _, p := range presets {
		if err := r.Register(p); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Builtin returns a registry populated with the bundled circuits.
func Builtin() *Registry {
	r, err := NewRegistry(builtinPresets()...)
	if err != nil {
		panic(fmt.Sprintf("builtin presets: %v", err))
	}
	return r
}

// Register adds p, replacing any preset with the same id in place.
func (r *Registry) Register(p Preset) error {
	if err := p.Validate(); err != nil {
		return err
	}
	p.Anchors = append([]geom.Point(nil), p.Anchors...)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.presets[p.ID]; !ok {
		r.order = append(r.order, p.ID)
	}
	r.presets[p.ID] = p
	return nil
}

// Get looks up a preset by id.
func (r *Registry) Get(id string) (Preset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.presets[id]
	if !ok {
		return Preset{}, fmt.Errorf("%w: %q", ErrUnknownTrack, id)
	}
	return p, nil
}

// List returns presets in registration order. A non-empty series filters
// the result.
func (r *Registry) List(series Series) []Preset {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Preset, 0, len(r.order))
	for _, id := range r.order {
		p := r.presets[id]
		if series != "" && p.Series != series {
			continue
		}
		out = append(out, p)
	}
	return out
}

// WithGeometry returns the ids of presets that can be animated.
func (r *Registry) WithGeometry() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var ids []string
	for _, id := range r.order {
		if r.presets[id].HasGeometry() {
			ids = append(ids, id)
		}
	}
	return ids
}

// Len returns the number of registered presets.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.presets)
}
