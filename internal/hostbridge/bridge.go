// Package hostbridge binds the cached volume and transfer textures plus
// the fixed-layout uniform block into a host 3-D engine's material
// system. The host engine itself is an external collaborator; it is
// reached only through the MaterialHost interface, and its display loop
// drives per-frame rebinding through registered FrameBinders.
package hostbridge

import (
	"fmt"
	"sync"
)

// Fixed material slot indices. These are the documented contract with
// the host engine's shader: the volume rides slot 0, the transfer
// lookup slot 1, and the uniform block slot 2.
const (
	SlotVolumeTexture   = 0
	SlotTransferTexture = 1
	SlotUniformBlock    = 2
)

// MaterialHost is the host engine's material surface: texture and
// uniform-buffer slots addressed by fixed index.
type MaterialHost interface {
	SetTexture(slot int, view any) error
	SetUniforms(slot int, data []byte) error
}

// FrameBinder receives the host's current command-encoding context once
// per drawn frame, before the volume material is used. The compute path
// does not need it; the host-engine path uses it to refresh the uniform
// block that engine-side shading reads.
type FrameBinder interface {
	BindFrame(encodingContext any) error
}

// MaterialBindings is one complete set of material state: opaque
// texture views (hal handles) plus the serialized uniform block whose
// layout matches the host shader.
type MaterialBindings struct {
	VolumeView   any
	TransferView any
	Uniforms     []byte
}

// Bridge applies material bindings to a host and replays them on
// demand. Safe for concurrent use; the display loop and the renderer
// run on different goroutines.
type Bridge struct {
	mu      sync.Mutex
	host    MaterialHost
	binders map[int]FrameBinder
	nextID  int
	current MaterialBindings
	applied bool
}

// New creates a bridge over the host's material surface.
func New(host MaterialHost) *Bridge {
	return &Bridge{host: host, binders: make(map[int]FrameBinder)}
}

// Apply pushes a full set of bindings into the host material slots and
// remembers them for Resync.
func (b *Bridge) Apply(m MaterialBindings) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.host == nil {
		return fmt.Errorf("hostbridge: no material host")
	}
	if m.VolumeView != nil {
		if err := b.host.SetTexture(SlotVolumeTexture, m.VolumeView); err != nil {
			return fmt.Errorf("hostbridge: bind volume texture: %w", err)
		}
	}
	if m.TransferView != nil {
		if err := b.host.SetTexture(SlotTransferTexture, m.TransferView); err != nil {
			return fmt.Errorf("hostbridge: bind transfer texture: %w", err)
		}
	}
	if m.Uniforms != nil {
		if err := b.host.SetUniforms(SlotUniformBlock, m.Uniforms); err != nil {
			return fmt.Errorf("hostbridge: upload uniform block: %w", err)
		}
	}
	b.current = m
	b.applied = true
	return nil
}

// Resync replays the last applied bindings into the host. Used when the
// coordinator reactivates the host-engine path: shared state moves to
// the newly active consumer without reallocating any GPU resources.
func (b *Bridge) Resync() error {
	b.mu.Lock()
	m := b.current
	ok := b.applied
	b.mu.Unlock()
	if !ok {
		return nil
	}
	return b.Apply(m)
}

// Current returns the last applied bindings.
func (b *Bridge) Current() MaterialBindings {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}

// RegisterFrameBinder adds a per-frame binding observer. The returned
// cancel func removes it.
func (b *Bridge) RegisterFrameBinder(fb FrameBinder) (cancel func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.binders[id] = fb
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		delete(b.binders, id)
		b.mu.Unlock()
	}
}

// EachFrame is called by the host's display loop once per frame with
// the current encoding context. It refreshes the uniform block and then
// invokes every registered FrameBinder. Binder errors are collected
// into the first error returned; later binders still run.
func (b *Bridge) EachFrame(encodingContext any) error {
	b.mu.Lock()
	var binders []FrameBinder
	for _, fb := range b.binders {
		binders = append(binders, fb)
	}
	uniforms := b.current.Uniforms
	host := b.host
	b.mu.Unlock()

	var first error
	if host != nil && uniforms != nil {
		if err := host.SetUniforms(SlotUniformBlock, uniforms); err != nil {
			first = fmt.Errorf("hostbridge: per-frame uniform refresh: %w", err)
		}
	}
	for _, fb := range binders {
		if err := fb.BindFrame(encodingContext); err != nil && first == nil {
			first = err
		}
	}
	return first
}
