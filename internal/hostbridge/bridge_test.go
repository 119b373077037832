package hostbridge

import (
	"errors"
	"testing"
)

type recordingHost struct {
	textures map[int]any
	uniforms map[int][]byte
	texErr   error
}

func newRecordingHost() *recordingHost {
	return &recordingHost{textures: make(map[int]any), uniforms: make(map[int][]byte)}
}

func (h *recordingHost) SetTexture(slot int, view any) error {
	if h.texErr != nil {
		return h.texErr
	}
	h.textures[slot] = view
	return nil
}

func (h *recordingHost) SetUniforms(slot int, data []byte) error {
	h.uniforms[slot] = data
	return nil
}

func TestApplyPushesAllSlots(t *testing.T) {
	host := newRecordingHost()
	b := New(host)
	err := b.Apply(MaterialBindings{
		VolumeView:   "vol",
		TransferView: "tf",
		Uniforms:     []byte{1, 2},
	})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if host.textures[SlotVolumeTexture] != "vol" {
		t.Errorf("volume slot = %v, want vol", host.textures[SlotVolumeTexture])
	}
	if host.textures[SlotTransferTexture] != "tf" {
		t.Errorf("transfer slot = %v, want tf", host.textures[SlotTransferTexture])
	}
	if len(host.uniforms[SlotUniformBlock]) != 2 {
		t.Errorf("uniform slot = %v, want 2 bytes", host.uniforms[SlotUniformBlock])
	}
}

func TestApplySkipsNilBindings(t *testing.T) {
	host := newRecordingHost()
	b := New(host)
	if err := b.Apply(MaterialBindings{Uniforms: []byte{9}}); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if len(host.textures) != 0 {
		t.Errorf("nil views must not bind textures, got %v", host.textures)
	}
}

func TestApplyPropagatesHostError(t *testing.T) {
	host := newRecordingHost()
	host.texErr = errors.New("slot busy")
	b := New(host)
	if err := b.Apply(MaterialBindings{VolumeView: "vol"}); err == nil {
		t.Error("Apply() must surface host errors")
	}
}

func TestResyncReplaysLastApplied(t *testing.T) {
	host := newRecordingHost()
	b := New(host)

	// Resync before any Apply is a no-op.
	if err := b.Resync(); err != nil {
		t.Fatalf("pristine Resync() error = %v", err)
	}
	if len(host.textures) != 0 {
		t.Fatalf("pristine Resync() must not touch the host")
	}

	if err := b.Apply(MaterialBindings{VolumeView: "vol", Uniforms: []byte{5}}); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	host.textures = make(map[int]any)
	host.uniforms = make(map[int][]byte)

	if err := b.Resync(); err != nil {
		t.Fatalf("Resync() error = %v", err)
	}
	if host.textures[SlotVolumeTexture] != "vol" {
		t.Errorf("resynced volume slot = %v, want vol", host.textures[SlotVolumeTexture])
	}
	if len(host.uniforms[SlotUniformBlock]) != 1 {
		t.Errorf("resynced uniforms = %v, want replayed byte", host.uniforms[SlotUniformBlock])
	}
}

type countingBinder struct {
	calls int
	err   error
}

func (c *countingBinder) BindFrame(encodingContext any) error {
	c.calls++
	return c.err
}

func TestEachFrameInvokesBinders(t *testing.T) {
	host := newRecordingHost()
	b := New(host)
	if err := b.Apply(MaterialBindings{Uniforms: []byte{1}}); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	fb1 := &countingBinder{}
	fb2 := &countingBinder{err: errors.New("bind failed")}
	cancel := b.RegisterFrameBinder(fb1)
	b.RegisterFrameBinder(fb2)

	if err := b.EachFrame(nil); err == nil {
		t.Error("EachFrame() must return the binder error")
	}
	if fb1.calls != 1 || fb2.calls != 1 {
		t.Errorf("binder calls = %d/%d, want 1/1 (errors must not stop others)", fb1.calls, fb2.calls)
	}

	cancel()
	if err := b.EachFrame(nil); err == nil {
		t.Error("EachFrame() must keep reporting the failing binder")
	}
	if fb1.calls != 1 {
		t.Errorf("cancelled binder called %d times, want still 1", fb1.calls)
	}
	if fb2.calls != 2 {
		t.Errorf("remaining binder called %d times, want 2", fb2.calls)
	}
}

func TestCurrentReflectsLastApply(t *testing.T) {
	b := New(newRecordingHost())
	if got := b.Current(); got.VolumeView != nil {
		t.Fatalf("pristine Current() = %+v, want zero", got)
	}
	_ = b.Apply(MaterialBindings{VolumeView: "v2"})
	if got := b.Current(); got.VolumeView != "v2" {
		t.Errorf("Current().VolumeView = %v, want v2", got.VolumeView)
	}
}
