package volren

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/volren/volren/internal/gpucompute"
	"github.com/volren/volren/internal/hostbridge"
)

// BackendState names which rendering path currently owns the display.
type BackendState int

const (
	// ComputeActive: the dedicated compute pipeline renders frames.
	ComputeActive BackendState = iota

	// HostEngineActive: a host 3D engine consumes the shared volume and
	// transfer textures through the material bridge.
	HostEngineActive

	// Unavailable: no GPU path works; frames come from the CPU
	// renderer only.
	Unavailable
)

func (s BackendState) String() string {
	switch s {
	case ComputeActive:
		return "compute"
	case HostEngineActive:
		return "hostengine"
	case Unavailable:
		return "unavailable"
	default:
		return fmt.Sprintf("BackendState(%d)", int(s))
	}
}

// MaterialHost receives volume and transfer resources on behalf of a
// host 3D engine. Slots follow the material layout fixed by the bridge:
// 0 volume texture, 1 transfer texture, 2 uniform block.
type MaterialHost interface {
	SetTexture(slot int, view any) error
	SetUniforms(slot int, data []byte) error
}

// Coordinator owns backend selection. It probes GPU capability at
// startup, builds the compute pipeline when possible, and degrades one
// tier at a time — compute, then host engine, then CPU — when a path
// fails. Switching backends never reallocates the dataset or transfer
// resources: the material bridge replays the last-applied bindings so
// the new path sees identical state.
type Coordinator struct {
	mu sync.Mutex

	dev      *gpucompute.Device
	compute  *gpucompute.ComputeRenderer
	rend     *Renderer
	bridge   *hostbridge.Bridge
	provider any

	computeSurface Surface
	hostSurface    Surface

	state      *State[BackendState]
	computeErr error
	closed     bool
}

type coordinatorConfig struct {
	host           MaterialHost
	hostSurface    Surface
	computeSurface Surface
	deviceProvider any
}

// CoordinatorOption configures NewCoordinator.
type CoordinatorOption func(*coordinatorConfig)

// WithHostEngine registers a host 3D engine as the intermediate
// fallback tier. surface may be nil when the host manages its own
// visibility.
func WithHostEngine(host MaterialHost, surface Surface) CoordinatorOption {
	return func(c *coordinatorConfig) {
		c.host = host
		c.hostSurface = surface
	}
}

// WithComputeSurface registers the display surface backed by the
// compute path.
func WithComputeSurface(s Surface) CoordinatorOption {
	return func(c *coordinatorConfig) { c.computeSurface = s }
}

// WithSharedDevice reuses a GPU device owned by the host engine instead
// of opening a dedicated one. The provider must expose HalDevice() and
// HalQueue() accessors.
func WithSharedDevice(provider any) CoordinatorOption {
	return func(c *coordinatorConfig) { c.deviceProvider = provider }
}

// NewCoordinator probes the GPU and builds whichever backend tiers are
// reachable. With a working GPU and a registered host engine it starts
// in HostEngineActive, holding the compute tier ready for
// ActivateCompute. It never fails outright: with no GPU and no host
// engine the coordinator starts Unavailable and every frame renders on
// the CPU.
func NewCoordinator(opts ...CoordinatorOption) *Coordinator {
	var cfg coordinatorConfig
	for _, o := range opts {
		o(&cfg)
	}

	c := &Coordinator{
		computeSurface: cfg.computeSurface,
		hostSurface:    cfg.hostSurface,
		provider:       cfg.deviceProvider,
	}
	if cfg.host != nil {
		c.bridge = hostbridge.New(cfg.host)
	}

	if cached, ok := loadCapabilityCache(); ok {
		Logger().Debug("volren: capability cache loaded",
			"present", cached.Present, "adapter", cached.Adapter, "checked", cached.Checked)
	}

	avail := c.openCompute(cfg.deviceProvider)
	initial := Unavailable
	switch {
	case avail == ComputeActive && c.bridge != nil:
		// With a working GPU the host engine is the default consumer;
		// the dedicated compute tier engages via ActivateCompute.
		initial = HostEngineActive
	case avail == ComputeActive:
		initial = ComputeActive
	case c.bridge != nil:
		initial = HostEngineActive
	}
	c.state = NewState(initial)
	c.rend = NewRenderer(c.compute)
	c.rend.onFallback = c.noteComputeFailure
	c.applySurfaces(initial)
	Logger().Info("volren: coordinator started", "backend", initial)
	return c
}

// openCompute tries to bring up the compute tier. Returns ComputeActive
// on success, Unavailable otherwise; the capability cache records the
// outcome either way.
func (c *Coordinator) openCompute(provider any) BackendState {
	var (
		dev *gpucompute.Device
		err error
	)
	if provider != nil {
		dev, err = gpucompute.SharedDevice(provider)
	} else {
		dev, err = gpucompute.OpenDevice()
	}
	if err != nil {
		c.computeErr = fmt.Errorf("%w: %v", ErrCapabilityUnavailable, err)
		Logger().Warn("volren: no compute device", "error", err)
		storeCapabilityCache(capabilityCache{Checked: time.Now(), Present: false})
		return Unavailable
	}
	compute, err := gpucompute.NewComputeRenderer(dev)
	if err != nil {
		if errors.Is(err, gpucompute.ErrShader) {
			c.computeErr = fmt.Errorf("%w: %v", ErrShaderBuild, err)
		} else {
			c.computeErr = fmt.Errorf("%w: %v", ErrResourceAllocation, err)
		}
		Logger().Warn("volren: compute pipeline build failed", "error", err)
		dev.Close()
		storeCapabilityCache(capabilityCache{Checked: time.Now(), Present: false})
		return Unavailable
	}
	c.dev = dev
	c.compute = compute
	storeCapabilityCache(capabilityCache{
		Checked: time.Now(),
		Present: true,
		Adapter: dev.AdapterName(),
	})
	return ComputeActive
}

// Renderer returns the serialized renderer owned by the coordinator.
func (c *Coordinator) Renderer() *Renderer { return c.rend }

// ComputeError reports why the compute tier could not start, wrapped in
// ErrCapabilityUnavailable, ErrShaderBuild, or ErrResourceAllocation.
// Nil while the compute path is up.
func (c *Coordinator) ComputeError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.computeErr
}

// Backend exposes the backend state for observation. Subscribers are
// notified on every transition.
func (c *Coordinator) Backend() *State[BackendState] { return c.state }

// ActiveBackend returns the current backend tier.
func (c *Coordinator) ActiveBackend() BackendState { return c.state.Get() }

// SyncHostResources uploads the dataset and transfer function as shared
// GPU textures and pushes them to the host engine through the material
// bridge. The textures come from the same cache the compute path uses,
// so a later backend switch replays them without reallocation.
func (c *Coordinator) SyncHostResources(d *VolumeDataset, tf *TransferFunction, uniforms []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bridge == nil {
		return fmt.Errorf("%w: no host engine registered", ErrCapabilityUnavailable)
	}
	if c.compute == nil {
		return fmt.Errorf("%w: no device for shared textures", ErrCapabilityUnavailable)
	}
	if d == nil {
		return fmt.Errorf("%w: nil dataset", ErrResourceAllocation)
	}

	id := d.Identity()
	w, h, dp := d.Dims()
	vt, _, err := c.compute.Cache().Volume(
		gpucompute.DatasetKey{Ptr: id.Ptr, Size: id.Size},
		gpucompute.VolumeDesc{
			Voxels: d.Voxels(),
			Width:  w, Height: h, Depth: dp,
			Signed: d.Format() == PixelInt16,
		})
	if err != nil {
		return fmt.Errorf("%w: volume texture: %w", ErrResourceAllocation, err)
	}
	lut := grayscaleLUT()
	if tf != nil {
		lut = tf.SampleLUT(LUTSize)
	}
	tt, _, err := c.compute.Cache().Transfer(lut)
	if err != nil {
		return fmt.Errorf("%w: transfer texture: %w", ErrResourceAllocation, err)
	}
	return c.bridge.Apply(hostbridge.MaterialBindings{
		VolumeView:   vt.View,
		TransferView: tt.View,
		Uniforms:     uniforms,
	})
}

// ActivateCompute promotes the backend to the dedicated compute tier.
// The pipeline is built on first activation and kept across later
// switches; the shared dataset and transfer resources are untouched,
// since both GPU tiers read the same cache. On failure the current tier
// stays active and the classified cause is returned (and kept behind
// ComputeError). A later compute failure degrades back to the host
// engine as usual.
func (c *Coordinator) ActivateCompute() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrRendererClosed
	}
	if c.state.Get() == ComputeActive {
		c.mu.Unlock()
		return nil
	}
	opened := false
	if c.compute == nil {
		if c.openCompute(c.provider) != ComputeActive {
			err := c.computeErr
			c.mu.Unlock()
			return err
		}
		opened = true
	}
	c.computeErr = nil
	c.applySurfaces(ComputeActive)
	c.state.set(ComputeActive)
	rend, compute := c.rend, c.compute
	c.mu.Unlock()

	if opened {
		// Outside the lock: the swap rides the renderer queue, and a
		// queued render may be calling back into noteComputeFailure.
		rend.setCompute(compute)
	}
	Logger().Info("volren: compute tier activated")
	return nil
}

// noteComputeFailure runs on the renderer worker goroutine after a
// compute render fell back to the CPU. Shader and allocation failures
// demote the backend one tier; transient errors leave the state alone.
func (c *Coordinator) noteComputeFailure(err error) {
	if !errors.Is(err, gpucompute.ErrAllocation) && !errors.Is(err, gpucompute.ErrShader) {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.state.Get() != ComputeActive {
		return
	}
	next := Unavailable
	if c.bridge != nil {
		next = HostEngineActive
	}
	c.degradeLocked(next, err)
}

// Degrade forces a transition to a lower tier, for host-engine
// failures the coordinator cannot observe itself.
func (c *Coordinator) Degrade(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	switch c.state.Get() {
	case ComputeActive:
		next := Unavailable
		if c.bridge != nil {
			next = HostEngineActive
		}
		c.degradeLocked(next, err)
	case HostEngineActive:
		c.degradeLocked(Unavailable, err)
	}
}

func (c *Coordinator) degradeLocked(next BackendState, cause error) {
	prev := c.state.Get()
	if prev == ComputeActive {
		c.computeErr = cause
	}
	Logger().Warn("volren: backend degraded",
		"from", prev, "to", next, "cause", cause)
	c.applySurfaces(next)
	if next == HostEngineActive && c.bridge != nil {
		// Replay the last-applied material bindings so the host engine
		// picks up the exact dataset, transfer and display state the
		// compute path was using.
		if err := c.bridge.Resync(); err != nil {
			Logger().Warn("volren: host material resync failed", "error", err)
		}
	}
	c.state.set(next)
}

// applySurfaces toggles display surfaces to match the backend tier.
func (c *Coordinator) applySurfaces(s BackendState) {
	if c.computeSurface != nil {
		c.computeSurface.SetVisible(s == ComputeActive)
	}
	if c.hostSurface != nil {
		c.hostSurface.SetVisible(s == HostEngineActive)
	}
}

// Close releases the renderer, pipeline and device. Idempotent.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.rend.Close()
	if c.compute != nil {
		c.compute.Destroy()
		c.compute = nil
	}
	if c.dev != nil {
		c.dev.Close()
		c.dev = nil
	}
}
