package profiler

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// Graph is the instrumentable computation graph supplied by the host
// runtime. Units() must return the graph's instrumentable units in true
// execution order, and must be deterministic: the traversal is performed
// exactly once at attach time to fix each layer's index.
type Graph interface {
	Units() []Unit
}

// Unit is one instrumentable layer of the graph. OnInvoke registers a
// pre/post callback pair around the unit's invoke boundary and returns a
// function that unregisters both; the callbacks must not alter the unit's
// observable behavior.
type Unit interface {
	Name() string
	Kind() string
	NumParameters() int64
	ParameterBytes() int64
	OnInvoke(pre, post func()) (remove func())
}

// Device abstracts the compute backend the graph runs on. Synchronize is a
// blocking barrier that flushes outstanding async work; it is a no-op on
// purely synchronous backends.
type Device interface {
	Synchronize() error
	MemoryAllocated() (int64, error)
	ResidentMemory() (int64, error)
	Tag() string
}

// NullDevice is a Device for synchronous CPU-only backends: barriers are
// no-ops and memory snapshots report zero.
type NullDevice struct{}

func (NullDevice) Synchronize() error              { return nil }
func (NullDevice) MemoryAllocated() (int64, error) { return 0, nil }
func (NullDevice) ResidentMemory() (int64, error)  { return 0, nil }
func (NullDevice) Tag() string                     { return "cpu" }

// Instrumentor attaches measurement boundaries to a graph's units and feeds
// finalized LayerMetrics into a Collector. Filter, when set, limits
// instrumentation to units it accepts; unfiltered attach instruments every
// unit. Hooks never raise into the host computation: failures degrade to
// zero-valued fields and a log line.
type Instrumentor struct {
	collector *Collector
	device    Device

	Filter func(Unit) bool
}

// NewInstrumentor creates an instrumentor emitting into collector and
// measuring against device. A nil device falls back to NullDevice.
func NewInstrumentor(collector *Collector, device Device) *Instrumentor {
	if device == nil {
		device = NullDevice{}
	}
	return &Instrumentor{collector: collector, device: device}
}

// Instrumentation is the attach handle. Detach removes every registered
// callback, restoring the graph's original behavior exactly.
type Instrumentation struct {
	removes  []func()
	layers   map[string]string // name -> kind
	detached bool
}

// Attach walks the graph's units once, fixes each accepted unit's layer
// index from its traversal position, and registers invoke-boundary
// callbacks. The index is never re-derived per call.
func (ins *Instrumentor) Attach(g Graph) (*Instrumentation, error) {
	if g == nil {
		return nil, fmt.Errorf("nil graph")
	}
	handle := &Instrumentation{layers: make(map[string]string)}
	index := 0
	for _, u := range g.Units() {
		if ins.Filter != nil && !ins.Filter(u) {
			continue
		}
		h := &unitHook{
			collector: ins.collector,
			device:    ins.device,
			unit:      u,
			name:      u.Name(),
			kind:      u.Kind(),
			index:     index,
		}
		handle.removes = append(handle.removes, u.OnInvoke(h.pre, h.post))
		handle.layers[h.name] = h.kind
		index++
	}
	logrus.Debugf("instrumented %d units", index)
	return handle, nil
}

// Layers returns the instrumented layer names mapped to their kinds.
func (h *Instrumentation) Layers() map[string]string {
	layers := make(map[string]string, len(h.layers))
	for name, kind := range h.layers {
		layers[name] = kind
	}
	return layers
}

// LayerCount returns the number of instrumented units.
func (h *Instrumentation) LayerCount() int {
	return len(h.layers)
}

// Detach unregisters all callbacks. Idempotent.
func (h *Instrumentation) Detach() {
	if h.detached {
		return
	}
	h.detached = true
	for _, remove := range h.removes {
		remove()
	}
	h.removes = nil
}

// unitHook holds the per-unit measurement state between the pre and post
// callbacks of one invocation. The profiling contract is single-threaded per
// device, so one in-flight measurement per unit suffices.
type unitHook struct {
	collector *Collector
	device    Device
	unit      Unit
	name      string
	kind      string
	index     int

	active     *Measurement
	start      time.Time
	vramBefore int64
	ramBefore  int64
}

func (h *unitHook) pre() {
	defer func() {
		if r := recover(); r != nil {
			logrus.Warnf("pre-invoke measurement for %s panicked: %v", h.name, r)
			h.active = nil
		}
	}()

	// Flush prior async work so the clock starts on this unit alone.
	if err := h.device.Synchronize(); err != nil {
		logrus.Warnf("device sync before %s failed: %v", h.name, err)
	}
	h.active = h.collector.StartLayerMonitoring(h.name, h.kind, h.index)
	h.vramBefore = h.snapshot(h.device.MemoryAllocated)
	h.ramBefore = h.snapshot(h.device.ResidentMemory)
	h.start = time.Now()
}

func (h *unitHook) post() {
	defer func() {
		if r := recover(); r != nil {
			logrus.Warnf("post-invoke measurement for %s panicked: %v", h.name, r)
			h.active = nil
		}
	}()

	if h.active == nil {
		return
	}
	// Flush this unit's own async work before reading the clock.
	if err := h.device.Synchronize(); err != nil {
		logrus.Warnf("device sync after %s failed: %v", h.name, err)
	}
	elapsedMs := float64(time.Since(h.start)) / float64(time.Millisecond)

	vramAfter := h.snapshot(h.device.MemoryAllocated)
	ramAfter := h.snapshot(h.device.ResidentMemory)
	h.collector.RecordMemoryUsage(h.active, h.vramBefore, vramAfter, h.ramBefore, ramAfter)
	h.collector.RecordParameterInfo(h.active, h.unit.NumParameters(),
		float64(h.unit.ParameterBytes())/(1024*1024))
	h.collector.RecordDevice(h.active, h.device.Tag())
	h.collector.StopLayerMonitoring(h.active, elapsedMs)
	h.active = nil
}

// snapshot reads a memory figure, degrading to zero on failure.
func (h *unitHook) snapshot(read func() (int64, error)) int64 {
	v, err := read()
	if err != nil {
		logrus.Warnf("memory snapshot for %s failed: %v", h.name, err)
		return 0
	}
	return v
}
