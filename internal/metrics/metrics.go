// Package metrics exports Prometheus metrics for capture sessions.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smazurov/camcap/pkg/capture"
)

const namespace = "camcap"

// Stats is a per-camera summary kept alongside the Prometheus series.
type Stats struct {
	Frames    uint64    `json:"frames"`
	Bytes     uint64    `json:"bytes"`
	Failures  uint64    `json:"failures"`
	LastFrame time.Time `json:"last_frame,omitzero"`
}

// Metrics records session activity. It implements capture.Observer.
type Metrics struct {
	reg *prometheus.Registry

	frames     *prometheus.CounterVec
	frameBytes *prometheus.CounterVec
	failures   *prometheus.CounterVec
	controls   *prometheus.CounterVec
	streamOpen *prometheus.GaugeVec
	width      *prometheus.GaugeVec
	height     *prometheus.GaugeVec
	frameRate  *prometheus.GaugeVec
	lastFrame  *prometheus.GaugeVec

	mu    sync.RWMutex
	stats map[string]*Stats
}

var _ capture.Observer = (*Metrics)(nil)

// New creates a Metrics with its own registry, including Go runtime and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,
		frames: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "capture", Name: "frames_total",
			Help: "Frames delivered to callers",
		}, []string{"camera", "format"}),
		frameBytes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "capture", Name: "frame_bytes_total",
			Help: "Raw frame bytes delivered to callers",
		}, []string{"camera"}),
		failures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "capture", Name: "failures_total",
			Help: "Failed session operations by error code",
		}, []string{"camera", "operation", "code"}),
		controls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "capture", Name: "control_changes_total",
			Help: "Successful control writes",
		}, []string{"camera", "control"}),
		streamOpen: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "capture", Name: "stream_open",
			Help: "1 while the camera stream is open",
		}, []string{"camera"}),
		width: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "format", Name: "width_pixels",
			Help: "Current frame width",
		}, []string{"camera"}),
		height: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "format", Name: "height_pixels",
			Help: "Current frame height",
		}, []string{"camera"}),
		frameRate: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "format", Name: "frame_rate",
			Help: "Current nominal frame rate",
		}, []string{"camera"}),
		lastFrame: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "capture", Name: "last_frame_timestamp_seconds",
			Help: "Unix time of the last delivered frame",
		}, []string{"camera"}),
		stats: make(map[string]*Stats),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}

// StateChanged implements capture.Observer.
func (m *Metrics) StateChanged(info capture.CameraInfo, _, to capture.StreamState) {
	v := 0.0
	if to == capture.StateOpen {
		v = 1
	}
	m.streamOpen.WithLabelValues(info.Index.String()).Set(v)
}

// FormatChanged implements capture.Observer.
func (m *Metrics) FormatChanged(info capture.CameraInfo, f capture.CameraFormat) {
	cam := info.Index.String()
	m.width.WithLabelValues(cam).Set(float64(f.Width()))
	m.height.WithLabelValues(cam).Set(float64(f.Height()))
	m.frameRate.WithLabelValues(cam).Set(f.FrameRate.Float())
}

// ControlChanged implements capture.Observer.
func (m *Metrics) ControlChanged(info capture.CameraInfo, id capture.KnownCameraControl, _ capture.ControlValue) {
	m.controls.WithLabelValues(info.Index.String(), id.String()).Inc()
}

// FrameCaptured implements capture.Observer.
func (m *Metrics) FrameCaptured(info capture.CameraInfo, buf *capture.Buffer) {
	cam := info.Index.String()
	m.frames.WithLabelValues(cam, buf.SourceFormat().String()).Inc()
	m.frameBytes.WithLabelValues(cam).Add(float64(buf.Len()))
	ts := buf.Timestamp()
	if ts.IsZero() {
		ts = time.Now()
	}
	m.lastFrame.WithLabelValues(cam).Set(float64(ts.UnixNano()) / 1e9)

	m.update(cam, func(s *Stats) {
		s.Frames++
		s.Bytes += uint64(buf.Len())
		s.LastFrame = ts
	})
}

// OperationFailed implements capture.Observer.
func (m *Metrics) OperationFailed(info capture.CameraInfo, op string, err error) {
	cam := info.Index.String()
	m.failures.WithLabelValues(cam, op, string(capture.CodeOf(err))).Inc()
	m.update(cam, func(s *Stats) { s.Failures++ })
}

// Stats returns the summary for camera, or false when nothing was recorded.
func (m *Metrics) Stats(camera string) (Stats, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.stats[camera]
	if !ok {
		return Stats{}, false
	}
	return *s, true
}

// Forget drops every series and the summary for camera.
func (m *Metrics) Forget(camera string) {
	labels := prometheus.Labels{"camera": camera}
	for _, vec := range []*prometheus.MetricVec{
		m.frames.MetricVec, m.frameBytes.MetricVec, m.failures.MetricVec, m.controls.MetricVec,
		m.streamOpen.MetricVec, m.width.MetricVec, m.height.MetricVec, m.frameRate.MetricVec,
		m.lastFrame.MetricVec,
	} {
		vec.DeletePartialMatch(labels)
	}

	m.mu.Lock()
	delete(m.stats, camera)
	m.mu.Unlock()
}

func (m *Metrics) update(camera string, fn func(*Stats)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.stats[camera]
	if !ok {
		s = &Stats{}
		m.stats[camera] = s
	}
	fn(s)
}
