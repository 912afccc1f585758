package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/smazurov/camcap/pkg/capture"
)

var cam0 = capture.CameraInfo{Index: capture.IndexNumber(0), HumanName: "test", Backend: capture.BackendVirtual}

func frame(n int) *capture.Buffer {
	return capture.NewBuffer(make([]byte, n), capture.Resolution{Width: 4, Height: 4}, capture.FormatMJPEG)
}

func TestFrameCaptured(t *testing.T) {
	m := New()
	m.FrameCaptured(cam0, frame(100))
	m.FrameCaptured(cam0, frame(50))

	if got := testutil.ToFloat64(m.frames.WithLabelValues("0", "MJPG")); got != 2 {
		t.Errorf("frames_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.frameBytes.WithLabelValues("0")); got != 150 {
		t.Errorf("frame_bytes_total = %v, want 150", got)
	}
	if got := testutil.ToFloat64(m.lastFrame.WithLabelValues("0")); got < float64(time.Now().Add(-time.Minute).Unix()) {
		t.Errorf("last_frame_timestamp_seconds = %v", got)
	}

	s, ok := m.Stats("0")
	if !ok || s.Frames != 2 || s.Bytes != 150 || s.LastFrame.IsZero() {
		t.Errorf("Stats() = %+v, %v", s, ok)
	}
}

func TestStateAndFormat(t *testing.T) {
	m := New()
	m.StateChanged(cam0, capture.StateClosed, capture.StateOpen)
	if got := testutil.ToFloat64(m.streamOpen.WithLabelValues("0")); got != 1 {
		t.Errorf("stream_open = %v, want 1", got)
	}
	m.StateChanged(cam0, capture.StateOpen, capture.StateClosed)
	if got := testutil.ToFloat64(m.streamOpen.WithLabelValues("0")); got != 0 {
		t.Errorf("stream_open = %v, want 0", got)
	}

	m.FormatChanged(cam0, capture.NewCameraFormat(capture.Resolution{Width: 1280, Height: 720}, capture.FormatYUYV, capture.FPS(30)))
	if w, h, r := testutil.ToFloat64(m.width.WithLabelValues("0")),
		testutil.ToFloat64(m.height.WithLabelValues("0")),
		testutil.ToFloat64(m.frameRate.WithLabelValues("0")); w != 1280 || h != 720 || r != 30 {
		t.Errorf("format gauges = %v x %v @ %v", w, h, r)
	}
}

func TestOperationFailed(t *testing.T) {
	m := New()
	m.OperationFailed(cam0, "open_stream", capture.NewError(capture.ErrDeviceUnavailable, "open", "busy"))
	m.OperationFailed(cam0, "frame", errors.New("plain"))

	if got := testutil.ToFloat64(m.failures.WithLabelValues("0", "open_stream", "DEVICE_UNAVAILABLE")); got != 1 {
		t.Errorf("failures_total{DEVICE_UNAVAILABLE} = %v", got)
	}
	if got := testutil.CollectAndCount(m.failures); got != 2 {
		t.Errorf("failure series = %d, want 2", got)
	}
	if s, _ := m.Stats("0"); s.Failures != 2 {
		t.Errorf("Stats().Failures = %d", s.Failures)
	}
}

func TestForget(t *testing.T) {
	m := New()
	cam1 := cam0
	cam1.Index = capture.IndexNumber(1)

	m.FrameCaptured(cam0, frame(1))
	m.FrameCaptured(cam1, frame(1))
	m.ControlChanged(cam0, capture.ControlZoom, capture.IntegerValue(2))
	m.Forget("0")

	if got := testutil.CollectAndCount(m.frames); got != 1 {
		t.Errorf("frame series after Forget = %d, want 1", got)
	}
	if got := testutil.CollectAndCount(m.controls); got != 0 {
		t.Errorf("control series after Forget = %d, want 0", got)
	}
	if _, ok := m.Stats("0"); ok {
		t.Error("Stats survived Forget")
	}
	if _, ok := m.Stats("1"); !ok {
		t.Error("Forget removed another camera")
	}
}

func TestHandler(t *testing.T) {
	m := New()
	m.FrameCaptured(cam0, frame(10))

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	body := w.Body.String()
	for _, name := range []string{"camcap_capture_frames_total", "go_goroutines"} {
		if !strings.Contains(body, name) {
			t.Errorf("response lacks %s", name)
		}
	}
}
