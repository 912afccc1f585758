package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

type testOptions struct {
	Config string

	Port        string        `toml:"server.port" env:"SERVER_PORT"`
	Backend     string        `toml:"capture.backend" env:"CAPTURE_BACKEND"`
	Buffers     uint32        `toml:"capture.buffers" env:"CAPTURE_BUFFERS"`
	ReadTimeout time.Duration `toml:"capture.read_timeout" env:"CAPTURE_READ_TIMEOUT"`
	FrameEvents bool          `toml:"events.frames" env:"EVENTS_FRAMES"`
	Count       int           `toml:"virtual.count" env:"VIRTUAL_COUNT"`
	FourCCs     []string      `toml:"capture.fourccs" env:"CAPTURE_FOURCCS"`
	Untagged    string
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "camcap.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const sampleConfig = `
[server]
port = ":9000"

[capture]
backend = "virtual"
buffers = 6
read_timeout = "750ms"
fourccs = ["MJPG", "YUYV"]

[events]
frames = true

[virtual]
count = 3
`

func TestLoadConfigFromTOML(t *testing.T) {
	opts := &testOptions{Config: writeConfig(t, sampleConfig), Port: ":8090", Untagged: "kept"}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	want := testOptions{
		Config:      opts.Config,
		Port:        ":9000",
		Backend:     "virtual",
		Buffers:     6,
		ReadTimeout: 750 * time.Millisecond,
		FrameEvents: true,
		Count:       3,
		FourCCs:     []string{"MJPG", "YUYV"},
		Untagged:    "kept",
	}
	if !reflect.DeepEqual(*opts, want) {
		t.Errorf("LoadConfig() = %+v\nwant %+v", *opts, want)
	}
}

func TestLoadConfigPrecedence(t *testing.T) {
	t.Setenv("CAMCAP_SERVER_PORT", ":7000")
	t.Setenv("CAMCAP_CAPTURE_FOURCCS", "NV12, GRAY")
	t.Setenv("CAMCAP_CAPTURE_BACKEND", "v4l2")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	opts := &testOptions{Config: writeConfig(t, sampleConfig)}
	flags.StringVar(&opts.Backend, "backend", "auto", "")
	if err := flags.Parse([]string{"--backend=auto"}); err != nil {
		t.Fatal(err)
	}

	if err := LoadConfig(opts, flags); err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if opts.Port != ":7000" {
		t.Errorf("Port = %q, env should beat TOML", opts.Port)
	}
	if opts.Backend != "auto" {
		t.Errorf("Backend = %q, flag should beat env", opts.Backend)
	}
	if !reflect.DeepEqual(opts.FourCCs, []string{"NV12", "GRAY"}) {
		t.Errorf("FourCCs = %v", opts.FourCCs)
	}
	if opts.Buffers != 6 {
		t.Errorf("Buffers = %d, TOML should fill untouched fields", opts.Buffers)
	}
}

func TestLoadConfigBadValues(t *testing.T) {
	t.Setenv("CAMCAP_CAPTURE_BUFFERS", "-1")
	opts := &testOptions{Config: writeConfig(t, "[capture]\nread_timeout = 5\n")}
	if err := LoadConfig(opts, nil); err == nil {
		t.Error("LoadConfig() accepted a negative buffer count and an unquoted duration")
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	opts := &testOptions{Config: filepath.Join(t.TempDir(), "missing.toml"), Port: ":8090"}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig should not fail for a missing file: %v", err)
	}
	if opts.Port != ":8090" {
		t.Errorf("Port = %q", opts.Port)
	}
}

func TestLoadConfigInvalidTOML(t *testing.T) {
	opts := &testOptions{Config: writeConfig(t, "[capture\nbroken")}
	if err := LoadConfig(opts, nil); err == nil {
		t.Fatal("LoadConfig should fail for invalid TOML")
	}
}

func TestGetNestedValue(t *testing.T) {
	data := map[string]any{
		"capture": map[string]any{
			"v4l2": map[string]any{"buffers": int64(4)},
			"name": "front",
		},
		"root": "value",
	}

	tests := []struct {
		path string
		want any
	}{
		{"root", "value"},
		{"capture.name", "front"},
		{"capture.v4l2.buffers", int64(4)},
		{"missing", nil},
		{"capture.missing.deep", nil},
		{"root.child", nil},
	}
	for _, tt := range tests {
		if got := getNestedValue(data, tt.path); got != tt.want {
			t.Errorf("getNestedValue(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestFieldNameToFlag(t *testing.T) {
	tests := map[string]string{
		"Port":         "port",
		"LoggingLevel": "logging-level",
		"VirtualCount": "virtual-count",
		"LoggingAPI":   "logging-api",
		"HTTPPort":     "http-port",
	}
	for in, want := range tests {
		if got := fieldNameToFlag(in); got != want {
			t.Errorf("fieldNameToFlag(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLoadLoggingConfig(t *testing.T) {
	path := writeConfig(t, `
[logging]
level = "debug"
history = 50

[logging.modules]
v4l2 = "warn"
api = "error"
`)
	cfg, err := LoadLoggingConfig(path)
	if err != nil {
		t.Fatalf("LoadLoggingConfig() error = %v", err)
	}
	if cfg.Level != "debug" || cfg.Format != "text" || cfg.History != 50 {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Modules["v4l2"] != "warn" || cfg.Modules["api"] != "error" {
		t.Errorf("modules = %v", cfg.Modules)
	}

	cfg, err = LoadLoggingConfig(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil || cfg.Level != "info" {
		t.Errorf("missing file = %+v, %v", cfg, err)
	}
}
