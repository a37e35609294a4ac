package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/cwrk-planet/watch-party/pkg/logger"
)

func TestInit_DevStd_TextOutput(t *testing.T) {
	var buf bytes.Buffer
	logger.Init(logger.Config{
		Service: "demo",
		Version: "v0.0.1",
		Env:     logger.EnvDev,
		Backend: logger.BackendStd,
		Level:   slog.LevelDebug,
		Output:  &buf,
	})
	slog.Info("Hello world")

	out := buf.String()
	if strings.Contains(out, "{") {
		t.Fatalf("expected text output in dev/std, got JSON: %s", out)
	}
	if !strings.Contains(out, "Hello world") {
		t.Fatalf("message missing: %s", out)
	}
	if !strings.Contains(out, "service=demo") || !strings.Contains(out, "env=dev") {
		t.Fatalf("common attrs missing: %s", out)
	}
}

func TestInit_StageStd_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger.Init(logger.Config{
		Service: "demo",
		Env:     logger.EnvStage,
		Backend: logger.BackendStd,
		Output:  &buf,
	})
	slog.Info("ready")

	var m map[string]any
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatalf("expected JSON line, got %s, err=%v", buf.String(), err)
	}
	if m["env"] != "stage" {
		t.Fatalf("env mismatch: %v", m["env"])
	}
}

func TestInit_ProdZap_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger.Init(logger.Config{
		Service:          "demo",
		Version:          "1.2.3",
		Env:              logger.EnvProd,
		Backend:          logger.BackendZap,
		Level:            slog.LevelInfo,
		Output:           &buf,
		SampleInitial:    100000,
		SampleThereafter: 100000,
		SampleTick:       1,
	})
	slog.Info("booted", slog.String("k", "v"))
	slog.Debug("hidden")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected exactly one line, got %d: %s", len(lines), buf.String())
	}

	var m map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &m); err != nil {
		t.Fatalf("expected JSON line, got %s, err=%v", lines[0], err)
	}
	if m["msg"] != "booted" {
		t.Fatalf("msg mismatch: %v", m["msg"])
	}
	if m["service"] != "demo" || m["env"] != "prod" || m["version"] != "1.2.3" {
		t.Fatalf("attrs missing: service=%v env=%v version=%v", m["service"], m["env"], m["version"])
	}
	if m["level"] != "INFO" {
		t.Fatalf("level mismatch: %v", m["level"])
	}
	if m["k"] != "v" {
		t.Fatalf("custom field missing: %v", m["k"])
	}
}

func TestDetectEnv(t *testing.T) {
	cases := map[string]logger.Env{
		"":           logger.EnvDev,
		"production": logger.EnvProd,
		"STAGING":    logger.EnvStage,
		"something":  logger.EnvDev,
	}
	for raw, want := range cases {
		t.Setenv("APP_ENV", raw)
		if got := logger.DetectEnv(); got != want {
			t.Fatalf("APP_ENV=%q: got %s want %s", raw, got, want)
		}
	}
}

func TestParseLevel(t *testing.T) {
	if logger.ParseLevel("DEBUG") != slog.LevelDebug {
		t.Fatal("debug")
	}
	if logger.ParseLevel("warning") != slog.LevelWarn {
		t.Fatal("warn")
	}
	if logger.ParseLevel("bogus") != slog.LevelInfo {
		t.Fatal("fallback")
	}
}

func TestAttrsFromCtx(t *testing.T) {
	if attrs := logger.AttrsFromCtx(context.Background()); attrs != nil {
		t.Fatalf("expected no attrs without a span, got %v", attrs)
	}

	tp := sdktrace.NewTracerProvider()
	defer func() {
		_ = tp.Shutdown(context.Background())
	}()

	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	var buf bytes.Buffer
	logger.Init(logger.Config{
		Service:          "demo",
		Env:              logger.EnvProd,
		Backend:          logger.BackendZap,
		Output:           &buf,
		SampleInitial:    100000,
		SampleThereafter: 100000,
		SampleTick:       1,
	})
	logger.FromCtx(ctx).Info("with-trace")

	var m map[string]any
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatalf("expected JSON line, got %s, err=%v", buf.String(), err)
	}
	sc := span.SpanContext()
	if m["trace_id"] != sc.TraceID().String() || m["span_id"] != sc.SpanID().String() {
		t.Fatalf("trace attrs mismatch: trace_id=%v span_id=%v", m["trace_id"], m["span_id"])
	}
}
