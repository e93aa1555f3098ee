package imageflow

import (
	"context"
	"errors"
	"testing"

	_ "github.com/BrianCerberus/imageflow/transport/channel"
	"github.com/BrianCerberus/imageflow/wire"
)

func TestStageExportsPropagateErrors(t *testing.T) {
	if _, err := NewStage[*wire.ImageData, *wire.ImageData](Config{}, nil, Transport{}, StageSpec[*wire.ImageData, *wire.ImageData]{}); !errors.Is(err, ErrLoggerRequired) {
		t.Fatalf("expected logger required error, got %v", err)
	}

	if _, err := NewStage[*wire.ImageData, *wire.ImageData](Config{}, NopLogger(), Transport{}, StageSpec[*wire.ImageData, *wire.ImageData]{Name: "x"}); !errors.Is(err, ErrTransformRequired) {
		t.Fatalf("expected transform required error, got %v", err)
	}
}

func TestTransportRegistryExports(t *testing.T) {
	if !DefaultTransportRegistry.Has("channel") {
		t.Fatal("expected channel transport to be registered via blank import")
	}

	cfg := &Config{PubSubSystem: "channel"}
	tr, err := BuildTransport(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("unexpected build error: %v", err)
	}
	if tr.Publisher == nil || tr.Subscriber == nil {
		t.Fatal("expected a complete transport")
	}

	caps := GetCapabilities("channel")
	if !caps.Lossy {
		t.Fatal("expected the channel transport to report lossy delivery")
	}
}

func TestLoggerExports(t *testing.T) {
	logger := NopLogger()
	logger.Info("boot", LogFields{"component": "test"})
}

func TestConfigValidationExport(t *testing.T) {
	if err := ValidateConfig(nil); err == nil {
		t.Fatal("expected an error for a nil config")
	}
	if err := ValidateConfig(&Config{PubSubSystem: "channel"}); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
}

func TestMessageIDExport(t *testing.T) {
	if id := NewMessageID(); len(id) != 26 {
		t.Fatalf("expected a 26 character ULID, got %q", id)
	}
}
