package transport

import (
	"context"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	system string
}

func (c *testConfig) GetPubSubSystem() string { return c.system }
func (c *testConfig) GetWatermark() int       { return 0 }
func (c *testConfig) GetNATSURL() string      { return "" }

func TestRegistry(t *testing.T) {
	t.Run("build dispatches by name", func(t *testing.T) {
		reg := NewRegistry()
		built := false
		reg.Register("fake", func(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (Transport, error) {
			built = true
			return Transport{}, nil
		})

		_, err := reg.Build(context.Background(), &testConfig{system: "fake"}, watermill.NopLogger{})
		require.NoError(t, err)
		assert.True(t, built)
	})

	t.Run("unknown transport", func(t *testing.T) {
		reg := NewRegistry()
		_, err := reg.Build(context.Background(), &testConfig{system: "zeromq"}, watermill.NopLogger{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown transport")
	})

	t.Run("nil config", func(t *testing.T) {
		reg := NewRegistry()
		_, err := reg.Build(context.Background(), nil, watermill.NopLogger{})
		require.Error(t, err)
	})

	t.Run("capabilities", func(t *testing.T) {
		reg := NewRegistry()
		reg.RegisterWithCapabilities("fake", nil, Capabilities{Name: "fake", Lossy: true})

		caps := reg.GetCapabilities("fake")
		assert.True(t, caps.Lossy)

		unknown := reg.GetCapabilities("missing")
		assert.Equal(t, "missing", unknown.Name)
		assert.False(t, unknown.Lossy)
	})

	t.Run("names and has", func(t *testing.T) {
		reg := NewRegistry()
		reg.Register("a", nil)
		reg.Register("b", nil)

		assert.ElementsMatch(t, []string{"a", "b"}, reg.Names())
		assert.True(t, reg.Has("a"))
		assert.False(t, reg.Has("c"))
	})
}
