package channel

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrianCerberus/imageflow/transport"
)

func TestRegister(t *testing.T) {
	caps := transport.GetCapabilities(TransportName)
	assert.Equal(t, "channel", caps.Name)
	assert.True(t, caps.Lossy)
	assert.True(t, caps.OrderedWhileConnected)
	assert.False(t, caps.CrossProcess)
}

func TestCapabilities(t *testing.T) {
	assert.Equal(t, transport.ChannelCapabilities, Capabilities())
}

func TestBuild(t *testing.T) {
	t.Run("creates transport with default factory", func(t *testing.T) {
		tr, err := Build(context.Background(), &mockConfig{watermark: 5}, watermill.NopLogger{})
		require.NoError(t, err)
		assert.NotNil(t, tr.Publisher)
		assert.NotNil(t, tr.Subscriber)
	})

	t.Run("uses custom factory", func(t *testing.T) {
		originalFactory := Factory
		defer func() { Factory = originalFactory }()

		custom := NewPubSub(1, watermill.NopLogger{})
		Factory = func(watermark int, logger watermill.LoggerAdapter) *PubSub {
			return custom
		}

		tr, err := Build(context.Background(), &mockConfig{}, watermill.NopLogger{})
		require.NoError(t, err)
		assert.Equal(t, custom, tr.Publisher)
		assert.Equal(t, custom, tr.Subscriber)
	})
}

func TestPubSubDelivery(t *testing.T) {
	pubSub := NewPubSub(10, watermill.NopLogger{})
	defer pubSub.Close()

	msgs, err := pubSub.Subscribe(context.Background(), "frames")
	require.NoError(t, err)

	sent := message.NewMessage("1", []byte("payload"))
	sent.Metadata.Set("filename", "a.png")
	require.NoError(t, pubSub.Publish("frames", sent))

	select {
	case got := <-msgs:
		assert.Equal(t, "1", got.UUID)
		assert.Equal(t, []byte("payload"), []byte(got.Payload))
		assert.Equal(t, "a.png", got.Metadata.Get("filename"))
	case <-time.After(time.Second):
		t.Fatal("message not delivered")
	}
}

func TestPublishWithoutSubscriberIsSilent(t *testing.T) {
	pubSub := NewPubSub(2, watermill.NopLogger{})
	defer pubSub.Close()

	// An absent downstream must look exactly like a quiet one: arbitrary
	// publish attempts succeed and the messages are simply lost.
	for i := 0; i < 500; i++ {
		err := pubSub.Publish("frames", message.NewMessage(watermill.NewUUID(), nil))
		require.NoError(t, err)
	}
}

func TestPublishBeyondWatermarkDrops(t *testing.T) {
	pubSub := NewPubSub(3, watermill.NopLogger{})
	defer pubSub.Close()

	msgs, err := pubSub.Subscribe(context.Background(), "frames")
	require.NoError(t, err)

	// Nobody draining: the first watermark messages buffer, the rest drop.
	for i := 0; i < 3; i++ {
		require.NoError(t, pubSub.Publish("frames", message.NewMessage(watermill.NewUUID(), nil)))
	}
	err = pubSub.Publish("frames", message.NewMessage(watermill.NewUUID(), nil))
	assert.ErrorIs(t, err, transport.ErrDropped)

	// Draining one slot makes room for exactly one more.
	<-msgs
	require.NoError(t, pubSub.Publish("frames", message.NewMessage(watermill.NewUUID(), nil)))
	err = pubSub.Publish("frames", message.NewMessage(watermill.NewUUID(), nil))
	assert.ErrorIs(t, err, transport.ErrDropped)
}

func TestFIFOWhileConnected(t *testing.T) {
	pubSub := NewPubSub(10, watermill.NopLogger{})
	defer pubSub.Close()

	msgs, err := pubSub.Subscribe(context.Background(), "frames")
	require.NoError(t, err)

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, pubSub.Publish("frames", message.NewMessage(id, nil)))
	}
	for _, want := range []string{"a", "b", "c"} {
		got := <-msgs
		assert.Equal(t, want, got.UUID)
	}
}

func TestSubscribeContextCancel(t *testing.T) {
	pubSub := NewPubSub(10, watermill.NopLogger{})
	defer pubSub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	msgs, err := pubSub.Subscribe(ctx, "frames")
	require.NoError(t, err)

	cancel()

	select {
	case _, open := <-msgs:
		assert.False(t, open, "channel should be closed after cancel")
	case <-time.After(time.Second):
		t.Fatal("channel not closed after context cancel")
	}

	// The cancelled subscriber no longer counts against the watermark.
	require.NoError(t, pubSub.Publish("frames", message.NewMessage(watermill.NewUUID(), nil)))
}

func TestClose(t *testing.T) {
	pubSub := NewPubSub(10, watermill.NopLogger{})

	msgs, err := pubSub.Subscribe(context.Background(), "frames")
	require.NoError(t, err)

	require.NoError(t, pubSub.Close())
	require.NoError(t, pubSub.Close(), "close is idempotent")

	_, open := <-msgs
	assert.False(t, open)

	assert.ErrorIs(t, pubSub.Publish("frames", message.NewMessage("x", nil)), ErrClosed)
	_, err = pubSub.Subscribe(context.Background(), "frames")
	assert.ErrorIs(t, err, ErrClosed)
}

type mockConfig struct {
	watermark int
}

func (m *mockConfig) GetPubSubSystem() string { return TransportName }
func (m *mockConfig) GetWatermark() int       { return m.watermark }
func (m *mockConfig) GetNATSURL() string      { return "" }
