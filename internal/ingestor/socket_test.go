package ingestor

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GabrielNunesIT/event-buffer/internal/config"
	"github.com/GabrielNunesIT/event-buffer/internal/model"
	"github.com/GabrielNunesIT/event-buffer/internal/testutil"
)

func startSocketIngestor(t *testing.T, cfg config.SocketSourceConfig, rec Recorder) *SocketIngestor {
	t.Helper()
	ingestor := NewSocketIngestor(cfg, testutil.NewTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- ingestor.Start(ctx, rec)
	}()
	t.Cleanup(func() {
		cancel()
		err := <-done
		assert.ErrorIs(t, err, context.Canceled)
	})

	require.Eventually(t, func() bool { return ingestor.Addr() != nil }, 2*time.Second, 10*time.Millisecond)
	return ingestor
}

func TestSocketIngestor(t *testing.T) {
	tests := []struct {
		name    string
		network string
		payload string
		want    []model.Event
	}{
		{
			name:    "UDPSingleEvent",
			network: "udp",
			payload: "level_start level:3",
			want:    []model.Event{{Type: "level_start", Data: "level:3"}},
		},
		{
			name:    "UDPSeveralLines",
			network: "udp",
			payload: "a 1\n{\"type\":\"b\",\"data\":\"2\"}\n",
			want:    []model.Event{{Type: "a", Data: "1"}, {Type: "b", Data: "2"}},
		},
		{
			name:    "TCPStream",
			network: "tcp",
			payload: "a 1\n\nb 2\n",
			want:    []model.Event{{Type: "a", Data: "1"}, {Type: "b", Data: "2"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := newRecorder()
			ingestor := startSocketIngestor(t, config.SocketSourceConfig{Network: tt.network, Address: "127.0.0.1:0"}, rec)
			assert.Equal(t, "socket", ingestor.Name())

			conn, err := net.Dial(tt.network, ingestor.Addr().String())
			require.NoError(t, err)
			_, err = conn.Write([]byte(tt.payload))
			require.NoError(t, err)
			require.NoError(t, conn.Close())

			assert.Equal(t, tt.want, rec.wait(t, len(tt.want)))
		})
	}
}

func TestSocketIngestor_UnsupportedNetwork(t *testing.T) {
	ingestor := NewSocketIngestor(config.SocketSourceConfig{Network: "unix", Address: "/tmp/x"}, testutil.NewTestLogger())
	assert.Error(t, ingestor.Start(context.Background(), newRecorder()))
}

func TestSocketIngestor_ListenFailure(t *testing.T) {
	factory := func(network, address string) (net.Listener, error) {
		return nil, errors.New("address in use")
	}
	ingestor := NewSocketIngestor(
		config.SocketSourceConfig{Network: "tcp", Address: "127.0.0.1:0"},
		testutil.NewTestLogger(),
		WithTCPListenerFactory(factory),
	)

	err := ingestor.Start(context.Background(), newRecorder())
	assert.ErrorContains(t, err, "address in use")
}
