package handlers_test

import (
	"bufio"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/api/handlers"
	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/domain/entities"
	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/domain/providers"
)

type sseFrame struct {
	event   string
	data    string
	comment string
}

func readFrame(t *testing.T, r *bufio.Reader) sseFrame {
	t.Helper()
	var f sseFrame
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "":
			return f
		case strings.HasPrefix(line, "event: "):
			f.event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			f.data = strings.TrimPrefix(line, "data: ")
		case strings.HasPrefix(line, ":"):
			f.comment = strings.TrimSpace(strings.TrimPrefix(line, ":"))
		}
	}
}

func openStream(t *testing.T, handler *handlers.SSEHandler, path string) (*bufio.Reader, context.CancelFunc) {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/stream/changes", handler.StreamChanges)
	mux.HandleFunc("GET /api/stream/facilities/{id}", handler.StreamFacilityChanges)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+path, nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	return bufio.NewReader(resp.Body), cancel
}

func TestSSEHandler_StreamFacilityChanges(t *testing.T) {
	bus := NewMockEventBus()
	handler := handlers.NewSSEHandler(bus)

	body, cancel := openStream(t, handler, "/api/stream/facilities/f1")
	defer cancel()

	hello := readFrame(t, body)
	assert.Equal(t, "connected", hello.event)
	assert.Contains(t, hello.data, `"facility_id":"f1"`)
	assert.Equal(t, providers.GetFacilityChannel("f1"), <-bus.subscribed)
	assert.Equal(t, 1, handler.GetClientCount())

	event := entities.NewChangeEvent(entities.ChangeRecommendationCreated, "f1", "r1")
	require.NoError(t, bus.Publish(context.Background(), providers.GetFacilityChannel("f1"), event))

	frame := readFrame(t, body)
	assert.Equal(t, "recommendation.created", frame.event)
	assert.Contains(t, frame.data, `"target_id":"r1"`)

	cancel()
	assert.Eventually(t, func() bool { return handler.GetClientCount() == 0 }, time.Second, 10*time.Millisecond)
}

func TestSSEHandler_StreamChanges_Heartbeat(t *testing.T) {
	bus := NewMockEventBus()
	handler := handlers.NewSSEHandler(bus)
	handler.SetHeartbeat(20 * time.Millisecond)

	body, cancel := openStream(t, handler, "/api/stream/changes")
	defer cancel()

	assert.Equal(t, "connected", readFrame(t, body).event)
	assert.Equal(t, providers.EventChannelChanges, <-bus.subscribed)
	frame := readFrame(t, body)
	assert.Equal(t, "heartbeat", frame.comment)
	assert.Empty(t, frame.event)
	assert.Empty(t, frame.data)
}

type failingBus struct{}

func (failingBus) Publish(ctx context.Context, channel string, event *entities.ChangeEvent) error {
	return nil
}

func (failingBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.ChangeEvent, error) {
	return nil, errors.New("redis: connection refused")
}

func (failingBus) Close() error { return nil }

func TestSSEHandler_SubscribeFailure(t *testing.T) {
	handler := handlers.NewSSEHandler(failingBus{})

	rec := httptest.NewRecorder()
	handler.StreamChanges(rec, httptest.NewRequest(http.MethodGet, "/api/stream/changes", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, 0, handler.GetClientCount())
}
