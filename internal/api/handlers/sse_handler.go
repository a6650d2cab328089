package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/domain/providers"
	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/infrastructure/observability"
)

const defaultHeartbeat = 30 * time.Second

// SSEHandler streams change events to browsers as Server-Sent Events
type SSEHandler struct {
	eventBus  providers.EventBus
	heartbeat time.Duration

	mu      sync.RWMutex
	clients map[string]int
}

// NewSSEHandler creates a new SSE handler
func NewSSEHandler(eventBus providers.EventBus) *SSEHandler {
	return &SSEHandler{
		eventBus:  eventBus,
		heartbeat: defaultHeartbeat,
		clients:   make(map[string]int),
	}
}

// SetHeartbeat overrides the keep-alive interval
func (h *SSEHandler) SetHeartbeat(d time.Duration) {
	if d > 0 {
		h.heartbeat = d
	}
}

// StreamChanges handles GET /api/stream/changes
func (h *SSEHandler) StreamChanges(w http.ResponseWriter, r *http.Request) {
	h.stream(w, r, providers.EventChannelChanges, map[string]interface{}{})
}

// StreamFacilityChanges handles GET /api/stream/facilities/{id}
func (h *SSEHandler) StreamFacilityChanges(w http.ResponseWriter, r *http.Request) {
	facilityID := r.PathValue("id")
	if facilityID == "" {
		respondWithError(w, http.StatusBadRequest, "facility ID is required")
		return
	}
	h.stream(w, r, providers.GetFacilityChannel(facilityID), map[string]interface{}{"facility_id": facilityID})
}

func (h *SSEHandler) stream(w http.ResponseWriter, r *http.Request, channel string, hello map[string]interface{}) {
	logger := observability.LoggerFromContext(r.Context())

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondWithError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	events, err := h.eventBus.Subscribe(r.Context(), channel)
	if err != nil {
		logger.Error().Err(err).Str("channel", channel).Msg("failed to subscribe to channel")
		respondWithError(w, http.StatusServiceUnavailable, "realtime updates unavailable")
		return
	}

	h.register(channel)
	defer h.unregister(channel)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	hello["timestamp"] = time.Now().UTC()
	h.sendEvent(w, "connected", hello)
	flusher.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			logger.Debug().Str("channel", channel).Msg("client disconnected from stream")
			return
		case <-ticker.C:
			// comment frame, invisible to EventSource listeners
			fmt.Fprint(w, ": heartbeat\n\n")
			flusher.Flush()
		case event, ok := <-events:
			if !ok {
				return
			}
			if event == nil {
				continue
			}
			h.sendEvent(w, string(event.Type), event)
			flusher.Flush()
		}
	}
}

func (h *SSEHandler) register(channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[channel]++
}

func (h *SSEHandler) unregister(channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[channel]--
	if h.clients[channel] <= 0 {
		delete(h.clients, channel)
	}
}

// sendEvent writes one SSE frame
func (h *SSEHandler) sendEvent(w http.ResponseWriter, eventType string, data interface{}) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\n", eventType)
	fmt.Fprintf(w, "data: %s\n\n", jsonData)
}

// GetClientCount returns the number of connected clients
func (h *SSEHandler) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	count := 0
	for _, n := range h.clients {
		count += n
	}
	return count
}
