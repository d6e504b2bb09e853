package http

import (
	"log/slog"
	"sync"
)

// StreamManager handles active SSE connections
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan<- string]struct{} // RecordingID -> Set of Channels
}

func NewStreamManager() *StreamManager {
	return &StreamManager{
		subscribers: make(map[string]map[chan<- string]struct{}),
	}
}

// Subscribe registers a listener for the steps of one recording.
// The returned func unsubscribes and closes the channel.
func (sm *StreamManager) Subscribe(recordingID string) (chan string, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan string, 10)
	if _, ok := sm.subscribers[recordingID]; !ok {
		sm.subscribers[recordingID] = make(map[chan<- string]struct{})
	}
	sm.subscribers[recordingID][ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			sm.mu.Lock()
			defer sm.mu.Unlock()
			if subs, ok := sm.subscribers[recordingID]; ok {
				delete(subs, ch)
				close(ch)
				if len(subs) == 0 {
					delete(sm.subscribers, recordingID)
				}
			}
		})
	}
}

// Broadcast sends msg to every subscriber of recordingID without blocking.
func (sm *StreamManager) Broadcast(recordingID string, msg string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	slog.Debug("StreamManager: Broadcasting", "recording_id", recordingID, "payload_size", len(msg))

	for ch := range sm.subscribers[recordingID] {
		select {
		case ch <- msg:
		default:
			// Drop message if channel is full (slow client)
			slog.Warn("SSE: Client buffer full, dropping message", "recording_id", recordingID)
		}
	}
}

// Subscribers reports how many listeners follow recordingID.
func (sm *StreamManager) Subscribers(recordingID string) int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.subscribers[recordingID])
}
