// Package ratelimit implements sliding windows limiting the number of requests
// accepted during a period of time.
package ratelimit

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	//a request arriving less than <window duration> * BURST_FRACTION after the oldest
	//request of a full window is part of a burst and is never forwarded to the parent window.
	BURST_FRACTION = 0.5

	//maximum share of a shared window that a single remote address and port can use when it
	//is the only one sending requests.
	MAX_SOCKET_SHARE_OF_SHARED_WINDOW = 0.50
)

type WindowParameters struct {
	Duration     time.Duration
	RequestCount int
}

// Enabled reports whether the parameters describe an actual limit: a zero request count
// disables rate limiting.
func (p WindowParameters) Enabled() bool {
	return p.RequestCount > 0 && p.Duration > 0
}

func (p WindowParameters) String() string {
	return fmt.Sprintf("%d requests / %s", p.RequestCount, p.Duration)
}

type Window interface {
	AllowRequest(info RequestInfo, logger zerolog.Logger) (ok bool)
}

// A SlidingWindow accepts at most RequestCount requests during Duration. Rejected requests
// are not recorded.
type SlidingWindow struct {
	lock     sync.Mutex
	params   WindowParameters
	requests []RequestInfo

	//consulted when the window is full, may be nil.
	parent Window
}

func NewSlidingWindow(params WindowParameters) *SlidingWindow {
	if !params.Enabled() {
		panic(fmt.Errorf("invalid window parameters: %s", params))
	}

	return &SlidingWindow{
		params:   params,
		requests: make([]RequestInfo, 0, params.RequestCount),
	}
}

// SetParent sets the window consulted when this window is full and the request is not part of a burst.
func (w *SlidingWindow) SetParent(parent Window) {
	w.lock.Lock()
	defer w.lock.Unlock()
	w.parent = parent
}

func (w *SlidingWindow) Parameters() WindowParameters {
	return w.params
}

// AllowRequest records the request and returns true if the window accepts it.
func (w *SlidingWindow) AllowRequest(info RequestInfo, logger zerolog.Logger) (ok bool) {
	w.lock.Lock()
	defer w.lock.Unlock()

	if len(w.requests) < w.params.RequestCount {
		w.requests = append(w.requests, info)
		return true
	}

	oldest := 0
	for i, req := range w.requests {
		if req.CreationTime.Before(w.requests[oldest].CreationTime) {
			oldest = i
		}
	}

	age := info.CreationTime.Sub(w.requests[oldest].CreationTime)

	switch {
	case age >= w.params.Duration:
		w.requests[oldest] = info
		return true
	case float64(age) < float64(w.params.Duration)*BURST_FRACTION:
		logger.Debug().Str("method", info.Method).Str("client", info.RemoteAddrAndPort).Msg("request burst")
		return false
	case w.parent == nil:
		return false
	}

	if !w.parent.AllowRequest(info, logger) {
		return false
	}
	w.requests[oldest] = info
	return true
}

// A SharedWindow is a sliding window shared by the sessions of the same remote host. A single
// remote address and port cannot use more than MAX_SOCKET_SHARE_OF_SHARED_WINDOW of the window,
// several ones share it equally.
type SharedWindow struct {
	window *SlidingWindow
}

func NewSharedWindow(params WindowParameters) *SharedWindow {
	return &SharedWindow{window: NewSlidingWindow(params)}
}

func (w *SharedWindow) AllowRequest(info RequestInfo, logger zerolog.Logger) (ok bool) {
	if !w.allowedShare(info) {
		logger.Debug().Str("client", info.RemoteAddrAndPort).Msg("client exceeded its share of the shared window")
		return false
	}
	return w.window.AllowRequest(info, logger)
}

func (w *SharedWindow) allowedShare(info RequestInfo) bool {
	w.window.lock.Lock()
	defer w.window.lock.Unlock()

	params := w.window.params
	sockets := map[string]struct{}{info.RemoteAddrAndPort: {}}
	socketRequestCount := 0

	for _, req := range w.window.requests {
		if info.CreationTime.Sub(req.CreationTime) >= params.Duration {
			continue
		}
		sockets[req.RemoteAddrAndPort] = struct{}{}
		if req.RemoteAddrAndPort == info.RemoteAddrAndPort {
			socketRequestCount++
		}
	}

	if len(sockets) == 1 {
		return float64(socketRequestCount+1) < float64(params.RequestCount)*MAX_SOCKET_SHARE_OF_SHARED_WINDOW ||
			socketRequestCount == 0
	}
	return socketRequestCount+1 <= params.RequestCount/len(sockets)
}
