package ratelimit

import (
	"net"
	"time"

	"github.com/oklog/ulid/v2"
)

// RequestInfo describes an incoming request for the windows.
type RequestInfo struct {
	ULID         ulid.ULID
	Method       string
	CreationTime time.Time

	//remote address with the port, for example "127.0.0.1:5000". It can be empty for
	//connections without a network address (stdio).
	RemoteAddrAndPort string
}

func NewRequestInfo(method string, remoteAddrAndPort string) RequestInfo {
	return RequestInfo{
		ULID:              ulid.Make(),
		Method:            method,
		CreationTime:      time.Now(),
		RemoteAddrAndPort: remoteAddrAndPort,
	}
}

// RemoteHost returns the host part of the remote address, or the full address if
// it has no port.
func (i RequestInfo) RemoteHost() string {
	host, _, err := net.SplitHostPort(i.RemoteAddrAndPort)
	if err != nil {
		return i.RemoteAddrAndPort
	}
	return host
}
