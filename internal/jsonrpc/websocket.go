package jsonrpc

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/inoxlang/lspcore/internal/logs"
	"github.com/rs/zerolog"
)

const (
	JSON_RPC_SERVER_LOG_SRC = "/json-rpc"
	DEFAULT_MAX_IP_WS_CONNS = 3
)

var (
	_ MessageReaderWriter = (*JsonRpcWebsocket)(nil)

	ErrTooManyWsConnectionsOnIp = errors.New("too many websocket connections on the same IP")
)

// JsonRpcWebsocket is a message connection, each text message is a JSON-RPC message.
type JsonRpcWebsocket struct {
	conn   *websocket.Conn
	lock   sync.Mutex
	logger zerolog.Logger
}

func NewJsonRpcWebsocket(conn *websocket.Conn, logger zerolog.Logger) *JsonRpcWebsocket {
	return &JsonRpcWebsocket{conn: conn, logger: logger}
}

// DialWebsocket connects to a JSON-RPC websocket endpoint.
func DialWebsocket(ctx context.Context, url string, logger zerolog.Logger) (*JsonRpcWebsocket, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return NewJsonRpcWebsocket(conn, logger), nil
}

func (s *JsonRpcWebsocket) ReadMessage() ([]byte, error) {
	msgType, msg, err := s.conn.ReadMessage()
	if err != nil {
		return nil, err
	}

	if msgType != websocket.TextMessage {
		s.logger.Debug().Msg("a non text message was received, type is " + strconv.Itoa(msgType))
		return nil, nil
	}

	return msg, nil
}

func (s *JsonRpcWebsocket) WriteMessage(msg []byte) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.conn.WriteMessage(websocket.TextMessage, msg)
}

func (s *JsonRpcWebsocket) Close() error {
	return s.conn.Close()
}

func (s *JsonRpcWebsocket) Client() string {
	return s.conn.RemoteAddr().String()
}

type JsonRpcWebsocketServerConfig struct {
	RpcServer *Server

	//defaults to DEFAULT_MAX_IP_WS_CONNS
	MaxWebsocketPerIp int

	//if nil all origins are accepted.
	CheckOrigin func(r *http.Request) bool
}

// JsonRpcWebsocketServer is an http.Handler upgrading requests to websockets and
// starting a session for each of them.
type JsonRpcWebsocketServer struct {
	upgrader  websocket.Upgrader
	rpcServer *Server
	logger    zerolog.Logger

	ipConns     map[string]int
	ipConnsLock sync.Mutex

	config JsonRpcWebsocketServerConfig
}

func NewJsonRpcWebsocketServer(config JsonRpcWebsocketServerConfig) (*JsonRpcWebsocketServer, error) {
	if config.RpcServer == nil {
		return nil, errors.New("missing JSON-RPC server")
	}

	if config.MaxWebsocketPerIp <= 0 {
		config.MaxWebsocketPerIp = DEFAULT_MAX_IP_WS_CONNS
	}

	checkOrigin := config.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(r *http.Request) bool { return true }
	}

	logger := logs.Child(config.RpcServer.Logger(), JSON_RPC_SERVER_LOG_SRC)

	return &JsonRpcWebsocketServer{
		upgrader: websocket.Upgrader{
			CheckOrigin: checkOrigin,
		},
		rpcServer: config.RpcServer,
		logger:    logger,
		ipConns:   map[string]int{},
		config:    config,
	}, nil
}

func (server *JsonRpcWebsocketServer) Logger() zerolog.Logger {
	return server.logger
}

func (server *JsonRpcWebsocketServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	server.HandleNew(w, r)
}

// HandleNew upgrades the request and serves the session until it ends.
func (server *JsonRpcWebsocketServer) HandleNew(httpRespWriter http.ResponseWriter, httpReq *http.Request) {
	ip := remoteIp(httpReq)

	if err := server.allowNewConnection(ip); err != nil {
		server.logger.Debug().Err(err).Str("ip", ip).Send()
		http.Error(httpRespWriter, err.Error(), http.StatusTooManyRequests)
		return
	}
	defer server.removeConnection(ip)

	conn, err := server.upgrader.Upgrade(httpRespWriter, httpReq, nil)
	if err != nil {
		server.logger.Debug().Err(err).Send()
		return
	}

	socket := NewJsonRpcWebsocket(conn, server.logger)
	server.rpcServer.MsgConnComeIn(socket, func(session *Session) {
		server.logger.Info().Msgf("new session %d at %s (remote)", session.ID(), socket.Client())
	})
}

func (server *JsonRpcWebsocketServer) allowNewConnection(ip string) error {
	server.ipConnsLock.Lock()
	defer server.ipConnsLock.Unlock()

	if server.ipConns[ip]+1 > server.config.MaxWebsocketPerIp {
		return ErrTooManyWsConnectionsOnIp
	}
	server.ipConns[ip]++
	return nil
}

func (server *JsonRpcWebsocketServer) removeConnection(ip string) {
	server.ipConnsLock.Lock()
	defer server.ipConnsLock.Unlock()

	server.ipConns[ip]--
	if server.ipConns[ip] <= 0 {
		delete(server.ipConns, ip)
	}
}

func remoteIp(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
