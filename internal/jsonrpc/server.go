package jsonrpc

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/inoxlang/lspcore/internal/ratelimit"
	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/rs/zerolog"
)

// MethodInfo binds a handler to a registered method.
type MethodInfo struct {
	Descriptor *MethodDescriptor

	//params is a pointer to a value of the params type of the descriptor. The result is ignored
	//for notifications.
	Handler func(ctx context.Context, params any) (any, error)

	//inline handlers run in the read loop, before the next message is read.
	inline bool
}

// Called before starting each new JSON RPC session.
type SessionCreationCallbackFn func(serverCtx context.Context, session *Session) error

type ServerConfig struct {
	Registry *Registry //if nil a registry only containing the builtin methods is used.
	Logger   zerolog.Logger
	Observer Observer

	OnSession SessionCreationCallbackFn

	IdStyle           IdStyle
	RequestTimeout    time.Duration //timeout of outgoing requests, zero means no timeout.
	ClosedIdCacheSize int

	//limit of the incoming requests of each session, disabled if the request count is zero.
	SessionRateLimit ratelimit.WindowParameters

	//limit shared by the sessions of the same remote host. It is consulted when the window
	//of a session is full, disabled if the request count is zero.
	HostRateLimit ratelimit.WindowParameters
}

type Server struct {
	ctx    context.Context
	cancel context.CancelFunc
	config ServerConfig

	registry *Registry
	logger   zerolog.Logger
	observer Observer

	methods     map[string]MethodInfo
	methodsLock sync.RWMutex

	sessions    map[int]*Session
	nowId       int
	sessionLock sync.Mutex

	onSession SessionCreationCallbackFn

	hostWindows cmap.ConcurrentMap[string, *ratelimit.SharedWindow]
}

func NewServer(ctx context.Context, config ServerConfig) (*Server, error) {
	if config.Registry == nil {
		config.Registry = NewRegistry()
	}
	if config.Observer == nil {
		config.Observer = noopObserver{}
	}
	if config.OnSession == nil {
		config.OnSession = func(ctx context.Context, s *Session) error { return nil }
	}

	if err := RegisterBuiltinMethods(config.Registry); err != nil {
		return nil, err
	}

	serverCtx, cancel := context.WithCancel(ctx)

	s := &Server{
		ctx:       serverCtx,
		cancel:    cancel,
		config:    config,
		registry:  config.Registry,
		logger:    config.Logger,
		observer:  config.Observer,
		methods:   map[string]MethodInfo{},
		sessions:  map[int]*Session{},
		onSession: config.OnSession,

		hostWindows: cmap.New[*ratelimit.SharedWindow](),
	}

	// Register Builtin
	if err := s.RegisterMethod(CancelRequest(s.registry)); err != nil {
		return nil, err
	}
	if err := s.RegisterMethod(Progress(s.registry)); err != nil {
		return nil, err
	}

	return s, nil
}

// RegisterMethod sets the handler of a method of the registry, a method has at most one handler.
func (server *Server) RegisterMethod(m MethodInfo) error {
	if m.Descriptor == nil {
		return errors.New("missing method descriptor")
	}
	if m.Handler == nil {
		return fmt.Errorf("missing handler for method %s", m.Descriptor.Name)
	}

	registered, ok := server.registry.Lookup(m.Descriptor.Name)
	if !ok || registered != m.Descriptor {
		return fmt.Errorf("method %s is not registered in the registry of the server", m.Descriptor.Name)
	}

	server.methodsLock.Lock()
	defer server.methodsLock.Unlock()

	if _, ok := server.methods[m.Descriptor.Name]; ok {
		return fmt.Errorf("a handler is already registered for method %s", m.Descriptor.Name)
	}

	server.methods[m.Descriptor.Name] = m
	return nil
}

func (server *Server) methodInfo(name string) (MethodInfo, bool) {
	server.methodsLock.RLock()
	defer server.methodsLock.RUnlock()
	info, ok := server.methods[name]
	return info, ok
}

// HandledMethods returns the sorted names of the methods having a handler.
func (server *Server) HandledMethods() []string {
	server.methodsLock.RLock()
	defer server.methodsLock.RUnlock()

	names := make([]string, 0, len(server.methods))
	for name := range server.methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (server *Server) Registry() *Registry {
	return server.registry
}

func (server *Server) Logger() zerolog.Logger {
	return server.logger
}

// ConnComeIn starts a session on a stream connection using Content-Length framing, it
// returns when the session ends.
func (server *Server) ConnComeIn(conn ReaderWriter) {
	server.MsgConnComeIn(NewFramedConn(conn), nil)
}

// MsgConnComeIn starts a session on a message connection, it returns when the session ends.
func (server *Server) MsgConnComeIn(conn MessageReaderWriter, onCreatedSession func(session *Session)) {
	session := server.newSession(conn)
	if err := server.onSession(server.ctx, session); err != nil {
		server.logger.Warn().Err(err).Msgf("session %d refused", session.id)
		session.Close()
		return
	}
	if onCreatedSession != nil {
		onCreatedSession(session)
	}
	session.Start()
}

func (s *Server) newSession(conn MessageReaderWriter) *Session {
	s.sessionLock.Lock()
	defer s.sessionLock.Unlock()

	id := s.nowId
	s.nowId += 1

	session := newSession(id, s, conn)
	s.sessions[id] = session
	return session
}

// requestWindow returns the rate limiting window of a new session, or nil if rate limiting is disabled.
func (s *Server) requestWindow(remoteAddrAndPort string) ratelimit.Window {
	if !s.config.SessionRateLimit.Enabled() {
		return nil
	}

	window := ratelimit.NewSlidingWindow(s.config.SessionRateLimit)

	if s.config.HostRateLimit.Enabled() {
		host := ratelimit.RequestInfo{RemoteAddrAndPort: remoteAddrAndPort}.RemoteHost()
		shared := s.hostWindows.Upsert(host, nil, func(exist bool, valueInMap, newValue *ratelimit.SharedWindow) *ratelimit.SharedWindow {
			if exist {
				return valueInMap
			}
			return ratelimit.NewSharedWindow(s.config.HostRateLimit)
		})
		window.SetParent(shared)
	}
	return window
}

func (s *Server) removeSession(id int) {
	s.sessionLock.Lock()
	defer s.sessionLock.Unlock()
	delete(s.sessions, id)
}

func (s *Server) Sessions() []*Session {
	s.sessionLock.Lock()
	defer s.sessionLock.Unlock()

	sessions := make([]*Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		sessions = append(sessions, session)
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].id < sessions[j].id
	})
	return sessions
}

// Close closes all sessions.
func (s *Server) Close() {
	for _, session := range s.Sessions() {
		session.Close()
	}
	s.cancel()
}
