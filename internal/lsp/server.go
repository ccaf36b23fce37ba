package lsp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/inoxlang/lspcore/internal/jsonrpc"
	"github.com/inoxlang/lspcore/internal/logs"
	"github.com/inoxlang/lspcore/internal/lsp/defines"
	"github.com/inoxlang/lspcore/internal/ratelimit"
	"github.com/inoxlang/lspcore/internal/sumtype"
	"github.com/inoxlang/lspcore/internal/utils"
	"github.com/rs/zerolog"
)

const (
	LSP_SERVER_LOG_SRC = "/lsp"

	DEFAULT_PROGRESS_REPORT_DEBOUNCE = 100 * time.Millisecond
)

type ServerConfig struct {
	Name    string
	Version string

	//semver, defaults to DEFAULT_PROTOCOL_VERSION.
	ProtocolVersion string

	//if nil the capabilities are derived from the registered handlers.
	Capabilities *defines.ServerCapabilities

	Logger   zerolog.Logger
	Observer jsonrpc.Observer

	IdStyle           jsonrpc.IdStyle
	RequestTimeout    time.Duration
	ClosedIdCacheSize int

	//minimum delay between two work done reports of a reporter.
	ProgressReportDebounce time.Duration

	MaxWebsocketPerIp int

	//see jsonrpc.ServerConfig.
	SessionRateLimit ratelimit.WindowParameters
	HostRateLimit    ratelimit.WindowParameters

	//called during the initialize request, after the negotiation. A returned error that is
	//not a jsonrpc.ResponseError is sent with the UnknownProtocolVersion code.
	OnInitialize func(ctx context.Context, session *Session, params *defines.InitializeParams) error

	OnInitialized func(ctx context.Context, session *Session)

	//called in another goroutine once a session is closed.
	OnSessionClosed func(session *Session)
}

// Server is a language server: it handles the lifecycle methods and gates the
// other methods on the state of the session.
type Server struct {
	config    ServerConfig
	registry  *jsonrpc.Registry
	methods   *Methods
	rpcServer *jsonrpc.Server
	logger    zerolog.Logger

	sessions     map[*jsonrpc.Session]*Session
	sessionsLock sync.Mutex
}

func NewServer(ctx context.Context, config ServerConfig) (*Server, error) {
	if config.ProgressReportDebounce <= 0 {
		config.ProgressReportDebounce = DEFAULT_PROGRESS_REPORT_DEBOUNCE
	}

	registry, methods, err := NewStandardRegistry(config.ProtocolVersion)
	if err != nil {
		return nil, err
	}

	server := &Server{
		config:   config,
		registry: registry,
		methods:  methods,
		logger:   logs.Child(config.Logger, LSP_SERVER_LOG_SRC),
		sessions: map[*jsonrpc.Session]*Session{},
	}

	rpcServer, err := jsonrpc.NewServer(ctx, jsonrpc.ServerConfig{
		Registry:          registry,
		Logger:            server.logger,
		Observer:          config.Observer,
		OnSession:         server.onSession,
		IdStyle:           config.IdStyle,
		RequestTimeout:    config.RequestTimeout,
		ClosedIdCacheSize: config.ClosedIdCacheSize,
		SessionRateLimit:  config.SessionRateLimit,
		HostRateLimit:     config.HostRateLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create the JSON-RPC server: %w", err)
	}
	server.rpcServer = rpcServer

	if err := server.registerLifecycleMethods(); err != nil {
		return nil, err
	}
	return server, nil
}

func (s *Server) Methods() *Methods {
	return s.methods
}

func (s *Server) Registry() *jsonrpc.Registry {
	return s.registry
}

func (s *Server) RPCServer() *jsonrpc.Server {
	return s.rpcServer
}

func (s *Server) Logger() zerolog.Logger {
	return s.logger
}

func (s *Server) onSession(ctx context.Context, rpcSession *jsonrpc.Session) error {
	session := newSession(s, rpcSession)

	s.sessionsLock.Lock()
	s.sessions[rpcSession] = session
	s.sessionsLock.Unlock()

	rpcSession.SetClosedCallbackFn(func(rpcSession *jsonrpc.Session) {
		s.sessionsLock.Lock()
		delete(s.sessions, rpcSession)
		s.sessionsLock.Unlock()

		session.endReporters()

		if s.config.OnSessionClosed != nil {
			s.config.OnSessionClosed(session)
		}
	})
	return nil
}

func (s *Server) session(rpcSession *jsonrpc.Session) *Session {
	s.sessionsLock.Lock()
	defer s.sessionsLock.Unlock()
	return s.sessions[rpcSession]
}

// SessionFromContext returns the session of the request being handled.
func (s *Server) SessionFromContext(ctx context.Context) *Session {
	rpcSession := jsonrpc.GetSession(ctx)
	if rpcSession == nil {
		return nil
	}
	return s.session(rpcSession)
}

func (s *Server) Sessions() []*Session {
	var sessions []*Session
	for _, rpcSession := range s.rpcServer.Sessions() {
		if session := s.session(rpcSession); session != nil {
			sessions = append(sessions, session)
		}
	}
	return sessions
}

// OnRequest sets the handler of a request method. The handler is only called once the session is initialized.
func OnRequest[P, R any](s *Server, t jsonrpc.RequestType[P, R], fn func(ctx context.Context, session *Session, params *P) (R, error)) error {
	if !t.Registered() {
		return fmt.Errorf("method is not supported by protocol version %s", s.methods.ProtocolVersion)
	}

	return jsonrpc.HandleRequest(s.rpcServer, t, func(ctx context.Context, params *P) (R, error) {
		var zero R

		session := s.SessionFromContext(ctx)
		if session == nil {
			return zero, jsonrpc.InternalError.WithMessage("no session")
		}
		if err := session.checkInitialized(); err != nil {
			return zero, err
		}
		return fn(ctx, session, params)
	})
}

// OnNotification sets the handler of a notification method, notifications received before the
// initialization are dropped. Handlers are called one at a time in the order the notifications were received.
func OnNotification[P any](s *Server, t jsonrpc.NotificationType[P], fn func(ctx context.Context, session *Session, params *P) error) error {
	if !t.Registered() {
		return fmt.Errorf("method is not supported by protocol version %s", s.methods.ProtocolVersion)
	}
	return jsonrpc.HandleNotification(s.rpcServer, t, notificationHandler(s, t.Method(), fn))
}

// OnSyncNotification is like OnNotification but fn is called before the next message is handled,
// it is used for text document synchronization: a request following a didChange sees the change.
func OnSyncNotification[P any](s *Server, t jsonrpc.NotificationType[P], fn func(ctx context.Context, session *Session, params *P) error) error {
	if !t.Registered() {
		return fmt.Errorf("method is not supported by protocol version %s", s.methods.ProtocolVersion)
	}
	return jsonrpc.HandleSyncNotification(s.rpcServer, t, notificationHandler(s, t.Method(), fn))
}

func notificationHandler[P any](s *Server, method string, fn func(ctx context.Context, session *Session, params *P) error) func(ctx context.Context, params *P) error {
	return func(ctx context.Context, params *P) error {
		session := s.SessionFromContext(ctx)
		if session == nil {
			return errors.New("no session")
		}
		if err := session.checkInitialized(); err != nil {
			return fmt.Errorf("drop %s: %w", method, err)
		}
		return fn(ctx, session, params)
	}
}

func (s *Server) registerLifecycleMethods() error {
	m := s.methods

	err := jsonrpc.HandleRequest(s.rpcServer, m.Initialize, s.initialize)
	if err != nil {
		return err
	}

	if m.Initialized.Registered() {
		err = jsonrpc.HandleNotification(s.rpcServer, m.Initialized, func(ctx context.Context, params *defines.InitializedParams) error {
			session := s.SessionFromContext(ctx)
			if session == nil || session.State() != Initialized {
				return errors.New("initialized notification received before the initialize request")
			}
			if s.config.OnInitialized != nil {
				s.config.OnInitialized(ctx, session)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	err = jsonrpc.HandleRequest(s.rpcServer, m.Shutdown, func(ctx context.Context, params *defines.NoParams) (any, error) {
		session := s.SessionFromContext(ctx)
		if err := session.checkInitialized(); err != nil {
			return nil, err
		}
		session.setState(ShuttingDown)
		session.endReporters()

		if err := session.rpc.Shutdown(); err != nil {
			return nil, jsonrpc.InvalidRequest.WithMessage(err.Error())
		}
		return nil, nil
	})
	if err != nil {
		return err
	}

	err = jsonrpc.HandleNotification(s.rpcServer, m.Exit, func(ctx context.Context, params *defines.NoParams) error {
		session := s.SessionFromContext(ctx)
		if session.State() != ShuttingDown {
			s.logger.Warn().Msgf("session %d: exit notification received without shutdown request", session.rpc.ID())
		}
		go session.rpc.Close()
		return nil
	})
	if err != nil {
		return err
	}

	if m.WorkDoneProgressCancel.Registered() {
		err = jsonrpc.HandleNotification(s.rpcServer, m.WorkDoneProgressCancel, func(ctx context.Context, params *defines.WorkDoneProgressCancelParams) error {
			session := s.SessionFromContext(ctx)
			if !session.cancelReporter(params.Token) {
				s.logger.Debug().Msgf("no work done progress with token %s to cancel", params.Token)
			}
			return nil
		})
	}
	return err
}

func (s *Server) initialize(ctx context.Context, params *defines.InitializeParams) (defines.InitializeResult, error) {
	session := s.SessionFromContext(ctx)
	if session == nil {
		return defines.InitializeResult{}, jsonrpc.InternalError.WithMessage("no session")
	}

	if !session.compareAndSwapState(NotInitialized, Initializing) {
		return defines.InitializeResult{}, jsonrpc.InvalidRequest.WithMessage("session is already initialized")
	}

	capabilities := s.config.Capabilities
	if capabilities == nil {
		capabilities = s.defaultCapabilities()
	}

	session.setClientInfo(params.ClientInfo)
	session.capabilities.Store(Negotiate(params, capabilities, s.registry))

	if s.config.OnInitialize != nil {
		if err := s.config.OnInitialize(ctx, session, params); err != nil {
			session.setState(NotInitialized)
			return defines.InitializeResult{}, wrapInitializeError(err)
		}
	}

	session.setState(Initialized)

	result := defines.InitializeResult{Capabilities: *capabilities}
	if s.config.Name != "" {
		result.ServerInfo = &defines.ServerInfo{Name: s.config.Name, Version: s.config.Version}
	}
	return result, nil
}

func wrapInitializeError(err error) error {
	var respErr jsonrpc.ResponseError
	if errors.As(err, &respErr) {
		return respErr
	}

	return jsonrpc.ResponseError{
		Code:    defines.UnknownProtocolVersion,
		Message: err.Error(),
		Data:    utils.Must(defines.NewLSPAny(defines.InitializeError{Retry: false})),
	}
}

// defaultCapabilities derives the capabilities from the registered handlers.
func (s *Server) defaultCapabilities() *defines.ServerCapabilities {
	handled := map[string]bool{}
	for _, method := range s.rpcServer.HandledMethods() {
		handled[method] = true
	}

	capabilities := &defines.ServerCapabilities{}

	if handled[DID_OPEN_METHOD] || handled[DID_CHANGE_METHOD] || handled[DID_CLOSE_METHOD] {
		full := defines.TextDocumentSyncKindFull
		sync := sumtype.Or2B[defines.TextDocumentSyncKind](defines.TextDocumentSyncOptions{
			OpenClose: defines.Bool(true),
			Change:    &full,
		})
		capabilities.TextDocumentSync = &sync
	}
	if handled[HOVER_METHOD] {
		capabilities.HoverProvider = defines.Enabled[defines.HoverOptions]()
	}
	if handled[COMPLETION_METHOD] {
		capabilities.CompletionProvider = &defines.CompletionOptions{}
		if handled[COMPLETION_RESOLVE_METHOD] {
			capabilities.CompletionProvider.ResolveProvider = defines.Bool(true)
		}
	}
	if handled[DECLARATION_METHOD] {
		declaration := sumtype.Or3A[bool, defines.DeclarationRegistrationOptions, defines.DeclarationOptions](true)
		capabilities.DeclarationProvider = &declaration
	}
	if handled[DEFINITION_METHOD] {
		capabilities.DefinitionProvider = defines.Enabled[defines.DefinitionOptions]()
	}
	if handled[REFERENCES_METHOD] {
		capabilities.ReferencesProvider = defines.Enabled[defines.ReferenceOptions]()
	}
	if handled[DOCUMENT_SYMBOL_METHOD] {
		capabilities.DocumentSymbolProvider = defines.Enabled[defines.DocumentSymbolOptions]()
	}
	if handled[WORKSPACE_SYMBOL_METHOD] {
		options := defines.WorkspaceSymbolOptions{}
		if handled[WORKSPACE_SYMBOL_RESOLVE_METHOD] {
			options.ResolveProvider = defines.Bool(true)
		}
		capabilities.WorkspaceSymbolProvider = defines.WithOptions(options)
	}
	if handled[EXECUTE_COMMAND_METHOD] {
		capabilities.ExecuteCommandProvider = &defines.ExecuteCommandOptions{Commands: []string{}}
	}
	return capabilities
}

// ServeStdio serves a single session on stdin/stdout (or the configured streams), it
// returns when the session ends.
func (s *Server) ServeStdio(input io.Reader, output io.Writer) {
	s.logger.Info().Msg("use stdio mode")
	s.rpcServer.ConnComeIn(NewStdio(input, output))
}

// ServeTCP accepts connections until ctx is done.
func (s *Server) ServeTCP(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.ServeListener(ctx, listener)
}

func (s *Server) ServeListener(ctx context.Context, listener net.Listener) error {
	s.logger.Info().Msgf("use socket mode: addr: %s", listener.Addr())

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		go s.rpcServer.ConnComeIn(conn)
	}
}

// WebsocketHandler returns an http.Handler starting a session for each websocket connection.
func (s *Server) WebsocketHandler() (http.Handler, error) {
	return jsonrpc.NewJsonRpcWebsocketServer(jsonrpc.JsonRpcWebsocketServerConfig{
		RpcServer:         s.rpcServer,
		MaxWebsocketPerIp: s.config.MaxWebsocketPerIp,
	})
}

// ServeWebsocket serves websocket connections until ctx is done.
func (s *Server) ServeWebsocket(ctx context.Context, addr string) error {
	handler, err := s.WebsocketHandler()
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	s.logger.Info().Msgf("use websocket mode: addr: %s", addr)
	err = httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Close closes all sessions.
func (s *Server) Close() {
	s.rpcServer.Close()
}
