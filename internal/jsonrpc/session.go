package jsonrpc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/inoxlang/lspcore/internal/lsp/defines"
	"github.com/inoxlang/lspcore/internal/ratelimit"
	"github.com/inoxlang/lspcore/internal/sumtype"
	"github.com/inoxlang/lspcore/internal/utils"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

type sessionKeyType struct{}
type requestIdKeyType struct{}

var (
	sessionKey   = sessionKeyType{}
	requestIdKey = requestIdKeyType{}
)

type Session struct {
	id     int
	server *Server
	ctx    context.Context
	cancel context.CancelCauseFunc
	logger zerolog.Logger

	conn      MessageReaderWriter
	writeLock sync.Mutex

	executors    map[ID]*executor
	executorLock sync.Mutex

	//notification handlers are executed one at a time in arrival order.
	notifications *serialQueue

	pending  *CorrelationTable
	progress *ProgressMultiplexer
	observer Observer

	requestWindow ratelimit.Window //nil if rate limiting is disabled.

	closed       atomic.Bool
	shuttingDown atomic.Bool

	callbackLock     sync.Mutex
	closedCallback   func(*Session)
	shutdownCallback func(*Session)
}

type executor struct {
	id     ID
	method string
	cancel context.CancelCauseFunc
}

func newSession(id int, server *Server, conn MessageReaderWriter) *Session {
	ctx, cancel := context.WithCancelCause(server.ctx)

	logger := server.logger.With().Int("session", id).Logger()

	s := &Session{
		id:            id,
		server:        server,
		ctx:           ctx,
		cancel:        cancel,
		logger:        logger,
		conn:          conn,
		executors:     map[ID]*executor{},
		notifications: newSerialQueue(logger),
		observer:      server.observer,
	}

	s.progress = NewProgressMultiplexer(logger, server.observer)
	s.pending = NewCorrelationTable(CorrelationTableConfig{
		IdStyle:           server.config.IdStyle,
		DefaultTimeout:    server.config.RequestTimeout,
		ClosedIdCacheSize: server.config.ClosedIdCacheSize,
		OnTerminal:        s.onRequestTerminated,
		Logger:            logger,
	})
	s.requestWindow = server.requestWindow(s.Client())

	return s
}

// Start runs the read loop until the connection is closed.
func (s *Session) Start() {
	defer s.Close()

	for {
		if continueLoop := s.handle(); !continueLoop {
			return
		}

		if s.closed.Load() {
			return
		}
	}
}

func (s *Session) handle() (continueLoop bool) {
	content, err := s.conn.ReadMessage()
	if err != nil {
		var respErr ResponseError
		if errors.As(err, &respErr) {
			//malformed headers: there is no id to respond to.
			s.logger.Warn().Err(err).Msg("failed to read message")
			return true
		}
		return s.handlerError(err)
	}

	if content == nil {
		return true
	}

	s.handleMessage(content)
	return true
}

func (s *Session) handleMessage(content []byte) {
	var msg incomingMessage

	if err := json.Unmarshal(content, &msg); err != nil {
		s.observer.MessageReceived(InvalidKind)

		//respond if the malformed message is a request whose id can be read.
		id := gjson.GetBytes(content, "id")
		if (id.Type == gjson.Number || id.Type == gjson.String) && gjson.GetBytes(content, "method").Exists() {
			var reqID ID
			if idErr := reqID.UnmarshalJSON([]byte(id.Raw)); idErr == nil {
				s.respond(reqID, nil, ParseError.WithMessage(err.Error()), false)
				return
			}
		}

		truncated, suffix := utils.Truncate(content, MAX_PARAMS_LOGGING_SIZE)
		s.logger.Warn().Err(err).Msgf("drop malformed message: [%s]%s", truncated, suffix)
		return
	}

	kind := msg.kind()
	s.observer.MessageReceived(kind)

	switch kind {
	case RequestKind:
		s.handleRequest(*msg.ID, msg.Jsonrpc, msg.Method, msg.Params)
	case NotificationKind:
		s.handleNotification(msg.Method, msg.Params)
	case ResponseKind:
		s.handleResponse(msg)
	default:
		truncated, suffix := utils.Truncate(content, MAX_PARAMS_LOGGING_SIZE)
		s.logger.Warn().Msgf("drop message that is neither a request, a response or a notification: [%s]%s", truncated, suffix)
	}
}

func (s *Session) handleRequest(id ID, version, method string, params json.RawMessage) {
	info, ok := s.server.methodInfo(method)

	sensitive := ok && info.Descriptor.SensitiveData
	s.logIncoming("Request", id.String(), method, params, sensitive)

	switch {
	case version != JSONRPC_VERSION:
		s.respond(id, nil, InvalidRequest.WithMessage("unsupported JSON-RPC version: "+version), false)
		return
	case !ok:
		s.respond(id, nil, MethodNotFound.WithMessage("method not found: "+method), false)
		return
	case !info.Descriptor.IsRequest():
		s.respond(id, nil, InvalidRequest.WithMessage(method+" is a notification"), false)
		return
	case s.IsShuttingDown() && method != EXIT_METHOD:
		s.respond(id, nil, InvalidRequest.WithMessage("session is shutting down"), false)
		return
	case !s.allowRequest(method):
		s.observer.RequestRateLimited(method)
		s.respond(id, nil, RequestFailed.WithMessage("rate limit exceeded"), false)
		return
	}

	args, err := decodeParams(info.Descriptor, params)
	if err != nil {
		s.respond(id, nil, InvalidParams.WithMessage(err.Error()), false)
		return
	}

	s.execute(info, id, args)
}

// allowRequest reports whether the rate limiting window accepts a request, notifications
// and responses are never limited.
func (s *Session) allowRequest(method string) bool {
	if s.requestWindow == nil {
		return true
	}
	return s.requestWindow.AllowRequest(ratelimit.NewRequestInfo(method, s.Client()), s.logger)
}

func (s *Session) handleNotification(method string, params json.RawMessage) {
	info, ok := s.server.methodInfo(method)

	sensitive := ok && info.Descriptor.SensitiveData
	if method != PROGRESS_METHOD {
		s.logIncoming("Notification", "", method, params, sensitive)
	}

	if !ok {
		if strings.HasPrefix(method, "$/") {
			s.logger.Debug().Msgf("ignore unsupported notification %s", method)
		} else {
			s.logger.Warn().Msgf("no handler for notification %s", method)
		}
		return
	}

	if info.Descriptor.IsRequest() {
		s.logger.Warn().Msgf("drop notification: %s is a request", method)
		return
	}

	args, err := decodeParams(info.Descriptor, params)
	if err != nil {
		s.logger.Warn().Err(err).Msgf("drop notification %s: invalid params", method)
		return
	}

	if info.inline {
		ctx := context.WithValue(s.ctx, sessionKey, s)
		if _, err := s.callHandler(ctx, info, args); err != nil {
			s.logger.Warn().Err(err).Msgf("error while handling notification %s", method)
		}
		return
	}

	s.notifications.push(func() {
		ctx := context.WithValue(s.ctx, sessionKey, s)
		if _, err := s.callHandler(ctx, info, args); err != nil {
			s.logger.Warn().Err(err).Msgf("error while handling notification %s", method)
		}
	})
}

func (s *Session) handleResponse(msg incomingMessage) {
	if msg.ID == nil {
		s.logger.Warn().Interface("error", msg.Error).Msg("drop response without id")
		return
	}
	id := *msg.ID

	var err error
	if msg.Error != nil {
		s.logger.Debug().Msgf("Response: [%s] error: %s", id, msg.Error)
		err = s.pending.Reject(id, *msg.Error)
	} else {
		s.logger.Debug().Msgf("Response: [%s]", id)
		err = s.pending.Resolve(id, msg.Result)
	}

	if err != nil {
		s.logger.Warn().Err(err).Msg("unexpected response")
	}
}

func decodeParams(desc *MethodDescriptor, raw json.RawMessage) (any, error) {
	params := desc.NewParams()
	if len(raw) == 0 || string(raw) == "null" {
		return params, nil
	}
	if err := json.Unmarshal(raw, params); err != nil {
		return nil, err
	}
	return params, nil
}

func (s *Session) logIncoming(kind string, id string, method string, params []byte, sensitive bool) {
	if sensitive {
		s.logger.Debug().Msgf("%s: [%s] [%s], content: ...", kind, id, method)
		return
	}
	truncated, suffix := utils.Truncate(params, MAX_PARAMS_LOGGING_SIZE)
	s.logger.Debug().Msgf("%s: [%s] [%s], content: [%s]%s", kind, id, method, truncated, suffix)
}

func GetSession(ctx context.Context) *Session {
	val := ctx.Value(sessionKey)
	if utils.IsNil(val) {
		return nil
	}
	return val.(*Session)
}

// RequestIdFromContext returns the id of the request being handled.
func RequestIdFromContext(ctx context.Context) (ID, bool) {
	id, ok := ctx.Value(requestIdKey).(ID)
	return id, ok
}

func (s *Session) registerExecutor(executor *executor) bool {
	s.executorLock.Lock()
	defer s.executorLock.Unlock()

	if _, ok := s.executors[executor.id]; ok {
		return false
	}
	s.executors[executor.id] = executor
	return true
}

func (s *Session) removeExecutor(executor *executor) {
	s.executorLock.Lock()
	defer s.executorLock.Unlock()

	if s.executors[executor.id] == executor {
		delete(s.executors, executor.id)
	}
}

func (s *Session) getExecutor(id ID) *executor {
	s.executorLock.Lock()
	defer s.executorLock.Unlock()
	return s.executors[id]
}

func (s *Session) cancelJob(id ID) {
	exec := s.getExecutor(id)
	if exec == nil {
		s.logger.Debug().Msgf("no running request with id %s to cancel", id)
		return
	}
	exec.cancel(ErrRequestCancelled)
	s.removeExecutor(exec)
}

// InFlight returns the number of incoming requests being handled.
func (s *Session) InFlight() int {
	s.executorLock.Lock()
	defer s.executorLock.Unlock()
	return len(s.executors)
}

func (s *Session) execute(info MethodInfo, id ID, args any) {
	ctx, cancel := context.WithCancelCause(s.ctx)
	ctx = context.WithValue(ctx, sessionKey, s)
	ctx = context.WithValue(ctx, requestIdKey, id)

	exec := &executor{
		id:     id,
		method: info.Descriptor.Name,
		cancel: cancel,
	}

	if !s.registerExecutor(exec) {
		cancel(nil)
		s.respond(id, nil, InvalidRequest.WithMessage(fmt.Sprintf("a request with id %s is already being handled", id)), false)
		return
	}

	s.observer.RequestHandlingStarted(exec.method)

	go func() {
		defer s.observer.RequestHandlingEnded(exec.method)
		defer cancel(nil)
		defer s.removeExecutor(exec)

		result, err := s.callHandler(ctx, info, args)

		if ctx.Err() != nil {
			if errors.Is(context.Cause(ctx), ErrSessionClosed) {
				return
			}
			result = nil
			err = RequestCancelled
		}

		s.respond(id, result, err, info.Descriptor.SensitiveData)
	}()
}

func (s *Session) callHandler(ctx context.Context, info MethodInfo, args any) (result any, err error) {
	defer func() {
		if e := recover(); e != nil {
			panicErr := utils.ConvertPanicValueToError(e)
			s.logger.Error().Err(panicErr).Str("method", info.Descriptor.Name).Str("stack", string(debug.Stack())).Msg("panic while handling message")

			result = nil
			err = InternalError.WithMessage(panicErr.Error())
		}
	}()

	return info.Handler(ctx, args)
}

// toResponseError converts an error returned by a handler.
func (s *Session) toResponseError(err error) *ResponseError {
	var respErr ResponseError
	var unhandled *sumtype.UnhandledAlternativeError

	switch {
	case errors.As(err, &respErr):
	case errors.As(err, &unhandled):
		s.logger.Error().Err(err).Msg("unhandled sum type alternative")
		respErr = InternalError.WithMessage(err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, ErrRequestCancelled):
		respErr = RequestCancelled
	default:
		respErr = RequestFailed.WithMessage(err.Error())
	}
	return &respErr
}

func (s *Session) respond(id ID, result any, err error, sensitive bool) {
	resp := ResponseMessage{
		BaseMessage: BaseMessage{Jsonrpc: JSONRPC_VERSION},
		ID:          id,
	}

	if err != nil {
		resp.Error = s.toResponseError(err)
	} else if utils.IsNil(result) {
		resp.Result = json.RawMessage("null")
	} else {
		b, marshalErr := json.Marshal(result)
		if marshalErr != nil {
			s.logger.Error().Err(marshalErr).Msgf("failed to marshal the result of request %s", id)
			resp.Error = s.toResponseError(InternalError.WithMessage(marshalErr.Error()))
		} else {
			resp.Result = b
		}
	}

	if writeErr := s.write(resp, sensitive); writeErr != nil {
		s.handlerError(writeErr)
	}
}

func (s *Session) write(resp ResponseMessage, sensitive bool) error {
	res, err := json.Marshal(resp)
	if err != nil {
		return err
	}

	if sensitive {
		s.logger.Debug().Msgf("Response: [%s] res: ...", resp.ID)
	} else {
		truncated, suffix := utils.Truncate(res, MAX_PARAMS_LOGGING_SIZE)
		s.logger.Debug().Msgf("Response: [%s] res: [%s]%s", resp.ID, truncated, suffix)
	}

	return s.writeMessage(res)
}

func (s *Session) writeMessage(msg []byte) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}

	s.writeLock.Lock()
	defer s.writeLock.Unlock()
	return s.conn.WriteMessage(msg)
}

// Notify sends a notification to the remote side.
func (s *Session) Notify(method string, params any) error {
	notif := NotificationMessage{
		BaseMessage: BaseMessage{Jsonrpc: JSONRPC_VERSION},
		Method:      method,
	}

	if !utils.IsNil(params) {
		b, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("failed to marshal the params of %s: %w", method, err)
		}
		notif.Params = b
	}

	notifBytes, err := json.Marshal(notif)
	if err != nil {
		return err
	}

	if method != PROGRESS_METHOD {
		truncated, suffix := utils.Truncate(notifBytes, MAX_PARAMS_LOGGING_SIZE)
		s.logger.Debug().Msgf("Notification: [%s]%s", truncated, suffix)
	}

	return s.writeMessage(notifBytes)
}

type CallOptions struct {
	//if set the request streams its partial results to this callback. The token
	//is the one in the params if set, else it is derived from the request id.
	OnPartialResult ProgressCallback

	//if set work done progress is reported to this callback.
	OnWorkDone ProgressCallback

	//overrides the default timeout of the session, negative values disable the timeout.
	Timeout time.Duration
}

// Issue sends a request and returns its handle. params should be a pointer if
// progress callbacks are set so that the tokens can be set.
func (s *Session) Issue(desc *MethodDescriptor, params any, opts CallOptions) (*PendingRequest, error) {
	if s.closed.Load() {
		return nil, ErrSessionClosed
	}

	var issueOpts []IssueOption
	if opts.Timeout > 0 {
		issueOpts = append(issueOpts, WithTimeout(opts.Timeout))
	} else if opts.Timeout < 0 {
		issueOpts = append(issueOpts, WithTimeout(0))
	}

	req, err := s.pending.Issue(desc, params, issueOpts...)
	if err != nil {
		return nil, err
	}

	fail := func(err error) (*PendingRequest, error) {
		s.pending.Reject(req.ID, err)
		return nil, err
	}

	if opts.OnPartialResult != nil {
		carrier, ok := params.(defines.PartialResultCarrier)
		if !ok || !desc.SupportsPartialResult {
			return fail(fmt.Errorf("method %s does not support partial results", desc.Name))
		}
		token := PartialResultTokenFor(req.ID)
		if t := carrier.GetPartialResultToken(); t != nil && t.IsSet() {
			token = *t
		}
		carrier.SetPartialResultToken(token)

		if err := s.subscribe(req, token, PartialResultProgress, opts.OnPartialResult); err != nil {
			return fail(err)
		}
	}

	if opts.OnWorkDone != nil {
		carrier, ok := params.(defines.WorkDoneProgressCarrier)
		if !ok || !desc.SupportsWorkDone {
			return fail(fmt.Errorf("method %s does not support work done progress", desc.Name))
		}
		token := WorkDoneTokenFor(req.ID)
		if t := carrier.GetWorkDoneToken(); t != nil && t.IsSet() {
			token = *t
		}
		carrier.SetWorkDoneToken(token)

		if err := s.subscribe(req, token, WorkDoneProgress, opts.OnWorkDone); err != nil {
			return fail(err)
		}
	}

	msg := RequestMessage{
		BaseMessage: BaseMessage{Jsonrpc: JSONRPC_VERSION},
		ID:          req.ID,
		Method:      desc.Name,
	}

	if !utils.IsNil(params) {
		b, err := json.Marshal(params)
		if err != nil {
			return fail(fmt.Errorf("failed to marshal the params of %s: %w", desc.Name, err))
		}
		msg.Params = b
	}

	reqBytes, err := json.Marshal(msg)
	if err != nil {
		return fail(err)
	}

	s.logOutgoingRequest(desc, reqBytes)

	if err := s.writeMessage(reqBytes); err != nil {
		return fail(err)
	}

	s.observer.RequestIssued(desc.Name)
	return req, nil
}

func (s *Session) logOutgoingRequest(desc *MethodDescriptor, reqBytes []byte) {
	if desc.SensitiveData {
		s.logger.Debug().Msgf("Outgoing Request: [%s] ...", desc.Name)
		return
	}
	truncated, suffix := utils.Truncate(reqBytes, MAX_PARAMS_LOGGING_SIZE)
	s.logger.Debug().Msgf("Outgoing Request: [%s]%s", truncated, suffix)
}

func (s *Session) subscribe(req *PendingRequest, token ProgressToken, kind ProgressKind, callback ProgressCallback) error {
	sub, err := s.progress.Subscribe(token, kind, callback)
	if err != nil {
		return err
	}
	if !s.pending.attach(req.ID, sub) {
		s.progress.Unsubscribe(sub)
		return fmt.Errorf("request %s is no longer outstanding", req.ID)
	}
	return nil
}

// Call sends a request and waits for its response. If ctx is done first the request is
// cancelled. Partial results are all delivered before Call returns.
func (s *Session) Call(ctx context.Context, desc *MethodDescriptor, params any, opts CallOptions) (json.RawMessage, error) {
	req, err := s.Issue(desc, params, opts)
	if err != nil {
		return nil, err
	}

	result, err := req.Wait(ctx)
	if ctx.Err() != nil && req.State() == Sent {
		s.Cancel(req.ID)
		return nil, ctx.Err()
	}

	for _, sub := range req.Subscriptions() {
		select {
		case <-sub.Flushed():
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return result, err
}

// Cancel cancels an outstanding outgoing request and notifies the remote side.
func (s *Session) Cancel(id ID) error {
	if _, ok := s.pending.Get(id); !ok {
		return s.pending.Cancel(id)
	}
	if err := s.pending.Cancel(id); err != nil {
		return err
	}
	s.sendCancelRequest(id)
	return nil
}

func (s *Session) sendCancelRequest(id ID) {
	if err := s.Notify(CANCEL_REQUEST_METHOD, defines.CancelParams{ID: id}); err != nil {
		s.logger.Debug().Err(err).Msgf("failed to send %s for request %s", CANCEL_REQUEST_METHOD, id)
	}
}

func (s *Session) onRequestTerminated(req *PendingRequest) {
	for _, sub := range req.Subscriptions() {
		s.progress.Unsubscribe(sub)
	}

	s.observer.RequestTerminated(req.Method.Name, req.State())

	if errors.Is(req.Err(), ErrRequestTimedOut) {
		s.logger.Warn().Msgf("request %s (%s) timed out", req.ID, req.Method.Name)
		s.sendCancelRequest(req.ID)
	}
}

func (s *Session) handlerError(err error) (continueLoop bool) {
	continueLoop = true

	isEof := errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
	isWebsocketClose := websocket.IsUnexpectedCloseError(err) || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
	isClosed := errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) || errors.Is(err, ErrSessionClosed)

	var opErr *net.OpError
	isNetReadErr := errors.As(err, &opErr) && opErr.Op == "read"

	if isEof || isWebsocketClose || isClosed || isNetReadErr {
		continueLoop = false
		s.logger.Debug().Err(err).Msgf("connection of client <%s> is closed", s.Client())
		return
	}

	if errors.Is(err, ErrContentTooLarge) {
		//the rest of the stream cannot be resynchronized.
		continueLoop = false
	}

	s.logger.Error().Err(err).Msgf("error for client <%s>", s.Client())
	return
}

func (s *Session) ID() int {
	return s.id
}

func (s *Session) Context() context.Context {
	return s.ctx
}

func (s *Session) Logger() zerolog.Logger {
	return s.logger
}

func (s *Session) Server() *Server {
	return s.server
}

func (s *Session) Registry() *Registry {
	return s.server.registry
}

func (s *Session) Pending() *CorrelationTable {
	return s.pending
}

func (s *Session) Progress() *ProgressMultiplexer {
	return s.progress
}

// Client returns a description of the remote side.
func (s *Session) Client() string {
	if c, ok := s.conn.(interface{ Client() string }); ok {
		return c.Client()
	}
	return "(unknown)"
}

func (s *Session) SetClosedCallbackFn(fn func(session *Session)) {
	s.callbackLock.Lock()
	defer s.callbackLock.Unlock()

	if s.closedCallback != nil {
		panic(errors.New("closed callback function already set"))
	}
	s.closedCallback = fn
}

func (s *Session) SetShutdownCallbackFn(fn func(session *Session)) {
	s.callbackLock.Lock()
	defer s.callbackLock.Unlock()

	if s.shutdownCallback != nil {
		panic(errors.New("shutdown callback function already set"))
	}
	s.shutdownCallback = fn
}

func (s *Session) IsShuttingDown() bool {
	return s.shuttingDown.Load()
}

func (s *Session) Closed() bool {
	return s.closed.Load()
}

// Shutdown makes the session refuse all requests except exit, the shutdown
// callback is called in another goroutine.
func (s *Session) Shutdown() error {
	if !s.shuttingDown.CompareAndSwap(false, true) {
		return ErrAlreadyShuttingDown
	}

	s.callbackLock.Lock()
	callbackFn := s.shutdownCallback
	s.shutdownCallback = nil
	s.callbackLock.Unlock()

	if callbackFn != nil {
		go func(session *Session) {
			defer utils.RecoverAndLog(s.logger, "panic in shutdown callback")
			callbackFn(session)
		}(s)
	}
	return nil
}

// Close shutdowns the session, closes the connection and cancels the executors
// and the outstanding outgoing requests.
func (s *Session) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return ErrSessionClosed
	}

	_ = s.Shutdown()

	if err := s.conn.Close(); err != nil {
		s.logger.Debug().Err(err).Msg("close error")
	}

	s.cancel(ErrSessionClosed)

	s.pending.CancelAll(ErrSessionClosed)
	s.progress.UnsubscribeAll()
	s.notifications.close()

	s.server.removeSession(s.id)

	s.callbackLock.Lock()
	callbackFn := s.closedCallback
	s.closedCallback = nil
	s.callbackLock.Unlock()

	if callbackFn != nil {
		go func(session *Session) {
			defer utils.RecoverAndLog(s.logger, "panic in closed callback")
			callbackFn(session)
		}(s)
	}
	return nil
}
