package lsp

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/inoxlang/lspcore/internal/jsonrpc"
	"github.com/inoxlang/lspcore/internal/lsp/defines"
	"github.com/rs/zerolog"
)

type SessionState int32

const (
	NotInitialized SessionState = iota
	Initializing
	Initialized
	ShuttingDown
)

func (s SessionState) String() string {
	switch s {
	case NotInitialized:
		return "not-initialized"
	case Initializing:
		return "initializing"
	case Initialized:
		return "initialized"
	default:
		return "shutting-down"
	}
}

// A Session is the LSP state of a JSON-RPC session: its lifecycle state and
// the capabilities negotiated during the initialize request.
type Session struct {
	server *Server
	rpc    *jsonrpc.Session
	logger zerolog.Logger

	state        atomic.Int32
	capabilities atomic.Pointer[EffectiveCapabilities]
	clientInfo   atomic.Pointer[defines.ClientInfo]

	reportersLock sync.Mutex
	reporters     map[defines.ProgressToken]*WorkDoneReporter
}

func newSession(server *Server, rpc *jsonrpc.Session) *Session {
	return &Session{
		server:    server,
		rpc:       rpc,
		logger:    rpc.Logger(),
		reporters: map[defines.ProgressToken]*WorkDoneReporter{},
	}
}

func (s *Session) RPC() *jsonrpc.Session {
	return s.rpc
}

func (s *Session) Logger() zerolog.Logger {
	return s.logger
}

func (s *Session) Server() *Server {
	return s.server
}

func (s *Session) State() SessionState {
	return SessionState(s.state.Load())
}

func (s *Session) setState(state SessionState) {
	s.state.Store(int32(state))
}

func (s *Session) compareAndSwapState(old, new SessionState) bool {
	return s.state.CompareAndSwap(int32(old), int32(new))
}

func (s *Session) checkInitialized() error {
	switch s.State() {
	case Initialized:
		return nil
	case ShuttingDown:
		return jsonrpc.InvalidRequest.WithMessage("server is shutting down")
	default:
		return jsonrpc.ServerNotInitialized
	}
}

// ClientInfo returns nil if the client did not send its name.
func (s *Session) ClientInfo() *defines.ClientInfo {
	return s.clientInfo.Load()
}

func (s *Session) setClientInfo(info *defines.ClientInfo) {
	if info != nil {
		info := *info
		s.clientInfo.Store(&info)
	}
}

// Capabilities returns the effective capabilities of the session, all features are
// disabled before the initialize request.
func (s *Session) Capabilities() *EffectiveCapabilities {
	if capabilities := s.capabilities.Load(); capabilities != nil {
		return capabilities
	}
	return Negotiate(nil, nil, nil)
}

func (s *Session) Methods() *Methods {
	return s.server.methods
}

// ShowMessage sends a window/showMessage notification.
func (s *Session) ShowMessage(typ defines.MessageType, message string) error {
	return jsonrpc.SendNotification(s.rpc, s.server.methods.ShowMessage, defines.ShowMessageParams{
		Type:    typ,
		Message: message,
	})
}

// LogMessage sends a window/logMessage notification.
func (s *Session) LogMessage(typ defines.MessageType, message string) error {
	return jsonrpc.SendNotification(s.rpc, s.server.methods.LogMessage, defines.LogMessageParams{
		Type:    typ,
		Message: message,
	})
}

// ApplyEdit asks the client to apply a workspace edit.
func (s *Session) ApplyEdit(ctx context.Context, label string, edit defines.WorkspaceEdit) (defines.ApplyWorkspaceEditResult, error) {
	if !s.Capabilities().ApplyEdit {
		return defines.ApplyWorkspaceEditResult{}, fmt.Errorf("client does not support %s", APPLY_EDIT_METHOD)
	}

	return jsonrpc.SendRequest(ctx, s.rpc, s.server.methods.ApplyEdit, defines.ApplyWorkspaceEditParams{
		Label: label,
		Edit:  edit,
	}, jsonrpc.CallOptions{})
}

// SendPartialResult sends a batch of partial results for the token of an incoming request.
func (s *Session) SendPartialResult(token defines.ProgressToken, value any) error {
	if !token.IsSet() {
		return fmt.Errorf("cannot send partial results with an unset token")
	}
	return s.sendProgress(token, value)
}

func (s *Session) sendProgress(token defines.ProgressToken, value any) error {
	raw, err := defines.NewLSPAny(value)
	if err != nil {
		return err
	}
	return s.rpc.Notify(jsonrpc.PROGRESS_METHOD, defines.ProgressParams{Token: token, Value: raw})
}

// CreateWorkDoneProgress asks the client to create a work done progress and returns its token.
func (s *Session) CreateWorkDoneProgress(ctx context.Context) (defines.ProgressToken, error) {
	methods := s.server.methods

	if !methods.WorkDoneProgressCreate.Registered() {
		return defines.ProgressToken{}, fmt.Errorf("%s is not supported by protocol version %s", WORK_DONE_PROGRESS_CREATE_METHOD, methods.ProtocolVersion)
	}
	if !s.Capabilities().ClientWorkDoneProgress {
		return defines.ProgressToken{}, fmt.Errorf("client does not support server initiated progress")
	}

	token := defines.NewString(uuid.NewString())
	_, err := jsonrpc.SendRequest(ctx, s.rpc, methods.WorkDoneProgressCreate, defines.WorkDoneProgressCreateParams{Token: token}, jsonrpc.CallOptions{})
	if err != nil {
		return defines.ProgressToken{}, fmt.Errorf("failed to create work done progress: %w", err)
	}
	return token, nil
}

// RegisterCapability dynamically registers a feature, the registration is applied to
// the effective capabilities once the client accepts it.
func (s *Session) RegisterCapability(ctx context.Context, method string, options any) (defines.Registration, error) {
	capabilities := s.Capabilities()

	if feature, ok := capabilities.Feature(method); ok && !feature.DynamicRegistration {
		return defines.Registration{}, fmt.Errorf("client does not support dynamic registration of %s", method)
	}

	reg := defines.Registration{
		ID:     uuid.NewString(),
		Method: method,
	}
	if options != nil {
		raw, err := defines.NewLSPAny(options)
		if err != nil {
			return defines.Registration{}, err
		}
		reg.RegisterOptions = raw
	}

	_, err := jsonrpc.SendRequest(ctx, s.rpc, s.server.methods.RegisterCapability, defines.RegistrationParams{
		Registrations: []defines.Registration{reg},
	}, jsonrpc.CallOptions{})
	if err != nil {
		return defines.Registration{}, fmt.Errorf("failed to register %s: %w", method, err)
	}

	if err := capabilities.ApplyRegistration(reg); err != nil {
		return defines.Registration{}, err
	}
	return reg, nil
}

// UnregisterCapability removes a dynamic registration on both sides.
func (s *Session) UnregisterCapability(ctx context.Context, reg defines.Registration) error {
	unreg := defines.Unregistration{ID: reg.ID, Method: reg.Method}

	_, err := jsonrpc.SendRequest(ctx, s.rpc, s.server.methods.UnregisterCapability, defines.UnregistrationParams{
		Unregisterations: []defines.Unregistration{unreg},
	}, jsonrpc.CallOptions{})
	if err != nil {
		return fmt.Errorf("failed to unregister %s: %w", reg.Method, err)
	}

	return s.Capabilities().ApplyUnregistration(unreg)
}

func (s *Session) addReporter(r *WorkDoneReporter) error {
	s.reportersLock.Lock()
	defer s.reportersLock.Unlock()

	if _, ok := s.reporters[r.token]; ok {
		return fmt.Errorf("%w: %s", jsonrpc.ErrTokenAlreadyInUse, r.token)
	}
	s.reporters[r.token] = r
	return nil
}

func (s *Session) removeReporter(r *WorkDoneReporter) {
	s.reportersLock.Lock()
	defer s.reportersLock.Unlock()

	if s.reporters[r.token] == r {
		delete(s.reporters, r.token)
	}
}

func (s *Session) cancelReporter(token defines.ProgressToken) bool {
	s.reportersLock.Lock()
	r, ok := s.reporters[token]
	s.reportersLock.Unlock()

	if ok {
		r.cancelFn()
	}
	return ok
}

func (s *Session) endReporters() {
	s.reportersLock.Lock()
	reporters := make([]*WorkDoneReporter, 0, len(s.reporters))
	for _, r := range s.reporters {
		reporters = append(reporters, r)
	}
	s.reportersLock.Unlock()

	for _, r := range reporters {
		r.abort()
	}
}
