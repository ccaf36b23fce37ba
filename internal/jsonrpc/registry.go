package jsonrpc

import (
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/inoxlang/lspcore/internal/lsp/defines"
)

var (
	workDoneCarrierType      = reflect.TypeOf((*defines.WorkDoneProgressCarrier)(nil)).Elem()
	partialResultCarrierType = reflect.TypeOf((*defines.PartialResultCarrier)(nil)).Elem()
)

type Direction int

const (
	Request Direction = iota + 1
	Notification
)

func (d Direction) String() string {
	if d == Request {
		return "request"
	}
	return "notification"
}

// Origin is the side sending the method.
type Origin int

const (
	ClientToServer Origin = iota
	ServerToClient
	BothWays
)

func (o Origin) String() string {
	switch o {
	case ClientToServer:
		return "client->server"
	case ServerToClient:
		return "server->client"
	default:
		return "both"
	}
}

// A MethodDescriptor binds a method name to the Go types of its params and
// result. Descriptors are immutable once registered.
type MethodDescriptor struct {
	Name      string
	Direction Direction
	Origin    Origin

	ParamsType reflect.Type
	ResultType reflect.Type //nil for notifications

	//type of the values streamed with the partial result token, nil if the method has no partial results.
	PartialResultType reflect.Type

	RequiresResponse      bool
	SupportsWorkDone      bool
	SupportsPartialResult bool

	//version of the protocol that introduced the method (semver), empty if unknown.
	Since string

	//if true the params and the result are not logged.
	SensitiveData bool
}

// NewParams returns a pointer to a new zero value of the params type.
func (d *MethodDescriptor) NewParams() any {
	return reflect.New(d.ParamsType).Interface()
}

// NewResult returns a pointer to a new zero value of the result type, or nil for notifications.
func (d *MethodDescriptor) NewResult() any {
	if d.ResultType == nil {
		return nil
	}
	return reflect.New(d.ResultType).Interface()
}

func (d *MethodDescriptor) IsRequest() bool {
	return d.Direction == Request
}

type MethodOption func(desc *MethodDescriptor)

func WithOrigin(origin Origin) MethodOption {
	return func(desc *MethodDescriptor) {
		desc.Origin = origin
	}
}

func Since(version string) MethodOption {
	return func(desc *MethodDescriptor) {
		desc.Since = version
	}
}

func SensitiveData() MethodOption {
	return func(desc *MethodDescriptor) {
		desc.SensitiveData = true
	}
}

// WithPartialResult sets the type of the partial results streamed by the method.
func WithPartialResult[T any]() MethodOption {
	return func(desc *MethodDescriptor) {
		desc.PartialResultType = reflect.TypeOf((*T)(nil)).Elem()
	}
}

// RequestType is a typed token for a request method.
type RequestType[P, R any] struct {
	desc *MethodDescriptor
}

func (t RequestType[P, R]) Method() string {
	return t.desc.Name
}

func (t RequestType[P, R]) Descriptor() *MethodDescriptor {
	return t.desc
}

// Registered returns false for the zero value.
func (t RequestType[P, R]) Registered() bool {
	return t.desc != nil
}

// NotificationType is a typed token for a notification method.
type NotificationType[P any] struct {
	desc *MethodDescriptor
}

func (t NotificationType[P]) Method() string {
	return t.desc.Name
}

func (t NotificationType[P]) Descriptor() *MethodDescriptor {
	return t.desc
}

func (t NotificationType[P]) Registered() bool {
	return t.desc != nil
}

// A Registry maps method names to their descriptors. It is explicitly created
// and passed around: sessions of different servers do not share registries.
type Registry struct {
	lock    sync.RWMutex
	methods map[string]*MethodDescriptor
	sealed  bool
}

func NewRegistry() *Registry {
	return &Registry{methods: map[string]*MethodDescriptor{}}
}

// Register registers a copy of desc, the returned pointer is the one returned by Lookup.
func (r *Registry) Register(desc MethodDescriptor) (*MethodDescriptor, error) {
	if desc.Name == "" {
		return nil, fmt.Errorf("method descriptor has no name")
	}
	if desc.ParamsType == nil {
		return nil, fmt.Errorf("method %q has no params type", desc.Name)
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	if r.sealed {
		return nil, fmt.Errorf("%w: cannot register %q", ErrRegistrySealed, desc.Name)
	}
	if _, ok := r.methods[desc.Name]; ok {
		return nil, &DuplicateMethodError{Method: desc.Name}
	}

	if desc.Direction == Request {
		desc.RequiresResponse = true
	} else {
		desc.Direction = Notification
		desc.RequiresResponse = false
		desc.ResultType = nil
	}

	paramsPtr := reflect.PointerTo(desc.ParamsType)
	desc.SupportsWorkDone = paramsPtr.Implements(workDoneCarrierType)
	desc.SupportsPartialResult = desc.Direction == Request && paramsPtr.Implements(partialResultCarrierType)
	if desc.SupportsPartialResult && desc.PartialResultType == nil {
		desc.PartialResultType = desc.ResultType
	}
	if !desc.SupportsPartialResult {
		desc.PartialResultType = nil
	}

	stored := new(MethodDescriptor)
	*stored = desc
	r.methods[desc.Name] = stored
	return stored, nil
}

// Seal makes all later registrations fail.
func (r *Registry) Seal() {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.sealed = true
}

func (r *Registry) Sealed() bool {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return r.sealed
}

func (r *Registry) Lookup(name string) (*MethodDescriptor, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	desc, ok := r.methods[name]
	return desc, ok
}

// Methods returns the descriptors sorted by name.
func (r *Registry) Methods() []*MethodDescriptor {
	r.lock.RLock()
	defer r.lock.RUnlock()

	descs := make([]*MethodDescriptor, 0, len(r.methods))
	for _, desc := range r.methods {
		descs = append(descs, desc)
	}
	sort.Slice(descs, func(i, j int) bool {
		return descs[i].Name < descs[j].Name
	})
	return descs
}

func (r *Registry) Len() int {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return len(r.methods)
}

func RegisterRequest[P, R any](r *Registry, name string, opts ...MethodOption) (RequestType[P, R], error) {
	desc := MethodDescriptor{
		Name:       name,
		Direction:  Request,
		ParamsType: reflect.TypeOf((*P)(nil)).Elem(),
		ResultType: reflect.TypeOf((*R)(nil)).Elem(),
	}
	for _, opt := range opts {
		opt(&desc)
	}

	stored, err := r.Register(desc)
	if err != nil {
		return RequestType[P, R]{}, err
	}
	return RequestType[P, R]{desc: stored}, nil
}

func RegisterNotification[P any](r *Registry, name string, opts ...MethodOption) (NotificationType[P], error) {
	desc := MethodDescriptor{
		Name:       name,
		Direction:  Notification,
		ParamsType: reflect.TypeOf((*P)(nil)).Elem(),
	}
	for _, opt := range opts {
		opt(&desc)
	}

	stored, err := r.Register(desc)
	if err != nil {
		return NotificationType[P]{}, err
	}
	return NotificationType[P]{desc: stored}, nil
}

// MustRegisterRequest is RegisterRequest for static initialization, it panics on error.
func MustRegisterRequest[P, R any](r *Registry, name string, opts ...MethodOption) RequestType[P, R] {
	t, err := RegisterRequest[P, R](r, name, opts...)
	if err != nil {
		panic(err)
	}
	return t
}

// MustRegisterNotification is RegisterNotification for static initialization, it panics on error.
func MustRegisterNotification[P any](r *Registry, name string, opts ...MethodOption) NotificationType[P] {
	t, err := RegisterNotification[P](r, name, opts...)
	if err != nil {
		panic(err)
	}
	return t
}

// RequestTypeOf returns the typed token of a registered request, it fails if the
// registered types differ from P and R.
func RequestTypeOf[P, R any](r *Registry, name string) (RequestType[P, R], error) {
	desc, ok := r.Lookup(name)
	if !ok {
		return RequestType[P, R]{}, fmt.Errorf("method %q is not registered", name)
	}
	if desc.Direction != Request {
		return RequestType[P, R]{}, fmt.Errorf("%w: %s", ErrNotARequest, name)
	}
	if desc.ParamsType != reflect.TypeOf((*P)(nil)).Elem() || desc.ResultType != reflect.TypeOf((*R)(nil)).Elem() {
		return RequestType[P, R]{}, fmt.Errorf("method %q is registered with params %s and result %s", name, desc.ParamsType, desc.ResultType)
	}
	return RequestType[P, R]{desc: desc}, nil
}

// NotificationTypeOf returns the typed token of a registered notification.
func NotificationTypeOf[P any](r *Registry, name string) (NotificationType[P], error) {
	desc, ok := r.Lookup(name)
	if !ok {
		return NotificationType[P]{}, fmt.Errorf("method %q is not registered", name)
	}
	if desc.Direction != Notification {
		return NotificationType[P]{}, fmt.Errorf("%w: %s", ErrNotANotification, name)
	}
	if desc.ParamsType != reflect.TypeOf((*P)(nil)).Elem() {
		return NotificationType[P]{}, fmt.Errorf("method %q is registered with params %s", name, desc.ParamsType)
	}
	return NotificationType[P]{desc: desc}, nil
}
