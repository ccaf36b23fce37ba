package jsonrpc

// An Observer is notified of the activity of sessions, it is implemented by the
// metrics collectors. Implementations should not block.
type Observer interface {
	MessageReceived(kind MessageKind)
	RequestHandlingStarted(method string)
	RequestHandlingEnded(method string)
	RequestIssued(method string)
	RequestTerminated(method string, state RequestState)
	ProgressDropped(reason string)
	RequestRateLimited(method string)
}

type noopObserver struct{}

func (noopObserver) MessageReceived(kind MessageKind)                    {}
func (noopObserver) RequestHandlingStarted(method string)                {}
func (noopObserver) RequestHandlingEnded(method string)                  {}
func (noopObserver) RequestIssued(method string)                         {}
func (noopObserver) RequestTerminated(method string, state RequestState) {}
func (noopObserver) ProgressDropped(reason string)                       {}
func (noopObserver) RequestRateLimited(method string)                    {}
