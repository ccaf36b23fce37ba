package lsp

import (
	"context"
	"sync"

	"github.com/bep/debounce"
	"github.com/inoxlang/lspcore/internal/lsp/defines"
)

// A WorkDoneReporter reports the progress of a server-side operation. Reports are
// debounced: only the last report of a burst is sent. A reporter created without
// token (the client supports neither request tokens nor server initiated progress)
// does nothing.
type WorkDoneReporter struct {
	session *Session
	token   defines.ProgressToken
	noop    bool

	ctx      context.Context
	cancelFn context.CancelFunc
	debounce func(f func())

	lock          sync.Mutex
	ended         bool
	pendingReport *defines.WorkDoneProgressReport
}

type WorkDoneOptions struct {
	Title       string
	Message     string
	Cancellable bool
	Percentage  *uint32
}

// BeginWorkDone starts reporting work done progress. The token of the request is used if the
// client sent one, otherwise a token is created if the client supports server initiated progress.
// The context of the reporter is cancelled by window/workDoneProgress/cancel or End.
func (s *Session) BeginWorkDone(ctx context.Context, params defines.WorkDoneProgressCarrier, opts WorkDoneOptions) (*WorkDoneReporter, error) {
	reporterCtx, cancel := context.WithCancel(ctx)

	r := &WorkDoneReporter{
		session:  s,
		ctx:      reporterCtx,
		cancelFn: cancel,
		debounce: debounce.New(s.server.config.ProgressReportDebounce),
	}

	switch {
	case params != nil && params.GetWorkDoneToken() != nil && params.GetWorkDoneToken().IsSet():
		r.token = *params.GetWorkDoneToken()
	case s.Capabilities().ClientWorkDoneProgress && s.server.methods.WorkDoneProgressCreate.Registered():
		token, err := s.CreateWorkDoneProgress(ctx)
		if err != nil {
			cancel()
			return nil, err
		}
		r.token = token
	default:
		r.noop = true
		return r, nil
	}

	if err := s.addReporter(r); err != nil {
		cancel()
		return nil, err
	}

	begin := defines.NewWorkDoneProgressBegin(opts.Title)
	begin.Message = opts.Message
	begin.Percentage = opts.Percentage
	if opts.Cancellable {
		begin.Cancellable = defines.Bool(true)
	}

	if err := s.sendProgress(r.token, begin); err != nil {
		r.abort()
		return nil, err
	}
	return r, nil
}

func (r *WorkDoneReporter) Token() defines.ProgressToken {
	return r.token
}

// Context is done once the client cancelled the progress or once the reporter ended.
func (r *WorkDoneReporter) Context() context.Context {
	return r.ctx
}

func (r *WorkDoneReporter) IsNoop() bool {
	return r.noop
}

// Report queues a report, it is sent after the debounce delay unless another report replaces it.
func (r *WorkDoneReporter) Report(message string, percentage *uint32) {
	if r.noop {
		return
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	if r.ended {
		return
	}

	report := defines.NewWorkDoneProgressReport(message, percentage)
	r.pendingReport = &report
	r.debounce(r.flush)
}

func (r *WorkDoneReporter) flush() {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.flushLocked()
}

func (r *WorkDoneReporter) flushLocked() {
	if r.ended || r.pendingReport == nil {
		return
	}
	report := *r.pendingReport
	r.pendingReport = nil

	if err := r.session.sendProgress(r.token, report); err != nil {
		r.session.logger.Debug().Err(err).Msgf("failed to send progress report for %s", r.token)
	}
}

// End sends the queued report if any and ends the progress, later calls do nothing.
func (r *WorkDoneReporter) End(message string) {
	if r.noop {
		r.cancelFn()
		return
	}

	r.lock.Lock()
	if r.ended {
		r.lock.Unlock()
		return
	}
	r.flushLocked()
	r.ended = true

	err := r.session.sendProgress(r.token, defines.NewWorkDoneProgressEnd(message))
	r.lock.Unlock()

	if err != nil {
		r.session.logger.Debug().Err(err).Msgf("failed to end progress %s", r.token)
	}
	r.session.removeReporter(r)
	r.cancelFn()
}

// abort stops the reporter without sending an end notification.
func (r *WorkDoneReporter) abort() {
	r.lock.Lock()
	r.ended = true
	r.pendingReport = nil
	r.lock.Unlock()

	r.session.removeReporter(r)
	r.cancelFn()
}
