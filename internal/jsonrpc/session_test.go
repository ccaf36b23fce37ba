package jsonrpc

import (
	"bufio"
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/inoxlang/lspcore/internal/lsp/defines"
	"github.com/inoxlang/lspcore/internal/ratelimit"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testMethods struct {
	echo       RequestType[testParams, testResult]
	slow       RequestType[testParams, testResult]
	fail       RequestType[testParams, testResult]
	panics     RequestType[defines.NoParams, any]
	references RequestType[defines.ReferenceParams, []defines.Location]
	hover      RequestType[defines.HoverParams, *defines.Hover]
	notify     NotificationType[testParams]
}

func newTestRegistry() (*Registry, testMethods) {
	registry := NewRegistry()
	return registry, testMethods{
		echo:       MustRegisterRequest[testParams, testResult](registry, "test/echo", WithOrigin(BothWays)),
		slow:       MustRegisterRequest[testParams, testResult](registry, "test/slow"),
		fail:       MustRegisterRequest[testParams, testResult](registry, "test/fail"),
		panics:     MustRegisterRequest[defines.NoParams, any](registry, "test/panic"),
		references: MustRegisterRequest[defines.ReferenceParams, []defines.Location](registry, "textDocument/references"),
		hover:      MustRegisterRequest[defines.HoverParams, *defines.Hover](registry, "textDocument/hover"),
		notify:     MustRegisterNotification[testParams](registry, "test/notify", SensitiveData()),
	}
}

func newTestServer(t *testing.T, setup func(server *Server, m testMethods)) (*Server, testMethods) {
	registry, methods := newTestRegistry()

	server, err := NewServer(context.Background(), ServerConfig{
		Registry: registry,
		Logger:   zerolog.Nop(),
	})
	require.NoError(t, err)

	require.NoError(t, HandleRequest(server, methods.echo, func(ctx context.Context, params *testParams) (testResult, error) {
		return testResult{Text: params.Text}, nil
	}))

	if setup != nil {
		setup(server, methods)
	}
	return server, methods
}

func startSession(t *testing.T, server *Server, conn MessageReaderWriter) *Session {
	created := make(chan *Session, 1)
	go server.MsgConnComeIn(conn, func(session *Session) {
		created <- session
	})

	select {
	case session := <-created:
		return session
	case <-time.After(2 * time.Second):
		require.FailNow(t, "session not created")
		return nil
	}
}

// newSessionPair returns two connected sessions, setupServer registers the handlers of the server side.
func newSessionPair(t *testing.T, setupServer func(server *Server, m testMethods)) (client *Session, server *Session, methods testMethods) {
	clientConn, serverConn := net.Pipe()

	clientRpcServer, methods := newTestServer(t, nil)
	serverRpcServer, _ := newTestServer(t, setupServer)

	server = startSession(t, serverRpcServer, NewFramedConn(serverConn))
	client = startSession(t, clientRpcServer, NewFramedConn(clientConn))

	t.Cleanup(func() {
		client.Close()
		server.Close()
	})
	return
}

func mustLSPAny(t *testing.T, v any) defines.LSPAny {
	value, err := defines.NewLSPAny(v)
	require.NoError(t, err)
	return value
}

func TestSessionRequests(t *testing.T) {

	t.Run("echo", func(t *testing.T) {
		client, _, m := newSessionPair(t, nil)

		result, err := SendRequest(context.Background(), client, m.echo, testParams{Text: "hello"}, CallOptions{})
		require.NoError(t, err)
		assert.Equal(t, "hello", result.Text)
		assert.Zero(t, client.Pending().Len())
	})

	t.Run("concurrent requests", func(t *testing.T) {
		client, _, m := newSessionPair(t, nil)

		wg := new(sync.WaitGroup)
		texts := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
		results := make([]string, len(texts))

		for i, text := range texts {
			wg.Add(1)
			go func(i int, text string) {
				defer wg.Done()
				result, err := SendRequest(context.Background(), client, m.echo, testParams{Text: text}, CallOptions{})
				if assert.NoError(t, err) {
					results[i] = result.Text
				}
			}(i, text)
		}
		wg.Wait()

		assert.Equal(t, texts, results)
	})

	t.Run("method not found", func(t *testing.T) {
		client, _, _ := newSessionPair(t, nil)

		unknown := MustRegisterRequest[testParams, testResult](client.Registry(), "test/unknown")

		_, err := SendRequest(context.Background(), client, unknown, testParams{}, CallOptions{})
		var respErr ResponseError
		require.ErrorAs(t, err, &respErr)
		assert.Equal(t, MethodNotFoundCode, respErr.Code)
	})

	t.Run("invalid params", func(t *testing.T) {
		client, _, m := newSessionPair(t, nil)

		_, err := client.Call(context.Background(), m.echo.Descriptor(), map[string]any{"text": 1}, CallOptions{})
		var respErr ResponseError
		require.ErrorAs(t, err, &respErr)
		assert.Equal(t, InvalidParamsCode, respErr.Code)
	})

	t.Run("handler errors", func(t *testing.T) {
		client, _, m := newSessionPair(t, func(server *Server, m testMethods) {
			HandleRequest(server, m.fail, func(ctx context.Context, params *testParams) (testResult, error) {
				if params.Text == "modified" {
					return testResult{}, ContentModified
				}
				return testResult{}, errors.New("failure")
			})
		})

		_, err := SendRequest(context.Background(), client, m.fail, testParams{Text: "modified"}, CallOptions{})
		var respErr ResponseError
		require.ErrorAs(t, err, &respErr)
		assert.Equal(t, ContentModifiedCode, respErr.Code)

		_, err = SendRequest(context.Background(), client, m.fail, testParams{}, CallOptions{})
		require.ErrorAs(t, err, &respErr)
		assert.Equal(t, RequestFailedCode, respErr.Code)
		assert.Equal(t, "failure", respErr.Message)
	})

	t.Run("panicking handler", func(t *testing.T) {
		client, _, m := newSessionPair(t, func(server *Server, m testMethods) {
			HandleRequest(server, m.panics, func(ctx context.Context, params *defines.NoParams) (any, error) {
				panic(errors.New("handler bug"))
			})
		})

		_, err := SendRequest(context.Background(), client, m.panics, defines.NoParams{}, CallOptions{})
		var respErr ResponseError
		require.ErrorAs(t, err, &respErr)
		assert.Equal(t, InternalErrorCode, respErr.Code)

		//the session is still usable.
		result, err := SendRequest(context.Background(), client, m.echo, testParams{Text: "ok"}, CallOptions{})
		require.NoError(t, err)
		assert.Equal(t, "ok", result.Text)
	})

	t.Run("request from the server side", func(t *testing.T) {
		_, server, m := newSessionPair(t, nil)

		result, err := SendRequest(context.Background(), server, m.echo, testParams{Text: "from server"}, CallOptions{})
		require.NoError(t, err)
		assert.Equal(t, "from server", result.Text)
	})

	t.Run("shutting down session only accepts exit", func(t *testing.T) {
		client, server, m := newSessionPair(t, nil)

		shutdown := make(chan struct{})
		server.SetShutdownCallbackFn(func(session *Session) {
			close(shutdown)
		})

		require.NoError(t, server.Shutdown())
		assert.ErrorIs(t, server.Shutdown(), ErrAlreadyShuttingDown)
		<-shutdown

		_, err := SendRequest(context.Background(), client, m.echo, testParams{Text: "a"}, CallOptions{})
		var respErr ResponseError
		require.ErrorAs(t, err, &respErr)
		assert.Equal(t, InvalidRequestCode, respErr.Code)
	})
}

func TestSessionCancellation(t *testing.T) {

	setupSlow := func(started chan struct{}, causes chan error) func(server *Server, m testMethods) {
		return func(server *Server, m testMethods) {
			HandleRequest(server, m.slow, func(ctx context.Context, params *testParams) (testResult, error) {
				started <- struct{}{}
				<-ctx.Done()
				causes <- context.Cause(ctx)
				return testResult{}, ctx.Err()
			})
		}
	}

	t.Run("explicit cancellation", func(t *testing.T) {
		started := make(chan struct{}, 1)
		causes := make(chan error, 1)
		client, server, m := newSessionPair(t, setupSlow(started, causes))

		req, err := client.Issue(m.slow.Descriptor(), &testParams{}, CallOptions{})
		require.NoError(t, err)
		<-started
		assert.Equal(t, 1, server.InFlight())

		require.NoError(t, client.Cancel(req.ID))
		assert.Equal(t, Cancelled, req.State())
		assert.ErrorIs(t, req.Err(), ErrRequestCancelled)

		select {
		case cause := <-causes:
			assert.ErrorIs(t, cause, ErrRequestCancelled)
		case <-time.After(2 * time.Second):
			require.FailNow(t, "handler was not cancelled")
		}

		//the RequestCancelled response of the server is absorbed.
		result, err := SendRequest(context.Background(), client, m.echo, testParams{Text: "after"}, CallOptions{})
		require.NoError(t, err)
		assert.Equal(t, "after", result.Text)
		assert.Equal(t, Cancelled, req.State())
	})

	t.Run("context cancellation", func(t *testing.T) {
		started := make(chan struct{}, 1)
		causes := make(chan error, 1)
		client, _, m := newSessionPair(t, setupSlow(started, causes))

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			<-started
			cancel()
		}()

		_, err := SendRequest(ctx, client, m.slow, testParams{}, CallOptions{})
		assert.ErrorIs(t, err, context.Canceled)

		select {
		case cause := <-causes:
			assert.ErrorIs(t, cause, ErrRequestCancelled)
		case <-time.After(2 * time.Second):
			require.FailNow(t, "handler was not cancelled")
		}
	})

	t.Run("timeout", func(t *testing.T) {
		started := make(chan struct{}, 1)
		causes := make(chan error, 1)
		client, _, m := newSessionPair(t, setupSlow(started, causes))

		_, err := SendRequest(context.Background(), client, m.slow, testParams{}, CallOptions{Timeout: 50 * time.Millisecond})
		assert.ErrorIs(t, err, ErrRequestTimedOut)

		select {
		case cause := <-causes:
			assert.ErrorIs(t, cause, ErrRequestCancelled)
		case <-time.After(2 * time.Second):
			require.FailNow(t, "handler was not cancelled")
		}
	})

	t.Run("closing the session cancels outstanding requests", func(t *testing.T) {
		started := make(chan struct{}, 1)
		causes := make(chan error, 1)
		client, _, m := newSessionPair(t, setupSlow(started, causes))

		closed := make(chan struct{})
		client.SetClosedCallbackFn(func(session *Session) {
			close(closed)
		})

		go func() {
			<-started
			client.Close()
		}()

		_, err := SendRequest(context.Background(), client, m.slow, testParams{}, CallOptions{})
		assert.ErrorIs(t, err, ErrSessionClosed)
		<-closed

		assert.True(t, client.Closed())
		assert.ErrorIs(t, client.Close(), ErrSessionClosed)

		_, err = client.Issue(m.echo.Descriptor(), &testParams{}, CallOptions{})
		assert.ErrorIs(t, err, ErrSessionClosed)
	})
}

func TestSessionNotifications(t *testing.T) {
	const count = 50

	var lock sync.Mutex
	var texts []string
	done := make(chan struct{})

	client, _, m := newSessionPair(t, func(server *Server, m testMethods) {
		HandleNotification(server, m.notify, func(ctx context.Context, params *testParams) error {
			lock.Lock()
			defer lock.Unlock()

			texts = append(texts, params.Text)
			if len(texts) == count {
				close(done)
			}
			return nil
		})
	})

	var expected []string
	for i := 0; i < count; i++ {
		text := string(rune('A' + i%26))
		expected = append(expected, text)
		require.NoError(t, SendNotification(client, m.notify, testParams{Text: text}))
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		require.FailNow(t, "notifications not handled")
	}

	lock.Lock()
	defer lock.Unlock()
	assert.Equal(t, expected, texts)
}

func TestSessionProgress(t *testing.T) {

	t.Run("partial results are delivered before the final result", func(t *testing.T) {
		client, _, m := newSessionPair(t, func(server *Server, m testMethods) {
			HandleRequest(server, m.references, func(ctx context.Context, params *defines.ReferenceParams) ([]defines.Location, error) {
				session := GetSession(ctx)
				token := params.PartialResultToken
				if token == nil {
					return nil, errors.New("missing partial result token")
				}

				for _, uri := range []string{"file:///a", "file:///b", "file:///c"} {
					value := mustLSPAny(t, []defines.Location{{URI: defines.DocumentURI(uri)}})
					if err := session.Notify(PROGRESS_METHOD, defines.ProgressParams{Token: *token, Value: value}); err != nil {
						return nil, err
					}
				}
				return []defines.Location{}, nil
			})
		})

		var uris []string
		result, err := SendRequest(context.Background(), client, m.references, defines.ReferenceParams{}, CallOptions{
			OnPartialResult: func(event ProgressEvent) {
				var locations []defines.Location
				if assert.NoError(t, json.Unmarshal(event.Value, &locations)) {
					for _, loc := range locations {
						uris = append(uris, string(loc.URI))
					}
				}
			},
		})

		require.NoError(t, err)
		assert.Empty(t, result)
		assert.Equal(t, []string{"file:///a", "file:///b", "file:///c"}, uris)
		assert.Zero(t, client.Progress().Len())
	})

	t.Run("partial results for a method without support", func(t *testing.T) {
		client, _, m := newSessionPair(t, nil)

		_, err := SendRequest(context.Background(), client, m.hover, defines.HoverParams{}, CallOptions{
			OnPartialResult: func(event ProgressEvent) {},
		})
		assert.Error(t, err)
		assert.Zero(t, client.Pending().Len())
	})

	t.Run("work done", func(t *testing.T) {
		client, _, m := newSessionPair(t, func(server *Server, m testMethods) {
			HandleRequest(server, m.hover, func(ctx context.Context, params *defines.HoverParams) (*defines.Hover, error) {
				session := GetSession(ctx)
				token := *params.WorkDoneToken

				percentage := uint32(50)
				values := []any{
					defines.NewWorkDoneProgressBegin("Hovering"),
					defines.NewWorkDoneProgressReport("half", &percentage),
					defines.NewWorkDoneProgressEnd("done"),
				}
				for _, value := range values {
					err := session.Notify(PROGRESS_METHOD, defines.ProgressParams{Token: token, Value: mustLSPAny(t, value)})
					if err != nil {
						return nil, err
					}
				}
				return nil, nil
			})
		})

		var kinds []int
		var messages []string
		hover, err := SendRequest(context.Background(), client, m.hover, defines.HoverParams{}, CallOptions{
			OnWorkDone: func(event ProgressEvent) {
				kinds = append(kinds, event.WorkDone.Index())
				if end, ok := event.WorkDone.Third(); ok {
					messages = append(messages, end.Message)
				}
			},
		})

		require.NoError(t, err)
		assert.Nil(t, hover)
		assert.Equal(t, []int{0, 1, 2}, kinds)
		assert.Equal(t, []string{"done"}, messages)
	})
}

func TestSessionMalformedMessages(t *testing.T) {
	server, _ := newTestServer(t, nil)

	clientConn, serverConn := net.Pipe()
	session := startSession(t, server, NewFramedConn(serverConn))
	t.Cleanup(func() {
		session.Close()
	})

	reader := bufio.NewReader(clientConn)

	readResponse := func() ResponseMessage {
		clientConn.SetReadDeadline(time.Now().Add(2 * time.Second))
		content, err := ReadFrame(reader)
		require.NoError(t, err)

		var resp ResponseMessage
		require.NoError(t, json.Unmarshal(content, &resp))
		return resp
	}

	//malformed request with a readable id
	require.NoError(t, WriteFrame(clientConn, []byte(`{"jsonrpc":"2.0","id":3,"method":"test/echo","params":{]}`)))

	resp := readResponse()
	assert.Equal(t, defines.NewInteger(3), resp.ID)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ParseErrorCode, resp.Error.Code)

	//malformed message without id: no response
	require.NoError(t, WriteFrame(clientConn, []byte(`{"jsonrpc":"2.0",`)))

	//unsupported version
	require.NoError(t, WriteFrame(clientConn, []byte(`{"jsonrpc":"1.0","id":4,"method":"test/echo","params":{}}`)))

	resp = readResponse()
	assert.Equal(t, defines.NewInteger(4), resp.ID)
	require.NotNil(t, resp.Error)
	assert.Equal(t, InvalidRequestCode, resp.Error.Code)

	//notification sent with an id
	require.NoError(t, WriteFrame(clientConn, []byte(`{"jsonrpc":"2.0","id":"x","method":"$/progress","params":{"token":1,"value":{}}}`)))

	resp = readResponse()
	assert.Equal(t, defines.NewString("x"), resp.ID)
	require.NotNil(t, resp.Error)
	assert.Equal(t, InvalidRequestCode, resp.Error.Code)

	//the session is still usable
	require.NoError(t, WriteFrame(clientConn, []byte(`{"jsonrpc":"2.0","id":5,"method":"test/echo","params":{"text":"ok"}}`)))

	resp = readResponse()
	assert.Equal(t, defines.NewInteger(5), resp.ID)
	assert.Nil(t, resp.Error)
	assert.JSONEq(t, `{"text":"ok"}`, string(resp.Result))
}

type rateLimitObserver struct {
	noopObserver
	lock    sync.Mutex
	limited []string
}

func (o *rateLimitObserver) RequestRateLimited(method string) {
	o.lock.Lock()
	defer o.lock.Unlock()
	o.limited = append(o.limited, method)
}

func TestSessionRateLimiting(t *testing.T) {
	registry, methods := newTestRegistry()
	observer := &rateLimitObserver{}

	rpcServer, err := NewServer(context.Background(), ServerConfig{
		Registry:         registry,
		Logger:           zerolog.Nop(),
		Observer:         observer,
		SessionRateLimit: ratelimit.WindowParameters{Duration: time.Hour, RequestCount: 2},
		HostRateLimit:    ratelimit.WindowParameters{Duration: time.Hour, RequestCount: 100},
	})
	require.NoError(t, err)

	require.NoError(t, HandleRequest(rpcServer, methods.echo, func(ctx context.Context, params *testParams) (testResult, error) {
		return testResult{Text: params.Text}, nil
	}))

	notified := make(chan string, 1)
	require.NoError(t, HandleNotification(rpcServer, methods.notify, func(ctx context.Context, params *testParams) error {
		notified <- params.Text
		return nil
	}))

	clientRpcServer, _ := newTestServer(t, nil)

	clientConn, serverConn := net.Pipe()
	server := startSession(t, rpcServer, NewFramedConn(serverConn))
	client := startSession(t, clientRpcServer, NewFramedConn(clientConn))
	t.Cleanup(func() {
		client.Close()
		server.Close()
	})

	for _, text := range []string{"a", "b"} {
		result, err := SendRequest(context.Background(), client, methods.echo, testParams{Text: text}, CallOptions{})
		require.NoError(t, err)
		assert.Equal(t, text, result.Text)
	}

	//the third request arrives in a burst.
	_, err = SendRequest(context.Background(), client, methods.echo, testParams{Text: "c"}, CallOptions{})
	var respErr ResponseError
	require.ErrorAs(t, err, &respErr)
	assert.Equal(t, RequestFailedCode, respErr.Code)
	assert.Equal(t, "rate limit exceeded", respErr.Message)

	observer.lock.Lock()
	assert.Equal(t, []string{"test/echo"}, observer.limited)
	observer.lock.Unlock()

	//notifications are not limited.
	require.NoError(t, SendNotification(client, methods.notify, testParams{Text: "n"}))
	select {
	case text := <-notified:
		assert.Equal(t, "n", text)
	case <-time.After(2 * time.Second):
		require.FailNow(t, "notification not handled")
	}
}
