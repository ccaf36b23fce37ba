package jsonrpc

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"

	"github.com/inoxlang/lspcore/internal/utils"
)

const (
	CONTENT_LENGTH_HEADER = "Content-Length"

	MAX_CONTENT_LENGTH = 64 << 20
	MAX_HEADER_COUNT   = 10
)

var (
	_ MessageReaderWriter = (*FnMessageReaderWriter)(nil)
	_ MessageReaderWriter = (*framedConn)(nil)
)

type ReaderWriter interface {
	io.Reader
	io.Writer
	io.Closer
}

type MessageReaderWriter interface {
	//ReadMessage reads an entire message and returns it, the returned bytes should not be modified by the caller.
	ReadMessage() (msg []byte, err error)

	//WriteMessage writes an entire message, the written bytes should not modified by the implementation.
	WriteMessage(msg []byte) error

	io.Closer
}

type FnMessageReaderWriter struct {
	ReadMessageFn  func() (msg []byte, err error)
	WriteMessageFn func(msg []byte) error
	CloseFn        func() error
}

func (rw FnMessageReaderWriter) ReadMessage() (msg []byte, err error) {
	return rw.ReadMessageFn()
}

func (rw FnMessageReaderWriter) WriteMessage(msg []byte) error {
	return rw.WriteMessageFn(msg)
}

func (rw FnMessageReaderWriter) Close() error {
	return rw.CloseFn()
}

// framedConn reads and writes messages preceded by a Content-Length header (stdio, TCP).
type framedConn struct {
	conn   ReaderWriter
	reader *bufio.Reader
}

// NewFramedConn wraps a byte stream, messages are preceded by a Content-Length header.
func NewFramedConn(conn ReaderWriter) MessageReaderWriter {
	return &framedConn{conn: conn, reader: bufio.NewReader(conn)}
}

func (c *framedConn) ReadMessage() ([]byte, error) {
	return ReadFrame(c.reader)
}

func (c *framedConn) WriteMessage(msg []byte) error {
	return WriteFrame(c.conn, msg)
}

func (c *framedConn) Close() error {
	return c.conn.Close()
}

func (c *framedConn) Client() string {
	if conn, ok := c.conn.(interface{ RemoteAddr() net.Addr }); ok {
		return conn.RemoteAddr().String()
	}
	return "(stdio)"
}

// ReadFrame reads the headers and the content of a message. Headers other than
// Content-Length are ignored.
func ReadFrame(reader *bufio.Reader) ([]byte, error) {
	contentLength := -1

	for i := 0; ; i++ {
		if i > MAX_HEADER_COUNT {
			return nil, ParseError.WithMessage("too many headers")
		}

		line, err := reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) && line != "" {
				return nil, io.ErrUnexpectedEOF
			}
			return nil, err
		}

		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}

		name, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, ParseError.WithMessage("invalid header: " + line)
		}

		if strings.EqualFold(strings.TrimSpace(name), CONTENT_LENGTH_HEADER) {
			contentLength, err = strconv.Atoi(strings.TrimSpace(value))
			if err != nil || contentLength < 0 {
				return nil, ParseError.WithMessage("invalid Content-Length header: " + value)
			}
		}
	}

	if contentLength < 0 {
		return nil, ParseError.WithMessage("missing Content-Length header")
	}
	if contentLength > MAX_CONTENT_LENGTH {
		return nil, fmt.Errorf("%w: %d bytes", ErrContentTooLarge, contentLength)
	}

	content := make([]byte, contentLength)
	if _, err := io.ReadFull(reader, content); err != nil {
		return nil, err
	}
	return content, nil
}

func WriteFrame(w io.Writer, msg []byte) error {
	header := fmt.Sprintf("%s: %d\r\n\r\n", CONTENT_LENGTH_HEADER, len(msg))
	if err := mustWrite(w, []byte(header)); err != nil {
		return err
	}
	return mustWrite(w, msg)
}

func mustWrite(w io.Writer, data []byte) error {
	t := 0
	for t != len(data) {
		n, err := w.Write(data[t:])
		if err != nil {
			return err
		}
		t += n
	}
	return nil
}

type CloserReader interface {
	io.Reader
	io.Closer
}

type CloserWriter interface {
	io.Writer
	io.Closer
}

// Conn joins a reader and a writer (e.g. stdin and stdout) into a ReaderWriter.
type Conn struct {
	reader CloserReader
	writer CloserWriter
}

func NewConn(reader CloserReader, writer CloserWriter) *Conn {
	return &Conn{reader: reader, writer: writer}
}

// NewNotCloseConn returns a connection whose Close method does not close reader and writer.
func NewNotCloseConn(reader io.Reader, writer io.Writer) *Conn {
	return &Conn{reader: nopCloser{Reader: reader}, writer: nopCloser{Writer: writer}}
}

func (c *Conn) Read(p []byte) (n int, err error) {
	return c.reader.Read(p)
}

func (c *Conn) Write(p []byte) (n int, err error) {
	return c.writer.Write(p)
}

func (c *Conn) Close() error {
	return utils.CombineErrors(c.reader.Close(), c.writer.Close())
}

type nopCloser struct {
	io.Reader
	io.Writer
}

func (nopCloser) Close() error {
	return nil
}
