package lsp

import (
	"errors"
	"io"
	"os"
	"sync/atomic"

	"github.com/inoxlang/lspcore/internal/jsonrpc"
	"github.com/muesli/cancelreader"
)

type stdioReaderWriter struct {
	reader   io.Reader
	writer   io.Writer
	isClosed atomic.Bool

	//nil if the input cannot be cancelled.
	cancelReader cancelreader.CancelReader
	input        io.Reader
}

// NewStdio returns a connection reading from input and writing to output, nil
// streams default to os.Stdin and os.Stdout.
func NewStdio(input io.Reader, output io.Writer) jsonrpc.ReaderWriter {
	if input == nil {
		input = os.Stdin
	}
	if output == nil {
		output = os.Stdout
	}

	rw := &stdioReaderWriter{
		reader: input,
		writer: output,
		input:  input,
	}

	if reader, err := cancelreader.NewReader(input); err == nil {
		rw.cancelReader = reader
		rw.reader = reader
	}
	return rw
}

func (s *stdioReaderWriter) Read(p []byte) (n int, err error) {
	if s.isClosed.Load() {
		return 0, io.EOF
	}
	n, err = s.reader.Read(p)
	if errors.Is(err, cancelreader.ErrCanceled) {
		return n, io.EOF
	}
	return n, err
}

func (s *stdioReaderWriter) Write(p []byte) (n int, err error) {
	if s.isClosed.Load() {
		return 0, io.ErrClosedPipe
	}
	return s.writer.Write(p)
}

// Close unblocks a pending read: the read is cancelled if the input supports it,
// otherwise the input is closed if it is closable and is not os.Stdin.
func (s *stdioReaderWriter) Close() error {
	if !s.isClosed.CompareAndSwap(false, true) {
		return nil
	}

	if s.cancelReader != nil {
		cancelled := s.cancelReader.Cancel()
		s.cancelReader.Close()
		if cancelled {
			return nil
		}
	}

	if closer, ok := s.input.(io.Closer); ok && s.input != os.Stdin {
		return closer.Close()
	}
	return nil
}
