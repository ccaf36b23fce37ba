package jsonrpc

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadFrame(t *testing.T) {

	t.Run("single message", func(t *testing.T) {
		reader := bufio.NewReader(strings.NewReader("Content-Length: 2\r\n\r\n{}"))

		msg, err := ReadFrame(reader)
		require.NoError(t, err)
		assert.Equal(t, "{}", string(msg))

		_, err = ReadFrame(reader)
		assert.ErrorIs(t, err, io.EOF)
	})

	t.Run("consecutive messages and extra headers", func(t *testing.T) {
		input := "Content-Length: 2\r\nContent-Type: application/vscode-jsonrpc; charset=utf-8\r\n\r\n{}" +
			"content-length:4\r\n\r\nnull"
		reader := bufio.NewReader(strings.NewReader(input))

		msg, err := ReadFrame(reader)
		require.NoError(t, err)
		assert.Equal(t, "{}", string(msg))

		msg, err = ReadFrame(reader)
		require.NoError(t, err)
		assert.Equal(t, "null", string(msg))
	})

	t.Run("missing content length", func(t *testing.T) {
		reader := bufio.NewReader(strings.NewReader("Content-Type: x\r\n\r\n{}"))

		_, err := ReadFrame(reader)
		var respErr ResponseError
		require.ErrorAs(t, err, &respErr)
		assert.Equal(t, ParseErrorCode, respErr.Code)
	})

	t.Run("invalid content length", func(t *testing.T) {
		reader := bufio.NewReader(strings.NewReader("Content-Length: abc\r\n\r\n{}"))

		_, err := ReadFrame(reader)
		var respErr ResponseError
		require.ErrorAs(t, err, &respErr)
	})

	t.Run("invalid header", func(t *testing.T) {
		reader := bufio.NewReader(strings.NewReader("Content-Length 2\r\n\r\n{}"))

		_, err := ReadFrame(reader)
		var respErr ResponseError
		require.ErrorAs(t, err, &respErr)
	})

	t.Run("too large", func(t *testing.T) {
		reader := bufio.NewReader(strings.NewReader(fmt.Sprintf("Content-Length: %d\r\n\r\n", MAX_CONTENT_LENGTH+1)))

		_, err := ReadFrame(reader)
		assert.ErrorIs(t, err, ErrContentTooLarge)
	})

	t.Run("truncated content", func(t *testing.T) {
		reader := bufio.NewReader(strings.NewReader("Content-Length: 10\r\n\r\n{}"))

		_, err := ReadFrame(reader)
		assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	})

	t.Run("truncated headers", func(t *testing.T) {
		reader := bufio.NewReader(strings.NewReader("Content-Len"))

		_, err := ReadFrame(reader)
		assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	})
}

func TestWriteFrame(t *testing.T) {
	buf := bytes.NewBuffer(nil)

	require.NoError(t, WriteFrame(buf, []byte(`{"a":1}`)))
	assert.Equal(t, "Content-Length: 7\r\n\r\n{\"a\":1}", buf.String())

	msg, err := ReadFrame(bufio.NewReader(buf))
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(msg))
}
