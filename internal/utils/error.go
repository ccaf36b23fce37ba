package utils

import (
	"bytes"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/rs/zerolog"
)

func ConvertPanicValueToError(v any) error {
	if err, ok := v.(error); ok {
		return err
	}

	return fmt.Errorf("%#v", v)
}

// RecoverAndLog recovers from a panic and logs it with the stack, it should be deferred directly.
func RecoverAndLog(logger zerolog.Logger, msg string) {
	if e := recover(); e != nil {
		err := ConvertPanicValueToError(e)
		logger.Error().Err(err).Str("stack", string(debug.Stack())).Msg(msg)
	}
}

// CombineErrors combines errors into a single error with a multiline message.
func CombineErrors(errs ...error) error {
	finalErrBuff := bytes.NewBuffer(nil)
	found := false

	for _, err := range errs {
		if err != nil {
			found = true
			finalErrBuff.WriteString(err.Error())
			finalErrBuff.WriteRune('\n')
		}
	}

	if !found {
		return nil
	}

	return errors.New(strings.TrimRight(finalErrBuff.String(), "\n"))
}
