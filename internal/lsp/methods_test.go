package lsp

import (
	"testing"

	"github.com/inoxlang/lspcore/internal/jsonrpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStandardRegistry(t *testing.T) {

	t.Run("default protocol version", func(t *testing.T) {
		registry, methods, err := NewStandardRegistry("")
		require.NoError(t, err)

		assert.Equal(t, DEFAULT_PROTOCOL_VERSION, methods.ProtocolVersion.String())
		assert.True(t, methods.WorkspaceSymbolResolve.Registered())
		assert.True(t, methods.Declaration.Registered())
		assert.True(t, methods.WorkDoneProgressCreate.Registered())

		desc, ok := registry.Lookup(COMPLETION_METHOD)
		require.True(t, ok)
		assert.Same(t, methods.Completion.Descriptor(), desc)
		assert.True(t, desc.SupportsPartialResult)
		assert.True(t, desc.SupportsWorkDone)
		assert.Equal(t, "1.0.0", desc.Since)

		desc, ok = registry.Lookup(APPLY_EDIT_METHOD)
		require.True(t, ok)
		assert.Equal(t, jsonrpc.ServerToClient, desc.Origin)
	})

	t.Run("methods newer than the protocol version are not registered", func(t *testing.T) {
		registry, methods, err := NewStandardRegistry("3.13.0")
		require.NoError(t, err)

		assert.False(t, methods.Declaration.Registered())
		assert.False(t, methods.WorkDoneProgressCreate.Registered())
		assert.False(t, methods.WorkDoneProgressCancel.Registered())
		assert.False(t, methods.WorkspaceSymbolResolve.Registered())
		assert.True(t, methods.Definition.Registered())
		assert.True(t, methods.RegisterCapability.Registered())

		_, ok := registry.Lookup(DECLARATION_METHOD)
		assert.False(t, ok)
	})

	t.Run("builtin methods are always registered", func(t *testing.T) {
		registry, _, err := NewStandardRegistry("1.0.0")
		require.NoError(t, err)

		_, ok := registry.Lookup(CANCEL_REQUEST_METHOD)
		assert.True(t, ok)
		_, ok = registry.Lookup(PROGRESS_METHOD)
		assert.True(t, ok)

		_, ok = registry.Lookup(INITIALIZED_METHOD)
		assert.False(t, ok)
	})

	t.Run("invalid protocol version", func(t *testing.T) {
		_, _, err := NewStandardRegistry("three")
		assert.Error(t, err)
	})

	t.Run("registries are independent", func(t *testing.T) {
		registry1, methods1, err := NewStandardRegistry("")
		require.NoError(t, err)
		registry2, methods2, err := NewStandardRegistry("")
		require.NoError(t, err)

		assert.NotSame(t, methods1.Hover.Descriptor(), methods2.Hover.Descriptor())
		assert.Equal(t, registry1.Len(), registry2.Len())
	})
}
