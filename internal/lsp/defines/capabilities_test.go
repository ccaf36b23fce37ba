package defines

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCapabilitiesRoundTrip(t *testing.T) {
	t.Run("client capabilities", func(t *testing.T) {
		payloads := []string{
			`{}`,
			`{"window":{"workDoneProgress":true}}`,
			`{
				"workspace": {
					"applyEdit": true,
					"workspaceEdit": {"documentChanges": true, "resourceOperations": ["create","rename","delete"], "changeAnnotationSupport": {}},
					"symbol": {"dynamicRegistration": false, "resolveSupport": {"properties": ["location.range"]}},
					"workspaceFolders": false
				},
				"textDocument": {
					"hover": {"contentFormat": ["markdown", "plaintext"]},
					"definition": {"linkSupport": true},
					"documentSymbol": {"hierarchicalDocumentSymbolSupport": true},
					"completion": {"completionItem": {"snippetSupport": false, "documentationFormat": ["plaintext"]}}
				},
				"experimental": {"anything": [1, "two", null]}
			}`,
		}

		for _, payload := range payloads {
			var caps ClientCapabilities
			require.NoError(t, json.Unmarshal([]byte(payload), &caps))

			b, err := json.Marshal(caps)
			require.NoError(t, err)
			assert.JSONEq(t, payload, string(b))
		}
	})

	t.Run("server capabilities", func(t *testing.T) {
		payloads := []string{
			`{}`,
			`{"hoverProvider":true,"textDocumentSync":1}`,
			`{
				"textDocumentSync": {"openClose": true, "change": 2},
				"hoverProvider": {"workDoneProgress": true},
				"completionProvider": {"resolveProvider": true, "triggerCharacters": ["."]},
				"declarationProvider": {"documentSelector": null, "id": "decl"},
				"definitionProvider": false,
				"documentSymbolProvider": {"label": "words"},
				"workspaceSymbolProvider": {"resolveProvider": true},
				"executeCommandProvider": {"commands": ["a"]},
				"workspace": {"workspaceFolders": {"supported": true, "changeNotifications": "reg-1"}}
			}`,
		}

		for _, payload := range payloads {
			var caps ServerCapabilities
			require.NoError(t, json.Unmarshal([]byte(payload), &caps))

			b, err := json.Marshal(caps)
			require.NoError(t, err)
			assert.JSONEq(t, payload, string(b))
		}
	})

	t.Run("declaration registration options should take precedence over options", func(t *testing.T) {
		var caps ServerCapabilities
		require.NoError(t, json.Unmarshal([]byte(`{"declarationProvider": {"documentSelector": [{"language":"go"}]}}`), &caps))
		assert.Equal(t, 1, caps.DeclarationProvider.Index())

		require.NoError(t, json.Unmarshal([]byte(`{"declarationProvider": {"workDoneProgress": true}}`), &caps))
		assert.Equal(t, 2, caps.DeclarationProvider.Index())
	})
}

func TestInitializeParamsWorkspaceFolders(t *testing.T) {
	var omitted, null, empty, open InitializeParams

	require.NoError(t, json.Unmarshal([]byte(`{"processId":null,"rootUri":null,"capabilities":{}}`), &omitted))
	require.NoError(t, json.Unmarshal([]byte(`{"processId":1,"rootUri":null,"capabilities":{},"workspaceFolders":null}`), &null))
	require.NoError(t, json.Unmarshal([]byte(`{"processId":1,"rootUri":null,"capabilities":{},"workspaceFolders":[]}`), &empty))
	require.NoError(t, json.Unmarshal([]byte(`{"processId":1,"rootUri":"file:///w","capabilities":{},"workspaceFolders":[{"uri":"file:///w","name":"w"}]}`), &open))

	assert.Nil(t, omitted.WorkspaceFolders)
	assert.Nil(t, null.WorkspaceFolders)
	if assert.NotNil(t, empty.WorkspaceFolders) {
		assert.Empty(t, *empty.WorkspaceFolders)
	}
	if assert.NotNil(t, open.WorkspaceFolders) {
		assert.Len(t, *open.WorkspaceFolders, 1)
	}

	b, err := json.Marshal(empty)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"workspaceFolders":[]`)

	b, err = json.Marshal(omitted)
	require.NoError(t, err)
	assert.NotContains(t, string(b), `workspaceFolders`)
}
