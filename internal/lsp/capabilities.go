package lsp

import (
	"fmt"
	"sync"

	"github.com/inoxlang/lspcore/internal/jsonrpc"
	"github.com/inoxlang/lspcore/internal/lsp/defines"
	"github.com/inoxlang/lspcore/internal/sumtype"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

const LOCATION_RANGE_PROPERTY = "location.range"

type WorkspaceFoldersState int

const (
	//workspaceFolders omitted or null in the initialize params.
	WorkspaceFoldersUnsupported WorkspaceFoldersState = iota

	//workspaceFolders is an empty array.
	WorkspaceFoldersSupportedNoneOpen

	WorkspaceFoldersOpen
)

func (s WorkspaceFoldersState) String() string {
	switch s {
	case WorkspaceFoldersSupportedNoneOpen:
		return "supported-none-open"
	case WorkspaceFoldersOpen:
		return "open"
	default:
		return "unsupported"
	}
}

// FeatureCapabilities is the negotiated state of a feature, keyed by its request method.
type FeatureCapabilities struct {
	Method string

	//enabled by the initialize handshake.
	Enabled bool

	WorkDoneProgress    bool
	PartialResults      bool
	Resolve             bool
	DynamicRegistration bool

	//dynamic registrations by id.
	registrations map[string]defines.Registration
}

// Available returns true if the feature is statically enabled or has at least one dynamic registration.
func (f FeatureCapabilities) Available() bool {
	return f.Enabled || len(f.registrations) > 0
}

// Registrations returns the dynamic registrations sorted by id.
func (f FeatureCapabilities) Registrations() []defines.Registration {
	ids := maps.Keys(f.registrations)
	slices.Sort(ids)

	registrations := make([]defines.Registration, 0, len(ids))
	for _, id := range ids {
		registrations = append(registrations, f.registrations[id])
	}
	return registrations
}

func (f FeatureCapabilities) copy() FeatureCapabilities {
	f.registrations = maps.Clone(f.registrations)
	return f
}

// EffectiveCapabilities is the feature set of a session. It is computed once by Negotiate,
// only dynamic registrations change it afterwards.
type EffectiveCapabilities struct {
	//client window.workDoneProgress
	ClientWorkDoneProgress bool

	//empty if the client only supports MarkedString.
	HoverContentFormat defines.MarkupKind

	DeclarationLinkSupport      bool
	DefinitionLinkSupport       bool
	HierarchicalDocumentSymbols bool

	//the client resolves the range of workspace symbol locations lazily.
	WorkspaceSymbolLocationOnly bool

	ApplyEdit          bool
	DocumentChanges    bool
	ResourceOperations []string

	WorkspaceFolders     WorkspaceFoldersState
	OpenWorkspaceFolders []defines.WorkspaceFolder

	lock                sync.RWMutex
	features            map[string]*FeatureCapabilities
	registrationMethods map[string]string //registration id -> method
}

type featureNegotiation struct {
	method string

	//returns whether the server enables the feature and its work done / resolve options.
	server func(s *defines.ServerCapabilities) (enabled bool, workDone bool, resolve bool)

	//returns nil if the client sub-tree is absent.
	client func(c *defines.ClientCapabilities) *clientFeature
}

type clientFeature struct {
	dynamicRegistration bool
	resolveSupport      bool
}

var negotiatedFeatures = []featureNegotiation{
	{
		method: DID_OPEN_METHOD,
		server: textSyncEnabled,
		client: textSyncClient,
	},
	{
		method: DID_CHANGE_METHOD,
		server: textSyncEnabled,
		client: textSyncClient,
	},
	{
		method: DID_CLOSE_METHOD,
		server: textSyncEnabled,
		client: textSyncClient,
	},
	{
		method: HOVER_METHOD,
		server: func(s *defines.ServerCapabilities) (bool, bool, bool) {
			return boolOrOptions(s.HoverProvider, func(o defines.HoverOptions) bool {
				return o.SupportsWorkDoneProgress()
			})
		},
		client: func(c *defines.ClientCapabilities) *clientFeature {
			if c.TextDocument == nil || c.TextDocument.Hover == nil {
				return nil
			}
			return &clientFeature{dynamicRegistration: c.TextDocument.Hover.SupportsDynamicRegistration()}
		},
	},
	{
		method: COMPLETION_METHOD,
		server: func(s *defines.ServerCapabilities) (bool, bool, bool) {
			if s.CompletionProvider == nil {
				return false, false, false
			}
			resolve := s.CompletionProvider.ResolveProvider != nil && *s.CompletionProvider.ResolveProvider
			return true, s.CompletionProvider.SupportsWorkDoneProgress(), resolve
		},
		client: func(c *defines.ClientCapabilities) *clientFeature {
			if c.TextDocument == nil || c.TextDocument.Completion == nil {
				return nil
			}
			completion := c.TextDocument.Completion
			return &clientFeature{
				dynamicRegistration: completion.SupportsDynamicRegistration(),
				resolveSupport:      completion.CompletionItem != nil && completion.CompletionItem.ResolveSupport != nil,
			}
		},
	},
	{
		method: DECLARATION_METHOD,
		server: func(s *defines.ServerCapabilities) (bool, bool, bool) {
			if s.DeclarationProvider == nil || !s.DeclarationProvider.IsSet() {
				return false, false, false
			}
			type result = [3]bool
			r, _ := sumtype.Match3(*s.DeclarationProvider,
				func(enabled bool) result { return result{enabled, false, false} },
				func(o defines.DeclarationRegistrationOptions) result {
					return result{true, o.SupportsWorkDoneProgress(), false}
				},
				func(o defines.DeclarationOptions) result {
					return result{true, o.SupportsWorkDoneProgress(), false}
				},
			)
			return r[0], r[1], r[2]
		},
		client: func(c *defines.ClientCapabilities) *clientFeature {
			if c.TextDocument == nil || c.TextDocument.Declaration == nil {
				return nil
			}
			return &clientFeature{dynamicRegistration: c.TextDocument.Declaration.SupportsDynamicRegistration()}
		},
	},
	{
		method: DEFINITION_METHOD,
		server: func(s *defines.ServerCapabilities) (bool, bool, bool) {
			return boolOrOptions(s.DefinitionProvider, func(o defines.DefinitionOptions) bool {
				return o.SupportsWorkDoneProgress()
			})
		},
		client: func(c *defines.ClientCapabilities) *clientFeature {
			if c.TextDocument == nil || c.TextDocument.Definition == nil {
				return nil
			}
			return &clientFeature{dynamicRegistration: c.TextDocument.Definition.SupportsDynamicRegistration()}
		},
	},
	{
		method: REFERENCES_METHOD,
		server: func(s *defines.ServerCapabilities) (bool, bool, bool) {
			return boolOrOptions(s.ReferencesProvider, func(o defines.ReferenceOptions) bool {
				return o.SupportsWorkDoneProgress()
			})
		},
		client: func(c *defines.ClientCapabilities) *clientFeature {
			if c.TextDocument == nil || c.TextDocument.References == nil {
				return nil
			}
			return &clientFeature{dynamicRegistration: c.TextDocument.References.SupportsDynamicRegistration()}
		},
	},
	{
		method: DOCUMENT_SYMBOL_METHOD,
		server: func(s *defines.ServerCapabilities) (bool, bool, bool) {
			return boolOrOptions(s.DocumentSymbolProvider, func(o defines.DocumentSymbolOptions) bool {
				return o.SupportsWorkDoneProgress()
			})
		},
		client: func(c *defines.ClientCapabilities) *clientFeature {
			if c.TextDocument == nil || c.TextDocument.DocumentSymbol == nil {
				return nil
			}
			return &clientFeature{dynamicRegistration: c.TextDocument.DocumentSymbol.SupportsDynamicRegistration()}
		},
	},
	{
		method: WORKSPACE_SYMBOL_METHOD,
		server: func(s *defines.ServerCapabilities) (bool, bool, bool) {
			if s.WorkspaceSymbolProvider == nil || !s.WorkspaceSymbolProvider.IsSet() {
				return false, false, false
			}
			if enabled, ok := s.WorkspaceSymbolProvider.First(); ok {
				return enabled, false, false
			}
			options, _ := s.WorkspaceSymbolProvider.Second()
			resolve := options.ResolveProvider != nil && *options.ResolveProvider
			return true, options.SupportsWorkDoneProgress(), resolve
		},
		client: func(c *defines.ClientCapabilities) *clientFeature {
			if c.Workspace == nil || c.Workspace.Symbol == nil {
				return nil
			}
			return &clientFeature{
				dynamicRegistration: c.Workspace.Symbol.SupportsDynamicRegistration(),
				resolveSupport:      c.Workspace.Symbol.ResolveSupport != nil,
			}
		},
	},
	{
		method: EXECUTE_COMMAND_METHOD,
		server: func(s *defines.ServerCapabilities) (bool, bool, bool) {
			if s.ExecuteCommandProvider == nil {
				return false, false, false
			}
			return true, s.ExecuteCommandProvider.SupportsWorkDoneProgress(), false
		},
		client: func(c *defines.ClientCapabilities) *clientFeature {
			if c.Workspace == nil || c.Workspace.ExecuteCommand == nil {
				return nil
			}
			return &clientFeature{dynamicRegistration: c.Workspace.ExecuteCommand.SupportsDynamicRegistration()}
		},
	},
}

func boolOrOptions[T any](provider *sumtype.Or2[bool, T], workDone func(T) bool) (enabled bool, workDoneProgress bool, resolve bool) {
	if provider == nil || !provider.IsSet() {
		return false, false, false
	}
	if enabled, ok := provider.First(); ok {
		return enabled, false, false
	}
	options, _ := provider.Second()
	return true, workDone(options), false
}

func textSyncEnabled(s *defines.ServerCapabilities) (bool, bool, bool) {
	if s.TextDocumentSync == nil || !s.TextDocumentSync.IsSet() {
		return false, false, false
	}
	if kind, ok := s.TextDocumentSync.First(); ok {
		return kind != defines.TextDocumentSyncKindNone, false, false
	}
	options, _ := s.TextDocumentSync.Second()
	return options.OpenClose != nil && *options.OpenClose, false, false
}

// text synchronization is mandatory for clients, the sub-tree only tells about dynamic registration.
func textSyncClient(c *defines.ClientCapabilities) *clientFeature {
	if c.TextDocument == nil || c.TextDocument.Synchronization == nil {
		return &clientFeature{}
	}
	return &clientFeature{dynamicRegistration: c.TextDocument.Synchronization.SupportsDynamicRegistration()}
}

// Negotiate computes the effective capabilities of a session, it accepts nil and partial trees.
// Methods absent from the registry are disabled.
func Negotiate(client *defines.InitializeParams, server *defines.ServerCapabilities, registry *jsonrpc.Registry) *EffectiveCapabilities {
	if client == nil {
		client = &defines.InitializeParams{}
	}
	if server == nil {
		server = &defines.ServerCapabilities{}
	}
	clientCaps := &client.Capabilities

	effective := &EffectiveCapabilities{
		features:            map[string]*FeatureCapabilities{},
		registrationMethods: map[string]string{},
	}

	if window := clientCaps.Window; window != nil {
		effective.ClientWorkDoneProgress = isTrue(window.WorkDoneProgress)
	}

	for _, negotiation := range negotiatedFeatures {
		feature := &FeatureCapabilities{Method: negotiation.method}
		effective.features[negotiation.method] = feature

		var desc *jsonrpc.MethodDescriptor
		if registry != nil {
			var ok bool
			desc, ok = registry.Lookup(negotiation.method)
			if !ok {
				continue
			}
		}

		clientFeature := negotiation.client(clientCaps)
		if clientFeature == nil {
			continue
		}
		feature.DynamicRegistration = clientFeature.dynamicRegistration

		enabled, workDone, resolve := negotiation.server(server)
		if !enabled {
			continue
		}

		feature.Enabled = true
		feature.WorkDoneProgress = workDone && effective.ClientWorkDoneProgress
		feature.PartialResults = desc != nil && desc.SupportsPartialResult
		feature.Resolve = resolve && clientFeature.resolveSupport
	}

	if textDocument := clientCaps.TextDocument; textDocument != nil {
		if hover := textDocument.Hover; hover != nil {
			for _, kind := range hover.ContentFormat {
				if kind == defines.Markdown || kind == defines.PlainText {
					effective.HoverContentFormat = kind
					break
				}
			}
		}
		if declaration := textDocument.Declaration; declaration != nil {
			effective.DeclarationLinkSupport = isTrue(declaration.LinkSupport)
		}
		if definition := textDocument.Definition; definition != nil {
			effective.DefinitionLinkSupport = isTrue(definition.LinkSupport)
		}
		if documentSymbol := textDocument.DocumentSymbol; documentSymbol != nil {
			effective.HierarchicalDocumentSymbols = isTrue(documentSymbol.HierarchicalDocumentSymbolSupport)
		}
	}

	if workspace := clientCaps.Workspace; workspace != nil {
		effective.ApplyEdit = isTrue(workspace.ApplyEdit)

		if edit := workspace.WorkspaceEdit; edit != nil {
			effective.DocumentChanges = isTrue(edit.DocumentChanges)
			effective.ResourceOperations = slices.Clone(edit.ResourceOperations)
		}

		if symbol := workspace.Symbol; symbol != nil && symbol.ResolveSupport != nil {
			effective.WorkspaceSymbolLocationOnly = slices.Contains(symbol.ResolveSupport.Properties, LOCATION_RANGE_PROPERTY)
		}
	}

	switch {
	case client.WorkspaceFolders == nil:
		effective.WorkspaceFolders = WorkspaceFoldersUnsupported
	case len(*client.WorkspaceFolders) == 0:
		effective.WorkspaceFolders = WorkspaceFoldersSupportedNoneOpen
	default:
		effective.WorkspaceFolders = WorkspaceFoldersOpen
		effective.OpenWorkspaceFolders = slices.Clone(*client.WorkspaceFolders)
	}

	return effective
}

func isTrue(b *bool) bool {
	return b != nil && *b
}

// Feature returns a copy of the state of the feature of a request method.
func (c *EffectiveCapabilities) Feature(method string) (FeatureCapabilities, bool) {
	c.lock.RLock()
	defer c.lock.RUnlock()

	feature, ok := c.features[method]
	if !ok {
		return FeatureCapabilities{Method: method}, false
	}
	return feature.copy(), true
}

// IsAvailable returns true if the feature of method is enabled or dynamically registered.
func (c *EffectiveCapabilities) IsAvailable(method string) bool {
	feature, _ := c.Feature(method)
	return feature.Available()
}

// ApplyRegistration layers a dynamic registration on top of the negotiated state, only the
// entry of reg.Method is modified.
func (c *EffectiveCapabilities) ApplyRegistration(reg defines.Registration) error {
	if reg.ID == "" || reg.Method == "" {
		return fmt.Errorf("registration id and method are required")
	}

	c.lock.Lock()
	defer c.lock.Unlock()

	if method, ok := c.registrationMethods[reg.ID]; ok {
		return fmt.Errorf("registration %q already exists for method %s", reg.ID, method)
	}

	feature, ok := c.features[reg.Method]
	if !ok {
		feature = &FeatureCapabilities{Method: reg.Method}
		c.features[reg.Method] = feature
	}
	if feature.registrations == nil {
		feature.registrations = map[string]defines.Registration{}
	}

	feature.registrations[reg.ID] = reg
	c.registrationMethods[reg.ID] = reg.Method
	return nil
}

// ApplyUnregistration removes a dynamic registration.
func (c *EffectiveCapabilities) ApplyUnregistration(unreg defines.Unregistration) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	method, ok := c.registrationMethods[unreg.ID]
	if !ok {
		return fmt.Errorf("unknown registration %q", unreg.ID)
	}
	if unreg.Method != "" && unreg.Method != method {
		return fmt.Errorf("registration %q is for method %s, not %s", unreg.ID, method, unreg.Method)
	}

	delete(c.features[method].registrations, unreg.ID)
	delete(c.registrationMethods, unreg.ID)
	return nil
}

// NewHoverContents returns markup content if the client supports it, a MarkedString otherwise.
func (c *EffectiveCapabilities) NewHoverContents(value string) defines.HoverContents {
	if c.HoverContentFormat != "" {
		return sumtype.Or3A[defines.MarkupContent, defines.MarkedString, []defines.MarkedString](defines.MarkupContent{
			Kind:  c.HoverContentFormat,
			Value: value,
		})
	}
	return sumtype.Or3B[defines.MarkupContent, defines.MarkedString, []defines.MarkedString](
		sumtype.Or2A[string, defines.MarkedStringObject](value),
	)
}

// NewDefinitionResult returns links if the client supports them for method
// (declaration or definition), locations otherwise.
func (c *EffectiveCapabilities) NewDefinitionResult(method string, links []defines.LocationLink) defines.DefinitionResult {
	linkSupport := c.DefinitionLinkSupport
	if method == DECLARATION_METHOD {
		linkSupport = c.DeclarationLinkSupport
	}

	if linkSupport {
		return sumtype.Or3C[defines.Location, []defines.Location](links)
	}

	locations := make([]defines.Location, 0, len(links))
	for _, link := range links {
		locations = append(locations, defines.Location{URI: link.TargetURI, Range: link.TargetSelectionRange})
	}
	return sumtype.Or3B[defines.Location, []defines.Location, []defines.LocationLink](locations)
}

// NewDocumentSymbolResult returns the hierarchy if the client supports it, flattened symbol
// information otherwise.
func (c *EffectiveCapabilities) NewDocumentSymbolResult(uri defines.DocumentURI, symbols []defines.DocumentSymbol) defines.DocumentSymbolResult {
	if c.HierarchicalDocumentSymbols {
		return sumtype.Or2A[[]defines.DocumentSymbol, []defines.SymbolInformation](symbols)
	}

	var flattened []defines.SymbolInformation
	var flatten func(symbols []defines.DocumentSymbol, container string)
	flatten = func(symbols []defines.DocumentSymbol, container string) {
		for _, symbol := range symbols {
			flattened = append(flattened, defines.SymbolInformation{
				Name:          symbol.Name,
				Kind:          symbol.Kind,
				Location:      defines.Location{URI: uri, Range: symbol.Range},
				ContainerName: container,
			})
			flatten(symbol.Children, symbol.Name)
		}
	}
	flatten(symbols, "")

	if flattened == nil {
		flattened = []defines.SymbolInformation{}
	}
	return sumtype.Or2B[[]defines.DocumentSymbol](flattened)
}

// NewWorkspaceSymbolResult returns workspace symbols without ranges if the client resolves
// them lazily, symbol information otherwise.
func (c *EffectiveCapabilities) NewWorkspaceSymbolResult(symbols []defines.SymbolInformation) defines.WorkspaceSymbolResult {
	if !c.WorkspaceSymbolLocationOnly {
		return sumtype.Or2A[[]defines.SymbolInformation, []defines.WorkspaceSymbol](symbols)
	}

	workspaceSymbols := make([]defines.WorkspaceSymbol, 0, len(symbols))
	for _, symbol := range symbols {
		workspaceSymbols = append(workspaceSymbols, defines.WorkspaceSymbol{
			Name:          symbol.Name,
			Kind:          symbol.Kind,
			ContainerName: symbol.ContainerName,
			Location:      sumtype.Or2B[defines.Location](defines.WorkspaceSymbolLocation{URI: symbol.Location.URI}),
		})
	}
	return sumtype.Or2B[[]defines.SymbolInformation](workspaceSymbols)
}
