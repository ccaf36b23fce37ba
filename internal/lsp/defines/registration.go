package defines

// A document filter denotes a document by different properties like the language, the scheme of
// its resource, or a glob-pattern that is applied to the path.
type DocumentFilter struct {
	Language string `json:"language,omitempty"`
	Scheme   string `json:"scheme,omitempty"`
	Pattern  string `json:"pattern,omitempty"`
}

type DocumentSelector []DocumentFilter

// The fragments below are composed into the options and registration options
// of the features.

type WorkDoneProgressOptions struct {
	WorkDoneProgress *bool `json:"workDoneProgress,omitempty"`
}

func (o *WorkDoneProgressOptions) SupportsWorkDoneProgress() bool {
	return o != nil && o.WorkDoneProgress != nil && *o.WorkDoneProgress
}

type TextDocumentRegistrationOptions struct {
	// A document selector to identify the scope of the registration. If set to null
	// the document selector provided on the client side will be used.
	DocumentSelector *DocumentSelector `json:"documentSelector"`
}

// Static registration options to be returned in the initialize request.
type StaticRegistrationOptions struct {
	// The id used to register the request. The id can be used to deregister
	// the request again. See also Registration#id.
	ID string `json:"id,omitempty"`
}

type ResolveProviderOption struct {
	ResolveProvider *bool `json:"resolveProvider,omitempty"`
}

// DynamicRegistrationCapability is embedded in the client capabilities of the
// features supporting dynamic registration.
type DynamicRegistrationCapability struct {
	DynamicRegistration *bool `json:"dynamicRegistration,omitempty"`
}

func (c *DynamicRegistrationCapability) SupportsDynamicRegistration() bool {
	return c != nil && c.DynamicRegistration != nil && *c.DynamicRegistration
}

// General parameters to register for a notification or to register a provider.
type Registration struct {
	// The id used to register the request. The id can be used to deregister
	// the request again.
	ID string `json:"id"`

	// The method / capability to register for.
	Method string `json:"method"`

	RegisterOptions LSPAny `json:"registerOptions,omitempty"`
}

type RegistrationParams struct {
	Registrations []Registration `json:"registrations"`
}

// General parameters to unregister a request or notification.
type Unregistration struct {
	ID     string `json:"id"`
	Method string `json:"method"`
}

type UnregistrationParams struct {
	// The misspelling is part of the protocol.
	Unregisterations []Unregistration `json:"unregisterations"`
}
