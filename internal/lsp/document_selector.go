package lsp

import (
	"net/url"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/inoxlang/lspcore/internal/lsp/defines"
)

// MatchesDocumentFilter reports whether a document matches all the properties set in filter.
// The glob pattern is matched against the path of the URI.
func MatchesDocumentFilter(filter defines.DocumentFilter, uri defines.DocumentURI, languageID string) bool {
	if filter.Language != "" && filter.Language != languageID {
		return false
	}

	if filter.Scheme == "" && filter.Pattern == "" {
		return true
	}

	u, err := url.Parse(string(uri))
	if err != nil {
		return false
	}

	if filter.Scheme != "" && filter.Scheme != u.Scheme {
		return false
	}

	if filter.Pattern != "" {
		pattern := strings.TrimPrefix(filter.Pattern, "/")
		path := strings.TrimPrefix(u.Path, "/")

		ok, err := doublestar.Match(pattern, path)
		if err != nil || !ok {
			return false
		}
	}
	return true
}

// MatchesDocumentSelector reports whether a document matches at least one filter of selector.
func MatchesDocumentSelector(selector defines.DocumentSelector, uri defines.DocumentURI, languageID string) bool {
	for _, filter := range selector {
		if MatchesDocumentFilter(filter, uri, languageID) {
			return true
		}
	}
	return false
}

// IsAvailableFor returns true if the feature of method is enabled, or if one of its dynamic
// registrations applies to the document. A registration without document selector applies
// to all documents.
func (c *EffectiveCapabilities) IsAvailableFor(method string, uri defines.DocumentURI, languageID string) bool {
	feature, _ := c.Feature(method)
	if feature.Enabled {
		return true
	}

	for _, reg := range feature.Registrations() {
		var options defines.TextDocumentRegistrationOptions
		if err := reg.RegisterOptions.Decode(&options); err != nil {
			continue
		}
		if options.DocumentSelector == nil || MatchesDocumentSelector(*options.DocumentSelector, uri, languageID) {
			return true
		}
	}
	return false
}
