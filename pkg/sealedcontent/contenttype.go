package sealedcontent

import (
	"mime"
	"strings"
)

// DefaultMaxFileSize is the payload ceiling used when none is configured.
const DefaultMaxFileSize int64 = 50 * 1024 * 1024

// DefaultAllowedContentTypes is the upload allow-list used when none is configured.
var DefaultAllowedContentTypes = []string{
	"image/jpeg",
	"image/png",
	"image/gif",
	"video/mp4",
	"video/webm",
	"video/ogg",
	"video/quicktime",
	"video/x-msvideo",
	"video/x-ms-wmv",
	"video/x-flv",
	"audio/mpeg",
	"audio/ogg",
	"audio/wav",
	"audio/x-wav",
	"text/plain",
	"text/html",
	"text/css",
	"text/javascript",
	"text/xml",
	"text/csv",
	"text/x-markdown",
	"application/zip",
}

// ContentTypePolicy is a set of accepted media types.
type ContentTypePolicy struct {
	allowed map[string]struct{}
}

// NewContentTypePolicy builds a policy from media types. Parameters such as
// charset are ignored on both sides.
func NewContentTypePolicy(types []string) *ContentTypePolicy {
	p := &ContentTypePolicy{allowed: make(map[string]struct{}, len(types))}
	for _, t := range types {
		if mt := NormalizeContentType(t); mt != "" {
			p.allowed[mt] = struct{}{}
		}
	}
	return p
}

// Allows reports whether contentType is on the list.
func (p *ContentTypePolicy) Allows(contentType string) bool {
	mt := NormalizeContentType(contentType)
	if mt == "" {
		return false
	}
	_, ok := p.allowed[mt]
	return ok
}

// Types returns the accepted media types.
func (p *ContentTypePolicy) Types() []string {
	out := make([]string, 0, len(p.allowed))
	for t := range p.allowed {
		out = append(out, t)
	}
	return out
}

// NormalizeContentType lowercases a media type and strips its parameters.
// It returns "" for unparsable input.
func NormalizeContentType(contentType string) string {
	contentType = strings.TrimSpace(contentType)
	if contentType == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return strings.ToLower(mt)
}
