package sealedcontent

import (
	"net/url"
	"strings"
)

// UploadsPath is the path prefix objects are served under, relative to the
// public base URL.
const UploadsPath = "api/v1/uploads/"

// LinkBuilder renders the capability URLs handed back on upload.
type LinkBuilder struct {
	baseURL string
}

// NewLinkBuilder returns a builder for baseURL. A trailing slash is added
// when missing.
func NewLinkBuilder(baseURL string) LinkBuilder {
	if baseURL != "" && !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return LinkBuilder{baseURL: baseURL}
}

// FileURL returns the read URL: {base}api/v1/uploads/{id}?key={key}
func (b LinkBuilder) FileURL(objectID, key string) string {
	return b.baseURL + UploadsPath + url.PathEscape(objectID) + "?key=" + url.QueryEscape(key)
}

// DeleteURL returns the read URL extended with delete_key.
func (b LinkBuilder) DeleteURL(objectID, key, deleteCapability string) string {
	return b.FileURL(objectID, key) + "&delete_key=" + url.QueryEscape(deleteCapability)
}
