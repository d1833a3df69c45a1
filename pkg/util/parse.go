package util

import (
	"net/url"
	"strings"
)

// SmartParse parse a url, but treat anything without a scheme as a local path, i.e. "file://"
func SmartParse(raw string) (*url.URL, error) {
	if !strings.Contains(raw, "://") {
		return &url.URL{Scheme: "file", Path: raw}, nil
	}
	return url.Parse(raw)
}
