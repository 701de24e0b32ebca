package download

import (
	"net/http"
	"net/url"
	"os"
	"strings"
)

// ParseFilename extracts the last path segment of a URL, or "" when the
// URL has no usable segment (e.g. "https://host/").
func ParseFilename(u *url.URL) string {
	segments := strings.Split(u.Path, "/")
	return segments[len(segments)-1]
}

// SupportsByteRanges reports whether the response headers advertise
// byte-range support.
func SupportsByteRanges(h http.Header) bool {
	return h.Get("Accept-Ranges") == "bytes"
}

// fileSize returns the on-disk size of the file at path, or 0 when the
// file is missing or unreadable.
func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}
