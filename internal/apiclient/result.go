package apiclient

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/tidwall/gjson"
)

// Result is the normalized outcome of one HTTP call.
type Result struct {
	Method string
	URL    string

	// Status is 0 when no response was received (see Err).
	Status     int
	StatusText string
	Headers    http.Header
	Body       []byte
	Elapsed    time.Duration

	// Decoded reports whether Body was decompressed from a Content-Encoding.
	Decoded bool

	// Err is set for transport failures and malformed requests. It is never set
	// merely because the server answered with a 4xx or 5xx status.
	Err error
}

// ElapsedMillis returns the wall-clock request time in milliseconds
func (r *Result) ElapsedMillis() int64 {
	return r.Elapsed.Milliseconds()
}

// Success reports whether a response with a 2xx status was received
func (r *Result) Success() bool {
	return r.Err == nil && r.Status >= 200 && r.Status < 300
}

// Header returns the first value of a response header, case-insensitively.
func (r *Result) Header(name string) string {
	for key, values := range r.Headers {
		if strings.EqualFold(key, name) && len(values) > 0 {
			return values[0]
		}
	}
	return ""
}

// HasHeader reports whether the response carried the header at all.
func (r *Result) HasHeader(name string) bool {
	for key := range r.Headers {
		if strings.EqualFold(key, name) {
			return true
		}
	}
	return false
}

// Get looks up a gjson path (e.g. "category.name", "tags.0.id") in the body.
func (r *Result) Get(path string) gjson.Result {
	return gjson.GetBytes(r.Body, path)
}

// IsJSON reports whether the body parses as JSON
func (r *Result) IsJSON() bool {
	return gjson.ValidBytes(r.Body)
}

// decompressBody decodes the body based on Content-Encoding.
// Returns the original body unchanged if no decompression is needed or if it fails.
func decompressBody(body []byte, contentEncoding string) ([]byte, bool) {
	if len(body) == 0 || contentEncoding == "" {
		return body, false
	}

	encoding := strings.ToLower(strings.TrimSpace(strings.Split(contentEncoding, ",")[0]))

	var (
		reader io.ReadCloser
		err    error
	)
	switch encoding {
	case "gzip":
		reader, err = gzip.NewReader(bytes.NewReader(body))
	case "deflate":
		// HTTP deflate is zlib-framed; some servers send raw DEFLATE anyway.
		if reader, err = zlib.NewReader(bytes.NewReader(body)); err != nil {
			reader, err = flate.NewReader(bytes.NewReader(body)), nil
		}
	case "br":
		reader = io.NopCloser(brotli.NewReader(bytes.NewReader(body)))
	default:
		return body, false
	}
	if err != nil {
		return body, false
	}
	defer reader.Close()

	decompressed, err := io.ReadAll(io.LimitReader(reader, maxBodySize))
	if err != nil {
		return body, false
	}
	return decompressed, true
}
