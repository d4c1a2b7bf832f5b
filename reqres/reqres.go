// Package reqres is the request/response adapter spec.md §6 describes
// as consumed from the host: cloning a request with an optional URL
// override, synthesizing a response from a body string, and reading a
// response's ok flag and body text. In a browser runtime these would
// bridge to the Fetch API's Request/Response; here they are thin
// wrappers around net/http's own types, which already model the same
// shape.
package reqres

import (
	"bufio"
	"bytes"
	"io"
	"net/http"

	"github.com/pkg/errors"
)

// NewRequest clones original, optionally overriding its URL. The clone
// shares original's Body (http.Request.Clone copies it shallowly);
// dispatch never reads it, since every instruction operates on
// GET-shaped lookups.
func NewRequest(original *http.Request, url string) *http.Request {
	clone := original.Clone(original.Context())
	if url != "" {
		u, err := original.URL.Parse(url)
		if err == nil {
			clone.URL = u
			clone.RequestURI = ""
		}
	}
	return clone
}

// NewResponseFromBody synthesizes a 200 OK response whose body is body.
func NewResponseFromBody(body string) *http.Response {
	return &http.Response{
		StatusCode: http.StatusOK,
		Status:     "200 OK",
		Header:     http.Header{},
		Body:       io.NopCloser(bytes.NewReader([]byte(body))),
	}
}

// Ok reports whether res represents a successful response. A nil
// response is never ok — callers use this to decide whether a fetched
// manifest is usable per spec.md §7 ("response with non-ok status ...
// treated as fresh-unavailable").
func Ok(res *http.Response) bool {
	return res != nil && res.StatusCode >= 200 && res.StatusCode < 300
}

// BodyText drains and returns res's body as a string. Per spec.md §9,
// a missing response has no body to extract: a nil response, or a nil
// Body on a present response, yields "" and no error.
func BodyText(res *http.Response) (string, error) {
	if res == nil || res.Body == nil {
		return "", nil
	}
	defer res.Body.Close()
	b, err := io.ReadAll(res.Body)
	if err != nil {
		return "", errors.Wrap(err, "reqres: read body")
	}
	return string(b), nil
}

// EncodeResponse renders res as its HTTP/1.1 wire bytes, the form the
// cache registry persists. The body is restored onto res afterward so
// callers may still read it once more if needed.
func EncodeResponse(res *http.Response) ([]byte, error) {
	var buf bytes.Buffer
	if err := res.Write(&buf); err != nil {
		return nil, errors.Wrap(err, "reqres: encode response")
	}
	restored, err := http.ReadResponse(bufio.NewReader(bytes.NewReader(buf.Bytes())), nil)
	if err != nil {
		return nil, errors.Wrap(err, "reqres: restore body after encode")
	}
	res.Body = restored.Body
	return buf.Bytes(), nil
}

// DecodeResponse parses HTTP/1.1 wire bytes back into a response.
func DecodeResponse(b []byte) (*http.Response, error) {
	res, err := http.ReadResponse(bufio.NewReader(bytes.NewReader(b)), nil)
	if err != nil {
		return nil, errors.Wrap(err, "reqres: decode response")
	}
	return res, nil
}
