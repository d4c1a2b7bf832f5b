package cache

import (
	"bytes"
	"io"

	"github.com/andybalholm/brotli"
)

// compress shrinks stored response bytes the way a production edge
// cache would before committing them to a backend. Every Store
// implementation in this package routes writes and reads through
// compress/decompress so brotli is applied uniformly regardless of
// backend.
func compress(body []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := brotli.NewWriter(&buf)
	if _, err := w.Write(body); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompress(body []byte) ([]byte, error) {
	r := brotli.NewReader(bytes.NewReader(body))
	return io.ReadAll(r)
}
