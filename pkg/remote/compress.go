package remote

import (
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// acceptEncoding is sent on every request. Setting it turns off net/http's
// transparent gzip handling, so decodeBody handles both encodings.
const acceptEncoding = "gzip, zstd"

// decodeBody wraps a response body according to its Content-Encoding.
func decodeBody(body io.Reader, contentEncoding string) (io.ReadCloser, error) {
	switch strings.ToLower(strings.TrimSpace(contentEncoding)) {
	case "", "identity":
		return io.NopCloser(body), nil
	case "gzip", "x-gzip":
		return gzip.NewReader(body)
	case "zstd":
		dec, err := zstd.NewReader(body)
		if err != nil {
			return nil, err
		}
		return &zstdReadCloser{dec: dec}, nil
	default:
		return io.NopCloser(body), nil
	}
}

type zstdReadCloser struct {
	dec *zstd.Decoder
}

func (z *zstdReadCloser) Read(p []byte) (int, error) {
	return z.dec.Read(p)
}

func (z *zstdReadCloser) Close() error {
	z.dec.Close()
	return nil
}
