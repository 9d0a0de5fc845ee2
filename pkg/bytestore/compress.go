package bytestore

import (
	"bytes"

	"github.com/klauspost/compress/zstd"
)

var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

func compressZstd(data []byte) ([]byte, error) {
	// Zero frames keep empty values recognisable as compressed records.
	enc, err := zstd.NewWriter(nil, zstd.WithZeroFrames(true))
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	return enc.EncodeAll(data, nil), nil
}

func decompressZstd(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(data, nil)
}

// isZstdFrame reports whether data starts with a zstd frame header. Values
// written without compression are stored behind a zero byte so they never
// collide with the magic.
func isZstdFrame(data []byte) bool {
	return bytes.HasPrefix(data, zstdMagic)
}
