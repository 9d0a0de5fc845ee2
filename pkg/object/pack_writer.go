package object

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
)

// PackWriter writes Git-compatible pack streams with zlib-compressed,
// undeltified entries and a SHA-1 trailer.
type PackWriter struct {
	out      io.Writer
	hasher   hash.Hash
	hashedW  io.Writer
	expected uint32
	written  uint32
	finished bool
}

// NewPackWriter writes the pack header for numObjects entries.
func NewPackWriter(out io.Writer, numObjects uint32) (*PackWriter, error) {
	hasher := sha1.New()
	pw := &PackWriter{
		out:      out,
		hasher:   hasher,
		hashedW:  io.MultiWriter(out, hasher),
		expected: numObjects,
	}
	header := PackHeader{Version: supportedPackVersion, NumObjects: numObjects}
	if _, err := pw.hashedW.Write(header.Marshal()); err != nil {
		return nil, fmt.Errorf("write pack header: %w", err)
	}
	return pw, nil
}

// WriteObject appends one object entry.
func (p *PackWriter) WriteObject(objType ObjectType, data []byte) error {
	if p.finished {
		return fmt.Errorf("pack writer already finished")
	}
	if p.written >= p.expected {
		return fmt.Errorf("pack object count exceeded: expected %d", p.expected)
	}
	pt, ok := packTypeFor(objType)
	if !ok {
		return fmt.Errorf("pack: unsupported object type %q", objType)
	}
	compressed, err := compressObject(data)
	if err != nil {
		return fmt.Errorf("compress pack entry: %w", err)
	}
	if _, err := p.hashedW.Write(encodePackEntryHeader(pt, uint64(len(data)))); err != nil {
		return fmt.Errorf("write pack entry header: %w", err)
	}
	if _, err := p.hashedW.Write(compressed); err != nil {
		return fmt.Errorf("write compressed pack entry: %w", err)
	}
	p.written++
	return nil
}

// Finish validates the object count, writes the trailing checksum and
// returns it.
func (p *PackWriter) Finish() (Hash, error) {
	if p.finished {
		return "", fmt.Errorf("pack writer already finished")
	}
	if p.written != p.expected {
		return "", fmt.Errorf("pack object count mismatch: wrote %d, expected %d", p.written, p.expected)
	}
	sum := p.hasher.Sum(nil)
	if _, err := p.out.Write(sum); err != nil {
		return "", fmt.Errorf("write pack trailer checksum: %w", err)
	}
	p.finished = true
	return Hash(hex.EncodeToString(sum)), nil
}

// WritePack streams the given objects from the store into a pack.
func (s *Store) WritePack(w io.Writer, hashes []Hash) (Hash, error) {
	pw, err := NewPackWriter(w, uint32(len(hashes)))
	if err != nil {
		return "", err
	}
	for _, h := range hashes {
		objType, data, err := s.Read(h)
		if err != nil {
			return "", fmt.Errorf("write pack: %w", err)
		}
		if err := pw.WriteObject(objType, data); err != nil {
			return "", fmt.Errorf("write pack %s: %w", h, err)
		}
	}
	return pw.Finish()
}
