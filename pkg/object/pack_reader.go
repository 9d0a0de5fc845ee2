package object

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

// PackEntry is one raw entry of a pack stream. Delta entries carry their
// base reference and the undecoded delta in Data.
type PackEntry struct {
	Offset     uint64
	Type       PackObjectType
	Size       uint64
	Data       []byte
	BaseOffset uint64
	BaseHash   Hash
}

// PackFile is the decoded content of a full pack stream.
type PackFile struct {
	Header   PackHeader
	Entries  []PackEntry
	Checksum Hash
}

// PackObject is a fully resolved object from a pack.
type PackObject struct {
	Hash Hash
	Type ObjectType
	Data []byte
}

// ReadPack parses a full pack, verifies the SHA-1 trailer, and returns the
// raw entries in stream order.
func ReadPack(data []byte) (*PackFile, error) {
	if len(data) < packHeaderSize+packTrailerSize {
		return nil, fmt.Errorf("pack too short: %d", len(data))
	}
	payload := data[:len(data)-packTrailerSize]
	trailer := data[len(data)-packTrailerSize:]
	if sum := sha1.Sum(payload); !bytes.Equal(sum[:], trailer) {
		return nil, fmt.Errorf("pack checksum mismatch")
	}

	header, err := UnmarshalPackHeader(payload[:packHeaderSize])
	if err != nil {
		return nil, err
	}

	offset := packHeaderSize
	entries := make([]PackEntry, 0, header.NumObjects)
	for i := uint32(0); i < header.NumObjects; i++ {
		entry := PackEntry{Offset: uint64(offset)}
		objType, size, n, err := decodePackEntryHeader(payload[offset:])
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		entry.Type, entry.Size = objType, size
		offset += n

		switch objType {
		case PackOfsDelta:
			dist, n, err := decodeOfsDeltaDistance(payload[offset:])
			if err != nil {
				return nil, fmt.Errorf("entry %d: %w", i, err)
			}
			if dist == 0 || dist > entry.Offset {
				return nil, fmt.Errorf("entry %d: ofs-delta base distance %d out of range", i, dist)
			}
			entry.BaseOffset = entry.Offset - dist
			offset += n
		case PackRefDelta:
			if offset+20 > len(payload) {
				return nil, fmt.Errorf("entry %d: truncated ref-delta base", i)
			}
			entry.BaseHash = Hash(hex.EncodeToString(payload[offset : offset+20]))
			offset += 20
		}
		if offset >= len(payload) {
			return nil, fmt.Errorf("entry %d: missing compressed payload", i)
		}

		raw, consumed, err := inflateEntry(payload[offset:])
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		if uint64(len(raw)) != size {
			return nil, fmt.Errorf("entry %d: size mismatch header=%d decoded=%d", i, size, len(raw))
		}
		entry.Data = raw
		offset += consumed
		entries = append(entries, entry)
	}

	if offset != len(payload) {
		return nil, fmt.Errorf("pack has trailing undecoded bytes: %d", len(payload)-offset)
	}
	return &PackFile{
		Header:   *header,
		Entries:  entries,
		Checksum: Hash(hex.EncodeToString(trailer)),
	}, nil
}

// inflateEntry decompresses one zlib stream and reports how many input
// bytes it used. bytes.Reader is an io.ByteReader, so the decompressor
// never reads past the end of the stream.
func inflateEntry(data []byte) ([]byte, int, error) {
	sub := bytes.NewReader(data)
	zr, err := zlib.NewReader(sub)
	if err != nil {
		return nil, 0, fmt.Errorf("zlib reader: %w", err)
	}
	raw, err := io.ReadAll(zr)
	if err != nil {
		_ = zr.Close()
		return nil, 0, fmt.Errorf("decompress: %w", err)
	}
	if err := zr.Close(); err != nil {
		return nil, 0, fmt.Errorf("close zlib stream: %w", err)
	}
	return raw, len(data) - sub.Len(), nil
}

// ReadPackFromReader reads a complete pack stream from r.
func ReadPackFromReader(r io.Reader) (*PackFile, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read pack stream: %w", err)
	}
	return ReadPack(data)
}

// BaseLookup supplies REF_DELTA bases that are not in the pack itself, as
// happens with thin packs.
type BaseLookup func(Hash) (ObjectType, []byte, error)

// Resolve expands every delta entry and returns the objects in stream
// order with their ids.
func (pf *PackFile) Resolve(lookup BaseLookup) ([]PackObject, error) {
	byOffset := make(map[uint64]int, len(pf.Entries))
	for i, e := range pf.Entries {
		byOffset[e.Offset] = i
	}

	resolved := make([]*PackObject, len(pf.Entries))
	byHash := make(map[Hash]*PackObject, len(pf.Entries))

	var resolveAt func(i, depth int) (*PackObject, error)
	resolveAt = func(i, depth int) (*PackObject, error) {
		if resolved[i] != nil {
			return resolved[i], nil
		}
		if depth > 64 {
			return nil, fmt.Errorf("delta chain too deep at offset %d", pf.Entries[i].Offset)
		}
		e := pf.Entries[i]
		var (
			baseType ObjectType
			baseData []byte
		)
		switch e.Type {
		case PackOfsDelta:
			bi, ok := byOffset[e.BaseOffset]
			if !ok {
				return nil, fmt.Errorf("ofs-delta base at offset %d not found", e.BaseOffset)
			}
			base, err := resolveAt(bi, depth+1)
			if err != nil {
				return nil, err
			}
			baseType, baseData = base.Type, base.Data
		case PackRefDelta:
			if base, ok := byHash[e.BaseHash]; ok {
				baseType, baseData = base.Type, base.Data
				break
			}
			if lookup == nil {
				return nil, errDeferred
			}
			t, d, err := lookup(e.BaseHash)
			if err != nil {
				return nil, errDeferred
			}
			baseType, baseData = t, d
		default:
			objType, ok := objectTypeFor(e.Type)
			if !ok {
				return nil, fmt.Errorf("unsupported pack object type %d", e.Type)
			}
			obj := &PackObject{Hash: HashObject(objType, e.Data), Type: objType, Data: e.Data}
			resolved[i] = obj
			byHash[obj.Hash] = obj
			return obj, nil
		}
		data, err := applyDelta(baseData, e.Data)
		if err != nil {
			return nil, fmt.Errorf("apply delta at offset %d: %w", e.Offset, err)
		}
		obj := &PackObject{Hash: HashObject(baseType, data), Type: baseType, Data: data}
		resolved[i] = obj
		byHash[obj.Hash] = obj
		return obj, nil
	}

	// REF_DELTA bases may appear later in the stream; keep sweeping while
	// progress is made.
	for {
		progress, pending := false, 0
		for i := range pf.Entries {
			if resolved[i] != nil {
				continue
			}
			if _, err := resolveAt(i, 0); err != nil {
				if err == errDeferred {
					pending++
					continue
				}
				return nil, err
			}
			progress = true
		}
		if pending == 0 {
			break
		}
		if !progress {
			return nil, fmt.Errorf("pack has %d deltas with missing bases", pending)
		}
	}

	out := make([]PackObject, len(resolved))
	for i, obj := range resolved {
		out[i] = *obj
	}
	return out, nil
}

var errDeferred = errors.New("delta base not yet available")

// IngestPack resolves a pack against the store and writes every object.
// Objects already present are skipped by Write's idempotence.
func (s *Store) IngestPack(data []byte) ([]Hash, error) {
	pf, err := ReadPack(data)
	if err != nil {
		return nil, fmt.Errorf("ingest pack: %w", err)
	}
	objs, err := pf.Resolve(s.Read)
	if err != nil {
		return nil, fmt.Errorf("ingest pack: %w", err)
	}
	out := make([]Hash, 0, len(objs))
	for _, obj := range objs {
		h, err := s.Write(obj.Type, obj.Data)
		if err != nil {
			return nil, fmt.Errorf("ingest pack: %w", err)
		}
		out = append(out, h)
	}
	return out, nil
}
