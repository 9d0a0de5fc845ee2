package remote

import (
	"fmt"
	"io"

	"github.com/go-git/go-git/v5/plumbing/format/pktline"
)

// Sideband channel identifiers.
const (
	SidebandData     byte = 0x01
	SidebandProgress byte = 0x02
	SidebandError    byte = 0x03
)

// sidebandChunk keeps frames under the side-band-64k payload limit.
const sidebandChunk = pktline.MaxPayloadSize - 1

// SidebandWriter multiplexes data, progress and error messages onto
// pkt-lines, the first payload byte naming the channel.
type SidebandWriter struct {
	enc *pktline.Encoder
}

func NewSidebandWriter(w io.Writer) *SidebandWriter {
	return &SidebandWriter{enc: pktline.NewEncoder(w)}
}

func (sw *SidebandWriter) writeFrames(channel byte, data []byte) error {
	for len(data) > 0 {
		n := min(len(data), sidebandChunk)
		frame := append([]byte{channel}, data[:n]...)
		if err := sw.enc.Encode(frame); err != nil {
			return fmt.Errorf("write sideband frame: %w", err)
		}
		data = data[n:]
	}
	return nil
}

func (sw *SidebandWriter) WriteData(data []byte) error {
	return sw.writeFrames(SidebandData, data)
}

func (sw *SidebandWriter) WriteProgress(msg string) error {
	return sw.writeFrames(SidebandProgress, []byte(msg))
}

func (sw *SidebandWriter) WriteError(msg string) error {
	return sw.writeFrames(SidebandError, []byte(msg))
}

// Flush ends the multiplexed stream.
func (sw *SidebandWriter) Flush() error {
	return sw.enc.Flush()
}

// SidebandReader reads sideband frames from a pkt-line stream.
type SidebandReader struct {
	sc      *pktline.Scanner
	pending []byte // a frame already consumed by the caller's scanner
}

func NewSidebandReader(r io.Reader) *SidebandReader {
	return &SidebandReader{sc: pktline.NewScanner(r)}
}

// ReadFrame returns the channel and payload of the next frame, or io.EOF
// at a flush-pkt or the end of the stream.
func (sr *SidebandReader) ReadFrame() (byte, []byte, error) {
	line := sr.pending
	sr.pending = nil
	if line == nil {
		if !sr.sc.Scan() {
			if err := sr.sc.Err(); err != nil {
				return 0, nil, fmt.Errorf("read sideband: %w", err)
			}
			return 0, nil, io.EOF
		}
		line = sr.sc.Bytes()
	}
	if len(line) == 0 {
		return 0, nil, io.EOF
	}
	return line[0], append([]byte(nil), line[1:]...), nil
}

// SidebandDataReader presents the data channel as an io.Reader, passing
// progress to a callback and turning the error channel into a
// *RemoteError.
type SidebandDataReader struct {
	sr         *SidebandReader
	onProgress func(string)
	buf        []byte
	done       bool
}

func NewSidebandDataReader(r io.Reader, onProgress func(string)) *SidebandDataReader {
	return newSidebandDataReader(NewSidebandReader(r), onProgress)
}

func newSidebandDataReader(sr *SidebandReader, onProgress func(string)) *SidebandDataReader {
	return &SidebandDataReader{sr: sr, onProgress: onProgress}
}

func (dr *SidebandDataReader) Read(p []byte) (int, error) {
	for len(dr.buf) == 0 {
		if dr.done {
			return 0, io.EOF
		}
		channel, payload, err := dr.sr.ReadFrame()
		if err == io.EOF {
			dr.done = true
			return 0, io.EOF
		}
		if err != nil {
			return 0, err
		}
		switch channel {
		case SidebandData:
			dr.buf = payload
		case SidebandProgress:
			if dr.onProgress != nil {
				dr.onProgress(string(payload))
			}
		case SidebandError:
			return 0, &RemoteError{Message: string(payload)}
		default:
			return 0, fmt.Errorf("%w: unknown sideband channel %d", ErrProtocol, channel)
		}
	}
	n := copy(p, dr.buf)
	dr.buf = dr.buf[n:]
	return n, nil
}
