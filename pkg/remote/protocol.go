package remote

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/format/pktline"

	"github.com/odvcencio/sandgit/pkg/object"
)

// Service names a git smart-HTTP service.
type Service string

const (
	UploadPack  Service = "git-upload-pack"
	ReceivePack Service = "git-receive-pack"
)

// Capabilities is the capability list a server advertises on its first
// ref line. Values of key=value capabilities (symref, agent) are kept.
type Capabilities struct {
	set map[string][]string
}

// ParseCapabilities parses a space-separated capability list.
func ParseCapabilities(raw string) Capabilities {
	caps := Capabilities{set: make(map[string][]string)}
	for _, field := range strings.Fields(raw) {
		k, v, _ := strings.Cut(field, "=")
		caps.set[k] = append(caps.set[k], v)
	}
	return caps
}

// Has reports whether the capability is present.
func (c Capabilities) Has(name string) bool {
	_, ok := c.set[name]
	return ok
}

// Values returns the values of a key=value capability.
func (c Capabilities) Values(name string) []string {
	return c.set[name]
}

// String renders the capabilities sorted, space-separated.
func (c Capabilities) String() string {
	var out []string
	for k, vs := range c.set {
		for _, v := range vs {
			if v == "" {
				out = append(out, k)
			} else {
				out = append(out, k+"="+v)
			}
		}
	}
	sort.Strings(out)
	return strings.Join(out, " ")
}

// Advertisement is a server's ref advertisement.
type Advertisement struct {
	// Refs maps full ref names to ids. HEAD and peeled "^{}" entries are
	// not included.
	Refs map[string]object.Hash
	// Head is the branch HEAD points at ("refs/heads/main"), when known.
	Head         string
	HeadHash     object.Hash
	Capabilities Capabilities
}

// parseAdvertisement decodes an info/refs response: an optional
// "# service=" banner terminated by a flush-pkt, then one ref per line
// with capabilities after a NUL on the first.
func parseAdvertisement(r io.Reader, svc Service) (*Advertisement, error) {
	sc := pktline.NewScanner(r)
	adv := &Advertisement{Refs: make(map[string]object.Hash), Capabilities: ParseCapabilities("")}
	first := true
	for sc.Scan() {
		line := string(bytes.TrimSuffix(sc.Bytes(), []byte("\n")))
		if line == "" {
			if first {
				continue
			}
			break
		}
		if strings.HasPrefix(line, "# service=") {
			if got := strings.TrimPrefix(line, "# service="); got != string(svc) {
				return nil, fmt.Errorf("%w: advertised service %q, want %q", ErrProtocol, got, svc)
			}
			continue
		}
		if strings.HasPrefix(line, "ERR ") {
			return nil, &RemoteError{Message: strings.TrimPrefix(line, "ERR ")}
		}
		if first {
			var caps string
			line, caps, _ = strings.Cut(line, "\x00")
			adv.Capabilities = ParseCapabilities(caps)
			first = false
		}
		id, name, ok := strings.Cut(line, " ")
		if !ok {
			return nil, fmt.Errorf("%w: malformed ref line %q", ErrProtocol, line)
		}
		h, err := object.ParseHash(id)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrProtocol, err)
		}
		switch {
		case name == "capabilities^{}" || strings.HasSuffix(name, "^{}"):
		case name == "HEAD":
			adv.HeadHash = h
		default:
			adv.Refs[name] = h
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProtocol, err)
	}
	for _, v := range adv.Capabilities.Values("symref") {
		if from, to, ok := strings.Cut(v, ":"); ok && from == "HEAD" {
			adv.Head = to
		}
	}
	if adv.Head == "" && adv.HeadHash != "" {
		adv.Head = guessHead(adv.Refs, adv.HeadHash)
	}
	return adv, nil
}

// guessHead picks the branch HEAD most likely points at when the server
// does not advertise symref: main, then master, then the first match.
func guessHead(refs map[string]object.Hash, head object.Hash) string {
	for _, name := range []string{"refs/heads/main", "refs/heads/master"} {
		if refs[name] == head {
			return name
		}
	}
	var names []string
	for name, h := range refs {
		if h == head && strings.HasPrefix(name, "refs/heads/") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	if len(names) > 0 {
		return names[0]
	}
	return ""
}

// maxHaves bounds the have lines sent in one negotiation.
const maxHaves = 256

// encodeUploadRequest writes the want/have/done request body. Only
// capabilities the server advertised are requested.
func encodeUploadRequest(w io.Writer, wants, haves []object.Hash, server Capabilities, agent string) error {
	enc := pktline.NewEncoder(w)
	var caps []string
	for _, c := range []string{"side-band-64k", "ofs-delta", "no-progress"} {
		if server.Has(c) {
			caps = append(caps, c)
		}
	}
	caps = append(caps, "agent="+agent)
	for i, h := range wants {
		line := "want " + string(h)
		if i == 0 {
			line += " " + strings.Join(caps, " ")
		}
		if err := enc.EncodeString(line + "\n"); err != nil {
			return err
		}
	}
	if err := enc.Flush(); err != nil {
		return err
	}
	if len(haves) > maxHaves {
		haves = haves[:maxHaves]
	}
	for _, h := range haves {
		if err := enc.EncodeString("have " + string(h) + "\n"); err != nil {
			return err
		}
	}
	return enc.EncodeString("done\n")
}

// Command is one ref update sent to receive-pack. A zero Old creates the
// ref; a zero New deletes it.
type Command struct {
	Ref string
	Old object.Hash
	New object.Hash
}

func encodePushRequest(w io.Writer, cmds []Command, pack []byte, server Capabilities, agent string) error {
	enc := pktline.NewEncoder(w)
	caps := []string{"report-status"}
	if server.Has("side-band-64k") {
		caps = append(caps, "side-band-64k")
	}
	caps = append(caps, "agent="+agent)
	for i, c := range cmds {
		line := fmt.Sprintf("%s %s %s", zeroIfEmpty(c.Old), zeroIfEmpty(c.New), c.Ref)
		if i == 0 {
			line += "\x00" + strings.Join(caps, " ")
		}
		if err := enc.EncodeString(line + "\n"); err != nil {
			return err
		}
	}
	if err := enc.Flush(); err != nil {
		return err
	}
	_, err := w.Write(pack)
	return err
}

func zeroIfEmpty(h object.Hash) object.Hash {
	if h == "" {
		return object.ZeroHash
	}
	return h
}

// PushReport is the parsed report-status of a push.
type PushReport struct {
	UnpackStatus string            // "ok" or the server's unpack error
	Refs         map[string]string // ref -> "" when accepted, else the reason
}

// Err returns an error wrapping ErrPushRejected when the server failed to
// unpack or rejected any ref.
func (p *PushReport) Err() error {
	if p.UnpackStatus != "ok" {
		return fmt.Errorf("%w: unpack %s", ErrPushRejected, p.UnpackStatus)
	}
	var rejected []string
	for ref, reason := range p.Refs {
		if reason != "" {
			rejected = append(rejected, ref+" ("+reason+")")
		}
	}
	if len(rejected) > 0 {
		sort.Strings(rejected)
		return fmt.Errorf("%w: %s", ErrPushRejected, strings.Join(rejected, ", "))
	}
	return nil
}

func parseReportStatus(r io.Reader) (*PushReport, error) {
	sc := pktline.NewScanner(r)
	rep := &PushReport{Refs: make(map[string]string)}
	seenUnpack := false
	for sc.Scan() {
		line := strings.TrimSuffix(string(sc.Bytes()), "\n")
		if line == "" {
			break
		}
		switch {
		case strings.HasPrefix(line, "unpack "):
			rep.UnpackStatus = strings.TrimPrefix(line, "unpack ")
			seenUnpack = true
		case strings.HasPrefix(line, "ok "):
			rep.Refs[strings.TrimPrefix(line, "ok ")] = ""
		case strings.HasPrefix(line, "ng "):
			ref, reason, _ := strings.Cut(strings.TrimPrefix(line, "ng "), " ")
			if reason == "" {
				reason = "rejected"
			}
			rep.Refs[ref] = reason
		case strings.HasPrefix(line, "ERR "):
			return nil, &RemoteError{Message: strings.TrimPrefix(line, "ERR ")}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: report-status: %w", ErrProtocol, err)
	}
	if !seenUnpack {
		return nil, fmt.Errorf("%w: report-status missing unpack line", ErrProtocol)
	}
	return rep, nil
}
