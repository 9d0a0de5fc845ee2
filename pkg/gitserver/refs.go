package gitserver

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/format/pktline"

	"github.com/odvcencio/sandgit/pkg/object"
	"github.com/odvcencio/sandgit/pkg/remote"
	"github.com/odvcencio/sandgit/pkg/vfs"
)

// refs returns the advertised branches and tags. Symbolic refs are
// skipped; only HEAD is advertised as one.
func (s *Server) refs() (map[string]object.Hash, error) {
	out := make(map[string]object.Hash)
	for _, ns := range []string{"refs/heads", "refs/tags"} {
		dir := s.gitDir + "/" + ns
		if !s.fs.IsDir(dir) {
			continue
		}
		err := s.fs.Walk(dir, func(p string, info vfs.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() {
				return nil
			}
			data, err := s.fs.ReadFile(p)
			if err != nil {
				return err
			}
			content := strings.TrimSpace(string(data))
			if strings.HasPrefix(content, "ref: ") {
				return nil
			}
			h, err := object.ParseHash(content)
			if err != nil {
				return fmt.Errorf("ref %s: %w", p, err)
			}
			out[strings.TrimPrefix(p, s.gitDir+"/")] = h
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// head returns HEAD's id and the branch it points at, or zero values when
// HEAD is unborn or missing.
func (s *Server) head(refs map[string]object.Hash) (object.Hash, string) {
	data, err := s.fs.ReadFile(s.gitDir + "/HEAD")
	if err != nil {
		return "", ""
	}
	content := strings.TrimSpace(string(data))
	if target, ok := strings.CutPrefix(content, "ref: "); ok {
		if h, ok := refs[target]; ok {
			return h, target
		}
		return "", ""
	}
	h, err := object.ParseHash(content)
	if err != nil {
		return "", ""
	}
	return h, ""
}

func (s *Server) readRef(name string) (object.Hash, error) {
	data, err := s.fs.ReadFile(s.gitDir + "/" + name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", err
	}
	return object.ParseHash(string(data))
}

func sortedRefNames(refs map[string]object.Hash) []string {
	names := make([]string, 0, len(refs))
	for name := range refs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type uploadRequest struct {
	wants []object.Hash
	haves []object.Hash
	caps  remote.Capabilities
}

// parseUploadRequest decodes want lines (capabilities on the first), a
// flush-pkt, have lines and the closing "done".
func parseUploadRequest(body []byte) (*uploadRequest, error) {
	req := &uploadRequest{caps: remote.ParseCapabilities("")}
	sc := pktline.NewScanner(bytes.NewReader(body))
	for sc.Scan() {
		line := strings.TrimSuffix(string(sc.Bytes()), "\n")
		switch {
		case line == "", line == "done":
		case strings.HasPrefix(line, "want "):
			fields := strings.Fields(strings.TrimPrefix(line, "want "))
			if len(fields) == 0 {
				return nil, fmt.Errorf("malformed want line")
			}
			h, err := object.ParseHash(fields[0])
			if err != nil {
				return nil, err
			}
			if len(req.wants) == 0 && len(fields) > 1 {
				req.caps = remote.ParseCapabilities(strings.Join(fields[1:], " "))
			}
			req.wants = append(req.wants, h)
		case strings.HasPrefix(line, "have "):
			h, err := object.ParseHash(strings.TrimPrefix(line, "have "))
			if err != nil {
				return nil, err
			}
			req.haves = append(req.haves, h)
		default:
			return nil, fmt.Errorf("unexpected line %q", line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(req.wants) == 0 {
		return nil, fmt.Errorf("no wants")
	}
	return req, nil
}

// parseReceiveRequest decodes "old new ref" command lines up to the
// flush-pkt and returns the pack bytes that follow.
func parseReceiveRequest(body []byte) ([]remote.Command, remote.Capabilities, []byte, error) {
	r := bytes.NewReader(body)
	sc := pktline.NewScanner(r)
	caps := remote.ParseCapabilities("")
	var cmds []remote.Command
	for sc.Scan() {
		line := strings.TrimSuffix(string(sc.Bytes()), "\n")
		if line == "" {
			return cmds, caps, body[len(body)-r.Len():], nil
		}
		if len(cmds) == 0 {
			var raw string
			line, raw, _ = strings.Cut(line, "\x00")
			caps = remote.ParseCapabilities(raw)
		}
		fields := strings.Fields(line)
		if len(fields) != 3 {
			return nil, caps, nil, fmt.Errorf("malformed command %q", line)
		}
		oldH, err := object.ParseHash(fields[0])
		if err != nil {
			return nil, caps, nil, err
		}
		newH, err := object.ParseHash(fields[1])
		if err != nil {
			return nil, caps, nil, err
		}
		cmds = append(cmds, remote.Command{Ref: fields[2], Old: oldH, New: newH})
	}
	if err := sc.Err(); err != nil {
		return nil, caps, nil, err
	}
	return nil, caps, nil, fmt.Errorf("command list not terminated")
}
