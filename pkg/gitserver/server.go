// Package gitserver serves a repository stored in a virtual filesystem over
// git's smart-HTTP protocol: ref advertisement, upload-pack and
// receive-pack with report-status.
package gitserver

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/go-git/go-git/v5/plumbing/format/pktline"

	"github.com/odvcencio/sandgit/pkg/object"
	"github.com/odvcencio/sandgit/pkg/remote"
	"github.com/odvcencio/sandgit/pkg/vfs"
)

const (
	uploadCaps  = "side-band-64k ofs-delta no-progress agent=sandgit-server"
	receiveCaps = "report-status side-band-64k delete-refs agent=sandgit-server"

	maxRequestBody = 256 << 20
)

// Options configures a Server.
type Options struct {
	Logger *slog.Logger
	// Authorize, when set, gates every request. Returning false answers
	// 401 with a Basic challenge.
	Authorize func(*http.Request) bool
}

// Server is an http.Handler for one repository. Ref updates from
// receive-pack are serialized; reads take no lock.
type Server struct {
	fs     *vfs.FS
	gitDir string
	store  *object.Store
	opts   Options
	logger *slog.Logger

	mu sync.Mutex
}

// New serves the repository whose .git directory is gitDir.
func New(fsys *vfs.FS, gitDir string, opts Options) *Server {
	s := &Server{
		fs:     fsys,
		gitDir: gitDir,
		store:  object.NewStore(fsys, gitDir),
		opts:   opts,
		logger: opts.Logger,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.opts.Authorize != nil && !s.opts.Authorize(r) {
		w.Header().Set("WWW-Authenticate", `Basic realm="sandgit"`)
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}
	p := r.URL.Path
	switch {
	case r.Method == http.MethodGet && strings.HasSuffix(p, "/info/refs"):
		s.handleInfoRefs(w, r)
	case r.Method == http.MethodPost && strings.HasSuffix(p, "/"+string(remote.UploadPack)):
		s.handleUploadPack(w, r)
	case r.Method == http.MethodPost && strings.HasSuffix(p, "/"+string(remote.ReceivePack)):
		s.handleReceivePack(w, r)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

func (s *Server) handleInfoRefs(w http.ResponseWriter, r *http.Request) {
	svc := remote.Service(r.URL.Query().Get("service"))
	var caps string
	switch svc {
	case remote.UploadPack:
		caps = uploadCaps
	case remote.ReceivePack:
		caps = receiveCaps
	default:
		http.Error(w, "unsupported service", http.StatusForbidden)
		return
	}
	refs, err := s.refs()
	if err != nil {
		s.fail(w, "list refs", err)
		return
	}
	head, headTarget := s.head(refs)
	if headTarget != "" {
		caps += " symref=HEAD:" + headTarget
	}

	var buf bytes.Buffer
	enc := pktline.NewEncoder(&buf)
	_ = enc.EncodeString("# service=" + string(svc) + "\n")
	_ = enc.Flush()
	first := true
	line := func(h object.Hash, name string) {
		if first {
			_ = enc.EncodeString(string(h) + " " + name + "\x00" + caps + "\n")
			first = false
			return
		}
		_ = enc.EncodeString(string(h) + " " + name + "\n")
	}
	if head != "" && svc == remote.UploadPack {
		line(head, "HEAD")
	}
	for _, name := range sortedRefNames(refs) {
		line(refs[name], name)
	}
	if first {
		line(object.ZeroHash, "capabilities^{}")
	}
	_ = enc.Flush()

	w.Header().Set("Content-Type", "application/x-"+string(svc)+"-advertisement")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleUploadPack(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		s.fail(w, "read request", err)
		return
	}
	req, err := parseUploadRequest(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	for _, h := range req.wants {
		if !s.store.Has(h) {
			http.Error(w, fmt.Sprintf("want %s: not our ref", h), http.StatusBadRequest)
			return
		}
	}
	var common []object.Hash
	for _, h := range req.haves {
		if s.store.Has(h) {
			common = append(common, h)
		}
	}
	objs, err := s.store.CollectMissing(req.wants, common)
	if err != nil {
		s.fail(w, "collect objects", err)
		return
	}
	var pack bytes.Buffer
	if _, err := s.store.WritePack(&pack, objs); err != nil {
		s.fail(w, "write pack", err)
		return
	}

	var out bytes.Buffer
	enc := pktline.NewEncoder(&out)
	if len(common) > 0 {
		_ = enc.EncodeString("ACK " + string(common[0]) + "\n")
	} else {
		_ = enc.EncodeString("NAK\n")
	}
	if req.caps.Has("side-band-64k") {
		sw := remote.NewSidebandWriter(&out)
		if !req.caps.Has("no-progress") {
			_ = sw.WriteProgress(fmt.Sprintf("Counting objects: %d, done.\n", len(objs)))
		}
		_ = sw.WriteData(pack.Bytes())
		_ = sw.Flush()
	} else {
		out.Write(pack.Bytes())
	}
	s.logger.Debug("upload-pack served", "wants", len(req.wants), "common", len(common), "objects", len(objs))

	w.Header().Set("Content-Type", "application/x-git-upload-pack-result")
	_, _ = w.Write(out.Bytes())
}

func (s *Server) handleReceivePack(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		s.fail(w, "read request", err)
		return
	}
	cmds, caps, pack, err := parseReceiveRequest(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	unpack := "ok"
	if len(pack) > 0 {
		if _, err := s.store.IngestPack(pack); err != nil {
			unpack = oneLine(err.Error())
		}
	}
	results := make([]string, len(cmds))
	if unpack == "ok" {
		s.mu.Lock()
		for i, c := range cmds {
			results[i] = s.applyCommand(c)
		}
		s.mu.Unlock()
	} else {
		for i := range cmds {
			results[i] = "unpacker error"
		}
	}

	var report bytes.Buffer
	enc := pktline.NewEncoder(&report)
	_ = enc.EncodeString("unpack " + unpack + "\n")
	for i, c := range cmds {
		if results[i] == "" {
			_ = enc.EncodeString("ok " + c.Ref + "\n")
		} else {
			_ = enc.EncodeString("ng " + c.Ref + " " + results[i] + "\n")
		}
	}
	_ = enc.Flush()

	payload := report.Bytes()
	if caps.Has("side-band-64k") {
		var out bytes.Buffer
		sw := remote.NewSidebandWriter(&out)
		_ = sw.WriteData(payload)
		_ = sw.Flush()
		payload = out.Bytes()
	}
	s.logger.Debug("receive-pack served", "commands", len(cmds), "unpack", unpack)

	w.Header().Set("Content-Type", "application/x-git-receive-pack-result")
	_, _ = w.Write(payload)
}

// applyCommand performs one ref update under s.mu and returns "" on
// success or the rejection reason.
func (s *Server) applyCommand(c remote.Command) string {
	if !strings.HasPrefix(c.Ref, "refs/") || strings.Contains(c.Ref, "..") {
		return "invalid ref name"
	}
	cur, err := s.readRef(c.Ref)
	if err != nil {
		return oneLine(err.Error())
	}
	if cur != zeroToEmpty(c.Old) {
		return "fetch first"
	}
	p := s.gitDir + "/" + c.Ref
	if c.New.IsZero() {
		if err := s.fs.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return oneLine(err.Error())
		}
		return ""
	}
	if !s.store.Has(c.New) {
		return "missing object " + c.New.Short()
	}
	if err := s.fs.WriteFile(p, []byte(string(c.New)+"\n"), 0o644); err != nil {
		return oneLine(err.Error())
	}
	return ""
}

func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	s.logger.Error("git server request failed", "op", op, "error", err)
	http.Error(w, op+": "+err.Error(), http.StatusInternalServerError)
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func zeroToEmpty(h object.Hash) object.Hash {
	if h.IsZero() {
		return ""
	}
	return h
}
