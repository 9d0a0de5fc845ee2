package remote

import (
	"net/http"
	"net/url"
	"os"
	"strings"
)

// Credential authenticates requests to one origin. A Token is sent as a
// bearer token; otherwise Username and Password use basic auth.
type Credential struct {
	Username string
	Password string
	Token    string
}

func (c Credential) empty() bool {
	return c.Token == "" && c.Username == ""
}

func (c Credential) apply(req *http.Request) {
	switch {
	case c.Token != "":
		req.Header.Set("Authorization", "Bearer "+c.Token)
	case c.Username != "":
		req.SetBasicAuth(c.Username, c.Password)
	}
}

// CredentialLookup supplies credentials per origin ("scheme://host").
// Lookups happen on every call; nothing is cached in repository state.
type CredentialLookup interface {
	Lookup(origin string) (Credential, bool)
}

// CredentialFunc adapts a function to CredentialLookup.
type CredentialFunc func(origin string) (Credential, bool)

func (f CredentialFunc) Lookup(origin string) (Credential, bool) { return f(origin) }

// EnvCredentials reads SANDGIT_TOKEN, or SANDGIT_USERNAME and
// SANDGIT_PASSWORD, for every origin.
type EnvCredentials struct {
	// Getenv defaults to os.Getenv.
	Getenv func(string) string
}

func (e EnvCredentials) Lookup(string) (Credential, bool) {
	getenv := e.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	c := Credential{
		Token:    strings.TrimSpace(getenv("SANDGIT_TOKEN")),
		Username: strings.TrimSpace(getenv("SANDGIT_USERNAME")),
		Password: getenv("SANDGIT_PASSWORD"),
	}
	return c, !c.empty()
}

// StaticCredentials maps origins to fixed credentials.
type StaticCredentials map[string]Credential

func (s StaticCredentials) Lookup(origin string) (Credential, bool) {
	c, ok := s[origin]
	return c, ok && !c.empty()
}

// endpoint is a parsed remote URL with any userinfo split off.
type endpoint struct {
	base   string // URL without userinfo, query or trailing slash
	origin string
	user   *Credential
}

func parseEndpoint(raw string) (endpoint, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return endpoint{}, err
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return endpoint{}, &url.Error{Op: "parse", URL: raw, Err: ErrUnsupportedURL}
	}
	var ep endpoint
	if u.User != nil {
		pass, _ := u.User.Password()
		ep.user = &Credential{Username: u.User.Username(), Password: pass}
	}
	u.User = nil
	u.RawQuery = ""
	u.Fragment = ""
	ep.base = strings.TrimRight(u.String(), "/")
	ep.origin = u.Scheme + "://" + u.Host
	return ep, nil
}

// Origin returns "scheme://host" for a remote URL, the key credential
// lookups use.
func Origin(raw string) string {
	ep, err := parseEndpoint(raw)
	if err != nil {
		return ""
	}
	return ep.origin
}
