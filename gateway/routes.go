package gateway

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/dghubble/trie"
	"gopkg.in/yaml.v2"
)

type (
	config struct {
		ClientKeyHeaders []string      `yaml:"clientKeyHeaders,flow"`
		Routes           []configRoute `yaml:"routes,flow"`
	}

	configRoute struct {
		Prefix    string         `yaml:"prefix"`
		Target    *string        `yaml:"target"`
		Rewrite   *string        `yaml:"rewrite"`
		Admission *bool          `yaml:"admission"`
		CacheTTL  *time.Duration `yaml:"cacheTtl"`
		Cors      *configCors    `yaml:"cors"`
		Routes    []configRoute  `yaml:"routes,flow"`
	}

	routes struct{ t *trie.PathTrie }

	route struct {
		cors     cors
		target   *url.URL
		prefix   string
		rewrite  string
		admit    bool
		cacheTTL time.Duration
	}

	match struct {
		path  string
		route *route
	}
)

var (
	ErrNoRoutes         = errors.New("no routes configured")
	ErrNoAllowedHeaders = errors.New("no headers allowed in CORS")
	ErrNoAllowedOrigins = errors.New("no origins allowed in CORS")
	ErrNoAllowedMethods = errors.New("no methods allowed in CORS")
)

func parseConfig(configDataSource io.Reader) (*config, error) {
	var c config

	if err := yaml.NewDecoder(configDataSource).Decode(&c); err != nil {
		return nil, fmt.Errorf("failed to decode config data: %w", err)
	}

	if len(c.Routes) == 0 {
		return nil, ErrNoRoutes
	}

	return &c, nil
}

func newRoutes(c *config) (*routes, error) {
	pathTrie := trie.NewPathTrie()

	if err := addRoutes(pathTrie, "/", nil, c.Routes); err != nil {
		return nil, fmt.Errorf("failed to add routes: %w", err)
	}

	return &routes{t: pathTrie}, nil
}

// addRoutes inserts the route tree into the trie. Children inherit target,
// rewrite, admission, cache and CORS settings from their ancestors unless
// they override them.
func addRoutes(t *trie.PathTrie, p string, a *route, r []configRoute) error {
	for i := range r {
		if r[i].Prefix == "" {
			continue
		}

		m := path.Join(p, r[i].Prefix)

		c := route{prefix: r[i].Prefix}

		if a != nil {
			c.target = a.target
			c.rewrite = a.rewrite
			c.admit = a.admit
			c.cacheTTL = a.cacheTTL
			c.cors = a.cors
		}

		if r[i].Target != nil {
			u, err := url.Parse(*r[i].Target)
			if err != nil {
				return fmt.Errorf("failed to parse target: %w", err)
			}

			c.target = u
		}

		if r[i].Rewrite != nil {
			c.rewrite = *r[i].Rewrite
		}

		if r[i].Admission != nil {
			c.admit = *r[i].Admission
		}

		if r[i].CacheTTL != nil {
			c.cacheTTL = *r[i].CacheTTL
		}

		if err := c.cors.parse(&r[i]); err != nil {
			return fmt.Errorf("failed to parse cors: %w", err)
		}

		if err := c.cors.validate(); err != nil {
			return fmt.Errorf("route %q is invalid: %w", c.prefix, err)
		}

		if !t.Put(m, &c) {
			return fmt.Errorf("route %q to %q is already mapped", c.prefix, c.target)
		}

		if err := addRoutes(t, m, &c, r[i].Routes); err != nil {
			return err
		}
	}

	return nil
}

// match walks the trie and returns the longest-prefix route, with the
// request path rewritten when the route asks for it.
func (r *routes) match(p string) (match, bool) {
	var (
		l int
		t *route
		e = r.t.WalkPath(p, func(key string, value interface{}) error {
			//nolint:errcheck //always known
			t = value.(*route)
			l = len(key)

			return nil
		})
	)

	if e != nil || t == nil || t.target == nil {
		return match{}, false
	}

	m := match{path: p, route: t}

	if m.route.rewrite != "" {
		m.path = singleJoiningSlash(m.route.rewrite, p[l:])
	}

	return m, true
}

func singleJoiningSlash(a, b string) string {
	var (
		aSlash = strings.HasSuffix(a, "/")
		bSlash = strings.HasPrefix(b, "/")
	)

	switch {
	case b == "":
		return a
	case aSlash && bSlash:
		return a + b[1:]
	case !aSlash && !bSlash:
		return a + "/" + b
	}

	return a + b
}
