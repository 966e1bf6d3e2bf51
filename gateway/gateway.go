package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"github.com/promptgate/gateway/admission"
	"github.com/promptgate/gateway/cache"
	"github.com/promptgate/gateway/secret"
)

type (
	// Gateway matches requests to upstream routes, runs the admission engine
	// on guarded routes and reverse-proxies what passes.
	Gateway struct {
		routes     *routes
		engine     *admission.Engine
		responses  cache.Cache
		proxy      *httputil.ReverseProxy
		apiKey     secret.Secret
		keyHeaders []string
		now        func() time.Time
	}

	contextKey uint

	promptRequest struct {
		Prompt string `json:"prompt"`
	}

	errorDetail struct {
		Code       string `json:"code"`
		Message    string `json:"message"`
		RetryAfter int    `json:"retryAfter,omitempty"`
	}

	errorResponse struct {
		Error errorDetail `json:"error"`
	}
)

const (
	matchKey contextKey = iota
	callerContextKey
)

const (
	maxBodyBytes           = 1 << 20
	headerRemainingWindow  = "X-RateLimit-Remaining-Window"
	headerRemainingDaily   = "X-RateLimit-Remaining-Daily"
	headerRetryAfter       = "Retry-After"
	headerCache            = "X-Cache"
	defaultClientKeyHeader = "X-Forwarded-For"
)

var admissionDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "gateway_admission_decisions_total",
	Help: "The total number of admission decisions by outcome",
}, []string{"decision"})

func New(configDataSource io.Reader, engine *admission.Engine, apiKey secret.Secret, responses cache.Cache) (*Gateway, error) {
	c, err := parseConfig(configDataSource)
	if err != nil {
		return nil, fmt.Errorf("failed to parse gateway config: %w", err)
	}

	r, err := newRoutes(c)
	if err != nil {
		return nil, fmt.Errorf("failed to build gateway routes: %w", err)
	}

	keyHeaders := c.ClientKeyHeaders
	if len(keyHeaders) == 0 {
		keyHeaders = []string{defaultClientKeyHeader}
	}

	g := &Gateway{
		routes:     r,
		engine:     engine,
		responses:  responses,
		apiKey:     apiKey,
		keyHeaders: keyHeaders,
		now:        time.Now,
	}

	g.proxy = g.newReverseProxy()

	return g, nil
}

func (g *Gateway) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m, ok := g.routes.match(r.URL.Path)
		if !ok {
			http.NotFound(w, r)
			return
		}

		rt := m.route

		if rt.cors.enabled {
			if rt.cors.handlePreflight(w, r) || r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			rt.cors.handleActualRequest(w, r)
		}

		if upgradeType(r.Header) != "" {
			writeError(w, http.StatusNotImplemented, "upgrade_unsupported", "protocol upgrades are not supported", 0)
			return
		}

		removeConnectionHeaders(r.Header)

		r = r.WithContext(context.WithValue(r.Context(), matchKey, m))

		if rt.admit {
			admitted, ok := g.admit(w, r)
			if !ok {
				return
			}

			r = admitted
		}

		if rt.cacheTTL > 0 && r.Method == http.MethodGet {
			if body, ok := g.responses.Get(cacheKey(m.path, r.URL.RawQuery)); ok {
				h := w.Header()
				h.Set("Content-Type", "application/json")
				h.Set(headerCache, "hit")
				_, _ = w.Write(body)

				return
			}
		}

		r.Header.Set("X-Forwarded-Host", r.Host)

		g.proxy.ServeHTTP(w, r)
	})
}

// admit reads the prompt out of the request body, runs the admission
// pipeline and writes the rejection response itself. On admission it returns
// the request re-armed with the body and the caller key for compensation.
func (g *Gateway) admit(w http.ResponseWriter, r *http.Request) (*http.Request, bool) {
	caller := callerKey(r, g.keyHeaders)

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "failed to read request body", 0)
		return nil, false
	}

	_ = r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(body))

	var p promptRequest
	if err := json.Unmarshal(body, &p); err != nil || p.Prompt == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "body must be a json object with a prompt field", 0)
		return nil, false
	}

	d := g.engine.Admit(caller, p.Prompt, g.now())
	admissionDecisions.WithLabelValues(d.Status.String()).Inc()

	switch d.Status {
	case admission.Admitted:
		h := w.Header()
		h.Set(headerRemainingWindow, strconv.Itoa(d.RemainingWindow))
		h.Set(headerRemainingDaily, strconv.Itoa(d.RemainingDaily))

		return r.WithContext(context.WithValue(r.Context(), callerContextKey, caller)), true
	case admission.RejectedValidation:
		writeError(w, http.StatusBadRequest, "invalid_content", d.Reason, 0)
	case admission.RejectedSpam:
		writeError(w, http.StatusBadRequest, "spam_detected", "content was classified as spam", 0)
	case admission.RejectedDuplicate:
		writeError(w, http.StatusTooManyRequests, "duplicate_content", "content repeats a recent submission", 0)
	case admission.RejectedRateLimited:
		writeError(w, http.StatusTooManyRequests, "rate_limited", "the "+d.Kind.String()+" request limit is exhausted", d.RetryAfter)
	case admission.RejectedCooldown:
		writeError(w, http.StatusTooManyRequests, "cooldown_active", "requests must be spaced out", d.RetryAfter)
	}

	return nil, false
}

func (g *Gateway) newReverseProxy() *httputil.ReverseProxy {
	director := func(req *http.Request) {
		var (
			//nolint:errcheck //always known
			m            = req.Context().Value(matchKey).(match)
			targetScheme = m.route.target.Scheme
			targetQuery  = m.route.target.RawQuery
		)

		if targetScheme == "" {
			targetScheme = "http"
		}

		req.URL.Scheme = targetScheme
		req.URL.Host = m.route.target.Host
		req.URL.Path = m.path
		req.Host = m.route.target.Host

		if targetQuery == "" || req.URL.RawQuery == "" {
			req.URL.RawQuery = targetQuery + req.URL.RawQuery
		} else {
			req.URL.RawQuery = targetQuery + "&" + req.URL.RawQuery
		}

		// The gateway owns the upstream credential; whatever the client sent
		// never travels upstream.
		if len(g.apiKey) > 0 {
			req.Header.Set("Authorization", "Bearer "+string(g.apiKey))
		} else {
			req.Header.Del("Authorization")
		}

		if _, ok := req.Header["User-Agent"]; !ok {
			req.Header.Set("User-Agent", "")
		}
	}

	return &httputil.ReverseProxy{
		Director:       director,
		Transport:      newTransport(),
		BufferPool:     newPool(),
		ModifyResponse: g.modifyResponse,
		ErrorHandler:   g.errorHandler,
	}
}

func (g *Gateway) modifyResponse(resp *http.Response) error {
	var (
		req = resp.Request
		//nolint:errcheck //always known
		m = req.Context().Value(matchKey).(match)
	)

	if resp.StatusCode >= http.StatusInternalServerError {
		g.compensate(req)
		return nil
	}

	if m.route.cacheTTL > 0 && req.Method == http.MethodGet && resp.StatusCode == http.StatusOK {
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return err
		}

		_ = resp.Body.Close()

		resp.Body = io.NopCloser(bytes.NewReader(body))
		resp.ContentLength = int64(len(body))
		resp.Header.Set("Content-Length", strconv.Itoa(len(body)))

		g.responses.Set(cacheKey(m.path, req.URL.RawQuery), body, m.route.cacheTTL)
	}

	return nil
}

func (g *Gateway) errorHandler(w http.ResponseWriter, r *http.Request, err error) {
	g.compensate(r)

	log.WithFields(log.Fields{
		"path": r.URL.Path,
		"host": r.URL.Host,
	}).WithError(err).Error("upstream request failed")

	writeError(w, http.StatusBadGateway, "upstream_unavailable", "the upstream service failed", 0)
}

// compensate returns the quota slot the admission consumed when the
// upstream call did not go through.
func (g *Gateway) compensate(r *http.Request) {
	if caller, ok := r.Context().Value(callerContextKey).(string); ok {
		g.engine.OnUpstreamFailure(caller)
	}
}

func cacheKey(path, rawQuery string) string {
	if rawQuery == "" {
		return path
	}

	return path + "?" + rawQuery
}

func writeError(w http.ResponseWriter, code int, errCode, message string, retryAfter int) {
	h := w.Header()
	h.Set("Content-Type", "application/json")

	if retryAfter > 0 {
		h.Set(headerRetryAfter, strconv.Itoa(retryAfter))
	}

	w.WriteHeader(code)

	_ = json.NewEncoder(w).Encode(errorResponse{Error: errorDetail{
		Code:       errCode,
		Message:    message,
		RetryAfter: retryAfter,
	}})
}
