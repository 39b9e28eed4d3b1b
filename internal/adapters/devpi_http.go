package adapters

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	pep440 "github.com/aquasecurity/go-pep440-version"
	"github.com/cenk/backoff"
	"github.com/rs/dnscache"
	"github.com/rs/zerolog/log"
	circuit "github.com/rubyist/circuitbreaker"

	"devpi-cleaner/internal/ports"
	"devpi-cleaner/internal/shared"
)

const defaultHTTPTimeout = 60 * time.Second
const defaultHTTPRetries = 3
const defaultHTTPRetryDelay = 200 * time.Millisecond
const maxHTTPRetryDelay = 2 * time.Second
const breakerThreshold = 5

const devpiAuthHeader = "X-Devpi-Auth"
const releaseFileRel = "releasefile"

var errUpstreamFailure = errors.New("devpi server error")

type httpRetryConfig struct {
	timeout   time.Duration
	retries   int
	baseDelay time.Duration
}

func normalizeHTTPConfig(timeoutSec int, retries int, delayMs int) httpRetryConfig {
	timeout := time.Duration(timeoutSec) * time.Second
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	retryCount := retries
	if retryCount <= 0 {
		retryCount = defaultHTTPRetries
	}
	baseDelay := time.Duration(delayMs) * time.Millisecond
	if baseDelay <= 0 {
		baseDelay = defaultHTTPRetryDelay
	}
	return httpRetryConfig{
		timeout:   timeout,
		retries:   retryCount,
		baseDelay: baseDelay,
	}
}

// DevpiHTTPAdapter talks to devpi-server's JSON API directly.
type DevpiHTTPAdapter struct {
	Endpoint string

	cfg     httpRetryConfig
	client  *http.Client
	breaker *circuit.Breaker
	user    string
	token   string
	current string
}

func NewDevpiHTTPAdapter(endpoint string, timeoutSec int, retries int, retryDelayMs int) *DevpiHTTPAdapter {
	cfg := normalizeHTTPConfig(timeoutSec, retries, retryDelayMs)
	return &DevpiHTTPAdapter{
		Endpoint: strings.TrimRight(strings.TrimSpace(endpoint), "/"),
		cfg:      cfg,
		client:   newCachingHTTPClient(cfg.timeout),
		breaker:  newServerBreaker(),
	}
}

func newCachingHTTPClient(timeout time.Duration) *http.Client {
	resolver := &dnscache.Resolver{}
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
				host, port, err := net.SplitHostPort(addr)
				if err != nil {
					return nil, err
				}
				ips, err := resolver.LookupHost(ctx, host)
				if err != nil {
					return nil, err
				}
				for _, ip := range ips {
					conn, err := dialer.DialContext(ctx, network, net.JoinHostPort(ip, port))
					if err == nil {
						return conn, nil
					}
				}
				return nil, fmt.Errorf("failed to dial any resolved IP for %s", host)
			},
			MaxIdleConnsPerHost: 4,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}
}

// newServerBreaker trips after consecutive transport or 5xx failures so
// a dead server fails the run fast instead of retrying every call.
func newServerBreaker() *circuit.Breaker {
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = 30 * time.Second
	expBackoff.MaxInterval = 5 * time.Minute
	expBackoff.Multiplier = 2.0
	expBackoff.Reset()
	return circuit.NewBreakerWithOptions(&circuit.Options{
		BackOff:    expBackoff,
		ShouldTrip: circuit.ThresholdTripFunc(breakerThreshold),
	})
}

func (a *DevpiHTTPAdapter) Login(ctx context.Context, user string, password string) error {
	user = strings.TrimSpace(user)
	if user == "" {
		return nil
	}
	payload, err := json.Marshal(map[string]string{"user": user, "password": password})
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to encode devpi login").
			WithCause(err)
	}
	loginURL := a.Endpoint + "/+login"
	resp, err := a.send(ctx, http.MethodPost, loginURL, payload, false)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return errbuilder.New().
			WithCode(errbuilder.CodePermissionDenied).
			WithMsg(fmt.Sprintf("devpi login failed for user %s", user)).
			WithCause(shared.HTTPStatusErrorWithBody(resp.StatusCode, loginURL, strings.TrimSpace(string(body))))
	}
	if err := checkStatus(resp.StatusCode, loginURL, body, "devpi login failed"); err != nil {
		return err
	}
	var decoded struct {
		Result struct {
			Password string `json:"password"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil || decoded.Result.Password == "" {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to parse devpi login response").
			WithCause(err)
	}
	a.user = user
	a.token = decoded.Result.Password
	log.Ctx(ctx).Debug().Str("user", user).Msg("logged in to devpi")
	return nil
}

func (a *DevpiHTTPAdapter) Use(ctx context.Context, index string) error {
	if _, err := a.indexConfig(ctx, index); err != nil {
		return err
	}
	a.current = index
	return nil
}

func (a *DevpiHTTPAdapter) ListIndices(ctx context.Context, user string) ([]string, error) {
	user = strings.Trim(strings.TrimSpace(user), "/")
	if user == "" {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("devpi user is empty")
	}
	var decoded struct {
		Result struct {
			Indexes map[string]json.RawMessage `json:"indexes"`
		} `json:"result"`
	}
	if _, err := a.getJSON(ctx, a.Endpoint+"/"+user, &decoded); err != nil {
		return nil, err
	}
	indices := make([]string, 0, len(decoded.Result.Indexes))
	for name := range decoded.Result.Indexes {
		indices = append(indices, user+"/"+name)
	}
	sort.Strings(indices)
	return indices, nil
}

func (a *DevpiHTTPAdapter) ListArtifacts(ctx context.Context, index string, packageSpec string, all bool) ([]string, error) {
	if strings.TrimSpace(index) == "" {
		index = a.current
	}
	requirement, err := parseRequirement(packageSpec)
	if err != nil {
		return nil, err
	}
	stages := []string{index}
	if all {
		stages, err = a.stageChain(ctx, index)
		if err != nil {
			return nil, err
		}
	}
	var lines []string
	for _, stage := range stages {
		stageLines, err := a.listStageArtifacts(ctx, stage, requirement, all)
		if err != nil {
			return nil, err
		}
		lines = append(lines, stageLines...)
	}
	return lines, nil
}

func (a *DevpiHTTPAdapter) listStageArtifacts(ctx context.Context, stage string, requirement packageRequirement, all bool) ([]string, error) {
	projectURL := fmt.Sprintf("%s/%s/%s", a.Endpoint, stage, requirement.name)
	var decoded struct {
		Result map[string]struct {
			Links []struct {
				Rel  string `json:"rel"`
				Href string `json:"href"`
			} `json:"+links"`
		} `json:"result"`
	}
	finalURL, err := a.getJSON(ctx, projectURL, &decoded)
	if err != nil {
		if errbuilder.CodeOf(err) == errbuilder.CodeNotFound {
			log.Ctx(ctx).Debug().Str("index", stage).Str("project", requirement.name).Msg("project not on index")
			return nil, nil
		}
		return nil, err
	}
	var lines []string
	if finalURL != projectURL {
		lines = append(lines, "*redirected: "+finalURL)
	}
	versions := make([]string, 0, len(decoded.Result))
	for version := range decoded.Result {
		if requirement.matches(version) {
			versions = append(versions, version)
		}
	}
	sortVersionsDescending(versions)
	if !all && len(versions) > 1 {
		versions = versions[:1]
	}
	for _, version := range versions {
		for _, link := range decoded.Result[version].Links {
			if link.Rel == releaseFileRel && link.Href != "" {
				lines = append(lines, link.Href)
			}
		}
	}
	return lines, nil
}

// stageChain returns index followed by its bases, depth first, each
// stage once.
func (a *DevpiHTTPAdapter) stageChain(ctx context.Context, index string) ([]string, error) {
	var chain []string
	seen := map[string]struct{}{}
	var walk func(stage string) error
	walk = func(stage string) error {
		if _, ok := seen[stage]; ok {
			return nil
		}
		seen[stage] = struct{}{}
		chain = append(chain, stage)
		cfg, err := a.indexConfig(ctx, stage)
		if err != nil {
			return err
		}
		for _, base := range cfg.Bases {
			if err := walk(base); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(index); err != nil {
		return nil, err
	}
	return chain, nil
}

func (a *DevpiHTTPAdapter) Remove(ctx context.Context, index string, requirement string) error {
	name, version, ok := strings.Cut(requirement, "==")
	name = strings.TrimSpace(name)
	version = strings.TrimSpace(version)
	if !ok || name == "" || version == "" {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("removal requires name==version, got %q", requirement))
	}
	deleteURL := fmt.Sprintf("%s/%s/%s/%s", a.Endpoint, index, name, version)
	resp, err := a.send(ctx, http.MethodDelete, deleteURL, nil, false)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode == http.StatusNotFound {
		log.Ctx(ctx).Warn().Str("index", index).Str("package", requirement).Msg("package already absent")
		return nil
	}
	return checkStatus(resp.StatusCode, deleteURL, body, "devpi remove failed")
}

func (a *DevpiHTTPAdapter) VolatileIndex(ctx context.Context, index string, force bool) (ports.ReleaseFunc, error) {
	cfg, err := a.indexConfig(ctx, index)
	if err != nil {
		return nil, err
	}
	if cfg.Volatile {
		return func(context.Context) error { return nil }, nil
	}
	if !force {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg(fmt.Sprintf("index %s is not volatile, use force to clean it", index))
	}
	if err := a.setVolatile(ctx, index, true); err != nil {
		return nil, err
	}
	log.Ctx(ctx).Info().Str("index", index).Msg("index made volatile")
	return func(ctx context.Context) error {
		if err := a.setVolatile(ctx, index, false); err != nil {
			return err
		}
		log.Ctx(ctx).Info().Str("index", index).Msg("index volatility restored")
		return nil
	}, nil
}

func (a *DevpiHTTPAdapter) setVolatile(ctx context.Context, index string, volatile bool) error {
	value := "False"
	if volatile {
		value = "True"
	}
	payload, _ := json.Marshal([]string{"volatile=" + value})
	indexURL := fmt.Sprintf("%s/%s", a.Endpoint, index)
	resp, err := a.send(ctx, http.MethodPatch, indexURL, payload, true)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return checkStatus(resp.StatusCode, indexURL, body, "devpi index update failed")
}

type indexConfig struct {
	Type     string   `json:"type"`
	Bases    []string `json:"bases"`
	Volatile bool     `json:"volatile"`
}

func (a *DevpiHTTPAdapter) indexConfig(ctx context.Context, index string) (indexConfig, error) {
	if strings.Count(strings.Trim(index, "/"), "/") != 1 {
		return indexConfig{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("index must be user/index, got %q", index))
	}
	var decoded struct {
		Result indexConfig `json:"result"`
	}
	if _, err := a.getJSON(ctx, fmt.Sprintf("%s/%s", a.Endpoint, index), &decoded); err != nil {
		return indexConfig{}, err
	}
	return decoded.Result, nil
}

// getJSON fetches and decodes a devpi JSON document and returns the URL
// the response was finally served from.
func (a *DevpiHTTPAdapter) getJSON(ctx context.Context, url string, out interface{}) (string, error) {
	resp, err := a.send(ctx, http.MethodGet, url, nil, true)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode == http.StatusNotFound {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("not found on devpi: %s", url))
	}
	if err := checkStatus(resp.StatusCode, url, body, "devpi request failed"); err != nil {
		return "", err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to parse devpi response").
			WithCause(err)
	}
	finalURL := url
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}
	return finalURL, nil
}

func checkStatus(status int, url string, body []byte, msg string) error {
	if status >= 200 && status < 300 {
		return nil
	}
	code := errbuilder.CodeInternal
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		code = errbuilder.CodePermissionDenied
	}
	return errbuilder.New().
		WithCode(code).
		WithMsg(msg).
		WithCause(shared.HTTPStatusErrorWithBody(status, url, strings.TrimSpace(string(body))))
}

func (a *DevpiHTTPAdapter) send(ctx context.Context, method string, url string, body []byte, retry bool) (*http.Response, error) {
	var resp *http.Response
	err := a.breaker.Call(func() error {
		r, err := a.doRequest(ctx, method, url, body, retry)
		if err != nil {
			return err
		}
		resp = r
		if r.StatusCode >= http.StatusInternalServerError {
			return errUpstreamFailure
		}
		return nil
	}, 0)
	if resp != nil {
		return resp, nil
	}
	if errors.Is(err, circuit.ErrBreakerOpen) {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("circuit breaker open for devpi server").
			WithCause(err)
	}
	return nil, err
}

func (a *DevpiHTTPAdapter) doRequest(ctx context.Context, method string, url string, body []byte, retry bool) (*http.Response, error) {
	attempts := 1
	if retry {
		attempts = a.cfg.retries
	}
	delays := backoff.NewExponentialBackOff()
	delays.InitialInterval = a.cfg.baseDelay
	delays.MaxInterval = maxHTTPRetryDelay
	delays.MaxElapsedTime = 0
	delays.Reset()

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if ctx.Err() != nil {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg("request canceled").
				WithCause(ctx.Err())
		}
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg("failed to create request").
				WithCause(err)
		}
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		a.applyAuth(req)
		resp, err := a.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, errbuilder.New().
					WithCode(errbuilder.CodeInternal).
					WithMsg("request canceled").
					WithCause(ctx.Err())
			}
			lastErr = err
			if attempt < attempts-1 {
				if err := sleepContext(ctx, delays.NextBackOff()); err != nil {
					return nil, err
				}
				continue
			}
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg("request failed").
				WithCause(err)
		}
		if (resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests) && attempt < attempts-1 {
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			log.Ctx(ctx).Debug().Str("method", method).Str("url", url).Int("status", resp.StatusCode).Msg("retrying devpi request")
			if err := sleepContext(ctx, delays.NextBackOff()); err != nil {
				return nil, err
			}
			continue
		}
		return resp, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("request failed")
	}
	return nil, errbuilder.New().
		WithCode(errbuilder.CodeInternal).
		WithMsg("request failed").
		WithCause(lastErr)
}

func sleepContext(ctx context.Context, delay time.Duration) error {
	if delay < 0 {
		delay = maxHTTPRetryDelay
	}
	select {
	case <-ctx.Done():
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("request canceled").
			WithCause(ctx.Err())
	case <-time.After(delay):
		return nil
	}
}

func (a *DevpiHTTPAdapter) applyAuth(req *http.Request) {
	if a.user == "" || a.token == "" {
		return
	}
	credentials := base64.StdEncoding.EncodeToString([]byte(a.user + ":" + a.token))
	req.Header.Set(devpiAuthHeader, credentials)
}

// packageRequirement is the project part of a listing spec plus an
// optional PEP 440 specifier set, e.g. "delete_me>=0.2,<1".
type packageRequirement struct {
	name      string
	specifier string
	specs     *pep440.Specifiers
}

func parseRequirement(spec string) (packageRequirement, error) {
	trimmed := strings.TrimSpace(spec)
	cut := strings.IndexAny(trimmed, "<>=!~ ")
	if cut < 0 {
		cut = len(trimmed)
	}
	req := packageRequirement{
		name:      strings.TrimSpace(trimmed[:cut]),
		specifier: strings.TrimSpace(trimmed[cut:]),
	}
	if req.name == "" {
		return packageRequirement{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("invalid package spec %q", spec))
	}
	if req.specifier != "" {
		specs, err := pep440.NewSpecifiers(req.specifier)
		if err != nil {
			return packageRequirement{}, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg(fmt.Sprintf("invalid version specifier in %q", spec)).
				WithCause(err)
		}
		req.specs = &specs
	}
	return req, nil
}

func (r packageRequirement) matches(version string) bool {
	if r.specs == nil {
		return true
	}
	parsed, err := pep440.Parse(version)
	if err != nil {
		return strings.TrimPrefix(r.specifier, "==") == version
	}
	return r.specs.Check(parsed)
}

func sortVersionsDescending(versions []string) {
	sort.Slice(versions, func(i, j int) bool {
		vi, err := pep440.Parse(versions[i])
		if err != nil {
			return versions[i] > versions[j]
		}
		vj, err := pep440.Parse(versions[j])
		if err != nil {
			return versions[i] > versions[j]
		}
		return vi.Compare(vj) > 0
	})
}

var _ ports.DevpiClientPort = (*DevpiHTTPAdapter)(nil)
