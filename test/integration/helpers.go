// Package integration exercises the full HTTP stack against an in-memory
// store and a stubbed network: real router, real service, real guard with
// a canned resolver, and a transport that serves fixture HTML without
// touching the wire.
package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	appvis "github.com/turtacn/aivis/internal/application/visibility"
	"github.com/turtacn/aivis/internal/domain/keyword"
	"github.com/turtacn/aivis/internal/domain/prompt"
	"github.com/turtacn/aivis/internal/domain/sampling"
	"github.com/turtacn/aivis/internal/infrastructure/database/memstore"
	"github.com/turtacn/aivis/internal/infrastructure/fetch"
	"github.com/turtacn/aivis/internal/infrastructure/netguard"
	httpiface "github.com/turtacn/aivis/internal/interfaces/http"
	"github.com/turtacn/aivis/internal/interfaces/http/handlers"
)

// publicIP stands in for any hostname the canned resolver is asked about,
// keeping the guard's resolution checks on the allow path.
var publicIP = net.ParseIP("93.184.216.34")

type staticResolver struct {
	ip net.IP
}

func (r staticResolver) LookupIP(_ context.Context, _, _ string) ([]net.IP, error) {
	return []net.IP{r.ip}, nil
}

// fixtureTransport serves per-host HTML bodies in place of the network.
type fixtureTransport struct {
	pages map[string]string
}

func (t fixtureTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	body, ok := t.pages[req.URL.Hostname()]
	if !ok {
		return &http.Response{
			StatusCode: http.StatusNotFound,
			Body:       io.NopCloser(strings.NewReader("not found")),
			Header:     make(http.Header),
			Request:    req,
		}, nil
	}
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{"Content-Type": []string{"text/html; charset=utf-8"}},
		Request:    req,
	}, nil
}

// env is one fully wired stack under test.
type env struct {
	handler http.Handler
}

// newEnv builds the stack: memstore, guarded fetcher over fixture pages,
// heuristic generators, and a deterministic sampler.
func newEnv(t *testing.T, pages map[string]string) *env {
	t.Helper()

	guard := netguard.New(nil, netguard.WithResolver(staticResolver{publicIP}))
	fetcher := fetch.New(fetch.Config{}, guard, nil,
		fetch.WithTransport(fixtureTransport{pages: pages}))

	runner := sampling.NewRunner(sampling.NewDeterministicSampler(60), 4, nil)
	svc, err := appvis.NewService(appvis.Deps{
		Repo:     memstore.NewTargetStore(),
		Guard:    guard,
		Fetcher:  fetcher,
		Keywords: keyword.NewHeuristicGenerator(nil),
		Prompts:  prompt.NewTemplateBuilder(nil),
		Runner:   runner,
	})
	require.NoError(t, err)

	handler := httpiface.NewRouter(httpiface.RouterConfig{
		TargetHandler: handlers.NewTargetHandler(svc),
		HealthHandler: handlers.NewHealthHandler("test", nil),
	})
	return &env{handler: handler}
}

// do sends one JSON request through the router and decodes the response
// body into out when it is non-nil.
func (e *env) do(t *testing.T, method, path string, body, out interface{}) int {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)

	if out != nil && rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out),
			"body: %s", rec.Body.String())
	}
	return rec.Code
}

func (e *env) initTarget(t *testing.T, name, url string) handlers.TargetResponse {
	t.Helper()
	var resp handlers.TargetResponse
	code := e.do(t, http.MethodPost, "/api/targets/init",
		handlers.InitRequest{BusinessName: name, WebsiteURL: url}, &resp)
	require.Equal(t, http.StatusCreated, code)
	return resp
}

func targetPath(id, suffix string) string {
	if suffix == "" {
		return fmt.Sprintf("/api/targets/%s", id)
	}
	return fmt.Sprintf("/api/targets/%s/%s", id, suffix)
}
