// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package restapi

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(domain string) Config {
	cfg := DefaultConfig()
	cfg.APIKey = "key"
	cfg.Domain = domain
	return cfg
}

type eventRecorder struct {
	mu     sync.Mutex
	events []string
}

func (r *eventRecorder) Fire(event string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if event == EventLog && len(args) > 0 {
		r.events = append(r.events, fmt.Sprint(args[0]))
	}
}

func (r *eventRecorder) seen(msg string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e == msg {
			return true
		}
	}
	return false
}

func TestNewRequiresAPIKey(t *testing.T) {
	_, err := New(DefaultConfig())
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestClientHTTPIsExclusive(t *testing.T) {
	api := newAPIServer(t)
	doc := &fakeDocument{}
	c, err := New(testConfig(api.URL), WithHTTPClient(api.Client()), WithDocument(doc))
	require.NoError(t, err)

	resp, err := c.Call(context.Background(), Params{"method": "users.getInfo"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"method":"users.getInfo","verb":"GET"}`, string(resp.Raw))
	assert.Zero(t, doc.injected())
}

func TestClientScriptPath(t *testing.T) {
	doc := &fakeDocument{}
	cfg := testConfig("https://api.example.com")
	cfg.Extra = map[string]any{"script": map[string]any{"callback_prefix": "app.cb."}}
	c, err := New(cfg, WithDocument(doc))
	require.NoError(t, err)

	ch := c.Go(context.Background(), Params{"method": "users.getInfo"})
	require.Eventually(t, func() bool { return doc.injected() == 1 }, time.Second, 5*time.Millisecond)

	callback := doc.lastCallback(t)
	assert.True(t, strings.HasPrefix(callback, "app.cb.f"))
	require.NoError(t, doc.sink.Deliver(callback, []byte(`{"uid":1}`)))

	r := <-ch
	require.NoError(t, r.Err)
	assert.JSONEq(t, `{"uid":1}`, string(r.Response.Raw))
	assert.Zero(t, c.Script().Pending())
}

func TestClientFallsBackToBridge(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	api := newAPIServer(t)
	srv := startBridgeHost(t, TransportZAP)
	bridge, err := DialBridge(ctx, srv.Addr())
	require.NoError(t, err)
	defer bridge.Close()

	doc := &fakeDocument{}
	bus := &eventRecorder{}
	c, err := New(testConfig(api.URL), WithDocument(doc), WithBridge(bridge), WithEventBus(bus))
	require.NoError(t, err)

	resp, err := c.Call(ctx, Params{"method": "fql.query", "query": strings.Repeat("x", 2500)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"method":"fql.query","verb":"POST"}`, string(resp.Raw))
	assert.Zero(t, doc.injected())
	assert.True(t, bus.seen("falling back to bridge"))
}

func TestClientNoTransport(t *testing.T) {
	c, err := New(testConfig(""))
	require.NoError(t, err)

	_, err = c.Call(context.Background(), Params{"method": "users.getInfo"})
	assert.ErrorIs(t, err, ErrTransportUnavailable)
	assert.ErrorIs(t, err, ErrNoDocument)
}

func TestClientTooLargeWithoutBridge(t *testing.T) {
	c, err := New(testConfig(""), WithDocument(&fakeDocument{}))
	require.NoError(t, err)

	_, err = c.Call(context.Background(), Params{"query": strings.Repeat("x", 2500)})
	assert.ErrorIs(t, err, ErrTransportUnavailable)
	assert.ErrorIs(t, err, ErrPayloadTooLarge)
}

func TestClientRevokeClearsSession(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "true")
	}))
	defer api.Close()

	session := NewStaticSession(&Session{Key: "sk", Secret: "s"})
	c, err := New(testConfig(api.URL), WithHTTPClient(api.Client()), WithSession(session))
	require.NoError(t, err)

	_, err = c.Call(context.Background(), Params{"method": "users.getInfo"})
	require.NoError(t, err)
	assert.NotNil(t, session.Session())

	_, err = c.Call(context.Background(), Params{"method": MethodRevokeAuthorization})
	require.NoError(t, err)
	assert.Nil(t, session.Session())
}

func TestClientRevokeKeepsSessionOnFailure(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error_code":102,"error_msg":"Session key invalid"}`)
	}))
	defer api.Close()

	session := NewStaticSession(&Session{Key: "sk", Secret: "s"})
	c, err := New(testConfig(api.URL), WithHTTPClient(api.Client()), WithSession(session))
	require.NoError(t, err)

	resp, err := c.Call(context.Background(), Params{"method": MethodRevokeAuthorization})
	require.NoError(t, err)
	var apiErr *APIError
	require.ErrorAs(t, resp.Err(), &apiErr)
	assert.Equal(t, 102, apiErr.Code)
	assert.NotNil(t, session.Session())
}

func TestClientSignUsesCurrentSession(t *testing.T) {
	session := NewStaticSession(nil)
	c, err := New(testConfig(""), WithSession(session), WithClock(fixedClock(5)))
	require.NoError(t, err)

	p := c.Sign(Params{})
	assert.NotContains(t, p, ParamSessionKey)
	assert.Equal(t, int64(5), p[ParamCallID])

	session.SetSession(&Session{Key: "sk", Secret: "s"})
	p = c.Sign(Params{})
	assert.Equal(t, "sk", p[ParamSessionKey])
	assert.NotEmpty(t, p[ParamSig])
}

func TestClientEndpoint(t *testing.T) {
	c, err := New(testConfig(""))
	require.NoError(t, err)
	assert.Equal(t, "https://api.facebook.com/restserver.php", c.Endpoint())

	c, err = New(testConfig("http://localhost:8080"))
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/restserver.php", c.Endpoint())
}

func TestClientInjectedHTTPClientKeepsTimeout(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer api.Close()

	cfg := testConfig(api.URL)
	cfg.HTTPTimeout = 50 * time.Millisecond
	c, err := New(cfg, WithHTTPClient(&http.Client{}))
	require.NoError(t, err)

	select {
	case r := <-c.Go(context.Background(), Params{"method": "users.getInfo"}):
		require.NoError(t, r.Err)
		assert.True(t, r.Response.Timeout)
	case <-time.After(5 * time.Second):
		t.Fatal("call ignored http_timeout")
	}
}

func TestNewLeavesConfigExtraUntouched(t *testing.T) {
	cfg := testConfig("")
	cfg.Extra = map[string]any{"script": map[string]any{}}

	c, err := New(cfg, WithDocument(&fakeDocument{}))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"script": map[string]any{}}, cfg.Extra)

	node, ok := c.Registry().Lookup("script")
	require.True(t, ok)
	assert.Equal(t, DefaultCallbackPrefix, node["callback_prefix"])
}
