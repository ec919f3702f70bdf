package homeassistant_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/aretw0/resscene/pkg/adapters/homeassistant"
	"github.com/aretw0/resscene/pkg/domain"
	"github.com/aretw0/resscene/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorded struct {
	Method string
	Path   string
	Auth   string
	Body   map[string]any
}

type fakeHA struct {
	mu       sync.Mutex
	requests []recorded
}

func (f *fakeHA) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rec := recorded{Method: r.Method, Path: r.URL.Path, Auth: r.Header.Get("Authorization")}
	if data, _ := io.ReadAll(r.Body); len(data) > 0 {
		_ = json.Unmarshal(data, &rec.Body)
	}
	f.mu.Lock()
	f.requests = append(f.requests, rec)
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/api/states/light.kitchen":
		_, _ = io.WriteString(w, `{"entity_id":"light.kitchen","state":"on","attributes":{"brightness":120,"color_mode":"brightness"}}`)
	case r.Method == http.MethodGet && r.URL.Path == "/api/states":
		_, _ = io.WriteString(w, `[{"entity_id":"light.kitchen","state":"on"},{"entity_id":"switch.fan","state":"off"}]`)
	case r.Method == http.MethodGet:
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"message":"Entity not found."}`)
	case r.URL.Path == "/api/template":
		w.Header().Set("Content-Type", "text/plain")
		_, _ = io.WriteString(w, `["light.kitchen", "switch.fan"]`+"\n")
	case r.Method == http.MethodDelete && r.URL.Path == "/api/states/scene.gone":
		w.WriteHeader(http.StatusNotFound)
	case r.URL.Path == "/api/services/light/explode":
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, "bad service")
	default:
		_, _ = io.WriteString(w, `[]`)
	}
}

func (f *fakeHA) last() recorded {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func newClient(t *testing.T) (*homeassistant.Client, *fakeHA) {
	t.Helper()
	fake := &fakeHA{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	return homeassistant.New(srv.URL+"/", "secret", homeassistant.WithHTTPClient(srv.Client())), fake
}

func TestClient_GetState(t *testing.T) {
	c, fake := newClient(t)
	ctx := context.Background()

	st, err := c.GetState(ctx, "light.kitchen")
	require.NoError(t, err)
	assert.Equal(t, "on", st.State)
	assert.Equal(t, json.Number("120"), st.Attributes["brightness"])
	assert.Equal(t, "Bearer secret", fake.last().Auth)

	_, err = c.GetState(ctx, "light.nowhere")
	assert.ErrorIs(t, err, domain.ErrEntityNotFound)
}

func TestClient_ListStates(t *testing.T) {
	c, _ := newClient(t)
	states, err := c.ListStates(context.Background())
	require.NoError(t, err)
	require.Len(t, states, 2)
	assert.Equal(t, "switch.fan", states[1].EntityID)
}

func TestClient_CallService(t *testing.T) {
	c, fake := newClient(t)
	ctx := context.Background()

	err := c.CallService(ctx, ports.ServiceCall{
		Domain:   "light",
		Service:  "turn_on",
		EntityID: "light.kitchen",
		Data:     map[string]any{"brightness": 80},
	})
	require.NoError(t, err)

	req := fake.last()
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/api/services/light/turn_on", req.Path)
	assert.Equal(t, "light.kitchen", req.Body["entity_id"])
	assert.EqualValues(t, 80, req.Body["brightness"])

	err = c.CallService(ctx, ports.ServiceCall{Domain: "light", Service: "explode", EntityID: "light.kitchen"})
	var se *homeassistant.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadRequest, se.Code)
	assert.Contains(t, err.Error(), "bad service")
}

func TestClient_AreasAndLabels(t *testing.T) {
	c, fake := newClient(t)
	ctx := context.Background()

	ids, err := c.EntitiesForArea(ctx, "kitchen")
	require.NoError(t, err)
	assert.Equal(t, []string{"light.kitchen", "switch.fan"}, ids)
	assert.Equal(t, `{{ area_entities("kitchen") | tojson }}`, fake.last().Body["template"])

	_, err = c.EntitiesForLabel(ctx, "cozy")
	require.NoError(t, err)
	assert.Equal(t, `{{ label_entities("cozy") | tojson }}`, fake.last().Body["template"])
}

func TestClient_PublishAndRemove(t *testing.T) {
	c, fake := newClient(t)
	ctx := context.Background()

	err := c.PublishState(ctx, domain.EntityState{
		EntityID:   "scene.evening_mode",
		State:      "unknown",
		Attributes: map[string]any{"friendly_name": "Res: evening_mode"},
	})
	require.NoError(t, err)
	req := fake.last()
	assert.Equal(t, "/api/states/scene.evening_mode", req.Path)
	assert.Equal(t, "unknown", req.Body["state"])

	require.NoError(t, c.RemoveState(ctx, "scene.evening_mode"))
	assert.Equal(t, http.MethodDelete, fake.last().Method)

	assert.NoError(t, c.RemoveState(ctx, "scene.gone"), "removing a missing entity is not an error")
}
