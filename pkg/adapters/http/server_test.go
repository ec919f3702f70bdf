package http

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/resscene/pkg/activate"
	"github.com/aretw0/resscene/pkg/adapters/memory"
	"github.com/aretw0/resscene/pkg/capture"
	"github.com/aretw0/resscene/pkg/domain"
	"github.com/aretw0/resscene/pkg/observability"
	"github.com/aretw0/resscene/pkg/ports"
	"github.com/aretw0/resscene/pkg/registry"
	"github.com/aretw0/resscene/pkg/scenestore"
	"github.com/aretw0/resscene/pkg/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// brokenRepo fails every write.
type brokenRepo struct {
	ports.SceneRepository
}

func (brokenRepo) Save(context.Context, *domain.Scene) error { return errors.New("disk full") }

func newTestHandler(t *testing.T, repo ports.SceneRepository) (http.Handler, *memory.Host, *StreamManager) {
	t.Helper()
	host := memory.NewHost(
		domain.EntityState{EntityID: "light.living_room", State: "on", Attributes: map[string]any{"brightness": 80}},
		domain.EntityState{EntityID: "switch.aircon", State: "off"},
	)
	streams := NewStreamManager(nil)
	metrics := observability.NewMetrics(nil)
	hooks := observability.Combine(streams.Hooks(), metrics.Hooks())

	svc := service.New(
		scenestore.New(repo, scenestore.WithHooks(hooks)),
		capture.New(host),
		activate.New(host, host, activate.WithCallDelay(0), activate.WithPollInterval(time.Millisecond), activate.WithHooks(hooks)),
		registry.NewRegistry(registry.WithPublisher(host)),
	)
	h, err := NewHandler(svc, WithStreams(streams), WithMetrics(metrics.Handler()), WithVersion("test"))
	require.NoError(t, err)
	return h, host, streams
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestLoadSpec(t *testing.T) {
	doc, err := LoadSpec(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", doc.Info.Version)
	assert.NotNil(t, doc.Paths.Find("/services/create"))
}

func TestServer_CreateActivateDelete(t *testing.T) {
	h, host, _ := newTestHandler(t, memory.NewStore())

	w := do(t, h, http.MethodPost, "/services/create", `{"scene_id":"evening_mode","snapshot_entities":["light.living_room","switch.aircon"]}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created createResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "evening_mode", created.Scene.ID)
	assert.Empty(t, created.Warnings)

	w = do(t, h, http.MethodGet, "/scenes", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"scene_id":"evening_mode"`)

	w = do(t, h, http.MethodGet, "/scenes/scene.evening_mode", "")
	require.Equal(t, http.StatusOK, w.Code)

	host.SetState(domain.EntityState{EntityID: "light.living_room", State: "off"})
	w = do(t, h, http.MethodPost, "/scenes/scene.evening_mode/activate", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var report domain.ActivationReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, "evening_mode", report.SceneID)
	assert.True(t, report.OK())

	w = do(t, h, http.MethodPost, "/services/delete", `{"entity_id":"scene.evening_mode"}`)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, h, http.MethodGet, "/scenes/scene.evening_mode", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, h, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `resscene_scene_operations_total{op="activate",result="ok"} 1`)
}

func TestServer_StatusMapping(t *testing.T) {
	h, _, _ := newTestHandler(t, memory.NewStore())

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"malformed body", http.MethodPost, "/services/create", `{`, http.StatusBadRequest},
		{"bad scene id", http.MethodPost, "/services/create", `{"scene_id":"Bad","snapshot_entities":["light.a"]}`, http.StatusBadRequest},
		{"no valid entities", http.MethodPost, "/services/create", `{"scene_id":"x","snapshot_entities":["light.missing"]}`, http.StatusBadRequest},
		{"delete bad entity", http.MethodPost, "/services/delete", `{"entity_id":"light.a"}`, http.StatusBadRequest},
		{"delete missing", http.MethodPost, "/services/delete", `{"entity_id":"scene.nope"}`, http.StatusNotFound},
		{"activate missing", http.MethodPost, "/scenes/scene.nope/activate", "", http.StatusNotFound},
		{"unknown service", http.MethodPost, "/services/explode", `{}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
			var resp errorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestServer_PartialCaptureWarns(t *testing.T) {
	h, _, _ := newTestHandler(t, memory.NewStore())

	w := do(t, h, http.MethodPost, "/services/create", `{"scene_id":"partial","snapshot_entities":["switch.aircon","light.missing"]}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var created createResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.Len(t, created.Warnings, 1)
	assert.Equal(t, "light.missing", created.Warnings[0].EntityID)
	assert.Equal(t, []string{"switch.aircon"}, created.Scene.EntityIDs())
}

func TestServer_PersistenceFailure(t *testing.T) {
	h, _, _ := newTestHandler(t, brokenRepo{SceneRepository: memory.NewStore()})

	w := do(t, h, http.MethodPost, "/services/create", `{"scene_id":"x","snapshot_entities":["switch.aircon"]}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestServer_GenericServiceCall(t *testing.T) {
	h, _, _ := newTestHandler(t, memory.NewStore())

	w := do(t, h, http.MethodPost, "/services/create", `{"scene_id":"one","snapshot_entities":"switch.aircon","action_timeout":3}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = do(t, h, http.MethodPost, "/services/rename", `{"entity_id":"scene.one","new_scene_id":"two"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"scene_id":"two"`)

	w = do(t, h, http.MethodPost, "/services/activate", `{"entity_id":"scene.two"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, h, http.MethodPost, "/services/delete", `{"entity_id":"scene.two"}`)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestServer_HealthInfoOpenAPI(t *testing.T) {
	h, _, _ := newTestHandler(t, memory.NewStore())

	w := do(t, h, http.MethodGet, "/health", "")
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = do(t, h, http.MethodGet, "/info", "")
	assert.JSONEq(t, `{"app":"resscene-http","version":"test","api_version":"1.0.0"}`, w.Body.String())

	w = do(t, h, http.MethodGet, "/openapi.yaml", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("openapi: 3.0.3")))
}

func TestSubscribeEvents_Scene(t *testing.T) {
	h, _, _ := newTestHandler(t, memory.NewStore())
	srv := httptest.NewServer(h)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events?scene_id=watched", nil)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: ping\n", line)

	for _, id := range []string{"ignored", "watched"} {
		body := `{"scene_id":"` + id + `","snapshot_entities":["switch.aircon"]}`
		r, err := srv.Client().Post(srv.URL+"/services/create", "application/json", strings.NewReader(body))
		require.NoError(t, err)
		r.Body.Close()
	}

	for {
		line, err = reader.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, "data: {") {
			break
		}
	}
	assert.Contains(t, line, `"scene_id":"watched"`)
	assert.Contains(t, line, `"type":"scene_saved"`)
}

func TestStreamManager_Broadcast(t *testing.T) {
	sm := NewStreamManager(nil)
	all, cancelAll := sm.Subscribe("")
	one, cancelOne := sm.Subscribe("a")
	defer cancelAll()

	sm.Broadcast("a", "first")
	sm.Broadcast("b", "second")

	assert.Equal(t, "first", <-all)
	assert.Equal(t, "second", <-all)
	assert.Equal(t, "first", <-one)
	assert.Empty(t, one)

	cancelOne()
	cancelOne()
	_, open := <-one
	assert.False(t, open)
}
