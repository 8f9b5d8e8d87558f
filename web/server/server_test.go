package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/df07/go-stochastic-viz/pkg/pipeline"
)

func newTestServer(t *testing.T) (*Server, string) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "points.csv"), []byte("x,y,z\n0,0,0\n1,1,1\n1,0,0\n"), 0644))
	return NewServer(0, dir), dir
}

func get(t *testing.T, s *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

// sseEvents splits a recorded SSE stream into (event, data) pairs
func sseEvents(body string) [][2]string {
	var events [][2]string
	for _, block := range strings.Split(body, "\n\n") {
		var event, data string
		for _, line := range strings.Split(block, "\n") {
			if v, ok := strings.CutPrefix(line, "event: "); ok {
				event = v
			}
			if v, ok := strings.CutPrefix(line, "data: "); ok {
				data = v
			}
		}
		if event != "" {
			events = append(events, [2]string{event, data})
		}
	}
	return events
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)
	rec := get(t, s, "/api/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestDatasets(t *testing.T) {
	s, dir := newTestServer(t)
	rec := get(t, s, "/api/datasets")
	require.Equal(t, http.StatusOK, rec.Code)

	var response pipeline.DatasetsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	ids := map[string]bool{}
	for _, g := range response.Groups {
		for _, d := range g.Datasets {
			ids[d.ID] = true
		}
	}
	assert.True(t, ids["hydrogen"])
	assert.True(t, ids["quadrants"])
	assert.True(t, ids[filepath.Join(dir, "points.csv")])
}

func TestConfig(t *testing.T) {
	s, _ := newTestServer(t)
	rec := get(t, s, "/api/config")
	require.Equal(t, http.StatusOK, rec.Code)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	defaults := response["defaults"].(map[string]interface{})
	assert.Equal(t, "hydrogen", defaults["dataset"])
	assert.Contains(t, response, "limits")
}

func TestParseRenderRequest(t *testing.T) {
	s, dir := newTestServer(t)
	tests := []struct {
		name    string
		query   string
		wantErr bool
	}{
		{"defaults", "", false},
		{"isosurface", "dataset=hydrogen&mapper=isosurface&isolevel=100&normals=vertex&width=128&height=64", false},
		{"clusters", "dataset=quadrants&mapper=kmeans&clusters=3&clustering=adaptive&seeding=random&shuffle=true", false},
		{"data file", "dataset=" + filepath.Join(dir, "points.csv"), false},
		{"arbitrary path", "dataset=/etc/passwd", true},
		{"unknown mapper", "mapper=voronoi", true},
		{"width too small", "width=10", true},
		{"bad isolevel", "isolevel=high", true},
		{"bad bool", "shuffle=maybe", true},
		{"too many repetitions", "repetitions=100000", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := s.parseRenderRequest(httptest.NewRequest(http.MethodGet, "/api/render?"+tt.query, nil))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NoError(t, req.Options.Validate())
		})
	}

	req, err := s.parseRenderRequest(httptest.NewRequest(http.MethodGet, "/api/render?mapper=isosurface&isolevel=100&width=128", nil))
	require.NoError(t, err)
	require.NotNil(t, req.Options.Isolevel)
	assert.Equal(t, 100.0, *req.Options.Isolevel)
	assert.Equal(t, 128, req.Width)
	assert.Equal(t, 400, req.Height)
}

func TestRenderStreamsPasses(t *testing.T) {
	s, _ := newTestServer(t)
	rec := get(t, s, "/api/render?dataset=hydrogen&mapper=isosurface&repetitions=3&width=64&height=64")
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	var passes []PassUpdate
	var last string
	for _, event := range sseEvents(rec.Body.String()) {
		switch event[0] {
		case "pass":
			var update PassUpdate
			require.NoError(t, json.Unmarshal([]byte(event[1]), &update))
			passes = append(passes, update)
		case "error":
			t.Fatalf("render error: %s", event[1])
		}
		last = event[0]
	}

	require.Len(t, passes, 3)
	for i, p := range passes {
		assert.Equal(t, i+1, p.Repetition)
		assert.Equal(t, 3, p.RepetitionLevel)
		assert.NotEmpty(t, p.ImageData)
		assert.Positive(t, p.PrimitiveCount)
	}
	assert.True(t, passes[2].IsComplete)
	assert.False(t, passes[0].IsComplete)
	assert.Equal(t, "complete", last)
}

func TestRenderReportsErrors(t *testing.T) {
	s, _ := newTestServer(t)
	tests := []struct {
		name  string
		query string
	}{
		{"invalid request", "mapper=voronoi"},
		{"pipeline failure", "dataset=hydrogen&mapper=kmeans"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, s, "/api/render?"+tt.query)
			events := sseEvents(rec.Body.String())
			var kinds []string
			for _, e := range events {
				kinds = append(kinds, e[0])
			}
			assert.Contains(t, kinds, "error")
			assert.NotContains(t, kinds, "complete")
		})
	}
}

func TestInspect(t *testing.T) {
	s, _ := newTestServer(t)

	t.Run("isosurface center", func(t *testing.T) {
		rec := get(t, s, "/api/inspect?dataset=hydrogen&mapper=isosurface&width=64&height=64&x=32&y=32")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var response InspectResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
		assert.Equal(t, "polygon", response.Kind)
		assert.Equal(t, "PolygonEngine", response.Engine)
		assert.True(t, response.Hit)
		assert.Contains(t, response.Properties, "triangle")
		assert.Contains(t, response.Description, "MarchingCubes")
	})

	t.Run("volume center", func(t *testing.T) {
		rec := get(t, s, "/api/inspect?dataset=hydrogen&width=64&height=64&x=32&y=32")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var response InspectResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
		assert.Equal(t, "structured volume", response.Kind)
		assert.True(t, response.Hit)
		assert.Greater(t, response.Properties["maxValue"].(float64), 200.0)
	})

	t.Run("volume corner misses", func(t *testing.T) {
		rec := get(t, s, "/api/inspect?dataset=hydrogen&width=64&height=64&x=0&y=0")
		require.Equal(t, http.StatusOK, rec.Code)
		var response InspectResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
		assert.False(t, response.Hit)
	})

	t.Run("errors", func(t *testing.T) {
		for _, query := range []string{
			"x=1",
			"x=a&y=1",
			"width=64&height=64&x=64&y=0",
			"dataset=hydrogen&mapper=kmeans&x=1&y=1",
		} {
			rec := get(t, s, "/api/inspect?"+query)
			assert.Equal(t, http.StatusBadRequest, rec.Code, query)
		}
	})
}
