package handlers_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/osintgraph/internal/backup"
	"github.com/scrypster/osintgraph/internal/engine"
	"github.com/scrypster/osintgraph/internal/services"
	"github.com/scrypster/osintgraph/internal/storage/file"
	"github.com/scrypster/osintgraph/pkg/types"
	"github.com/scrypster/osintgraph/web/handlers"
)

const johnDoeJSON = `{"findings": [
  {"username": "john_doe", "platform_name": "twitter", "status": "found",
   "metadata": {"email": "john.doe@example.com"}},
  {"username": "johndoe", "platform_name": "github", "status": "found",
   "metadata": {"email": "john.doe@example.com"}}
]}`

const (
	twitterJohn = "ent:account:twitter:john_doe"
	githubJohn  = "ent:account:github:johndoe"
)

func newTestAPI(t *testing.T, maxBody int64) (*handlers.APIHandlers, *services.SessionService) {
	t.Helper()
	eng, err := engine.NewCorrelationEngine(engine.DefaultConfig())
	require.NoError(t, err)
	store, err := file.NewStore(t.TempDir())
	require.NoError(t, err)
	session := services.NewSessionService(eng, store)
	return handlers.NewAPIHandlers(session, maxBody), session
}

func serve(handler http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	handler(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.Equal(t, "application/json", w.Header().Get("Content-Type"))
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v))
}

func TestPostFindings_Formats(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		query       string
		contentType string
	}{
		{"json wrapped", johnDoeJSON, "", "application/json"},
		{"json without content type", johnDoeJSON, "", ""},
		{
			"jsonl by content type",
			`{"username": "john_doe", "platform_name": "twitter", "metadata": {"email": "john.doe@example.com"}}
{"username": "johndoe", "platform_name": "github", "metadata": {"email": "john.doe@example.com"}}`,
			"", "application/x-ndjson",
		},
		{
			"yaml by query",
			"- username: john_doe\n  platform_name: twitter\n  metadata: {email: john.doe@example.com}\n" +
				"- username: johndoe\n  platform_name: github\n  metadata: {email: john.doe@example.com}\n",
			"?format=yaml", "text/plain",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api, _ := newTestAPI(t, 0)
			req := httptest.NewRequest(http.MethodPost, "/api/findings"+tt.query, strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			w := serve(api.PostFindings, req)
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())

			var result types.CorrelationResult
			decode(t, w, &result)
			assert.Len(t, result.Entities, 3)
			require.Len(t, result.Relationships, 3)
			for _, r := range result.Relationships {
				assert.Equal(t, types.RelSamePerson, r.Kind)
			}
			require.Len(t, result.Clusters, 1)
			assert.Len(t, result.Clusters[0].Entities, 3)
			assert.NotEmpty(t, result.Summary)
		})
	}
}

func TestPostFindings_Errors(t *testing.T) {
	api, session := newTestAPI(t, 64)

	tests := []struct {
		name        string
		body        string
		query       string
		contentType string
		want        int
	}{
		{"malformed", `[{"username":`, "", "application/json", http.StatusBadRequest},
		{"missing platform", `[{"username":"a"}]`, "", "application/json", http.StatusBadRequest},
		{"unknown format", `[]`, "?format=xml", "", http.StatusUnsupportedMediaType},
		{"unknown media type", `[]`, "", "application/xml", http.StatusUnsupportedMediaType},
		{"too large", "[" + strings.Repeat(" ", 100) + "]", "", "application/json", http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/findings"+tt.query, strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			w := serve(api.PostFindings, req)
			assert.Equal(t, tt.want, w.Code)

			var errResp handlers.ErrorResponse
			decode(t, w, &errResp)
			assert.NotEmpty(t, errResp.Error)
		})
	}
	assert.Empty(t, session.Entities(), "rejected uploads change nothing")
}

func TestQueries(t *testing.T) {
	api, session := newTestAPI(t, 0)
	session.ProcessFindings([]types.Finding{
		{Username: "john_doe", PlatformName: "twitter", Status: types.FindingFound,
			Metadata: map[string]interface{}{"email": "john.doe@example.com"}},
		{Username: "johndoe", PlatformName: "github", Status: types.FindingFound,
			Metadata: map[string]interface{}{"email": "john.doe@example.com"}},
	})

	t.Run("result", func(t *testing.T) {
		w := serve(api.GetResult, httptest.NewRequest(http.MethodGet, "/api/result", nil))
		require.Equal(t, http.StatusOK, w.Code)
		var result types.CorrelationResult
		decode(t, w, &result)
		assert.Len(t, result.Entities, 3)
	})

	t.Run("entities by kind", func(t *testing.T) {
		w := serve(api.ListEntities, httptest.NewRequest(http.MethodGet, "/api/entities?kind=email", nil))
		var resp handlers.EntitiesResponse
		decode(t, w, &resp)
		require.Equal(t, 1, resp.Total)
		assert.Equal(t, types.EntityEmail, resp.Entities[0].Kind)
	})

	t.Run("entity by id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/entities/x", nil)
		req.SetPathValue("id", twitterJohn)
		w := serve(api.GetEntity, req)
		require.Equal(t, http.StatusOK, w.Code)
		var entity types.Entity
		decode(t, w, &entity)
		assert.Equal(t, "john_doe", entity.Name)

		req.SetPathValue("id", "ent:account:nowhere:nobody")
		assert.Equal(t, http.StatusNotFound, serve(api.GetEntity, req).Code)
	})

	t.Run("relationship filters", func(t *testing.T) {
		tests := []struct {
			query string
			code  int
			total int
		}{
			{"", http.StatusOK, 3},
			{"?entity_id=" + githubJohn, http.StatusOK, 2},
			{"?kind=SamePerson", http.StatusOK, 3},
			{"?kind=related", http.StatusOK, 0},
			{"?min_confidence=100", http.StatusOK, 3},
			{"?kind=friend", http.StatusBadRequest, 0},
			{"?min_confidence=high", http.StatusBadRequest, 0},
			{"?min_confidence=101", http.StatusBadRequest, 0},
		}
		for _, tt := range tests {
			w := serve(api.ListRelationships, httptest.NewRequest(http.MethodGet, "/api/relationships"+tt.query, nil))
			require.Equal(t, tt.code, w.Code, tt.query)
			if tt.code == http.StatusOK {
				var resp handlers.RelationshipsResponse
				decode(t, w, &resp)
				assert.Equal(t, tt.total, resp.Total, tt.query)
			}
		}
	})

	t.Run("graph", func(t *testing.T) {
		w := serve(api.GetGraph, httptest.NewRequest(http.MethodGet, "/api/graph", nil))
		var export engine.GraphExport
		decode(t, w, &export)
		assert.Len(t, export.Nodes, 3)
		assert.Len(t, export.Edges, 3)

		w = serve(api.GetGraphStats, httptest.NewRequest(http.MethodGet, "/api/graph/stats", nil))
		var stats engine.GraphStatistics
		decode(t, w, &stats)
		assert.Equal(t, 3, stats.Nodes)
		assert.Equal(t, 3, stats.Edges)

		w = serve(api.GetCentral, httptest.NewRequest(http.MethodGet, "/api/graph/central?top=1", nil))
		var central handlers.CentralResponse
		decode(t, w, &central)
		assert.Len(t, central.Entities, 1)

		w = serve(api.GetBridges, httptest.NewRequest(http.MethodGet, "/api/graph/bridges", nil))
		var bridges handlers.BridgesResponse
		decode(t, w, &bridges)
		assert.Empty(t, bridges.Bridges, "a triangle has no bridges")
	})

	t.Run("path", func(t *testing.T) {
		w := serve(api.GetPath, httptest.NewRequest(http.MethodGet, "/api/graph/path?from="+twitterJohn+"&to="+githubJohn, nil))
		require.Equal(t, http.StatusOK, w.Code)
		var path engine.PathResult
		decode(t, w, &path)
		assert.Equal(t, 1, path.Distance)

		w = serve(api.GetPath, httptest.NewRequest(http.MethodGet, "/api/graph/path?from="+twitterJohn, nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w = serve(api.GetPath, httptest.NewRequest(http.MethodGet, "/api/graph/path?from="+twitterJohn+"&to=ent:email:john.doe@example.com", nil))
		require.Equal(t, http.StatusOK, w.Code)
		decode(t, w, &path)
		assert.Equal(t, 1, path.Distance, "both accounts link to the shared email")

		w = serve(api.GetPath, httptest.NewRequest(http.MethodGet, "/api/graph/path?from="+twitterJohn+"&to=ent:account:nowhere:nobody", nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestSnapshotsAndReset(t *testing.T) {
	api, session := newTestAPI(t, 0)
	session.ProcessFindings([]types.Finding{
		{Username: "john_doe", PlatformName: "twitter", Status: types.FindingFound,
			Metadata: map[string]interface{}{"email": "john.doe@example.com"}},
		{Username: "johndoe", PlatformName: "github", Status: types.FindingFound,
			Metadata: map[string]interface{}{"email": "john.doe@example.com"}},
	})

	withName := func(method, name string) *http.Request {
		req := httptest.NewRequest(method, "/api/snapshots/"+name, nil)
		req.SetPathValue("name", name)
		return req
	}

	w := serve(api.SaveSnapshot, withName(http.MethodPost, "case-7"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = serve(api.SaveSnapshot, withName(http.MethodPost, ".hidden"))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serve(api.ListSnapshots, httptest.NewRequest(http.MethodGet, "/api/snapshots", nil))
	var list handlers.SnapshotsResponse
	decode(t, w, &list)
	require.Len(t, list.Snapshots, 1)
	assert.Equal(t, "case-7", list.Snapshots[0].Name)

	w = serve(api.PostReset, httptest.NewRequest(http.MethodPost, "/api/reset", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, session.Entities())

	w = serve(api.RestoreSnapshot, withName(http.MethodPost, "case-7"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, session.Entities(), 3)

	w = serve(api.RestoreSnapshot, withName(http.MethodPost, "missing"))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = serve(api.DeleteSnapshot, withName(http.MethodDelete, "case-7"))
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = serve(api.DeleteSnapshot, withName(http.MethodDelete, "case-7"))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSnapshots_NoStore(t *testing.T) {
	eng, err := engine.NewCorrelationEngine(engine.DefaultConfig())
	require.NoError(t, err)
	api := handlers.NewAPIHandlers(services.NewSessionService(eng, nil), 0)

	w := serve(api.ListSnapshots, httptest.NewRequest(http.MethodGet, "/api/snapshots", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

type fakeBackupHealth struct {
	status *backup.HealthStatus
	err    error
}

func (f fakeBackupHealth) HealthCheck() (*backup.HealthStatus, error) { return f.status, f.err }

func TestGetStats(t *testing.T) {
	_, session := newTestAPI(t, 0)
	session.ProcessFindings([]types.Finding{
		{Username: "a", PlatformName: "x", Status: types.FindingFound},
	})

	w := serve(handlers.NewStatsHandler(session, nil).GetStats, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	var stats handlers.StatsResponse
	decode(t, w, &stats)
	assert.Equal(t, 1, stats.Entities)
	assert.Equal(t, 1, stats.Graph.Nodes)
	assert.Nil(t, stats.Backup)

	healthy := fakeBackupHealth{status: &backup.HealthStatus{Status: "healthy", LastBackup: time.Now()}}
	w = serve(handlers.NewStatsHandler(session, healthy).GetStats, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	stats = handlers.StatsResponse{}
	decode(t, w, &stats)
	require.NotNil(t, stats.Backup)
	assert.Equal(t, "healthy", stats.Backup.Status)

	broken := fakeBackupHealth{err: errors.New("disk gone")}
	w = serve(handlers.NewStatsHandler(session, broken).GetStats, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	stats = handlers.StatsResponse{}
	decode(t, w, &stats)
	require.NotNil(t, stats.Backup)
	assert.Equal(t, "error", stats.Backup.Status)
}
