package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/osintgraph/internal/config"
)

const findings = `[{"username": "john_doe", "platform_name": "twitter", "metadata": {"email": "john.doe@example.com"}}, {"username": "johndoe", "platform_name": "github", "metadata": {"email": "john.doe@example.com"}}]`

func testConfig(dataPath string) *config.Config {
	return &config.Config{
		Storage: config.StorageConfig{
			StorageEngine: "sqlite",
			DataPath:      dataPath,
			SnapshotName:  "current",
		},
		Correlation: config.DefaultCorrelationConfig(),
	}
}

func request(t *testing.T, id int, method string, params interface{}) string {
	t.Helper()
	data, err := json.Marshal(map[string]interface{}{"jsonrpc": "2.0", "id": id, "method": method, "params": params})
	require.NoError(t, err)
	return string(data) + "\n"
}

func results(t *testing.T, out *bytes.Buffer) []map[string]json.RawMessage {
	t.Helper()
	var all []map[string]json.RawMessage
	scanner := bufio.NewScanner(out)
	for scanner.Scan() {
		var resp map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &resp))
		_, failed := resp["error"]
		require.False(t, failed, scanner.Text())
		all = append(all, resp)
	}
	return all
}

func TestRun_PersistsSessionBetweenRuns(t *testing.T) {
	dataPath := t.TempDir()

	in := request(t, 1, "initialize", map[string]interface{}{}) +
		request(t, 2, "process_findings", map[string]interface{}{"findings": json.RawMessage(findings)})
	var out bytes.Buffer
	require.NoError(t, run(context.Background(), testConfig(dataPath), strings.NewReader(in), &out))
	assert.Len(t, results(t, &out), 2)

	events, err := filepath.Glob(filepath.Join(dataPath, "events", "*.event"))
	require.NoError(t, err)
	assert.Len(t, events, 1, "the exit save is announced to other processes")

	// The second run restores the snapshot saved on exit.
	out.Reset()
	in = request(t, 1, "graph_stats", map[string]interface{}{}) +
		request(t, 2, "list_snapshots", map[string]interface{}{})
	require.NoError(t, run(context.Background(), testConfig(dataPath), strings.NewReader(in), &out))

	responses := results(t, &out)
	require.Len(t, responses, 2)
	var stats struct {
		Nodes int `json:"nodes"`
		Edges int `json:"edges"`
	}
	require.NoError(t, json.Unmarshal(responses[0]["result"], &stats))
	assert.Equal(t, 3, stats.Nodes)
	assert.Equal(t, 3, stats.Edges)

	var list struct {
		Snapshots []struct {
			Name string `json:"name"`
		} `json:"snapshots"`
	}
	require.NoError(t, json.Unmarshal(responses[1]["result"], &list))
	require.Len(t, list.Snapshots, 1)
	assert.Equal(t, "current", list.Snapshots[0].Name)
}

func TestRun_CancelledContextStillSaves(t *testing.T) {
	dataPath := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	require.NoError(t, run(ctx, testConfig(dataPath), strings.NewReader(""), &out))
	assert.Zero(t, out.Len())
}

func TestRun_InvalidStorageEngine(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.Storage.StorageEngine = "mongodb"
	err := run(context.Background(), cfg, strings.NewReader(""), &bytes.Buffer{})
	assert.Error(t, err)
}
