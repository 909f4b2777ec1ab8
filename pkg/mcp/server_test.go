package mcp_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/Sumatoshi-tech/gdport/pkg/mcp"
	"github.com/Sumatoshi-tech/gdport/pkg/observability"
)

// connect starts srv on an in-memory transport and returns a client session.
func connect(t *testing.T, srv *mcp.Server) *mcpsdk.ClientSession {
	t.Helper()

	clientTransport, serverTransport := mcpsdk.NewInMemoryTransports()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)

	serverDone := make(chan error, 1)

	go func() {
		serverDone <- srv.RunWithTransport(ctx, serverTransport)
	}()

	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "test-client", Version: "1.0.0"}, nil)

	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = session.Close()

		cancel()
		<-serverDone
	})

	return session
}

func callTool(t *testing.T, session *mcpsdk.ClientSession, name string, args map[string]any) *mcpsdk.CallToolResult {
	t.Helper()

	result, err := session.CallTool(context.Background(), &mcpsdk.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)

	return result
}

func firstText(t *testing.T, result *mcpsdk.CallToolResult) string {
	t.Helper()

	text, ok := result.Content[0].(*mcpsdk.TextContent)
	require.True(t, ok)

	return text.Text
}

func TestServer_ListTools(t *testing.T) {
	t.Parallel()

	srv := mcp.NewServer(mcp.ServerDeps{})
	assert.Equal(t, []string{"gdport_convert", "gdport_rules", "gdport_scene"}, srv.ListToolNames())

	tools, err := connect(t, srv).ListTools(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, tools.Tools, 3)

	for _, tool := range tools.Tools {
		assert.NotNil(t, tool.InputSchema, "tool %s missing input schema", tool.Name)
		assert.NotEmpty(t, tool.Description)
	}
}

func TestServer_Convert(t *testing.T) {
	t.Parallel()

	session := connect(t, mcp.NewServer(mcp.ServerDeps{}))

	result := callTool(t, session, mcp.ToolNameConvert, map[string]any{
		"code": "class P : MonoBehaviour { void Start() { } }",
		"diff": true,
	})
	require.False(t, result.IsError)

	var out mcp.ConvertOutput

	require.NoError(t, json.Unmarshal([]byte(firstText(t, result)), &out))
	assert.Equal(t, "class P : Node { public override void _Ready() { } }", out.Output)
	assert.Equal(t, map[string]int{"base_class": 1, "lifecycle": 1}, out.Rules)
	assert.Contains(t, out.Diff, "--- Script.cs\n+++ Script_Godot.cs\n")
}

func TestServer_ConvertPartial(t *testing.T) {
	t.Parallel()

	session := connect(t, mcp.NewServer(mcp.ServerDeps{}))

	result := callTool(t, session, mcp.ToolNameConvert, map[string]any{
		"code":    "class P { }",
		"partial": true,
	})
	require.False(t, result.IsError)

	var out mcp.ConvertOutput

	require.NoError(t, json.Unmarshal([]byte(firstText(t, result)), &out))
	assert.Equal(t, "public partial class P { }", out.Output)
}

func TestServer_ConvertErrors(t *testing.T) {
	t.Parallel()

	session := connect(t, mcp.NewServer(mcp.ServerDeps{}))

	tests := []struct {
		name string
		code string
		want string
	}{
		{name: "empty", code: "  ", want: "code parameter is required"},
		{name: "parse failure", code: "class {", want: "parse failure"},
		{name: "too large", code: strings.Repeat("a", mcp.MaxCodeInputBytes+1), want: "exceeds maximum size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := callTool(t, session, mcp.ToolNameConvert, map[string]any{"code": tt.code})
			assert.True(t, result.IsError)
			assert.Contains(t, firstText(t, result), tt.want)
		})
	}
}

func TestServer_Rules(t *testing.T) {
	t.Parallel()

	session := connect(t, mcp.NewServer(mcp.ServerDeps{}))

	result := callTool(t, session, mcp.ToolNameRules, map[string]any{})
	require.False(t, result.IsError)

	text := firstText(t, result)
	assert.Contains(t, text, `"MonoBehaviour": "Node"`)
	assert.Contains(t, text, `"Debug.Log": "GD.Print"`)
}

func TestServer_Scene(t *testing.T) {
	t.Parallel()

	session := connect(t, mcp.NewServer(mcp.ServerDeps{}))

	result := callTool(t, session, mcp.ToolNameScene, map[string]any{
		"scene": "%YAML 1.1\n--- !u!1 &1\nGameObject:\n  m_Name: Player\n--- !u!4 &2\nTransform:\n  m_Father: {fileID: 0}\n",
	})
	require.False(t, result.IsError)

	var out mcp.SceneOutput

	require.NoError(t, json.Unmarshal([]byte(firstText(t, result)), &out))
	assert.Equal(t, 2, out.Documents)
	assert.Equal(t, []string{"Player"}, out.Objects)

	result = callTool(t, session, mcp.ToolNameScene, map[string]any{"scene": ""})
	assert.True(t, result.IsError)
}

func TestServer_SceneRejectsAliasCycle(t *testing.T) {
	t.Parallel()

	session := connect(t, mcp.NewServer(mcp.ServerDeps{}))

	result := callTool(t, session, mcp.ToolNameScene, map[string]any{"scene": "a: &x\n  b: *x\n"})
	require.True(t, result.IsError)
	assert.Contains(t, firstText(t, result), "invalid scene document")

	// The session stays usable after the rejected document.
	result = callTool(t, session, mcp.ToolNameScene, map[string]any{"scene": "--- !u!1 &1\nGameObject:\n  m_Name: Crate\n"})
	require.False(t, result.IsError)
	assert.Contains(t, firstText(t, result), "Crate")
}

func TestServer_TracingAndMetrics(t *testing.T) {
	t.Parallel()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	t.Cleanup(func() {
		require.NoError(t, tp.Shutdown(context.Background()))
		require.NoError(t, mp.Shutdown(context.Background()))
	})

	red, err := observability.NewREDMetrics(mp.Meter("test"))
	require.NoError(t, err)

	session := connect(t, mcp.NewServer(mcp.ServerDeps{
		Tracer:  tp.Tracer("test"),
		Metrics: red,
	}))

	result := callTool(t, session, mcp.ToolNameConvert, map[string]any{"code": "class P { }"})
	require.False(t, result.IsError)
	require.Len(t, result.Content, 2)

	traceText, ok := result.Content[1].(*mcpsdk.TextContent)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(traceText.Text, "trace_id="))

	var names []string
	for _, span := range exporter.GetSpans() {
		names = append(names, span.Name)
	}

	assert.Contains(t, names, "mcp.gdport_convert")
	assert.Contains(t, names, "gdport.convert")

	var rm metricdata.ResourceMetrics

	require.NoError(t, reader.Collect(context.Background(), &rm))

	found := false

	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == "gdport.requests.total" {
				found = true
			}
		}
	}

	assert.True(t, found)
}
