package mcpserver

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/wikimapper/internal/lookup"
	"github.com/starford/wikimapper/internal/oracle"
	"github.com/starford/wikimapper/internal/resolve"
	"github.com/starford/wikimapper/internal/testutil"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	db := testutil.TestDB(t)
	ctx := context.Background()
	_ = db.Add(ctx, oracle.KindOntology, "http://dbpedia.org/ontology/area")
	_ = db.Add(ctx, oracle.KindResource, "http://dbpedia.org/resource/Paris")
	svc := lookup.NewService(db, resolve.NewSet(db, "http://dbpedia.org/ontology", testutil.Logger()), nil, db)
	return New(svc, "test")
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	var result *mcp.CallToolResult
	var err error

	switch name {
	case "resolve_uri":
		result, err = srv.resolveURI(ctx, req)
	case "classify_uri":
		result, err = srv.classifyURI(ctx, req)
	case "check_exists":
		result, err = srv.checkExists(ctx, req)
	case "get_stats":
		result, err = srv.getStats(ctx, req)
	case "get_mapping_contract":
		result, err = srv.getMappingContract(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestResolveURI(t *testing.T) {
	srv := testServer(t)

	r := callTool(t, srv, "resolve_uri", map[string]interface{}{
		"category": "property",
		"uri":      "http://dbpedia.org/property/area",
	})
	if r.IsError {
		t.Fatalf("unexpected error: %s", resultText(r))
	}
	var res lookup.ResolveResult
	if err := json.Unmarshal([]byte(resultText(r)), &res); err != nil {
		t.Fatal(err)
	}
	if res.Resolved != "<http://dbpedia.org/ontology/area>" {
		t.Errorf("resolved = %q", res.Resolved)
	}
}

func TestResolveURIValidation(t *testing.T) {
	srv := testServer(t)
	if r := callTool(t, srv, "resolve_uri", map[string]interface{}{"uri": "x"}); !r.IsError {
		t.Error("expected error for missing category")
	}
	if r := callTool(t, srv, "resolve_uri", map[string]interface{}{"category": "planet", "uri": "x"}); !r.IsError {
		t.Error("expected error for unknown category")
	}
}

func TestClassifyURI(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "classify_uri", map[string]interface{}{
		"uri": "http://x.org/resource/Template:Infobox_settlement",
	})
	text := resultText(r)
	if !strings.Contains(text, `"category": "class"`) || !strings.Contains(text, `"class_id": "settlement"`) {
		t.Errorf("classify = %s", text)
	}
}

func TestCheckExists(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "check_exists", map[string]interface{}{
		"kind": "resource",
		"uri":  "<http://dbpedia.org/resource/Paris>",
	})
	if !strings.Contains(resultText(r), `"exists": true`) {
		t.Errorf("check_exists = %s", resultText(r))
	}
	r = callTool(t, srv, "check_exists", map[string]interface{}{"kind": "resource"})
	if !r.IsError {
		t.Error("expected error for missing uri")
	}
}

func TestGetStats(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "get_stats", map[string]interface{}{})
	if r.IsError || !strings.Contains(resultText(r), `"ontology": 1`) {
		t.Errorf("stats = %s", resultText(r))
	}
}

func TestMappingContract(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "get_mapping_contract", map[string]interface{}{})
	if !strings.Contains(resultText(r), "owl#equivalentProperty") {
		t.Error("contract missing predicates")
	}

	contents, err := srv.readMappingFormatResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil || len(contents) != 1 {
		t.Fatalf("resource = %v, %v", contents, err)
	}
	if tc, ok := contents[0].(mcp.TextResourceContents); !ok || tc.URI != mappingFormatURI {
		t.Errorf("resource contents = %+v", contents[0])
	}
}
