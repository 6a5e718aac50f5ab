package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/starford/wikimapper/internal/lookup"
	"github.com/starford/wikimapper/internal/models"
	"github.com/starford/wikimapper/internal/oracle"
	"github.com/starford/wikimapper/internal/resolve"
	"github.com/starford/wikimapper/internal/testutil"
)

// testEnv seeds an oracle DB and returns a router; an empty token disables auth.
func testEnv(t *testing.T, authToken string) (*lookup.Service, http.Handler) {
	t.Helper()
	db := testutil.TestDB(t)
	ctx := context.Background()
	if err := db.Add(ctx, oracle.KindOntology, "http://dbpedia.org/ontology/area"); err != nil {
		t.Fatal(err)
	}
	if err := db.Add(ctx, oracle.KindProperty, "http://dbpedia.org/property/height"); err != nil {
		t.Fatal(err)
	}
	svc := lookup.NewService(db, resolve.NewSet(db, "http://dbpedia.org/ontology", testutil.Logger()), nil, db)
	return svc, NewRouter(svc, authToken != "", authToken, nil)
}

func get(t *testing.T, h http.Handler, target string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestExistsEndpoint(t *testing.T) {
	_, router := testEnv(t, "")

	w := get(t, router, "/exists/property?uri="+url.QueryEscape("<http://dbpedia.org/property/height>"))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var res ExistsResponse
	_ = json.Unmarshal(w.Body.Bytes(), &res)
	if !res.Exists || res.Kind != oracle.KindProperty {
		t.Errorf("response = %+v", res)
	}

	w = get(t, router, "/exists/property?uri="+url.QueryEscape("http://dbpedia.org/property/HEIGHT"))
	_ = json.Unmarshal(w.Body.Bytes(), &res)
	if res.Exists {
		t.Error("lookups must be case-sensitive")
	}
}

func TestExistsBadRequest(t *testing.T) {
	_, router := testEnv(t, "")
	if w := get(t, router, "/exists/planet?uri=x"); w.Code != http.StatusBadRequest {
		t.Errorf("unknown kind status = %d", w.Code)
	}
	if w := get(t, router, "/exists/resource"); w.Code != http.StatusBadRequest {
		t.Errorf("missing uri status = %d", w.Code)
	}
}

func TestResolveEndpoint(t *testing.T) {
	_, router := testEnv(t, "")

	w := get(t, router, "/resolve/property?uri="+url.QueryEscape("http://dbpedia.org/property/area"))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var res ResolveResponse
	_ = json.Unmarshal(w.Body.Bytes(), &res)
	if res.Resolved != "<http://dbpedia.org/ontology/area>" || !res.Mapped {
		t.Errorf("response = %+v", res)
	}

	w = get(t, router, "/resolve/property?uri="+url.QueryEscape("http://dbpedia.org/property/Height"))
	_ = json.Unmarshal(w.Body.Bytes(), &res)
	if res.Resolved != "<http://dbpedia.org/property/height>" {
		t.Errorf("fallback = %+v", res)
	}

	w = get(t, router, "/resolve/resource?uri="+url.QueryEscape("http://dbpedia.org/resource/Nowhere"))
	_ = json.Unmarshal(w.Body.Bytes(), &res)
	if res.Mapped || res.Resolved != resolve.NoMapping {
		t.Errorf("miss = %+v", res)
	}

	if w := get(t, router, "/resolve/thing?uri=x"); w.Code != http.StatusBadRequest {
		t.Errorf("unknown category status = %d", w.Code)
	}
}

func TestClassifyEndpoint(t *testing.T) {
	_, router := testEnv(t, "")

	w := get(t, router, "/classify?uri="+url.QueryEscape("http://x.org/resource/Template:Infobox_river"))
	var res ClassifyResponse
	_ = json.Unmarshal(w.Body.Bytes(), &res)
	if res.Category != models.CategoryClass || res.ClassID != "river" {
		t.Errorf("response = %+v", res)
	}

	w = get(t, router, "/classify?uri="+url.QueryEscape("http://commons.wikimedia.org/resource/File.png"))
	_ = json.Unmarshal(w.Body.Bytes(), &res)
	if !res.Excluded || res.Candidate {
		t.Errorf("excluded = %+v", res)
	}
}

func TestStatsEndpoint(t *testing.T) {
	svc, router := testEnv(t, "")
	svc.Observe(models.Statistics{Resources: 7, Sources: 2})

	w := get(t, router, "/stats")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var res StatsResponse
	_ = json.Unmarshal(w.Body.Bytes(), &res)
	if res.Mapping.Resources != 7 || res.Oracle[oracle.KindOntology] != 1 {
		t.Errorf("response = %+v", res)
	}
}

func TestAuthTokenMode(t *testing.T) {
	_, router := testEnv(t, "secret")

	if w := get(t, router, "/stats"); w.Code != http.StatusUnauthorized {
		t.Errorf("no token = %d, want 401", w.Code)
	}
	if w := get(t, router, "/stats", "Authorization", "Bearer wrong"); w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
	if w := get(t, router, "/stats", "Authorization", "Bearer secret"); w.Code != http.StatusOK {
		t.Errorf("valid token = %d, want 200", w.Code)
	}
}

func TestSSEMountedBehindAuth(t *testing.T) {
	db := testutil.TestDB(t)
	svc := lookup.NewService(db, resolve.NewSet(db, "http://x/ontology", nil), nil, nil)
	sse := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	router := NewRouter(svc, true, "tok", sse)

	if w := get(t, router, "/events"); w.Code != http.StatusUnauthorized {
		t.Errorf("events without token = %d", w.Code)
	}
	if w := get(t, router, "/events", "Authorization", "Bearer tok"); w.Code != http.StatusTeapot {
		t.Errorf("events with token = %d", w.Code)
	}
}

func TestRouterRoutes(t *testing.T) {
	db := testutil.TestDB(t)
	svc := lookup.NewService(db, resolve.NewSet(db, "http://x/ontology", nil), nil, nil)
	router := NewRouter(svc, false, "", http.NotFoundHandler())

	got := map[string]bool{}
	err := chi.Walk(router, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		got[method+" "+route] = true
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"GET /exists/{kind}",
		"GET /resolve/{category}",
		"GET /classify",
		"GET /stats",
		"GET /events",
	} {
		if !got[want] {
			t.Errorf("route %q not mounted; have %v", want, got)
		}
	}
	if len(got) != 5 {
		t.Errorf("routes = %v", got)
	}
}

func TestHTTPOracleAgainstRouter(t *testing.T) {
	_, router := testEnv(t, "secret")
	root := chi.NewRouter()
	root.Mount("/api", router)
	srv := httptest.NewServer(root)
	defer srv.Close()

	client := oracle.NewHTTPClient(srv.URL+"/api", "secret", 0)
	ctx := context.Background()

	ok, err := client.OntologyClassExists(ctx, "<http://dbpedia.org/ontology/area>")
	if err != nil || !ok {
		t.Errorf("OntologyClassExists = %v, %v", ok, err)
	}
	ok, err = client.ResourceExists(ctx, "http://dbpedia.org/resource/Nowhere")
	if err != nil || ok {
		t.Errorf("ResourceExists = %v, %v", ok, err)
	}

	// The remote oracle drives the same strategies as the local one.
	st := &resolve.PropertyStrategy{Oracle: client}
	if got := st.Resolve(ctx, "http://dbpedia.org/property/area"); got != "http://dbpedia.org/ontology/area" {
		t.Errorf("remote resolve = %q", got)
	}
}
