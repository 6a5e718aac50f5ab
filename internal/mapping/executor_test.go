package mapping

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/starford/wikimapper/internal/apperr"
	"github.com/starford/wikimapper/internal/models"
	"github.com/starford/wikimapper/internal/oracle"
	"github.com/starford/wikimapper/internal/resolve"
	"github.com/starford/wikimapper/internal/scan"
	"github.com/starford/wikimapper/internal/testutil"
)

const dumpLine = `<http://dbpedia.org/resource/Paris> <http://dbpedia.org/property/area> "105.4" .` + "\n"

func testExecutor(t *testing.T, cb EventCallback) *Executor {
	t.Helper()
	db := testutil.TestDB(t)
	ctx := context.Background()
	if err := db.Add(ctx, oracle.KindOntology,
		"http://dbpedia.org/ontology/area",
		"http://dbpedia.org/ontology/Settlement"); err != nil {
		t.Fatal(err)
	}
	logger := testutil.Logger()
	return New(resolve.NewSet(db, "http://dbpedia.org/ontology", logger), nil, Options{
		IncludeNoMapping: true,
		Scan: scan.Options{
			PlatformDomain:  "dbpedia.org",
			TargetNamespace: "wikimapper.org",
			MappingFileName: "mappings.ttl",
		},
		OnSource: cb,
	}, logger)
}

func TestRunEndToEnd(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, DefaultSourcesDir, "empty"), 0o755); err != nil {
		t.Fatal(err)
	}
	testutil.WriteFile(t, root, "postProcessedWikis/wiki1/dump.ttl", dumpLine)
	testutil.WriteFile(t, root, "postProcessedWikis/stray.txt", "not a source")

	rep, err := testExecutor(t, nil).Run(context.Background(), root)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := models.Statistics{Resources: 1, Properties: 1, Classes: 0, Sources: 2}
	if rep.Statistics != want {
		t.Errorf("statistics = %+v, want %+v", rep.Statistics, want)
	}
	stats := testutil.ReadFile(t, root, DefaultStatisticsPath)
	wantText := "Total number of resources found: 1\n" +
		"Total number of properties found: 1\n" +
		"Total number of classes found: 0"
	if stats != wantText {
		t.Errorf("statistics file = %q", stats)
	}

	for _, cat := range models.Categories {
		name := resolve.FileName(cat, "mappings.ttl")
		if got := testutil.ReadFile(t, root, filepath.Join(DefaultSourcesDir, "empty", name)); got != "" {
			t.Errorf("empty source %s = %q, want empty", name, got)
		}
	}

	props := testutil.ReadFile(t, root, "postProcessedWikis/wiki1/property_mappings.ttl")
	wantProps := "<http://wikimapper.org/wiki1/property/area> <http://www.w3.org/2002/07/owl#equivalentProperty> <http://dbpedia.org/ontology/area> .\n"
	if props != wantProps {
		t.Errorf("property mappings = %q", props)
	}
	res := testutil.ReadFile(t, root, "postProcessedWikis/wiki1/resource_mappings.ttl")
	if !strings.Contains(res, "<http://wikimapper.org/wiki1/resource/Paris> <http://www.w3.org/2002/07/owl#sameAs> <null> .") {
		t.Errorf("resource mappings = %q", res)
	}

	dump := testutil.ReadFile(t, root, "postProcessedWikis/wiki1/dump.ttl")
	wantDump := strings.ReplaceAll(dumpLine, "dbpedia.org", "wikimapper.org/wiki1")
	if dump != wantDump {
		t.Errorf("dump = %q, want %q", dump, wantDump)
	}
	if _, err := os.Stat(filepath.Join(root, DefaultOntologyPath)); err != nil {
		t.Errorf("ontology not written: %v", err)
	}
}

func TestRunIsRepeatable(t *testing.T) {
	root := t.TempDir()
	testutil.WriteFile(t, root, "postProcessedWikis/wiki1/dump.ttl", dumpLine)
	ex := testExecutor(t, nil)

	first, err := ex.Run(context.Background(), root)
	if err != nil {
		t.Fatal(err)
	}
	// Mapping files from the first run must not be scanned as dumps.
	second, err := ex.Run(context.Background(), root)
	if err != nil {
		t.Fatal(err)
	}
	if first.Statistics != second.Statistics {
		t.Errorf("second run = %+v, first = %+v", second.Statistics, first.Statistics)
	}
}

func TestRunClassesFeedOntology(t *testing.T) {
	root := t.TempDir()
	testutil.WriteFile(t, root, "postProcessedWikis/a/dump.ttl",
		"<http://dbpedia.org/resource/X> <http://dbpedia.org/property/wikiPageUsesTemplate> <http://dbpedia.org/resource/Template:Infobox_settlement> .\n")
	testutil.WriteFile(t, root, "postProcessedWikis/b/dump.ttl",
		"<http://dbpedia.org/resource/Y> <http://dbpedia.org/property/wikiPageUsesTemplate> <http://dbpedia.org/resource/Template:Infobox Settlement> .\n")

	rep, err := testExecutor(t, nil).Run(context.Background(), root)
	if err != nil {
		t.Fatal(err)
	}
	if rep.Statistics.Classes != 2 {
		t.Errorf("classes = %d, want 2", rep.Statistics.Classes)
	}
	if rep.OntologyClasses != 1 {
		t.Errorf("ontology classes = %d, want 1 after normalization", rep.OntologyClasses)
	}
	classes := testutil.ReadFile(t, root, "postProcessedWikis/a/class_mappings.ttl")
	if !strings.Contains(classes, "<http://dbpedia.org/ontology/Settlement>") {
		t.Errorf("class mappings = %q", classes)
	}
}

func TestRunSkipsUnencodableClass(t *testing.T) {
	root := t.TempDir()
	testutil.WriteFile(t, root, "postProcessedWikis/a/dump.ttl",
		"<http://dbpedia.org/resource/X> <http://dbpedia.org/property/wikiPageUsesTemplate> <http://dbpedia.org/resource/Template:Infobox_city|old> .\n"+
			"<http://dbpedia.org/resource/Y> <http://dbpedia.org/property/wikiPageUsesTemplate> <http://dbpedia.org/resource/Template:Infobox_river> .\n")

	rep, err := testExecutor(t, nil).Run(context.Background(), root)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Statistics.Classes != 2 {
		t.Errorf("classes = %d, want 2", rep.Statistics.Classes)
	}
	if rep.OntologyClasses != 1 {
		t.Errorf("ontology classes = %d, want 1", rep.OntologyClasses)
	}
	stats := testutil.ReadFile(t, root, DefaultStatisticsPath)
	if !strings.Contains(stats, "Total number of classes found: 2") {
		t.Errorf("statistics = %q", stats)
	}
	onto := testutil.ReadFile(t, root, DefaultOntologyPath)
	if !strings.Contains(onto, "/River>") || strings.Contains(onto, "|") {
		t.Errorf("ontology = %q", onto)
	}
}

func TestRunFailingSourceDoesNotAbort(t *testing.T) {
	root := t.TempDir()
	testutil.WriteFile(t, root, "postProcessedWikis/bad/dump.ttl", dumpLine)
	testutil.WriteFile(t, root, "postProcessedWikis/good/dump.ttl", dumpLine)
	// A directory in place of a mapping file makes its write fail.
	if err := os.MkdirAll(filepath.Join(root, DefaultSourcesDir, "bad", "resource_mappings.ttl", "x"), 0o755); err != nil {
		t.Fatal(err)
	}

	var mu sync.Mutex
	var failed []string
	rep, err := testExecutor(t, func(sr SourceReport, _ models.Statistics) {
		mu.Lock()
		defer mu.Unlock()
		if sr.Failed() {
			failed = append(failed, sr.Source)
		}
	}).Run(context.Background(), root)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Statistics.Failed != 1 || rep.Statistics.Sources != 2 {
		t.Errorf("statistics = %+v", rep.Statistics)
	}
	if rep.Statistics.Resources != 2 {
		t.Errorf("partial contribution lost: %+v", rep.Statistics)
	}
	if len(failed) != 1 || failed[0] != "bad" {
		t.Errorf("failed = %v", failed)
	}
	if _, err := os.Stat(filepath.Join(root, DefaultStatisticsPath)); err != nil {
		t.Errorf("statistics not written: %v", err)
	}
}

func TestRunMissingSourcesDir(t *testing.T) {
	_, err := testExecutor(t, nil).Run(context.Background(), t.TempDir())
	if !errors.Is(err, apperr.ErrNoSourcesDir) {
		t.Errorf("err = %v, want ErrNoSourcesDir", err)
	}
}

func TestRunSource(t *testing.T) {
	root := t.TempDir()
	testutil.WriteFile(t, root, "postProcessedWikis/wiki1/dump.ttl", dumpLine)
	ex := testExecutor(t, nil)

	sr, err := ex.RunSource(context.Background(), root, "wiki1")
	if err != nil {
		t.Fatalf("RunSource: %v", err)
	}
	if sr.Resources != 1 || sr.Properties != 1 || sr.Rows[models.CategoryProperty] != 1 {
		t.Errorf("report = %+v", sr)
	}
	if _, err := os.Stat(filepath.Join(root, DefaultStatisticsPath)); !os.IsNotExist(err) {
		t.Error("RunSource must not write statistics")
	}

	if _, err := ex.RunSource(context.Background(), root, "nope"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func TestWatchMapsNewSource(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, DefaultSourcesDir), 0o755); err != nil {
		t.Fatal(err)
	}

	var mu sync.Mutex
	mapped := map[string]int{}
	ex := testExecutor(t, func(sr SourceReport, _ models.Statistics) {
		mu.Lock()
		mapped[sr.Source]++
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- ex.Watch(ctx, root, 50*time.Millisecond) }()

	time.Sleep(100 * time.Millisecond)

	dir := filepath.Join(root, DefaultSourcesDir, "late")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "dump.ttl"), []byte(dumpLine), 0o644); err != nil {
		t.Fatal(err)
	}

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		_, err := os.Stat(filepath.Join(dir, "property_mappings.ttl"))
		return err == nil
	}, "new source not mapped by watcher")

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		data, err := os.ReadFile(filepath.Join(dir, "dump.ttl"))
		return err == nil && strings.Contains(string(data), "wikimapper.org/late")
	}, "dump not rewritten by watcher")

	mu.Lock()
	n := mapped["late"]
	mu.Unlock()
	if n == 0 {
		t.Error("callback not invoked")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Error("watcher did not stop")
	}
}

func TestWatchMissingSourcesDir(t *testing.T) {
	err := testExecutor(t, nil).Watch(context.Background(), t.TempDir(), 0)
	if !errors.Is(err, apperr.ErrNoSourcesDir) {
		t.Errorf("err = %v, want ErrNoSourcesDir", err)
	}
}
