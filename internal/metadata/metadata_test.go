package metadata

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/starford/wikimapper/internal/testutil"
)

type fakeFetcher struct {
	calls  atomic.Int32
	failAt int
}

func (f *fakeFetcher) Fetch(_ context.Context, ids []int) ([]Wiki, error) {
	f.calls.Add(1)
	var out []Wiki
	for _, id := range ids {
		if f.failAt != 0 && id == f.failAt {
			return nil, errors.New("upstream down")
		}
		if id%10 == 0 {
			out = append(out, Wiki{
				ID:       id,
				URL:      fmt.Sprintf("http://w%d.wikia.com", id),
				Title:    fmt.Sprintf("Wiki %d", id),
				Articles: 1,
				Pages:    2,
			})
		}
	}
	return out, nil
}

func TestDownloadAndMerge(t *testing.T) {
	dir := t.TempDir()
	f := &fakeFetcher{}
	ranges := []Range{{From: 1, To: 50}, {From: 50, To: 100}}

	merged, err := Download(context.Background(), f, ranges, dir, DownloadOptions{BatchSize: 7}, testutil.Logger())
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	for i, r := range ranges {
		if _, err := os.Stat(filepath.Join(dir, PartName(i, r))); err != nil {
			t.Errorf("part %d missing: %v", i, err)
		}
	}

	data, err := os.ReadFile(merged)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	// header + ids 10..90
	if len(lines) != 10 {
		t.Fatalf("merged has %d lines, want 10:\n%s", len(lines), data)
	}
	if !strings.HasPrefix(lines[0], "id;url;") {
		t.Errorf("header = %q", lines[0])
	}
	if strings.Count(string(data), "id;url;") != 1 {
		t.Error("header repeated in merged file")
	}
	if !strings.HasPrefix(lines[1], "10;http://w10.wikia.com;") || !strings.HasPrefix(lines[9], "90;") {
		t.Errorf("rows out of order: %q .. %q", lines[1], lines[9])
	}
}

func TestDownloadWorkerFailure(t *testing.T) {
	f := &fakeFetcher{failAt: 60}
	_, err := Download(context.Background(), f, []Range{{From: 1, To: 50}, {From: 50, To: 100}},
		t.TempDir(), DownloadOptions{BatchSize: 5}, testutil.Logger())
	if err == nil || !strings.Contains(err.Error(), "upstream down") {
		t.Errorf("err = %v", err)
	}
}

func TestDownloadRejectsEmptyRange(t *testing.T) {
	_, err := Download(context.Background(), &fakeFetcher{}, []Range{{From: 5, To: 5}},
		t.TempDir(), DownloadOptions{}, testutil.Logger())
	if err == nil {
		t.Error("expected error for empty range")
	}
}

func TestMergeFiles(t *testing.T) {
	dir := t.TempDir()
	a := testutil.WriteFile(t, dir, "a.csv", "h1;h2\n1;a\n")
	b := testutil.WriteFile(t, dir, "b.csv", "h1;h2\n2;b")
	c := testutil.WriteFile(t, dir, "c.csv", "")
	dst := filepath.Join(dir, "all.csv")

	if err := MergeFiles(dst, a, b, c); err != nil {
		t.Fatalf("MergeFiles: %v", err)
	}
	if got := testutil.ReadFile(t, dir, "all.csv"); got != "h1;h2\n1;a\n2;b\n" {
		t.Errorf("merged = %q", got)
	}
	if err := MergeFiles(dst, filepath.Join(dir, "missing.csv")); err == nil {
		t.Error("expected error for missing part")
	}
}

func TestHTTPFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("ids") != "3,4,5" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":{
			"5":{"id":5,"url":"http://de.x.wikia.com","title":"X","lang":"de","stats":{"articles":10,"pages":20}},
			"3":{"url":"http://y.wikia.com","title":"Y","lang":"en","stats":{"articles":1,"pages":2}}
		}}`))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(srv.URL+"/api/v1/Wikis/Details?expand=1", 0)
	wikis, err := f.Fetch(context.Background(), []int{3, 4, 5})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(wikis) != 2 {
		t.Fatalf("len = %d", len(wikis))
	}
	if wikis[0].ID != 3 || wikis[1].ID != 5 || wikis[1].Articles != 10 || wikis[1].Language != "de" {
		t.Errorf("wikis = %+v", wikis)
	}

	if _, err := f.Fetch(context.Background(), []int{1}); err == nil {
		t.Error("expected error on bad status")
	}
	if got, err := f.Fetch(context.Background(), nil); err != nil || got != nil {
		t.Errorf("empty fetch = %v, %v", got, err)
	}
}

func TestComputeStatistics(t *testing.T) {
	listing := strings.Join(Header, ";") + "\n" +
		"1;http://de.a.wikia.com;A;de;;;;;;;;10;20\n" +
		"2;http://b.wikia.com;B;en;;;;;;;;5;6\n" +
		"3;http://xx.c.wikia.com;C;;;;;;;;;n/a;1\n" +
		"4;nodot;D;;;;;;;;;1;1\n" +
		"5;http://de.e.wikia.com;E;de;;;;;;;;1;1\n"

	stats, err := ComputeStatistics(strings.NewReader(listing), []string{"de", "fr"}, testutil.Logger())
	if err != nil {
		t.Fatalf("ComputeStatistics: %v", err)
	}
	if stats.Wikis != 4 {
		t.Errorf("wikis = %d, want 4", stats.Wikis)
	}
	if stats.Languages["de"] != 2 || stats.Languages["en"] != 2 || stats.Languages["fr"] != 0 {
		t.Errorf("languages = %v", stats.Languages)
	}
	if stats.Articles != 16 || stats.Pages != 27 {
		t.Errorf("articles = %d, pages = %d", stats.Articles, stats.Pages)
	}

	top := stats.TopLanguages(1)
	if len(top) != 2 || top[0].Language != "de" || top[1].Language != "en" {
		t.Errorf("top = %+v", top)
	}

	var buf bytes.Buffer
	if err := WriteLanguages(&buf, top); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "language;wikis\nde;2\nen;2\n" {
		t.Errorf("languages file = %q", buf.String())
	}
}

func TestComputeStatisticsEmpty(t *testing.T) {
	stats, err := ComputeStatistics(strings.NewReader(""), nil, testutil.Logger())
	if err != nil || stats.Wikis != 0 {
		t.Errorf("stats = %+v, err = %v", stats, err)
	}
}

func TestLoadLanguageCodes(t *testing.T) {
	codes, err := LoadLanguageCodes(strings.NewReader("de;German\n;blank\nfr;French\n"))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(codes, ",") != "de,fr" {
		t.Errorf("codes = %v", codes)
	}
}

func TestLanguageOf(t *testing.T) {
	cases := map[string]string{
		"http://de.starwars.wikia.com": "de",
		"https://Pl.x.org":             "pl",
		"nodot":                        "",
	}
	for in, want := range cases {
		if got := LanguageOf(in); got != want {
			t.Errorf("LanguageOf(%q) = %q, want %q", in, got, want)
		}
	}
}
