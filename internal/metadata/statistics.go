package metadata

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"
)

// DefaultLanguage receives wikis whose host carries no known language code.
const DefaultLanguage = "en"

// DefaultLanguageCodes is used when no language code list is configured.
var DefaultLanguageCodes = []string{
	"ar", "ca", "cs", "da", "de", "el", "en", "es", "fa", "fi", "fr", "he", "hu", "id",
	"it", "ja", "ko", "ms", "nl", "no", "pl", "pt", "pt-br", "ro", "ru", "sv", "th",
	"tr", "uk", "vi", "zh", "zh-tw",
}

// Statistics summarize a merged listing.
type Statistics struct {
	Wikis     int            `json:"wikis"`
	Articles  int            `json:"articles"`
	Pages     int            `json:"pages"`
	Languages map[string]int `json:"languages"`
}

// LanguageCount is one entry of TopLanguages.
type LanguageCount struct {
	Language string `json:"language"`
	Wikis    int    `json:"wikis"`
}

// LoadLanguageCodes reads a ';'-separated file whose first column is a
// language code. Blank codes are skipped.
func LoadLanguageCodes(r io.Reader) ([]string, error) {
	cr := csv.NewReader(r)
	cr.Comma = Separator
	cr.FieldsPerRecord = -1
	var out []string
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("metadata: read language codes: %w", err)
		}
		if code := strings.TrimSpace(rec[0]); code != "" {
			out = append(out, code)
		}
	}
}

// ComputeStatistics reads a merged listing (header first) and counts wikis
// per language, total articles and total pages. The language is the host
// label before the first dot when it is a known code, DefaultLanguage
// otherwise. Rows with non-integer article or page counts still count
// towards languages but are logged and left out of the totals.
func ComputeStatistics(r io.Reader, codes []string, logger *slog.Logger) (Statistics, error) {
	if len(codes) == 0 {
		codes = DefaultLanguageCodes
	}
	stats := Statistics{Languages: make(map[string]int, len(codes))}
	for _, c := range codes {
		stats.Languages[c] = 0
	}
	if _, ok := stats.Languages[DefaultLanguage]; !ok {
		stats.Languages[DefaultLanguage] = 0
	}

	cr := csv.NewReader(r)
	cr.Comma = Separator
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	if _, err := cr.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return stats, nil
		}
		return stats, fmt.Errorf("metadata: read header: %w", err)
	}

	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return stats, nil
		}
		if err != nil {
			return stats, fmt.Errorf("metadata: read listing: %w", err)
		}
		if len(rec) <= colURL {
			continue
		}
		u := rec[colURL]
		if !strings.Contains(u, ".") {
			continue
		}
		stats.Wikis++
		lang := LanguageOf(u)
		if _, ok := stats.Languages[lang]; !ok {
			lang = DefaultLanguage
		}
		stats.Languages[lang]++

		if len(rec) <= colPages {
			logger.Warn("metadata: row without counts", slog.String("url", u))
			continue
		}
		articles, aErr := strconv.Atoi(strings.TrimSpace(rec[colArticles]))
		pages, pErr := strconv.Atoi(strings.TrimSpace(rec[colPages]))
		if aErr != nil || pErr != nil {
			logger.Warn("metadata: articles/pages not an integer", slog.String("url", u))
			continue
		}
		stats.Articles += articles
		stats.Pages += pages
	}
}

// LanguageOf returns the host label before the first dot, e.g. "de" for
// "http://de.starwars.wikia.com".
func LanguageOf(u string) string {
	host := u
	if i := strings.Index(host, "://"); i >= 0 {
		host = host[i+3:]
	}
	if i := strings.IndexByte(host, '.'); i >= 0 {
		return strings.ToLower(host[:i])
	}
	return ""
}

// TopLanguages returns the languages with at least minWikis wikis, most
// frequent first.
func (s Statistics) TopLanguages(minWikis int) []LanguageCount {
	var out []LanguageCount
	for lang, n := range s.Languages {
		if n >= minWikis {
			out = append(out, LanguageCount{Language: lang, Wikis: n})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Wikis != out[j].Wikis {
			return out[i].Wikis > out[j].Wikis
		}
		return out[i].Language < out[j].Language
	})
	return out
}

// WriteLanguages writes "language;wikis" rows for langs.
func WriteLanguages(w io.Writer, langs []LanguageCount) error {
	cw := csv.NewWriter(w)
	cw.Comma = Separator
	if err := cw.Write([]string{"language", "wikis"}); err != nil {
		return err
	}
	for _, l := range langs {
		if err := cw.Write([]string{l.Language, strconv.Itoa(l.Wikis)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
