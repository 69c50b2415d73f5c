package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleansite/linkcheck/internal/crawler"
)

const base = "https://example.test"

func scenarioResult() *crawler.Result {
	started := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return &crawler.Result{
		BaseURL:    base,
		MaxDepth:   5,
		TotalPages: 2,
		TotalLinks: 3,
		Visited:    []string{base, base + "/about", base + "/missing"},
		Broken: []crawler.BrokenLink{
			{URL: base + "/missing", Status: 404, FoundOn: []string{base}},
		},
		External: []crawler.ExternalLink{
			{URL: "https://other.test", Referrers: []string{base}},
		},
		StartedAt:  started,
		FinishedAt: started.Add(1500 * time.Millisecond),
	}
}

func TestBuild_Scenario(t *testing.T) {
	r := Build(scenarioResult())

	assert.Equal(t, base, r.BaseURL)
	assert.Equal(t, int64(1500), r.DurationMs)
	assert.Equal(t, Summary{TotalPages: 2, TotalLinks: 3, BrokenLinks: 1, Redirects: 0, ExternalLinks: 1}, r.Summary)
	assert.Equal(t, []BrokenLink{{URL: base + "/missing", Status: 404, FoundOn: []string{base}}}, r.Broken)
	assert.Empty(t, r.Redirects)
	assert.Equal(t, []ExternalLink{{URL: "https://other.test", Count: 1}}, r.External)
	assert.True(t, r.HasBroken())
}

func TestBuild_ExternalTopN(t *testing.T) {
	var external []crawler.ExternalLink
	// 25 links; link i has (i % 4) + 1 referrers.
	for i := 0; i < 25; i++ {
		refs := make([]string, i%4+1)
		for j := range refs {
			refs[j] = base
		}
		external = append(external, crawler.ExternalLink{URL: fmt.Sprintf("https://ext%02d.test", i), Referrers: refs})
	}

	r := Build(&crawler.Result{BaseURL: base, External: external})

	require.Len(t, r.External, TopExternal)
	assert.Equal(t, 25, r.Summary.ExternalLinks)

	// Counts never increase down the list; ties keep first-seen order.
	for i := 1; i < len(r.External); i++ {
		prev, cur := r.External[i-1], r.External[i]
		require.GreaterOrEqual(t, prev.Count, cur.Count)
		if prev.Count == cur.Count {
			assert.Less(t, prev.URL, cur.URL)
		}
	}
	assert.Equal(t, ExternalLink{URL: "https://ext03.test", Count: 4}, r.External[0])
	assert.Equal(t, ExternalLink{URL: "https://ext07.test", Count: 4}, r.External[1])
}

func TestBuild_EmptySlicesEncodeAsArrays(t *testing.T) {
	r := Build(&crawler.Result{BaseURL: base})

	data, err := json.Marshal(r)
	require.NoError(t, err)

	s := string(data)
	assert.Contains(t, s, `"broken":[]`)
	assert.Contains(t, s, `"redirects":[]`)
	assert.Contains(t, s, `"external":[]`)
	assert.False(t, r.HasBroken())
}

func TestBuild_CopiesReferrers(t *testing.T) {
	result := scenarioResult()
	r := Build(result)

	result.Broken[0].FoundOn[0] = "mutated"
	assert.Equal(t, base, r.Broken[0].FoundOn[0])
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	r := Build(scenarioResult())

	require.NoError(t, WriteFile(path, r))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, map[string]any{
		"totalPages":    float64(2),
		"totalLinks":    float64(3),
		"brokenLinks":   float64(1),
		"redirects":     float64(0),
		"externalLinks": float64(1),
	}, decoded["summary"])
	assert.Equal(t, []any{map[string]any{"url": "https://other.test", "count": float64(1)}}, decoded["external"])
	assert.Equal(t, base, decoded["baseUrl"])

	loaded, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, r.Summary, loaded.Summary)
	assert.Equal(t, r.Broken, loaded.Broken)
	assert.True(t, r.StartedAt.Equal(loaded.StartedAt))
}

func TestWriteFile_BadPath(t *testing.T) {
	err := WriteFile(filepath.Join(t.TempDir(), "missing", "report.json"), Build(scenarioResult()))
	assert.Error(t, err)
}

func TestRender_Scenario(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, Build(scenarioResult())))

	out := buf.String()
	assert.Contains(t, out, "Link check report for "+base)
	assert.Contains(t, out, "Finished in 1.5s")
	assert.Contains(t, out, "Broken links (1)")
	assert.Contains(t, out, base+"/missing")
	assert.Contains(t, out, "404")
	assert.Contains(t, out, "Top external links")
	assert.Contains(t, out, "https://other.test")
	assert.NotContains(t, out, "Redirects (")
	assert.NotContains(t, out, "No broken links found.")
}

func TestRender_TruncatesLists(t *testing.T) {
	r := &Report{BaseURL: base}
	r.Broken = []BrokenLink{{
		URL:     base + "/gone",
		Status:  0,
		FoundOn: []string{base + "/p1", base + "/p2", base + "/p3", base + "/p4", base + "/p5"},
	}}
	for i := 0; i < 12; i++ {
		r.Redirects = append(r.Redirects, Redirect{URL: fmt.Sprintf("%s/old%02d", base, i), Target: base + "/new"})
		r.External = append(r.External, ExternalLink{URL: fmt.Sprintf("https://ext%02d.test", i), Count: 1})
	}

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, r))
	out := buf.String()

	assert.Contains(t, out, "network error")
	assert.Contains(t, out, base+"/p3")
	assert.NotContains(t, out, base+"/p4")
	assert.Contains(t, out, "+2 more")

	assert.Contains(t, out, base+"/old09")
	assert.NotContains(t, out, base+"/old10")
	assert.Contains(t, out, "... and 2 more")

	assert.Contains(t, out, "https://ext09.test")
	assert.NotContains(t, out, "https://ext10.test")
}

func TestRender_NoBroken(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, Build(&crawler.Result{BaseURL: base, TotalPages: 1})))

	out := buf.String()
	assert.Contains(t, out, "No broken links found.")
	assert.False(t, strings.Contains(out, "Broken links ("))
}

func TestStatusText(t *testing.T) {
	assert.Equal(t, "network error", StatusText(0))
	assert.Equal(t, "404", StatusText(404))
}
