package metrics

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.ObserveStageDuration("index", 150*time.Millisecond)
	pr.ObserveBuildDuration(500 * time.Millisecond)
	pr.IncStageResult("index", ResultSuccess)
	pr.IncBuildOutcome("success")
	pr.SetPostsIndexed(2)
	pr.IncPagesRendered(ResultSkipped)
	pr.IncHighlightedBlocks("go")

	mfs, err := reg.Gather()
	require.NoError(t, err)

	names := map[string]bool{}
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}
	require.True(t, names["blogbuilder_posts_indexed"])
	require.True(t, names["blogbuilder_highlighted_blocks_total"])
	require.True(t, names["blogbuilder_stage_duration_seconds"])
}

func TestNilPrometheusRecorderIsSafe(t *testing.T) {
	var pr *PrometheusRecorder
	require.NotPanics(t, func() {
		pr.SetPostsIndexed(1)
		pr.IncBuildOutcome("failed")
	})
}

func TestNoopRecorderSatisfiesInterface(t *testing.T) {
	var r Recorder = NoopRecorder{}
	r.IncHighlightedBlocks("js")
	r.ObserveBuildDuration(time.Second)
}

func TestHTTPHandlerAndTextfile(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.SetPostsIndexed(5)

	rec := httptest.NewRecorder()
	HTTPHandler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "blogbuilder_posts_indexed 5")

	path := filepath.Join(t.TempDir(), "blogbuilder.prom")
	require.NoError(t, WriteTextfile(reg, path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "blogbuilder_posts_indexed 5")
}
