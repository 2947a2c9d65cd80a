//go:build e2e

package chromedp_fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/user/review-crawler/internal/adapter/browserutil"
	"github.com/user/review-crawler/internal/entity"
)

func TestChromedpFetcher_E2E(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/film/x/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<!doctype html><html><body>
<img src="/poster.jpg">
<div class="body-text -prose collapsible-text"><p>Rendered review</p></div>
<script>document.body.insertAdjacentHTML('beforeend', '<div class="late">late</div>')</script>
</body></html>`))
	})
	mux.HandleFunc("/poster.jpg", func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("blocked image was requested")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f, err := NewChromedpFetcher(Options{
		Headless:    true,
		PageTimeout: 20 * time.Second,
		Blocklist:   browserutil.NewBlocklist([]string{"image"}, nil),
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer f.Close()

	page, err := f.Fetch(context.Background(), srv.URL+"/film/x/", entity.DefaultWaitPolicy())
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, page.StatusCode)
	assert.Contains(t, page.HTML, "Rendered review")
	assert.Contains(t, page.HTML, `class="late"`)

	missing, err := f.Fetch(context.Background(), srv.URL+"/nope", entity.DefaultWaitPolicy())
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)

	require.NoError(t, f.Close())
	require.NoError(t, f.Close())
}
