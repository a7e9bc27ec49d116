package enrich

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const articlePage = `<!DOCTYPE html>
<html>
<head>
<title>Major breach disclosed</title>
<meta name="keywords" content="breach, ransomware, leak">
</head>
<body>
<article>
<h1>Major breach disclosed</h1>
<p>A large credential dump surfaced on several forums this week, affecting
hundreds of thousands of accounts across multiple services. Researchers
confirmed the data appears to come from an earlier intrusion.</p>
<p>The operators behind the leak have been advertising access since last
month, according to messages observed in several closed communities. The
dump includes email addresses and hashed passwords.</p>
<p>Analysts recommend rotating credentials and enabling multi-factor
authentication on any affected service.</p>
<video src="https://cdn.example.com/clip.mp4"></video>
</article>
</body>
</html>`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestEnrichArticle(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, articlePage)
	}))
	defer srv.Close()

	e := NewEnricher(discardLogger())
	article, payload, err := e.Enrich(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.Equal(t, []byte(articlePage), payload)
	assert.Contains(t, article.Text, "credential dump")
	assert.Contains(t, article.Keywords, "ransomware")
	assert.Contains(t, article.MediaLinks, "https://cdn.example.com/clip.mp4")
}

func TestEnrichFetchFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	e := NewEnricher(discardLogger())
	_, payload, err := e.Enrich(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Nil(t, payload, "a failed fetch yields no payload")
}

func TestEnrichUnreachableHost(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := srv.URL
	srv.Close()

	e := NewEnricher(discardLogger())
	_, _, err := e.Enrich(context.Background(), addr)
	assert.Error(t, err)
}

func TestArticleMetaOmitsEmptyFields(t *testing.T) {
	t.Parallel()

	meta := Article{}.Meta()
	assert.Empty(t, meta)

	meta = Article{Text: "body", Keywords: []string{"a"}}.Meta()
	assert.Equal(t, "body", meta["newspaper:text"])
	assert.NotContains(t, meta, "newspaper:authors")
	assert.NotContains(t, meta, "newspaper:publish_date")
}
