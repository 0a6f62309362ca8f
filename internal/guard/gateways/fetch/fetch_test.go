package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const page = `<!doctype html>
<html><head><title>Example Page</title>
<style>.x { color: red }</style>
<script>var hidden = "nsfw";</script>
</head>
<body>
  <h1>Hello</h1>
  <p>Some <b>visible</b> text.</p>
  <noscript>enable js</noscript>
  <img src="/img/a.png">
  <img src="b.jpg#frag">
  <img src="/img/a.png">
  <img src="data:image/png;base64,AAAA">
  <img src="https://cdn.example.net/c.gif">
  <img>
</body></html>`

func TestExtract_TextAndImages(t *testing.T) {
	base, _ := url.Parse("https://example.com/dir/index.html")
	text, images, err := Extract(strings.NewReader(page), base)
	require.NoError(t, err)

	assert.Equal(t, "Example Page Hello Some visible text.", text)
	assert.Equal(t, []string{
		"https://example.com/img/a.png",
		"https://example.com/dir/b.jpg",
		"https://cdn.example.net/c.gif",
	}, images)
}

func TestExtract_BaseHref(t *testing.T) {
	base, _ := url.Parse("https://example.com/")
	doc := `<html><head><base href="https://static.example.org/assets/"></head><body><img src="x.png"></body></html>`
	_, images, err := Extract(strings.NewReader(doc), base)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://static.example.org/assets/x.png"}, images)
}

func TestFetch_Success(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.UserAgent()
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(page))
	}))
	defer srv.Close()

	f := New(Options{UserAgent: "test-agent"})
	p, err := f.Fetch(context.Background(), srv.URL+"/dir/")
	require.NoError(t, err)

	assert.Equal(t, "test-agent", gotUA)
	assert.Contains(t, p.Text, "visible")
	assert.NotContains(t, p.Text, "hidden")
	require.Len(t, p.Images, 3)
	assert.Equal(t, srv.URL+"/img/a.png", p.Images[0])
	assert.Equal(t, srv.URL+"/dir/b.jpg", p.Images[1])
}

func TestFetch_FollowsRedirectAndResolvesAgainstFinalURL(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/start", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/landing/page", http.StatusFound)
	})
	mux.HandleFunc("/landing/page", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<img src="pic.png">`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p, err := New(Options{}).Fetch(context.Background(), srv.URL+"/start")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/landing/page", p.URL)
	assert.Equal(t, []string{srv.URL + "/landing/pic.png"}, p.Images)
}

func TestFetch_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := New(Options{}).Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestFetch_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	_, err := New(Options{Timeout: 50 * time.Millisecond}).Fetch(context.Background(), srv.URL)
	assert.Error(t, err)
}

func TestFetch_MaxBytes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<p>first</p>" + strings.Repeat(" ", 64) + "<p>second</p>"))
	}))
	defer srv.Close()

	p, err := New(Options{MaxBytes: 16}).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "first", p.Text)
}

func TestFetch_InvalidURL(t *testing.T) {
	f := New(Options{})
	for _, in := range []string{"", "   ", "ftp://example.com/x", "https://"} {
		_, err := f.Fetch(context.Background(), in)
		assert.Error(t, err, in)
	}
}

func TestParseTarget_DefaultsToHTTPS(t *testing.T) {
	u, err := parseTarget("example.com/path")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/path", u.String())
}

func TestFetchImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte{0x89, 'P', 'N', 'G'})
	}))
	defer srv.Close()

	b, err := New(Options{}).FetchImage(context.Background(), srv.URL+"/x.png")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, b)
}
