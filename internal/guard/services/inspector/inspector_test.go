package inspector

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/haukened/hostguard/internal/guard/domain"
	"github.com/haukened/hostguard/internal/guard/services/scorer"
)

// MockFetcher is a testify mock of PageFetcher.
type MockFetcher struct{ mock.Mock }

func (m *MockFetcher) Fetch(ctx context.Context, url string) (domain.Page, error) {
	args := m.Called(ctx, url)
	return args.Get(0).(domain.Page), args.Error(1)
}

// fakeClassifier answers from a table keyed by image URL.
type fakeClassifier struct {
	available bool
	answers   map[string]domain.ImageVerdict
	errs      map[string]error
	delay     time.Duration

	mu       sync.Mutex
	calls    []string
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func (f *fakeClassifier) Available() bool { return f.available }

func (f *fakeClassifier) Classify(ctx context.Context, u string) (domain.ImageVerdict, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		cur := f.maxSeen.Load()
		if n <= cur || f.maxSeen.CompareAndSwap(cur, n) {
			break
		}
	}
	f.mu.Lock()
	f.calls = append(f.calls, u)
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return domain.ImageVerdict{}, ctx.Err()
		}
	}
	if err := f.errs[u]; err != nil {
		return domain.ImageVerdict{}, err
	}
	return f.answers[u], nil
}

type staticKeywords domain.Keywords

func (k staticKeywords) Snapshot() domain.Keywords { return domain.Keywords(k) }

func keywords() staticKeywords {
	return staticKeywords{
		domain.CategoryExplicit: {"xxx"},
		domain.CategoryModerate: {"nude", "sexy", "hot"},
	}
}

func newInspector(t *testing.T, f PageFetcher, c ImageClassifier, mutate func(*Options)) *Inspector {
	t.Helper()
	sc, err := scorer.New(scorer.Options{})
	require.NoError(t, err)
	opts := Options{Fetcher: f, Classifier: c, Checker: sc, Keywords: keywords()}
	if mutate != nil {
		mutate(&opts)
	}
	in, err := New(opts)
	require.NoError(t, err)
	return in
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}

func TestInspect_FetchFailureIsSafe(t *testing.T) {
	f := new(MockFetcher)
	f.On("Fetch", mock.Anything, "https://down.example.com/").Return(domain.Page{}, errors.New("dial tcp: refused"))

	v := newInspector(t, f, nil, nil).Inspect(context.Background(), "https://down.example.com/")
	assert.False(t, v.ShouldBlock)
	assert.Equal(t, domain.DefaultScore(), v.Score)
	assert.Equal(t, "down.example.com", v.Host)
	assert.Equal(t, "example.com", v.Apex)
	f.AssertExpectations(t)
}

func TestInspect_FetchHasDeadline(t *testing.T) {
	f := new(MockFetcher)
	f.On("Fetch", mock.MatchedBy(func(ctx context.Context) bool {
		_, ok := ctx.Deadline()
		return ok
	}), "example.com").Return(domain.Page{Text: "clean"}, nil)

	v := newInspector(t, f, nil, func(o *Options) { o.Timeout = time.Second }).Inspect(context.Background(), "example.com")
	assert.False(t, v.ShouldBlock)
	f.AssertExpectations(t)
}

func TestInspect_ExplicitTextBlocksAndSkipsImages(t *testing.T) {
	f := new(MockFetcher)
	f.On("Fetch", mock.Anything, mock.Anything).Return(domain.Page{
		URL:    "https://www.bad.example.co.uk/",
		Text:   "welcome to XXX videos",
		Images: []string{"https://www.bad.example.co.uk/a.png"},
	}, nil)
	c := &fakeClassifier{available: true}

	v := newInspector(t, f, c, nil).Inspect(context.Background(), "http://bad.example.co.uk")
	assert.True(t, v.ShouldBlock)
	assert.Equal(t, "Explicit keyword found: xxx", v.Reason)
	assert.Equal(t, "www.bad.example.co.uk", v.Host)
	assert.Equal(t, "example.co.uk", v.Apex)
	assert.Empty(t, c.calls)
}

func TestInspect_ModerateTextReason(t *testing.T) {
	f := new(MockFetcher)
	f.On("Fetch", mock.Anything, mock.Anything).Return(domain.Page{Text: "nude and sexy and hot"}, nil)

	v := newInspector(t, f, nil, nil).Inspect(context.Background(), "https://example.com")
	assert.True(t, v.ShouldBlock)
	assert.Equal(t, "Multiple moderate keywords found: nude, sexy, hot", v.Reason)
}

func TestInspect_CleanTextNoClassifier(t *testing.T) {
	f := new(MockFetcher)
	f.On("Fetch", mock.Anything, mock.Anything).Return(domain.Page{Text: "weather report", Images: []string{"https://x/a.png"}}, nil)

	for _, c := range []ImageClassifier{nil, &fakeClassifier{available: false}} {
		v := newInspector(t, f, c, nil).Inspect(context.Background(), "https://x/")
		assert.False(t, v.ShouldBlock)
		assert.Empty(t, v.Reason)
		assert.Empty(t, v.Images)
	}
}

func TestInspect_FirstPositiveImageInDocumentOrderWins(t *testing.T) {
	imgs := []string{"https://x/1.png", "https://x/2.png", "https://x/3.png", "https://x/4.png"}
	f := new(MockFetcher)
	f.On("Fetch", mock.Anything, mock.Anything).Return(domain.Page{Text: "clean", Images: imgs}, nil)
	c := &fakeClassifier{
		available: true,
		answers: map[string]domain.ImageVerdict{
			imgs[0]: {NSFW: false, Confidence: 0.1},
			imgs[2]: {NSFW: true, Confidence: 0.9123},
			imgs[3]: {NSFW: true, Confidence: 0.99},
		},
		errs: map[string]error{imgs[1]: errors.New("decode failed")},
	}

	v := newInspector(t, f, c, nil).Inspect(context.Background(), "https://x/")
	assert.True(t, v.ShouldBlock)
	assert.Equal(t, "NSFW image detected (confidence: 91.23%)", v.Reason)
	require.Len(t, v.Images, 3)
	assert.Equal(t, imgs[0], v.Images[0].URL)
	assert.Equal(t, imgs[2], v.Images[1].URL)
	assert.Equal(t, imgs[3], v.Images[2].URL)
	assert.Equal(t, 1.0, v.Score.Safe)
}

func TestInspect_ImageCapAndConcurrencyLimit(t *testing.T) {
	var imgs []string
	for i := 0; i < 30; i++ {
		imgs = append(imgs, "https://x/"+string(rune('a'+i%26))+string(rune('0'+i/26))+".png")
	}
	f := new(MockFetcher)
	f.On("Fetch", mock.Anything, mock.Anything).Return(domain.Page{Images: imgs}, nil)
	c := &fakeClassifier{available: true, delay: 5 * time.Millisecond}

	v := newInspector(t, f, c, func(o *Options) {
		o.MaxImages = 7
		o.Workers = 2
	}).Inspect(context.Background(), "https://x/")

	assert.False(t, v.ShouldBlock)
	assert.Len(t, c.calls, 7)
	assert.Len(t, v.Images, 7)
	assert.LessOrEqual(t, c.maxSeen.Load(), int32(2))
}

func TestInspect_PerImageTimeoutSkipsSlowImages(t *testing.T) {
	f := new(MockFetcher)
	f.On("Fetch", mock.Anything, mock.Anything).Return(domain.Page{Images: []string{"https://x/slow.png"}}, nil)
	c := &fakeClassifier{
		available: true,
		delay:     time.Second,
		answers:   map[string]domain.ImageVerdict{"https://x/slow.png": {NSFW: true, Confidence: 1}},
	}

	start := time.Now()
	v := newInspector(t, f, c, func(o *Options) { o.ImageTimeout = 20 * time.Millisecond }).Inspect(context.Background(), "https://x/")
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.False(t, v.ShouldBlock)
	assert.Empty(t, v.Images)
}

func TestHostOf(t *testing.T) {
	h, a := hostOf("HTTPS://Shop.Example.COM./cart")
	assert.Equal(t, "shop.example.com", h)
	assert.Equal(t, "example.com", a)

	h, a = hostOf("10.0.0.1:8080/x")
	assert.Equal(t, "10.0.0.1", h)
	assert.Equal(t, "10.0.0.1", a)

	h, a = hostOf("")
	assert.Empty(t, h)
	assert.Empty(t, a)
}
