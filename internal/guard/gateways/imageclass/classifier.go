package imageclass

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/haukened/hostguard/internal/guard/domain"
)

// DefaultThreshold is the score above which an image is treated as NSFW.
const DefaultThreshold = 0.85

// ErrUnavailable is returned by Classify when no classifier is configured.
var ErrUnavailable = errors.New("image classifier unavailable")

// Unavailable is the classifier used when no backend is configured.
type Unavailable struct{}

func (Unavailable) Available() bool { return false }

func (Unavailable) Classify(context.Context, string) (domain.ImageVerdict, error) {
	return domain.ImageVerdict{}, ErrUnavailable
}

// ImageSource downloads image bytes.
type ImageSource interface {
	FetchImage(ctx context.Context, imageURL string) ([]byte, error)
}

// RemoteOptions configures a Remote classifier.
type RemoteOptions struct {
	Endpoint  string
	Threshold float64
	Images    ImageSource
	Client    *http.Client
}

// Remote classifies images by posting their bytes to an HTTP scoring
// endpoint that answers {"score": <0..1>}.
type Remote struct {
	endpoint  string
	threshold float64
	images    ImageSource
	client    *http.Client
}

type scoreResponse struct {
	Score *float64 `json:"score"`
}

// NewRemote builds a Remote classifier.
func NewRemote(opts RemoteOptions) *Remote {
	if opts.Threshold <= 0 || opts.Threshold > 1 {
		opts.Threshold = DefaultThreshold
	}
	if opts.Client == nil {
		opts.Client = &http.Client{}
	}
	return &Remote{
		endpoint:  opts.Endpoint,
		threshold: opts.Threshold,
		images:    opts.Images,
		client:    opts.Client,
	}
}

// Available reports whether an endpoint and image source are configured.
func (r *Remote) Available() bool {
	return r != nil && r.endpoint != "" && r.images != nil
}

// Classify downloads imageURL and scores it. An image is NSFW when its
// score is strictly above the threshold.
func (r *Remote) Classify(ctx context.Context, imageURL string) (domain.ImageVerdict, error) {
	if !r.Available() {
		return domain.ImageVerdict{}, ErrUnavailable
	}

	img, err := r.images.FetchImage(ctx, imageURL)
	if err != nil {
		return domain.ImageVerdict{}, fmt.Errorf("fetch image: %w", err)
	}
	if len(img) == 0 {
		return domain.ImageVerdict{}, fmt.Errorf("fetch image: empty body")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(img))
	if err != nil {
		return domain.ImageVerdict{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := r.client.Do(req)
	if err != nil {
		return domain.ImageVerdict{}, fmt.Errorf("classify: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return domain.ImageVerdict{}, fmt.Errorf("classify: unexpected status %d", resp.StatusCode)
	}

	var out scoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return domain.ImageVerdict{}, fmt.Errorf("decode score: %w", err)
	}
	if out.Score == nil || *out.Score < 0 || *out.Score > 1 {
		return domain.ImageVerdict{}, fmt.Errorf("decode score: missing or out of range")
	}

	return domain.ImageVerdict{
		URL:        imageURL,
		NSFW:       *out.Score > r.threshold,
		Confidence: *out.Score,
	}, nil
}
