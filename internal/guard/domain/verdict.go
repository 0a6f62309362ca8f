package domain

// ImageVerdict is the classifier outcome for one image on an inspected page.
type ImageVerdict struct {
	URL        string  `json:"url"`
	NSFW       bool    `json:"nsfw"`
	Confidence float64 `json:"confidence"`
}

// Verdict is the combined outcome of inspecting a web page.
type Verdict struct {
	URL         string         `json:"url"`
	Host        string         `json:"host,omitempty"`
	Apex        string         `json:"apex,omitempty"`
	ShouldBlock bool           `json:"should_block"`
	Reason      string         `json:"reason,omitempty"`
	Score       ScoreResult    `json:"score"`
	Images      []ImageVerdict `json:"images,omitempty"`
}

// SafeVerdict returns the conservative default used whenever fetching fails.
func SafeVerdict(url string) Verdict {
	return Verdict{URL: url, Score: DefaultScore()}
}
