package transcription

import (
	"context"

	"github.com/kbukum/voicememo/audio"
	"github.com/kbukum/voicememo/provider"
)

// Request holds parameters for a transcription call.
type Request struct {
	Audio    *audio.Buffer `json:"-"`
	Language string        `json:"language,omitempty"`
	Model    string        `json:"model,omitempty"`
}

// Response holds the result of a transcription call.
type Response struct {
	Text     string    `json:"text"`
	Segments []Segment `json:"segments,omitempty"`
	Language string    `json:"language,omitempty"`
}

// Segment is a time-aligned piece of transcript, in seconds.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Provider is implemented by transcription backends.
type Provider interface {
	provider.Provider
	Transcribe(ctx context.Context, req Request) (*Response, error)
}

// Registry holds the backends selectable by name.
var Registry = provider.NewRegistry[Provider]()

// AsRequestResponse adapts p for use with provider middleware.
func AsRequestResponse(p Provider) provider.RequestResponse[Request, *Response] {
	return rr{p}
}

type rr struct{ Provider }

func (r rr) Execute(ctx context.Context, req Request) (*Response, error) {
	return r.Transcribe(ctx, req)
}
