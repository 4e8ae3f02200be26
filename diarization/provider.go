package diarization

import (
	"context"

	"github.com/kbukum/voicememo/provider"
)

// Provider is implemented by diarization backends.
type Provider interface {
	provider.Provider
	Diarize(ctx context.Context, req Request) (*Response, error)
}

// Registry holds the backends selectable by name.
var Registry = provider.NewRegistry[Provider]()

// AsRequestResponse adapts p for use with provider middleware.
func AsRequestResponse(p Provider) provider.RequestResponse[Request, *Response] {
	return rr{p}
}

type rr struct{ Provider }

func (r rr) Execute(ctx context.Context, req Request) (*Response, error) {
	return r.Diarize(ctx, req)
}
