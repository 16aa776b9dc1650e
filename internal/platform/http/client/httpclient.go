package client

import (
	"context"
	"net/http"
)

// HTTPClient is the transport seam used by the request layer.
// Implemented by ContextClient; tests substitute their own.
type HTTPClient interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
	ReadBody(resp *http.Response) ([]byte, error)
}

var _ HTTPClient = (*ContextClient)(nil)
