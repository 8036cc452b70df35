package handler

import (
	"github.com/cockroachdb/errors"

	"github.com/MarlonSantos/geonode-cloud/internal/model"
)

// ErrNoHandler is returned by Select when no registered handler accepts
// the request.
var ErrNoHandler = errors.New("no handler can process the request")

// Registry is the set of handlers known to a process, in registration
// order. It is built once at startup and passed to the dispatcher.
type Registry struct {
	handlers []Handler
}

// NewRegistry returns a registry holding hs in order.
func NewRegistry(hs ...Handler) *Registry {
	r := &Registry{}
	for _, h := range hs {
		r.Register(h)
	}
	return r
}

// Register appends h. Handlers registered earlier win ties.
func (r *Registry) Register(h Handler) {
	r.handlers = append(r.handlers, h)
}

// Select returns the first handler whose CanHandle accepts req.
func (r *Registry) Select(req *model.IngestionRequest) (Handler, error) {
	for _, h := range r.handlers {
		if h.CanHandle(req) {
			return h, nil
		}
	}
	return nil, errors.WithDetailf(ErrNoHandler, "action=%s file=%s", req.Action, req.BaseFile())
}

// Handlers returns the registered handlers.
func (r *Registry) Handlers() []Handler {
	out := make([]Handler, len(r.handlers))
	copy(out, r.handlers)
	return out
}
