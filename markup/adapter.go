package markup

import (
	"context"
	"sync"
)

// Adapter converts one markup kind. Convert never fails because of the input
// text: problems with the source are reported inside the returned Document.
// ctx bounds any external process the conversion starts.
type Adapter interface {
	Convert(ctx context.Context, text string) Document
}

// AdapterFunc adapts a function to the Adapter interface.
type AdapterFunc func(ctx context.Context, text string) Document

func (f AdapterFunc) Convert(ctx context.Context, text string) Document {
	return f(ctx, text)
}

// serialized guards an adapter whose converter is not reentrant.
type serialized struct {
	mu    sync.Mutex
	inner Adapter
}

func (s *serialized) Convert(ctx context.Context, text string) Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Convert(ctx, text)
}
