package ipd

import "context"

// LinkMux routes frames by link id. Links without a handler of their own go
// to the fallback; frames with no handler at all are dropped.
type LinkMux struct {
	links    [MaxConnID + 1]Handler
	fallback Handler
}

func NewLinkMux(fallback Handler) *LinkMux {
	return &LinkMux{fallback: fallback}
}

// Handle binds h to link id. A nil h restores the fallback.
func (m *LinkMux) Handle(id int, h Handler) {
	if id < 0 || id > MaxConnID {
		return
	}
	m.links[id] = h
}

func (m *LinkMux) ServeFrame(ctx context.Context, f Frame) {
	h := m.fallback
	if f.ConnID >= 0 && f.ConnID <= MaxConnID && m.links[f.ConnID] != nil {
		h = m.links[f.ConnID]
	}
	if h != nil {
		h.ServeFrame(ctx, f)
	}
}
