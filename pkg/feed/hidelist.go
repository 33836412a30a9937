package feed

import "sync"

// HideList is one viewer's suppression list of post ids. It is session-scoped
// state: never persisted, never replicated to the server or other clients.
type HideList struct {
	mu  sync.Mutex
	ids []string
}

func NewHideList() *HideList {
	return &HideList{}
}

// Hide adds the post id to the list. Hiding an already hidden post is a no-op.
func (h *HideList) Hide(postID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, id := range h.ids {
		if id == postID {
			return
		}
	}
	h.ids = append(h.ids, postID)
}

// Hidden reports whether the post is suppressed for this viewer.
func (h *HideList) Hidden(postID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, id := range h.ids {
		if id == postID {
			return true
		}
	}
	return false
}

// IDs returns the hidden post ids in hiding order.
func (h *HideList) IDs() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	return append([]string{}, h.ids...)
}
