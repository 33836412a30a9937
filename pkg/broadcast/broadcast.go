// Package broadcast carries the feed refresh signal between clients. An event
// holds no feed data, only the acting user's identity and a logical tag: the
// canonical state lives in the store, a lost event merely delays a refresh.
package broadcast

import (
	"time"

	"github.com/gofrs/uuid"
)

// TagRefresh asks subscribers to re-fetch the canonical feed state.
const TagRefresh = "update"

type Event struct {
	ID        string    `json:"id"`
	SenderID  string    `json:"sender_id"`
	Tag       string    `json:"tag"`
	Timestamp time.Time `json:"timestamp"`
}

func NewEvent(senderID, tag string) (Event, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return Event{}, err
	}

	return Event{
		ID:        id.String(),
		SenderID:  senderID,
		Tag:       tag,
		Timestamp: time.Now(),
	}, nil
}
