// Package moderation holds the pure decision logic of the feed: who may
// remove content, and which lifecycle transitions a post or comment admits.
package moderation

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"feed/pkg/models"
)

// Target is any entity owned by an author.
type Target interface {
	Author() primitive.ObjectID
}

// CanModerate reports whether the actor may delete the target: the actor must
// be the target's author or an administrator of the group it belongs to.
// Flagging and hiding are deliberately not gated here, any viewer may do both.
func CanModerate(actor models.User, target Target, groupID primitive.ObjectID) bool {
	return actor.ID == target.Author() || actor.IsGroupAdmin(groupID)
}

// State is the server-side lifecycle state of a post. Comments know only
// normal and deleted.
type State string

const (
	StateNormal  State = "normal"
	StateFlagged State = "flagged"
	StateDeleted State = "deleted"
)

// Event is a requested lifecycle transition.
type Event string

const (
	EventFlag   Event = "flag"
	EventDelete Event = "delete"
)

var ErrInvalidTransition = fmt.Errorf("invalid moderation state transition")

// Next returns the state reached by applying the event. Flagging is one-way:
// there is no transition back to normal. Re-flagging a flagged post is a
// no-op. Deleted is terminal.
func Next(cur State, ev Event) (State, error) {
	switch cur {
	case StateNormal, StateFlagged:
		switch ev {
		case EventFlag:
			return StateFlagged, nil
		case EventDelete:
			return StateDeleted, nil
		}
	}

	return cur, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, cur, ev)
}

// PostState derives the lifecycle state of a stored post. A deleted post has
// no document, so a loadable post is never in StateDeleted.
func PostState(p models.Post) State {
	if p.FlagForDeletion {
		return StateFlagged
	}
	return StateNormal
}
