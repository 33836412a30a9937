package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User is a registered account. Identity fields are immutable once created;
// GroupAdmins holds the ids of the groups the user administers.
type User struct {
	ID          primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Username    string               `bson:"username" json:"username"`
	Email       string               `bson:"email" json:"email"`
	Password    string               `bson:"password" json:"-"`
	GroupAdmins []primitive.ObjectID `bson:"group_admins" json:"group_admins"`
	AvatarURL   string               `bson:"avatar_url" json:"avatar_url"`
}

// IsGroupAdmin reports whether the user administers the given group.
func (u User) IsGroupAdmin(groupID primitive.ObjectID) bool {
	for _, id := range u.GroupAdmins {
		if id == groupID {
			return true
		}
	}
	return false
}

// Post is a message published to a group. Content may carry a media-type
// prefix tag, see Classify. CommentIDs keeps the display order of replies.
type Post struct {
	ID              primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	GroupID         primitive.ObjectID   `bson:"group_id" json:"group_id"`
	AuthorID        primitive.ObjectID   `bson:"author_id" json:"author_id"`
	Title           string               `bson:"title" json:"title"`
	Content         string               `bson:"content" json:"content"`
	CreatedAt       time.Time            `bson:"created_at" json:"created_at"`
	CommentIDs      []primitive.ObjectID `bson:"comment_ids" json:"comment_ids"`
	FlagForDeletion bool                 `bson:"flag_for_deletion" json:"flag_for_deletion"`
}

// Author returns the id of the post's author.
func (p Post) Author() primitive.ObjectID { return p.AuthorID }

// Comment is a reply to a post. Deletion removes the document outright,
// no tombstone is kept.
type Comment struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	PostID    primitive.ObjectID `bson:"post_id" json:"post_id"`
	AuthorID  primitive.ObjectID `bson:"author_id" json:"author_id"`
	Content   string             `bson:"content" json:"content"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
}

// Author returns the id of the comment's author.
func (c Comment) Author() primitive.ObjectID { return c.AuthorID }
