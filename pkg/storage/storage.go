// Package storage defines the access layer over the user, post and comment
// collections. Filters and patches are typed structs with pointer fields: a
// nil filter matches everything, a nil patch field is left untouched, and a
// patch with no fields set is rejected with ValidationError before it reaches
// the store.
package storage

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"feed/pkg/models"
)

// UpdateResult mirrors the store's update acknowledgment.
type UpdateResult struct {
	Matched  int64 `json:"matched"`
	Modified int64 `json:"modified"`
}

// DeleteResult mirrors the store's delete acknowledgment. Deleting a
// well-formed id that matches nothing yields Deleted == 0, not an error.
type DeleteResult struct {
	Deleted int64 `json:"deleted"`
}

type UserFilter struct {
	Username *string
	Email    *string
}

type PostFilter struct {
	GroupID  *primitive.ObjectID
	AuthorID *primitive.ObjectID
	Flagged  *bool
}

type CommentFilter struct {
	PostID   *primitive.ObjectID
	AuthorID *primitive.ObjectID
}

type UserPatch struct {
	Username    *string
	Email       *string
	AvatarURL   *string
	GroupAdmins *[]primitive.ObjectID
}

// IsZero reports whether no field of the patch is set.
func (p UserPatch) IsZero() bool {
	return p.Username == nil && p.Email == nil && p.AvatarURL == nil && p.GroupAdmins == nil
}

type PostPatch struct {
	Title           *string
	Content         *string
	FlagForDeletion *bool
}

func (p PostPatch) IsZero() bool {
	return p.Title == nil && p.Content == nil && p.FlagForDeletion == nil
}

type CommentPatch struct {
	Content *string
}

func (p CommentPatch) IsZero() bool {
	return p.Content == nil
}

// Storage is the uniform operation set over the three collections. Ids cross
// the boundary as hex strings and are validated inside the implementations;
// a malformed id fails with NotFoundError, never with a silent no-op.
type Storage interface {
	AddUser(ctx context.Context, user models.User) (models.User, error)
	Users(ctx context.Context, filter *UserFilter) ([]models.User, error)
	UserByEmail(ctx context.Context, email string) (models.User, bool, error)
	UserByUsername(ctx context.Context, username string) (models.User, bool, error)
	UserByID(ctx context.Context, id string) (models.User, error)
	UpdateUserByID(ctx context.Context, id string, patch UserPatch) (UpdateResult, error)
	DeleteUserByID(ctx context.Context, id string) (DeleteResult, error)
	ChangePassword(ctx context.Context, id, newPassword string) (UpdateResult, error)

	AddPost(ctx context.Context, post models.Post) (models.Post, error)
	Posts(ctx context.Context, filter *PostFilter) ([]models.Post, error)
	PostByID(ctx context.Context, id string) (models.Post, error)
	UpdatePostByID(ctx context.Context, id string, patch PostPatch) (UpdateResult, error)
	DeletePostByID(ctx context.Context, id string) (DeleteResult, error)
	AttachComment(ctx context.Context, postID, commentID string) (UpdateResult, error)
	DetachComment(ctx context.Context, postID, commentID string) (UpdateResult, error)

	AddComment(ctx context.Context, comment models.Comment) (models.Comment, error)
	Comments(ctx context.Context, filter *CommentFilter) ([]models.Comment, error)
	CommentByID(ctx context.Context, id string) (models.Comment, error)
	UpdateCommentByID(ctx context.Context, id string, patch CommentPatch) (UpdateResult, error)
	DeleteCommentByID(ctx context.Context, id string) (DeleteResult, error)
}
