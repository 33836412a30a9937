// Package feed orchestrates mutations of the shared feed: every operation
// runs the authorization gate first, then the persistence call, then emits
// exactly one refresh event once the write is acknowledged.
package feed

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"feed/pkg/broadcast"
	"feed/pkg/models"
	"feed/pkg/moderation"
	"feed/pkg/storage"
)

// ErrNotAuthorized is resolved before any persistence call: a denied action
// never reaches the store.
var ErrNotAuthorized = fmt.Errorf("you have to be the author or the group administrator to perform this action")

// Publisher emits the refresh broadcast after an acknowledged mutation.
type Publisher interface {
	Publish(ctx context.Context, senderID, tag string) error
}

type Service struct {
	db  storage.Storage
	pub Publisher
}

// New returns a Service over the given store. pub may be nil, in which case
// mutations are applied without notifying other clients.
func New(db storage.Storage, pub Publisher) *Service {
	return &Service{db: db, pub: pub}
}

// notify is fire-and-forget: a failed publish only delays other clients'
// refresh, it never fails the mutation that already succeeded.
func (s *Service) notify(ctx context.Context, actor models.User) {
	if s.pub == nil {
		return
	}
	if err := s.pub.Publish(ctx, actor.ID.Hex(), broadcast.TagRefresh); err != nil {
		log.Errorf("[feed] failed to publish refresh event: %v", err)
	}
}

// CreatePost publishes a new post authored by the actor. The author must
// exist in the user collection.
func (s *Service) CreatePost(ctx context.Context, actor models.User, groupID primitive.ObjectID, title, content string) (models.Post, error) {
	if _, err := s.db.UserByID(ctx, actor.ID.Hex()); err != nil {
		return models.Post{}, err
	}

	post, err := s.db.AddPost(ctx, models.Post{
		GroupID:  groupID,
		AuthorID: actor.ID,
		Title:    title,
		Content:  content,
	})
	if err != nil {
		return models.Post{}, err
	}

	s.notify(ctx, actor)
	return post, nil
}

// AddComment appends a comment to the post. The comment document and the
// post's comment_ids entry are two writes; when the second fails the first is
// compensated so no orphaned comment survives the pair.
func (s *Service) AddComment(ctx context.Context, actor models.User, postID, content string) (models.Comment, error) {
	post, err := s.db.PostByID(ctx, postID)
	if err != nil {
		return models.Comment{}, err
	}

	comment, err := s.db.AddComment(ctx, models.Comment{
		PostID:   post.ID,
		AuthorID: actor.ID,
		Content:  content,
	})
	if err != nil {
		return models.Comment{}, err
	}

	if _, err := s.db.AttachComment(ctx, postID, comment.ID.Hex()); err != nil {
		if _, derr := s.db.DeleteCommentByID(ctx, comment.ID.Hex()); derr != nil {
			log.Errorf("[feed] failed to remove orphaned comment %s: %v", comment.ID.Hex(), derr)
		}
		return models.Comment{}, err
	}

	s.notify(ctx, actor)
	return comment, nil
}

// EditComment replaces a comment's content. Edits do not change lifecycle
// state and are not gated; empty content is rejected before persisting.
func (s *Service) EditComment(ctx context.Context, actor models.User, commentID, content string) (storage.UpdateResult, error) {
	if strings.TrimSpace(content) == "" {
		return storage.UpdateResult{}, &storage.ValidationError{Op: storage.OpUpdateComment, Reason: "content must not be empty"}
	}

	res, err := s.db.UpdateCommentByID(ctx, commentID, storage.CommentPatch{Content: &content})
	if err != nil {
		return storage.UpdateResult{}, err
	}

	s.notify(ctx, actor)
	return res, nil
}

// DeleteComment removes a comment. Only the comment's author or an
// administrator of the owning post's group may delete it.
func (s *Service) DeleteComment(ctx context.Context, actor models.User, commentID string) (storage.DeleteResult, error) {
	comment, err := s.db.CommentByID(ctx, commentID)
	if err != nil {
		return storage.DeleteResult{}, err
	}

	// When the owning post is already gone only the author keeps the right
	// to remove the orphan.
	groupID := primitive.NilObjectID
	if post, err := s.db.PostByID(ctx, comment.PostID.Hex()); err == nil {
		groupID = post.GroupID
	}

	if !moderation.CanModerate(actor, comment, groupID) {
		return storage.DeleteResult{}, ErrNotAuthorized
	}

	res, err := s.db.DeleteCommentByID(ctx, commentID)
	if err != nil {
		return storage.DeleteResult{}, err
	}

	if _, err := s.db.DetachComment(ctx, comment.PostID.Hex(), commentID); err != nil {
		log.Warnf("[feed] failed to detach comment %s from post %s: %v", commentID, comment.PostID.Hex(), err)
	}

	s.notify(ctx, actor)
	return res, nil
}

// DeletePost removes a post. Its comments are not cascade-deleted: views are
// derived from comment_ids, so the orphans are implicitly invisible.
func (s *Service) DeletePost(ctx context.Context, actor models.User, postID string) (storage.DeleteResult, error) {
	post, err := s.db.PostByID(ctx, postID)
	if err != nil {
		return storage.DeleteResult{}, err
	}

	if !moderation.CanModerate(actor, post, post.GroupID) {
		return storage.DeleteResult{}, ErrNotAuthorized
	}

	if _, err := moderation.Next(moderation.PostState(post), moderation.EventDelete); err != nil {
		return storage.DeleteResult{}, err
	}

	res, err := s.db.DeletePostByID(ctx, postID)
	if err != nil {
		return storage.DeleteResult{}, err
	}

	s.notify(ctx, actor)
	return res, nil
}

// FlagPost marks a post for administrator review. Any authenticated viewer
// may flag; re-flagging a flagged post succeeds without a write.
func (s *Service) FlagPost(ctx context.Context, actor models.User, postID string) (models.Post, error) {
	post, err := s.db.PostByID(ctx, postID)
	if err != nil {
		return models.Post{}, err
	}

	next, err := moderation.Next(moderation.PostState(post), moderation.EventFlag)
	if err != nil {
		return models.Post{}, err
	}

	if next == moderation.StateFlagged && !post.FlagForDeletion {
		flagged := true
		if _, err := s.db.UpdatePostByID(ctx, postID, storage.PostPatch{FlagForDeletion: &flagged}); err != nil {
			return models.Post{}, err
		}
		post.FlagForDeletion = true
	}

	s.notify(ctx, actor)
	return post, nil
}
