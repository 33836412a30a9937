package feed

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"feed/pkg/models"
	"feed/pkg/storage"
)

// unknownAuthor is displayed when a post or comment references a user that no
// longer exists.
const unknownAuthor = "invalid"

type CommentView struct {
	models.Comment
	AuthorUsername string `json:"author_username"`
	AuthorAvatar   string `json:"author_avatar"`
}

type PostView struct {
	models.Post
	AuthorUsername string           `json:"author_username"`
	AuthorAvatar   string           `json:"author_avatar"`
	Media          models.MediaKind `json:"media_kind"`
	MediaSrc       string           `json:"media_src"`
	Flagged        bool             `json:"flagged"`
	ReplyCount     int              `json:"reply_count"`
	Comments       []CommentView    `json:"comments"`
}

// Feed derives a viewer's rendered feed from the canonical collections:
// posts in the viewer's hide-list are dropped, authors are re-joined against
// the current user set, the media kind and flagged indicator are re-derived.
// hide may be nil for a viewer that hides nothing.
func (s *Service) Feed(ctx context.Context, filter *storage.PostFilter, hide *HideList) ([]PostView, error) {
	posts, err := s.db.Posts(ctx, filter)
	if err != nil {
		return nil, err
	}

	users, err := s.db.Users(ctx, nil)
	if err != nil {
		return nil, err
	}
	byID := make(map[primitive.ObjectID]models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	views := make([]PostView, 0, len(posts))
	for _, p := range posts {
		if hide != nil && hide.Hidden(p.ID.Hex()) {
			continue
		}

		kind, src := models.Classify(p.Content)
		v := PostView{
			Post:       p,
			Media:      kind,
			MediaSrc:   src,
			Flagged:    p.FlagForDeletion,
			ReplyCount: len(p.CommentIDs),
			Comments:   []CommentView{},
		}
		v.AuthorUsername, v.AuthorAvatar = displayAuthor(byID, p.AuthorID)

		for _, cid := range p.CommentIDs {
			c, err := s.db.CommentByID(ctx, cid.Hex())
			if err != nil {
				var nf *storage.NotFoundError
				if errors.As(err, &nf) {
					// dangling comment id, the comment stays invisible
					continue
				}
				return nil, err
			}

			cv := CommentView{Comment: c}
			cv.AuthorUsername, cv.AuthorAvatar = displayAuthor(byID, c.AuthorID)
			v.Comments = append(v.Comments, cv)
		}

		views = append(views, v)
	}

	return views, nil
}

func displayAuthor(users map[primitive.ObjectID]models.User, id primitive.ObjectID) (username, avatar string) {
	u, ok := users[id]
	if !ok {
		return unknownAuthor, ""
	}
	return u.Username, u.AvatarURL
}
