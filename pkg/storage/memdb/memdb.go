// Package memdb is an in-memory implementation of storage.Storage backed by
// mutex-guarded maps. It carries the same error taxonomy and id semantics as
// the mongo implementation and backs the package tests and store-less runs.
package memdb

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"feed/pkg/models"
	"feed/pkg/storage"
)

type Store struct {
	mu       sync.Mutex
	users    map[primitive.ObjectID]models.User
	posts    map[primitive.ObjectID]models.Post
	comments map[primitive.ObjectID]models.Comment
}

func New() *Store {
	return &Store{
		users:    make(map[primitive.ObjectID]models.User),
		posts:    make(map[primitive.ObjectID]models.Post),
		comments: make(map[primitive.ObjectID]models.Comment),
	}
}

func (db *Store) AddUser(ctx context.Context, user models.User) (models.User, error) {
	if user.Username == "" || user.Email == "" || user.Password == "" {
		return models.User{}, &storage.ValidationError{Op: storage.OpAddUser, Reason: "username, email and password are required"}
	}

	hash, err := storage.HashPassword(user.Password)
	if err != nil {
		return models.User{}, &storage.PersistenceError{Op: storage.OpAddUser, Err: err}
	}
	user.Password = hash

	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	if user.GroupAdmins == nil {
		user.GroupAdmins = []primitive.ObjectID{}
	}

	db.mu.Lock()
	defer db.mu.Unlock()
	db.users[user.ID] = user

	return user, nil
}

func (db *Store) Users(ctx context.Context, filter *storage.UserFilter) ([]models.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	users := make([]models.User, 0, len(db.users))
	for _, u := range db.users {
		if filter != nil {
			if filter.Username != nil && u.Username != *filter.Username {
				continue
			}
			if filter.Email != nil && u.Email != *filter.Email {
				continue
			}
		}
		users = append(users, u)
	}

	sort.Slice(users, func(i, j int) bool {
		return users[i].ID.Hex() < users[j].ID.Hex()
	})

	return users, nil
}

func (db *Store) UserByEmail(ctx context.Context, email string) (models.User, bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, u := range db.users {
		if u.Email == email {
			return u, true, nil
		}
	}

	return models.User{}, false, nil
}

func (db *Store) UserByUsername(ctx context.Context, username string) (models.User, bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, u := range db.users {
		if u.Username == username {
			return u, true, nil
		}
	}

	return models.User{}, false, nil
}

func (db *Store) UserByID(ctx context.Context, id string) (models.User, error) {
	oid, err := storage.ParseID(storage.OpGetUser, id)
	if err != nil {
		return models.User{}, err
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	u, ok := db.users[oid]
	if !ok {
		return models.User{}, &storage.NotFoundError{Op: storage.OpGetUser, ID: id}
	}

	return u, nil
}

func (db *Store) UpdateUserByID(ctx context.Context, id string, patch storage.UserPatch) (storage.UpdateResult, error) {
	oid, err := storage.ParseID(storage.OpUpdateUser, id)
	if err != nil {
		return storage.UpdateResult{}, err
	}
	if patch.IsZero() {
		return storage.UpdateResult{}, &storage.ValidationError{Op: storage.OpUpdateUser, Reason: "empty patch"}
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	u, ok := db.users[oid]
	if !ok {
		return storage.UpdateResult{}, &storage.NotFoundError{Op: storage.OpUpdateUser, ID: id}
	}

	if patch.Username != nil {
		u.Username = *patch.Username
	}
	if patch.Email != nil {
		u.Email = *patch.Email
	}
	if patch.AvatarURL != nil {
		u.AvatarURL = *patch.AvatarURL
	}
	if patch.GroupAdmins != nil {
		u.GroupAdmins = append([]primitive.ObjectID{}, (*patch.GroupAdmins)...)
	}
	db.users[oid] = u

	return storage.UpdateResult{Matched: 1, Modified: 1}, nil
}

func (db *Store) DeleteUserByID(ctx context.Context, id string) (storage.DeleteResult, error) {
	oid, err := storage.ParseID(storage.OpDeleteUser, id)
	if err != nil {
		return storage.DeleteResult{}, err
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.users[oid]; !ok {
		return storage.DeleteResult{Deleted: 0}, nil
	}
	delete(db.users, oid)

	return storage.DeleteResult{Deleted: 1}, nil
}

func (db *Store) ChangePassword(ctx context.Context, id, newPassword string) (storage.UpdateResult, error) {
	oid, err := storage.ParseID(storage.OpChangePassword, id)
	if err != nil {
		return storage.UpdateResult{}, err
	}
	if newPassword == "" {
		return storage.UpdateResult{}, &storage.ValidationError{Op: storage.OpChangePassword, Reason: "password must not be empty"}
	}

	hash, err := storage.HashPassword(newPassword)
	if err != nil {
		return storage.UpdateResult{}, &storage.PersistenceError{Op: storage.OpChangePassword, Err: err}
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	u, ok := db.users[oid]
	if !ok {
		return storage.UpdateResult{}, &storage.NotFoundError{Op: storage.OpChangePassword, ID: id}
	}
	u.Password = hash
	db.users[oid] = u

	return storage.UpdateResult{Matched: 1, Modified: 1}, nil
}

func (db *Store) AddPost(ctx context.Context, post models.Post) (models.Post, error) {
	if post.AuthorID.IsZero() || post.GroupID.IsZero() {
		return models.Post{}, &storage.ValidationError{Op: storage.OpAddPost, Reason: "author_id and group_id are required"}
	}

	if post.ID.IsZero() {
		post.ID = primitive.NewObjectID()
	}
	if post.CreatedAt.IsZero() {
		post.CreatedAt = time.Now()
	}
	if post.CommentIDs == nil {
		post.CommentIDs = []primitive.ObjectID{}
	}

	db.mu.Lock()
	defer db.mu.Unlock()
	db.posts[post.ID] = post

	return post, nil
}

func (db *Store) Posts(ctx context.Context, filter *storage.PostFilter) ([]models.Post, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	posts := make([]models.Post, 0, len(db.posts))
	for _, p := range db.posts {
		if filter != nil {
			if filter.GroupID != nil && p.GroupID != *filter.GroupID {
				continue
			}
			if filter.AuthorID != nil && p.AuthorID != *filter.AuthorID {
				continue
			}
			if filter.Flagged != nil && p.FlagForDeletion != *filter.Flagged {
				continue
			}
		}
		p.CommentIDs = append([]primitive.ObjectID{}, p.CommentIDs...)
		posts = append(posts, p)
	}

	sort.Slice(posts, func(i, j int) bool {
		return posts[i].CreatedAt.Before(posts[j].CreatedAt)
	})

	return posts, nil
}

func (db *Store) PostByID(ctx context.Context, id string) (models.Post, error) {
	oid, err := storage.ParseID(storage.OpGetPost, id)
	if err != nil {
		return models.Post{}, err
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	p, ok := db.posts[oid]
	if !ok {
		return models.Post{}, &storage.NotFoundError{Op: storage.OpGetPost, ID: id}
	}
	p.CommentIDs = append([]primitive.ObjectID{}, p.CommentIDs...)

	return p, nil
}

func (db *Store) UpdatePostByID(ctx context.Context, id string, patch storage.PostPatch) (storage.UpdateResult, error) {
	oid, err := storage.ParseID(storage.OpUpdatePost, id)
	if err != nil {
		return storage.UpdateResult{}, err
	}
	if patch.IsZero() {
		return storage.UpdateResult{}, &storage.ValidationError{Op: storage.OpUpdatePost, Reason: "empty patch"}
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	p, ok := db.posts[oid]
	if !ok {
		return storage.UpdateResult{}, &storage.NotFoundError{Op: storage.OpUpdatePost, ID: id}
	}

	if patch.Title != nil {
		p.Title = *patch.Title
	}
	if patch.Content != nil {
		p.Content = *patch.Content
	}
	if patch.FlagForDeletion != nil {
		p.FlagForDeletion = *patch.FlagForDeletion
	}
	db.posts[oid] = p

	return storage.UpdateResult{Matched: 1, Modified: 1}, nil
}

func (db *Store) DeletePostByID(ctx context.Context, id string) (storage.DeleteResult, error) {
	oid, err := storage.ParseID(storage.OpDeletePost, id)
	if err != nil {
		return storage.DeleteResult{}, err
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.posts[oid]; !ok {
		return storage.DeleteResult{Deleted: 0}, nil
	}
	delete(db.posts, oid)

	return storage.DeleteResult{Deleted: 1}, nil
}

func (db *Store) AttachComment(ctx context.Context, postID, commentID string) (storage.UpdateResult, error) {
	pid, err := storage.ParseID(storage.OpAttachComment, postID)
	if err != nil {
		return storage.UpdateResult{}, err
	}
	cid, err := storage.ParseID(storage.OpAttachComment, commentID)
	if err != nil {
		return storage.UpdateResult{}, err
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	p, ok := db.posts[pid]
	if !ok {
		return storage.UpdateResult{}, &storage.NotFoundError{Op: storage.OpAttachComment, ID: postID}
	}

	for _, id := range p.CommentIDs {
		if id == cid {
			return storage.UpdateResult{Matched: 1, Modified: 0}, nil
		}
	}
	p.CommentIDs = append(append([]primitive.ObjectID{}, p.CommentIDs...), cid)
	db.posts[pid] = p

	return storage.UpdateResult{Matched: 1, Modified: 1}, nil
}

func (db *Store) DetachComment(ctx context.Context, postID, commentID string) (storage.UpdateResult, error) {
	pid, err := storage.ParseID(storage.OpDetachComment, postID)
	if err != nil {
		return storage.UpdateResult{}, err
	}
	cid, err := storage.ParseID(storage.OpDetachComment, commentID)
	if err != nil {
		return storage.UpdateResult{}, err
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	p, ok := db.posts[pid]
	if !ok {
		return storage.UpdateResult{}, &storage.NotFoundError{Op: storage.OpDetachComment, ID: postID}
	}

	kept := make([]primitive.ObjectID, 0, len(p.CommentIDs))
	modified := int64(0)
	for _, id := range p.CommentIDs {
		if id == cid {
			modified = 1
			continue
		}
		kept = append(kept, id)
	}
	p.CommentIDs = kept
	db.posts[pid] = p

	return storage.UpdateResult{Matched: 1, Modified: modified}, nil
}

func (db *Store) AddComment(ctx context.Context, comment models.Comment) (models.Comment, error) {
	if comment.PostID.IsZero() || comment.AuthorID.IsZero() || comment.Content == "" {
		return models.Comment{}, &storage.ValidationError{Op: storage.OpAddComment, Reason: "post_id, author_id and content are required"}
	}

	if comment.ID.IsZero() {
		comment.ID = primitive.NewObjectID()
	}
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = time.Now()
	}

	db.mu.Lock()
	defer db.mu.Unlock()
	db.comments[comment.ID] = comment

	return comment, nil
}

func (db *Store) Comments(ctx context.Context, filter *storage.CommentFilter) ([]models.Comment, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	comments := make([]models.Comment, 0, len(db.comments))
	for _, c := range db.comments {
		if filter != nil {
			if filter.PostID != nil && c.PostID != *filter.PostID {
				continue
			}
			if filter.AuthorID != nil && c.AuthorID != *filter.AuthorID {
				continue
			}
		}
		comments = append(comments, c)
	}

	sort.Slice(comments, func(i, j int) bool {
		return comments[i].CreatedAt.Before(comments[j].CreatedAt)
	})

	return comments, nil
}

func (db *Store) CommentByID(ctx context.Context, id string) (models.Comment, error) {
	oid, err := storage.ParseID(storage.OpGetComment, id)
	if err != nil {
		return models.Comment{}, err
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	c, ok := db.comments[oid]
	if !ok {
		return models.Comment{}, &storage.NotFoundError{Op: storage.OpGetComment, ID: id}
	}

	return c, nil
}

func (db *Store) UpdateCommentByID(ctx context.Context, id string, patch storage.CommentPatch) (storage.UpdateResult, error) {
	oid, err := storage.ParseID(storage.OpUpdateComment, id)
	if err != nil {
		return storage.UpdateResult{}, err
	}
	if patch.IsZero() {
		return storage.UpdateResult{}, &storage.ValidationError{Op: storage.OpUpdateComment, Reason: "empty patch"}
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	c, ok := db.comments[oid]
	if !ok {
		return storage.UpdateResult{}, &storage.NotFoundError{Op: storage.OpUpdateComment, ID: id}
	}

	if patch.Content != nil {
		c.Content = *patch.Content
	}
	db.comments[oid] = c

	return storage.UpdateResult{Matched: 1, Modified: 1}, nil
}

func (db *Store) DeleteCommentByID(ctx context.Context, id string) (storage.DeleteResult, error) {
	oid, err := storage.ParseID(storage.OpDeleteComment, id)
	if err != nil {
		return storage.DeleteResult{}, err
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.comments[oid]; !ok {
		return storage.DeleteResult{Deleted: 0}, nil
	}
	delete(db.comments, oid)

	return storage.DeleteResult{Deleted: 1}, nil
}
