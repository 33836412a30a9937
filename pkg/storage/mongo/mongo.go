// Package mongo implements storage.Storage over a MongoDB database with the
// users, posts and comments collections. Every driver call sits behind a
// translate boundary: callers only ever see the storage error taxonomy.
package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"feed/pkg/models"
	"feed/pkg/storage"
)

const (
	collUsers    = "users"
	collPosts    = "posts"
	collComments = "comments"
)

type Storage struct {
	client *mongo.Client
	dbName string
}

func New(ctx context.Context, conf *Config) (*Storage, error) {
	client, err := mongo.Connect(ctx, conf.Options())
	if err != nil {
		return nil, err
	}

	s := Storage{client: client, dbName: conf.DBName}
	for _, name := range []string{collUsers, collPosts, collComments} {
		s.createCollection(ctx, name)
	}

	return &s, nil
}

func (s *Storage) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *Storage) Close(ctx context.Context) {
	s.client.Disconnect(ctx)
}

func (s *Storage) coll(name string) *mongo.Collection {
	return s.client.Database(s.dbName).Collection(name)
}

func (s *Storage) AddUser(ctx context.Context, user models.User) (models.User, error) {
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

	if _, err := s.coll(collUsers).InsertOne(ctx, user); err != nil {
		return models.User{}, &storage.PersistenceError{Op: storage.OpAddUser, Err: err}
	}

	return user, nil
}

func (s *Storage) Users(ctx context.Context, filter *storage.UserFilter) ([]models.User, error) {
	query := bson.M{}
	if filter != nil {
		if filter.Username != nil {
			query["username"] = *filter.Username
		}
		if filter.Email != nil {
			query["email"] = *filter.Email
		}
	}

	cur, err := s.coll(collUsers).Find(ctx, query)
	if err != nil {
		return nil, &storage.PersistenceError{Op: storage.OpGetUsers, Err: err}
	}

	users := []models.User{}
	if err := cur.All(ctx, &users); err != nil {
		return nil, &storage.PersistenceError{Op: storage.OpGetUsers, Err: err}
	}

	return users, nil
}

func (s *Storage) UserByEmail(ctx context.Context, email string) (models.User, bool, error) {
	var u models.User
	err := s.coll(collUsers).FindOne(ctx, bson.M{"email": email}).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.User{}, false, nil
	}
	if err != nil {
		return models.User{}, false, &storage.PersistenceError{Op: storage.OpGetUserByEmail, Err: err}
	}

	return u, true, nil
}

func (s *Storage) UserByUsername(ctx context.Context, username string) (models.User, bool, error) {
	var u models.User
	err := s.coll(collUsers).FindOne(ctx, bson.M{"username": username}).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.User{}, false, nil
	}
	if err != nil {
		return models.User{}, false, &storage.PersistenceError{Op: storage.OpGetUserByUsername, Err: err}
	}

	return u, true, nil
}

func (s *Storage) UserByID(ctx context.Context, id string) (models.User, error) {
	oid, err := storage.ParseID(storage.OpGetUser, id)
	if err != nil {
		return models.User{}, err
	}

	var u models.User
	err = s.coll(collUsers).FindOne(ctx, bson.M{"_id": oid}).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.User{}, &storage.NotFoundError{Op: storage.OpGetUser, ID: id}
	}
	if err != nil {
		return models.User{}, &storage.PersistenceError{Op: storage.OpGetUser, Err: err}
	}

	return u, nil
}

func (s *Storage) UpdateUserByID(ctx context.Context, id string, patch storage.UserPatch) (storage.UpdateResult, error) {
	oid, err := storage.ParseID(storage.OpUpdateUser, id)
	if err != nil {
		return storage.UpdateResult{}, err
	}
	if patch.IsZero() {
		return storage.UpdateResult{}, &storage.ValidationError{Op: storage.OpUpdateUser, Reason: "empty patch"}
	}

	set := bson.M{}
	if patch.Username != nil {
		set["username"] = *patch.Username
	}
	if patch.Email != nil {
		set["email"] = *patch.Email
	}
	if patch.AvatarURL != nil {
		set["avatar_url"] = *patch.AvatarURL
	}
	if patch.GroupAdmins != nil {
		set["group_admins"] = *patch.GroupAdmins
	}

	res, err := s.coll(collUsers).UpdateByID(ctx, oid, bson.M{"$set": set})
	if err != nil {
		return storage.UpdateResult{}, &storage.PersistenceError{Op: storage.OpUpdateUser, Err: err}
	}
	if res.MatchedCount == 0 {
		return storage.UpdateResult{}, &storage.NotFoundError{Op: storage.OpUpdateUser, ID: id}
	}

	return storage.UpdateResult{Matched: res.MatchedCount, Modified: res.ModifiedCount}, nil
}

func (s *Storage) DeleteUserByID(ctx context.Context, id string) (storage.DeleteResult, error) {
	oid, err := storage.ParseID(storage.OpDeleteUser, id)
	if err != nil {
		return storage.DeleteResult{}, err
	}

	res, err := s.coll(collUsers).DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return storage.DeleteResult{}, &storage.PersistenceError{Op: storage.OpDeleteUser, Err: err}
	}

	return storage.DeleteResult{Deleted: res.DeletedCount}, nil
}

func (s *Storage) ChangePassword(ctx context.Context, id, newPassword string) (storage.UpdateResult, error) {
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

	res, err := s.coll(collUsers).UpdateByID(ctx, oid, bson.M{"$set": bson.M{"password": hash}})
	if err != nil {
		return storage.UpdateResult{}, &storage.PersistenceError{Op: storage.OpChangePassword, Err: err}
	}
	if res.MatchedCount == 0 {
		return storage.UpdateResult{}, &storage.NotFoundError{Op: storage.OpChangePassword, ID: id}
	}

	return storage.UpdateResult{Matched: res.MatchedCount, Modified: res.ModifiedCount}, nil
}

func (s *Storage) AddPost(ctx context.Context, post models.Post) (models.Post, error) {
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

	if _, err := s.coll(collPosts).InsertOne(ctx, post); err != nil {
		return models.Post{}, &storage.PersistenceError{Op: storage.OpAddPost, Err: err}
	}

	return post, nil
}

func (s *Storage) Posts(ctx context.Context, filter *storage.PostFilter) ([]models.Post, error) {
	query := bson.M{}
	if filter != nil {
		if filter.GroupID != nil {
			query["group_id"] = *filter.GroupID
		}
		if filter.AuthorID != nil {
			query["author_id"] = *filter.AuthorID
		}
		if filter.Flagged != nil {
			query["flag_for_deletion"] = *filter.Flagged
		}
	}

	cur, err := s.coll(collPosts).Find(ctx, query)
	if err != nil {
		return nil, &storage.PersistenceError{Op: storage.OpGetPosts, Err: err}
	}

	posts := []models.Post{}
	if err := cur.All(ctx, &posts); err != nil {
		return nil, &storage.PersistenceError{Op: storage.OpGetPosts, Err: err}
	}

	return posts, nil
}

func (s *Storage) PostByID(ctx context.Context, id string) (models.Post, error) {
	oid, err := storage.ParseID(storage.OpGetPost, id)
	if err != nil {
		return models.Post{}, err
	}

	var p models.Post
	err = s.coll(collPosts).FindOne(ctx, bson.M{"_id": oid}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Post{}, &storage.NotFoundError{Op: storage.OpGetPost, ID: id}
	}
	if err != nil {
		return models.Post{}, &storage.PersistenceError{Op: storage.OpGetPost, Err: err}
	}

	return p, nil
}

func (s *Storage) UpdatePostByID(ctx context.Context, id string, patch storage.PostPatch) (storage.UpdateResult, error) {
	oid, err := storage.ParseID(storage.OpUpdatePost, id)
	if err != nil {
		return storage.UpdateResult{}, err
	}
	if patch.IsZero() {
		return storage.UpdateResult{}, &storage.ValidationError{Op: storage.OpUpdatePost, Reason: "empty patch"}
	}

	set := bson.M{}
	if patch.Title != nil {
		set["title"] = *patch.Title
	}
	if patch.Content != nil {
		set["content"] = *patch.Content
	}
	if patch.FlagForDeletion != nil {
		set["flag_for_deletion"] = *patch.FlagForDeletion
	}

	res, err := s.coll(collPosts).UpdateByID(ctx, oid, bson.M{"$set": set})
	if err != nil {
		return storage.UpdateResult{}, &storage.PersistenceError{Op: storage.OpUpdatePost, Err: err}
	}
	if res.MatchedCount == 0 {
		return storage.UpdateResult{}, &storage.NotFoundError{Op: storage.OpUpdatePost, ID: id}
	}

	return storage.UpdateResult{Matched: res.MatchedCount, Modified: res.ModifiedCount}, nil
}

func (s *Storage) DeletePostByID(ctx context.Context, id string) (storage.DeleteResult, error) {
	oid, err := storage.ParseID(storage.OpDeletePost, id)
	if err != nil {
		return storage.DeleteResult{}, err
	}

	res, err := s.coll(collPosts).DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return storage.DeleteResult{}, &storage.PersistenceError{Op: storage.OpDeletePost, Err: err}
	}

	return storage.DeleteResult{Deleted: res.DeletedCount}, nil
}

// AttachComment appends the comment id to the post's comment_ids unless it is
// already present, keeping the sequence duplicate-free under re-delivery.
func (s *Storage) AttachComment(ctx context.Context, postID, commentID string) (storage.UpdateResult, error) {
	pid, err := storage.ParseID(storage.OpAttachComment, postID)
	if err != nil {
		return storage.UpdateResult{}, err
	}
	cid, err := storage.ParseID(storage.OpAttachComment, commentID)
	if err != nil {
		return storage.UpdateResult{}, err
	}

	res, err := s.coll(collPosts).UpdateByID(ctx, pid, bson.M{"$addToSet": bson.M{"comment_ids": cid}})
	if err != nil {
		return storage.UpdateResult{}, &storage.PersistenceError{Op: storage.OpAttachComment, Err: err}
	}
	if res.MatchedCount == 0 {
		return storage.UpdateResult{}, &storage.NotFoundError{Op: storage.OpAttachComment, ID: postID}
	}

	return storage.UpdateResult{Matched: res.MatchedCount, Modified: res.ModifiedCount}, nil
}

// DetachComment removes the comment id from the post's comment_ids by
// filtering, the remaining ids keep their order.
func (s *Storage) DetachComment(ctx context.Context, postID, commentID string) (storage.UpdateResult, error) {
	pid, err := storage.ParseID(storage.OpDetachComment, postID)
	if err != nil {
		return storage.UpdateResult{}, err
	}
	cid, err := storage.ParseID(storage.OpDetachComment, commentID)
	if err != nil {
		return storage.UpdateResult{}, err
	}

	res, err := s.coll(collPosts).UpdateByID(ctx, pid, bson.M{"$pull": bson.M{"comment_ids": cid}})
	if err != nil {
		return storage.UpdateResult{}, &storage.PersistenceError{Op: storage.OpDetachComment, Err: err}
	}
	if res.MatchedCount == 0 {
		return storage.UpdateResult{}, &storage.NotFoundError{Op: storage.OpDetachComment, ID: postID}
	}

	return storage.UpdateResult{Matched: res.MatchedCount, Modified: res.ModifiedCount}, nil
}

func (s *Storage) AddComment(ctx context.Context, comment models.Comment) (models.Comment, error) {
	if comment.PostID.IsZero() || comment.AuthorID.IsZero() || comment.Content == "" {
		return models.Comment{}, &storage.ValidationError{Op: storage.OpAddComment, Reason: "post_id, author_id and content are required"}
	}

	if comment.ID.IsZero() {
		comment.ID = primitive.NewObjectID()
	}
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = time.Now()
	}

	if _, err := s.coll(collComments).InsertOne(ctx, comment); err != nil {
		return models.Comment{}, &storage.PersistenceError{Op: storage.OpAddComment, Err: err}
	}

	return comment, nil
}

func (s *Storage) Comments(ctx context.Context, filter *storage.CommentFilter) ([]models.Comment, error) {
	query := bson.M{}
	if filter != nil {
		if filter.PostID != nil {
			query["post_id"] = *filter.PostID
		}
		if filter.AuthorID != nil {
			query["author_id"] = *filter.AuthorID
		}
	}

	cur, err := s.coll(collComments).Find(ctx, query)
	if err != nil {
		return nil, &storage.PersistenceError{Op: storage.OpGetComments, Err: err}
	}

	comments := []models.Comment{}
	if err := cur.All(ctx, &comments); err != nil {
		return nil, &storage.PersistenceError{Op: storage.OpGetComments, Err: err}
	}

	return comments, nil
}

func (s *Storage) CommentByID(ctx context.Context, id string) (models.Comment, error) {
	oid, err := storage.ParseID(storage.OpGetComment, id)
	if err != nil {
		return models.Comment{}, err
	}

	var c models.Comment
	err = s.coll(collComments).FindOne(ctx, bson.M{"_id": oid}).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Comment{}, &storage.NotFoundError{Op: storage.OpGetComment, ID: id}
	}
	if err != nil {
		return models.Comment{}, &storage.PersistenceError{Op: storage.OpGetComment, Err: err}
	}

	return c, nil
}

func (s *Storage) UpdateCommentByID(ctx context.Context, id string, patch storage.CommentPatch) (storage.UpdateResult, error) {
	oid, err := storage.ParseID(storage.OpUpdateComment, id)
	if err != nil {
		return storage.UpdateResult{}, err
	}
	if patch.IsZero() {
		return storage.UpdateResult{}, &storage.ValidationError{Op: storage.OpUpdateComment, Reason: "empty patch"}
	}

	set := bson.M{}
	if patch.Content != nil {
		set["content"] = *patch.Content
	}

	res, err := s.coll(collComments).UpdateByID(ctx, oid, bson.M{"$set": set})
	if err != nil {
		return storage.UpdateResult{}, &storage.PersistenceError{Op: storage.OpUpdateComment, Err: err}
	}
	if res.MatchedCount == 0 {
		return storage.UpdateResult{}, &storage.NotFoundError{Op: storage.OpUpdateComment, ID: id}
	}

	return storage.UpdateResult{Matched: res.MatchedCount, Modified: res.ModifiedCount}, nil
}

func (s *Storage) DeleteCommentByID(ctx context.Context, id string) (storage.DeleteResult, error) {
	oid, err := storage.ParseID(storage.OpDeleteComment, id)
	if err != nil {
		return storage.DeleteResult{}, err
	}

	res, err := s.coll(collComments).DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return storage.DeleteResult{}, &storage.PersistenceError{Op: storage.OpDeleteComment, Err: err}
	}

	return storage.DeleteResult{Deleted: res.DeletedCount}, nil
}

// createCollection creates a collection with the given name in the database if it doesn't already exist.
func (s *Storage) createCollection(ctx context.Context, collName string) error {
	db := s.client.Database(s.dbName)

	names, err := db.ListCollectionNames(ctx, bson.D{})
	if err != nil {
		return err
	}

	for _, name := range names {
		if name == collName {
			return nil
		}
	}

	return db.CreateCollection(ctx, collName)
}
