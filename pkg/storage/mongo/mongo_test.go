package mongo

import (
	"context"
	"errors"
	"testing"
	"time"

	"feed/pkg/models"
	"feed/pkg/storage"
)

// The tests below run against the test Mongo instance from MongoTestConf and
// are skipped when it is not reachable.
func testStorage(t *testing.T) *Storage {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	db, err := StorageConnect(ctx)
	if err != nil {
		t.Skipf("test Mongo instance not available: %v", err)
	}

	t.Cleanup(func() {
		if err := RestoreDB(db); err != nil {
			t.Logf("WARNING: unable to restore DB state after the test: %v", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		db.Close(ctx)
	})

	return db
}

var testUser = models.User{
	Username: "testUser",
	Email:    "test@gmail.com",
	Password: "test",
}

func TestStorage_AddUser(t *testing.T) {
	db := testStorage(t)
	ctx := context.Background()

	gotUser, err := db.AddUser(ctx, testUser)
	if err != nil {
		t.Fatalf("unexpected error adding user: %v", err)
	}
	if gotUser.ID.IsZero() {
		t.Error("user id has zero value")
	}

	found, ok, err := db.UserByUsername(ctx, testUser.Username)
	if err != nil {
		t.Fatalf("unexpected error retrieving user: %v", err)
	}
	if !ok {
		t.Fatal("want user found after create, got not found")
	}
	if found.Username != testUser.Username {
		t.Errorf("want username %q, got username %q", testUser.Username, found.Username)
	}
}

func TestStorage_UserByIDMalformed(t *testing.T) {
	db := testStorage(t)

	_, err := db.UserByID(context.Background(), "badId")
	if err == nil {
		t.Fatal("want error for malformed id, got nil")
	}

	var nf *storage.NotFoundError
	if !errors.As(err, &nf) {
		t.Errorf("want NotFoundError, got %T: %v", err, err)
	}
}

func TestStorage_DeleteUserTwice(t *testing.T) {
	db := testStorage(t)
	ctx := context.Background()

	user, err := db.AddUser(ctx, testUser)
	if err != nil {
		t.Fatalf("unexpected error adding user: %v", err)
	}

	res, err := db.DeleteUserByID(ctx, user.ID.Hex())
	if err != nil {
		t.Fatalf("unexpected error deleting user: %v", err)
	}
	if res.Deleted != 1 {
		t.Errorf("want deleted count 1, got deleted count %d", res.Deleted)
	}

	res, err = db.DeleteUserByID(ctx, user.ID.Hex())
	if err != nil {
		t.Fatalf("second delete must not fail, got: %v", err)
	}
	if res.Deleted != 0 {
		t.Errorf("want deleted count 0, got deleted count %d", res.Deleted)
	}
}

func TestStorage_ChangePassword(t *testing.T) {
	db := testStorage(t)
	ctx := context.Background()

	user, err := db.AddUser(ctx, testUser)
	if err != nil {
		t.Fatalf("unexpected error adding user: %v", err)
	}

	res, err := db.ChangePassword(ctx, user.ID.Hex(), "fakePassword")
	if err != nil {
		t.Fatalf("unexpected error changing password: %v", err)
	}
	if res.Modified != 1 {
		t.Errorf("want modified count 1, got modified count %d", res.Modified)
	}

	updated, err := db.UserByID(ctx, user.ID.Hex())
	if err != nil {
		t.Fatalf("unexpected error retrieving user: %v", err)
	}
	if !storage.CheckPassword(updated.Password, "fakePassword") {
		t.Error("stored hash does not match the new password")
	}
}

func TestStorage_AddPostAndAttachComment(t *testing.T) {
	db := testStorage(t)
	ctx := context.Background()

	author, err := db.AddUser(ctx, testUser)
	if err != nil {
		t.Fatalf("unexpected error adding user: %v", err)
	}

	post, err := db.AddPost(ctx, models.Post{
		GroupID:  author.ID,
		AuthorID: author.ID,
		Title:    "test post",
		Content:  "hello",
	})
	if err != nil {
		t.Fatalf("unexpected error adding post: %v", err)
	}
	if post.CommentIDs == nil {
		t.Error("comment ids not initialized")
	}

	comment, err := db.AddComment(ctx, models.Comment{
		PostID:   post.ID,
		AuthorID: author.ID,
		Content:  "hi",
	})
	if err != nil {
		t.Fatalf("unexpected error adding comment: %v", err)
	}

	if _, err := db.AttachComment(ctx, post.ID.Hex(), comment.ID.Hex()); err != nil {
		t.Fatalf("unexpected error attaching comment: %v", err)
	}
	// re-attach must not duplicate the id
	if _, err := db.AttachComment(ctx, post.ID.Hex(), comment.ID.Hex()); err != nil {
		t.Fatalf("unexpected error re-attaching comment: %v", err)
	}

	got, err := db.PostByID(ctx, post.ID.Hex())
	if err != nil {
		t.Fatalf("unexpected error retrieving post: %v", err)
	}
	if len(got.CommentIDs) != 1 || got.CommentIDs[0] != comment.ID {
		t.Errorf("want comment ids [%v], got %v", comment.ID, got.CommentIDs)
	}
}
