package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"feed/pkg/feed"
	"feed/pkg/models"
	"feed/pkg/storage/memdb"
)

func TestMain(m *testing.M) {
	log.SetLevel(log.PanicLevel)
	os.Exit(m.Run())
}

func testAPI(t *testing.T) (*API, *memdb.Store) {
	t.Helper()
	db := memdb.New()
	return New("feed_test", db, feed.New(db, broadcast()), nil), db
}

// broadcast returns an in-process publisher so handlers exercise the full
// mutate-then-publish path without a broker.
func broadcast() feed.Publisher {
	return noopPublisher{}
}

type noopPublisher struct{}

func (noopPublisher) Publish(ctx context.Context, senderID, tag string) error { return nil }

func addTestUser(t *testing.T, db *memdb.Store, username string, groupAdmins ...primitive.ObjectID) models.User {
	t.Helper()
	user, err := db.AddUser(context.Background(), models.User{
		Username:    username,
		Email:       username + "@example.com",
		Password:    "test",
		GroupAdmins: groupAdmins,
	})
	if err != nil {
		t.Fatalf("unexpected error adding user %s: %v", username, err)
	}
	return user
}

func doJSON(t *testing.T, api *API, method, path, actorID string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("unexpected error encoding body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	if actorID != "" {
		req.Header.Set(actorHeader, actorID)
	}
	rr := httptest.NewRecorder()
	api.Router.ServeHTTP(rr, req)

	return rr
}

func TestAPI_CreateUser(t *testing.T) {
	api, _ := testAPI(t)

	rr := doJSON(t, api, http.MethodPost, "/users", "", NewUserRequest{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "secret",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("want status %d, got %d: %s", http.StatusCreated, rr.Code, rr.Body)
	}

	var user models.User
	if err := json.NewDecoder(rr.Body).Decode(&user); err != nil {
		t.Fatalf("unexpected error decoding response: %v", err)
	}
	if user.ID.IsZero() {
		t.Error("want an assigned user id in the response")
	}
	if user.Username != "alice" {
		t.Errorf("want username %q, got %q", "alice", user.Username)
	}

	if rr.Header().Get("X-Request-Id") == "" {
		t.Error("want a generated X-Request-Id header on the response")
	}
}

func TestAPI_CreateUserMissingFields(t *testing.T) {
	api, _ := testAPI(t)

	rr := doJSON(t, api, http.MethodPost, "/users", "", NewUserRequest{Username: "alice"})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("want status %d, got %d: %s", http.StatusBadRequest, rr.Code, rr.Body)
	}
}

func TestAPI_UserNotFound(t *testing.T) {
	api, _ := testAPI(t)

	for _, id := range []string{"badId", primitive.NewObjectID().Hex()} {
		rr := doJSON(t, api, http.MethodGet, "/users/"+id, "", nil)
		if rr.Code != http.StatusNotFound {
			t.Errorf("id %q: want status %d, got %d: %s", id, http.StatusNotFound, rr.Code, rr.Body)
		}
	}
}

func TestAPI_CreatePost(t *testing.T) {
	api, db := testAPI(t)
	author := addTestUser(t, db, "alice")
	groupID := primitive.NewObjectID()

	rr := doJSON(t, api, http.MethodPost, "/posts", author.ID.Hex(), NewPostRequest{
		GroupID: groupID.Hex(),
		Title:   "hello",
		Content: "first post",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("want status %d, got %d: %s", http.StatusCreated, rr.Code, rr.Body)
	}

	var post models.Post
	if err := json.NewDecoder(rr.Body).Decode(&post); err != nil {
		t.Fatalf("unexpected error decoding response: %v", err)
	}
	if post.AuthorID != author.ID {
		t.Errorf("want author id %v, got %v", author.ID, post.AuthorID)
	}
	if post.GroupID != groupID {
		t.Errorf("want group id %v, got %v", groupID, post.GroupID)
	}
}

func TestAPI_CreatePostWithoutActor(t *testing.T) {
	api, _ := testAPI(t)

	rr := doJSON(t, api, http.MethodPost, "/posts", "", NewPostRequest{
		GroupID: primitive.NewObjectID().Hex(),
		Title:   "hello",
		Content: "first post",
	})
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("want status %d, got %d: %s", http.StatusUnauthorized, rr.Code, rr.Body)
	}
}

func TestAPI_DeletePostForbidden(t *testing.T) {
	api, db := testAPI(t)
	author := addTestUser(t, db, "alice")
	stranger := addTestUser(t, db, "bob")

	post, err := api.Feed.CreatePost(context.Background(), author,
		primitive.NewObjectID(), "p", "c")
	if err != nil {
		t.Fatalf("unexpected error creating post: %v", err)
	}

	rr := doJSON(t, api, http.MethodDelete, "/posts/"+post.ID.Hex(), stranger.ID.Hex(), nil)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("want status %d, got %d: %s", http.StatusForbidden, rr.Code, rr.Body)
	}

	if _, err := db.PostByID(context.Background(), post.ID.Hex()); err != nil {
		t.Errorf("forbidden delete must leave the post intact: %v", err)
	}
}

func TestAPI_DeletePostByGroupAdmin(t *testing.T) {
	api, db := testAPI(t)
	groupID := primitive.NewObjectID()
	author := addTestUser(t, db, "alice")
	admin := addTestUser(t, db, "bob", groupID)

	post, err := api.Feed.CreatePost(context.Background(), author, groupID, "p", "c")
	if err != nil {
		t.Fatalf("unexpected error creating post: %v", err)
	}

	rr := doJSON(t, api, http.MethodDelete, "/posts/"+post.ID.Hex(), admin.ID.Hex(), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("want status %d, got %d: %s", http.StatusOK, rr.Code, rr.Body)
	}

	var res struct {
		Deleted int64 `json:"deleted"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&res); err != nil {
		t.Fatalf("unexpected error decoding response: %v", err)
	}
	if res.Deleted != 1 {
		t.Errorf("want deleted count 1, got deleted count %d", res.Deleted)
	}
}

func TestAPI_FlagPost(t *testing.T) {
	api, db := testAPI(t)
	author := addTestUser(t, db, "alice")
	viewer := addTestUser(t, db, "bob")

	post, err := api.Feed.CreatePost(context.Background(), author,
		primitive.NewObjectID(), "p", "c")
	if err != nil {
		t.Fatalf("unexpected error creating post: %v", err)
	}

	rr := doJSON(t, api, http.MethodPost, "/posts/"+post.ID.Hex()+"/flag", viewer.ID.Hex(), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("want status %d, got %d: %s", http.StatusOK, rr.Code, rr.Body)
	}

	var flagged models.Post
	if err := json.NewDecoder(rr.Body).Decode(&flagged); err != nil {
		t.Fatalf("unexpected error decoding response: %v", err)
	}
	if !flagged.FlagForDeletion {
		t.Error("want the post flagged for deletion")
	}
}

func TestAPI_CommentRoundTrip(t *testing.T) {
	api, db := testAPI(t)
	author := addTestUser(t, db, "alice")

	post, err := api.Feed.CreatePost(context.Background(), author,
		primitive.NewObjectID(), "p", "c")
	if err != nil {
		t.Fatalf("unexpected error creating post: %v", err)
	}

	rr := doJSON(t, api, http.MethodPost, "/comments", author.ID.Hex(), NewCommentRequest{
		PostID:  post.ID.Hex(),
		Content: "hi",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("want status %d, got %d: %s", http.StatusCreated, rr.Code, rr.Body)
	}

	var comment models.Comment
	if err := json.NewDecoder(rr.Body).Decode(&comment); err != nil {
		t.Fatalf("unexpected error decoding response: %v", err)
	}

	rr = doJSON(t, api, http.MethodPatch, "/comments/"+comment.ID.Hex(), author.ID.Hex(),
		EditCommentRequest{Content: "hi there"})
	if rr.Code != http.StatusOK {
		t.Fatalf("want status %d editing comment, got %d: %s", http.StatusOK, rr.Code, rr.Body)
	}

	rr = doJSON(t, api, http.MethodPatch, "/comments/"+comment.ID.Hex(), author.ID.Hex(),
		EditCommentRequest{Content: "   "})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("want status %d for a blank edit, got %d: %s", http.StatusBadRequest, rr.Code, rr.Body)
	}

	rr = doJSON(t, api, http.MethodGet, "/comments/"+comment.ID.Hex(), "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("want status %d, got %d: %s", http.StatusOK, rr.Code, rr.Body)
	}
	var got models.Comment
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
		t.Fatalf("unexpected error decoding response: %v", err)
	}
	if got.Content != "hi there" {
		t.Errorf("want content %q, got %q", "hi there", got.Content)
	}

	rr = doJSON(t, api, http.MethodDelete, "/comments/"+comment.ID.Hex(), author.ID.Hex(), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("want status %d deleting comment, got %d: %s", http.StatusOK, rr.Code, rr.Body)
	}
}

func TestAPI_PostsFeedView(t *testing.T) {
	api, db := testAPI(t)
	author := addTestUser(t, db, "alice")
	groupID := primitive.NewObjectID()

	if _, err := api.Feed.CreatePost(context.Background(), author, groupID,
		"pic", "(link-image)https://example.com/a.png"); err != nil {
		t.Fatalf("unexpected error creating post: %v", err)
	}
	if _, err := api.Feed.CreatePost(context.Background(), author,
		primitive.NewObjectID(), "other", "plain text"); err != nil {
		t.Fatalf("unexpected error creating post: %v", err)
	}

	rr := doJSON(t, api, http.MethodGet, fmt.Sprintf("/posts?group=%s", groupID.Hex()), "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("want status %d, got %d: %s", http.StatusOK, rr.Code, rr.Body)
	}

	var views []feed.PostView
	if err := json.NewDecoder(rr.Body).Decode(&views); err != nil {
		t.Fatalf("unexpected error decoding response: %v", err)
	}
	if len(views) != 1 {
		t.Fatalf("want 1 post in the group feed, got %d", len(views))
	}
	if views[0].AuthorUsername != "alice" {
		t.Errorf("want author username %q, got %q", "alice", views[0].AuthorUsername)
	}
	if views[0].Media != models.KindImage {
		t.Errorf("want media kind %q, got %q", models.KindImage, views[0].Media)
	}
}

func TestAPI_PostNotFound(t *testing.T) {
	api, _ := testAPI(t)

	rr := doJSON(t, api, http.MethodGet, "/posts/badId", "", nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("want status %d, got %d: %s", http.StatusNotFound, rr.Code, rr.Body)
	}
}
