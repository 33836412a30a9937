package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"feed/pkg/feed"
	"feed/pkg/models"
	"feed/pkg/moderation"
	"feed/pkg/storage"
)

// actorHeader carries the acting user's id on every mutating request. The
// actor is resolved per request, the core keeps no ambient session state.
const actorHeader = "X-Actor-Id"

type API struct {
	ServiceName string
	DB          storage.Storage
	Feed        *feed.Service
	Router      *mux.Router
	kw          *kafka.Writer
}

func New(name string, db storage.Storage, feedService *feed.Service, kafkaWriter *kafka.Writer) *API {
	api := API{
		ServiceName: name,
		DB:          db,
		Feed:        feedService,
		Router:      mux.NewRouter(),
		kw:          kafkaWriter,
	}
	api.endpoints()

	return &api
}

func (api *API) endpoints() {
	api.Router.Use(api.requestIDMiddleware)
	api.Router.Use(api.headerMiddleware)

	if api.kw != nil {
		api.Router.Use(api.loggingMiddleware(api.kw))
	}

	api.Router.HandleFunc("/users", api.createUserHandler).Methods(http.MethodPost)
	api.Router.HandleFunc("/users", api.usersHandler).Methods(http.MethodGet)
	api.Router.HandleFunc("/users/{id}", api.userHandler).Methods(http.MethodGet)
	api.Router.HandleFunc("/users/{id}/password", api.changePasswordHandler).Methods(http.MethodPut)

	api.Router.HandleFunc("/posts", api.createPostHandler).Methods(http.MethodPost)
	api.Router.HandleFunc("/posts", api.postsHandler).Methods(http.MethodGet)
	api.Router.HandleFunc("/posts/{id}", api.postHandler).Methods(http.MethodGet)
	api.Router.HandleFunc("/posts/{id}/flag", api.flagPostHandler).Methods(http.MethodPost)
	api.Router.HandleFunc("/posts/{id}", api.deletePostHandler).Methods(http.MethodDelete)

	api.Router.HandleFunc("/comments", api.createCommentHandler).Methods(http.MethodPost)
	api.Router.HandleFunc("/comments/{id}", api.commentHandler).Methods(http.MethodGet)
	api.Router.HandleFunc("/comments/{id}", api.editCommentHandler).Methods(http.MethodPatch)
	api.Router.HandleFunc("/comments/{id}", api.deleteCommentHandler).Methods(http.MethodDelete)
}

// actor resolves the acting user from the request header.
func (api *API) actor(r *http.Request) (models.User, error) {
	id := r.Header.Get(actorHeader)
	if id == "" {
		return models.User{}, errMissingActor
	}

	return api.DB.UserByID(r.Context(), id)
}

var errMissingActor = errors.New("missing " + actorHeader + " header")

// writeError maps the error taxonomy onto HTTP status codes and surfaces the
// taxonomy message to the caller unchanged.
func (api *API) writeError(w http.ResponseWriter, handler, sID string, err error) {
	var (
		ve *storage.ValidationError
		nf *storage.NotFoundError
	)

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, errMissingActor):
		status = http.StatusUnauthorized
	case errors.Is(err, feed.ErrNotAuthorized):
		status = http.StatusForbidden
	case errors.Is(err, moderation.ErrInvalidTransition):
		status = http.StatusConflict
	case errors.As(err, &ve):
		status = http.StatusBadRequest
	case errors.As(err, &nf):
		status = http.StatusNotFound
	}

	http.Error(w, err.Error(), status)
	log.Debugf("[%s][%s] request failed with status %d: %v", handler, sID, status, err)
}

func (api *API) createUserHandler(w http.ResponseWriter, r *http.Request) {
	sID := shorten(GetRequestID(r.Context()))

	var req NewUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	user, err := api.DB.AddUser(r.Context(), models.User{
		Username:  req.Username,
		Email:     req.Email,
		Password:  req.Password,
		AvatarURL: req.AvatarURL,
	})
	if err != nil {
		api.writeError(w, "createUserHandler", sID, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(user)
}

func (api *API) usersHandler(w http.ResponseWriter, r *http.Request) {
	sID := shorten(GetRequestID(r.Context()))

	var filter *storage.UserFilter
	if username := r.URL.Query().Get("username"); username != "" {
		filter = &storage.UserFilter{Username: &username}
	}

	users, err := api.DB.Users(r.Context(), filter)
	if err != nil {
		api.writeError(w, "usersHandler", sID, err)
		return
	}

	json.NewEncoder(w).Encode(users)
	log.Debugf("[usersHandler][%s] response sent to: %v", sID, r.RemoteAddr)
}

func (api *API) userHandler(w http.ResponseWriter, r *http.Request) {
	sID := shorten(GetRequestID(r.Context()))

	user, err := api.DB.UserByID(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		api.writeError(w, "userHandler", sID, err)
		return
	}

	json.NewEncoder(w).Encode(user)
}

func (api *API) changePasswordHandler(w http.ResponseWriter, r *http.Request) {
	sID := shorten(GetRequestID(r.Context()))

	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	res, err := api.DB.ChangePassword(r.Context(), mux.Vars(r)["id"], req.Password)
	if err != nil {
		api.writeError(w, "changePasswordHandler", sID, err)
		return
	}

	json.NewEncoder(w).Encode(res)
}

func (api *API) createPostHandler(w http.ResponseWriter, r *http.Request) {
	sID := shorten(GetRequestID(r.Context()))

	actor, err := api.actor(r)
	if err != nil {
		api.writeError(w, "createPostHandler", sID, err)
		return
	}

	var req NewPostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	groupID, err := primitive.ObjectIDFromHex(req.GroupID)
	if err != nil {
		http.Error(w, "Invalid group_id", http.StatusBadRequest)
		return
	}

	post, err := api.Feed.CreatePost(r.Context(), actor, groupID, req.Title, req.Content)
	if err != nil {
		api.writeError(w, "createPostHandler", sID, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(post)
}

func (api *API) postsHandler(w http.ResponseWriter, r *http.Request) {
	sID := shorten(GetRequestID(r.Context()))

	var filter *storage.PostFilter
	if group := r.URL.Query().Get("group"); group != "" {
		groupID, err := primitive.ObjectIDFromHex(group)
		if err != nil {
			http.Error(w, "Invalid group parameter", http.StatusBadRequest)
			return
		}
		filter = &storage.PostFilter{GroupID: &groupID}
	}

	// The hide-list is client-local state, the canonical listing never
	// applies one.
	views, err := api.Feed.Feed(r.Context(), filter, nil)
	if err != nil {
		api.writeError(w, "postsHandler", sID, err)
		return
	}

	json.NewEncoder(w).Encode(views)
	log.Debugf("[postsHandler][%s] response sent to: %v", sID, r.RemoteAddr)
}

func (api *API) postHandler(w http.ResponseWriter, r *http.Request) {
	sID := shorten(GetRequestID(r.Context()))

	post, err := api.DB.PostByID(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		api.writeError(w, "postHandler", sID, err)
		return
	}

	json.NewEncoder(w).Encode(post)
}

func (api *API) flagPostHandler(w http.ResponseWriter, r *http.Request) {
	sID := shorten(GetRequestID(r.Context()))

	actor, err := api.actor(r)
	if err != nil {
		api.writeError(w, "flagPostHandler", sID, err)
		return
	}

	post, err := api.Feed.FlagPost(r.Context(), actor, mux.Vars(r)["id"])
	if err != nil {
		api.writeError(w, "flagPostHandler", sID, err)
		return
	}

	json.NewEncoder(w).Encode(post)
}

func (api *API) deletePostHandler(w http.ResponseWriter, r *http.Request) {
	sID := shorten(GetRequestID(r.Context()))

	actor, err := api.actor(r)
	if err != nil {
		api.writeError(w, "deletePostHandler", sID, err)
		return
	}

	res, err := api.Feed.DeletePost(r.Context(), actor, mux.Vars(r)["id"])
	if err != nil {
		api.writeError(w, "deletePostHandler", sID, err)
		return
	}

	json.NewEncoder(w).Encode(res)
}

func (api *API) createCommentHandler(w http.ResponseWriter, r *http.Request) {
	sID := shorten(GetRequestID(r.Context()))

	actor, err := api.actor(r)
	if err != nil {
		api.writeError(w, "createCommentHandler", sID, err)
		return
	}

	var req NewCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	comment, err := api.Feed.AddComment(r.Context(), actor, req.PostID, req.Content)
	if err != nil {
		api.writeError(w, "createCommentHandler", sID, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(comment)
}

func (api *API) commentHandler(w http.ResponseWriter, r *http.Request) {
	sID := shorten(GetRequestID(r.Context()))

	comment, err := api.DB.CommentByID(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		api.writeError(w, "commentHandler", sID, err)
		return
	}

	json.NewEncoder(w).Encode(comment)
}

func (api *API) editCommentHandler(w http.ResponseWriter, r *http.Request) {
	sID := shorten(GetRequestID(r.Context()))

	actor, err := api.actor(r)
	if err != nil {
		api.writeError(w, "editCommentHandler", sID, err)
		return
	}

	var req EditCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	res, err := api.Feed.EditComment(r.Context(), actor, mux.Vars(r)["id"], req.Content)
	if err != nil {
		api.writeError(w, "editCommentHandler", sID, err)
		return
	}

	json.NewEncoder(w).Encode(res)
}

func (api *API) deleteCommentHandler(w http.ResponseWriter, r *http.Request) {
	sID := shorten(GetRequestID(r.Context()))

	actor, err := api.actor(r)
	if err != nil {
		api.writeError(w, "deleteCommentHandler", sID, err)
		return
	}

	res, err := api.Feed.DeleteComment(r.Context(), actor, mux.Vars(r)["id"])
	if err != nil {
		api.writeError(w, "deleteCommentHandler", sID, err)
		return
	}

	json.NewEncoder(w).Encode(res)
}

// GetRequestID extracts the request ID from the context.
func GetRequestID(ctx context.Context) string {
	reqID, ok := ctx.Value(RequestIDKey).(string)
	if !ok {
		return ""
	}
	return reqID
}

func shorten(s string) string {
	if len(s) > 6 {
		return s[:6] + "..."
	}
	return s
}
