package api

import "time"

type NewUserRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	AvatarURL string `json:"avatar_url"`
}

type ChangePasswordRequest struct {
	Password string `json:"password"`
}

type NewPostRequest struct {
	GroupID string `json:"group_id"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

type NewCommentRequest struct {
	PostID  string `json:"post_id"`
	Content string `json:"content"`
}

type EditCommentRequest struct {
	Content string `json:"content"`
}

type LogEntry struct {
	Timestamp  time.Time `json:"timestamp"`
	IP         string    `json:"ip"`
	StatusCode int       `json:"status_code"`
	RequestID  string    `json:"request_id"`
	Method     string    `json:"method"`
	Path       string    `json:"path"`
	Duration   float64   `json:"duration_sec"`
	Service    string    `json:"service"`
}
