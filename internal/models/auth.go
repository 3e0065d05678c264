package models

import "github.com/golang-jwt/jwt/v5"

// UserRole enumerates caller roles.
type UserRole string

const (
	RoleAdmin   UserRole = "admin"
	RoleTeacher UserRole = "teacher"
	RoleStudent UserRole = "student"
)

// JWTClaims represents the access token payload issued by the auth service.
type JWTClaims struct {
	UserID    string   `json:"user_id"`
	Role      UserRole `json:"role"`
	TeacherID ID       `json:"teacher_id,omitempty"`
	GroupID   ID       `json:"group_id,omitempty"`
	jwt.RegisteredClaims
}

// Session carries the caller's credentials into every upstream call.
type Session struct {
	UserID    string
	Role      UserRole
	TeacherID ID
	GroupID   ID
	Token     string
}

// Bearer returns the Authorization header value, or "" for anonymous calls.
func (s *Session) Bearer() string {
	if s == nil || s.Token == "" {
		return ""
	}
	return "Bearer " + s.Token
}
