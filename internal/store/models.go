package store

import (
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrAdminRole is returned when an agent grant targets an admin.
	ErrAdminRole = errors.New("user is an admin")
)

const (
	RequestPending   = "pending"
	RequestCompleted = "completed"
	RequestRejected  = "rejected"
)

type User struct {
	ID       int64
	Username string
	Role     string
	JoinedAt time.Time
}

type Movie struct {
	ID         int64
	Title      string
	Year       string
	Quality    string
	Language   string
	Size       string
	Link       string
	MediaRef   string
	UploaderID int64
	CreatedAt  time.Time
}

type Agent struct {
	AgentID   int64
	Username  string
	GrantedBy int64
	GrantedAt time.Time
}

type Request struct {
	ID          int64
	RequesterID int64
	Query       string
	Status      string
	CreatedAt   time.Time
}
