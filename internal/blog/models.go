package blog

import (
	"errors"
	"time"
)

var (
	ErrNotFound        = errors.New("blog: post not found")
	ErrSlugTaken       = errors.New("blog: slug already in use")
	ErrInvalidArgument = errors.New("blog: invalid argument")
)

type Status string

const (
	StatusPublished Status = "Published"
	StatusDraft     Status = "Draft"
)

func (s Status) Valid() bool { return s == StatusPublished || s == StatusDraft }

// StatusAll is the admin table filter value that matches every status.
const StatusAll = "All"

type Post struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Slug      string    `json:"slug"`
	Content   string    `json:"content,omitempty"`
	Status    Status    `json:"status"`
	Category  string    `json:"category,omitempty"`
	Author    string    `json:"author,omitempty"`
	Date      time.Time `json:"date"`
	Views     int64     `json:"views"`
	UserID    string    `json:"user_id"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PostInput is the create payload.
type PostInput struct {
	Title    string `json:"title" validate:"required,max=200"`
	Slug     string `json:"slug" validate:"omitempty,max=200"`
	Content  string `json:"content" validate:"max=100000"`
	Status   Status `json:"status" validate:"required,oneof=Published Draft"`
	Category string `json:"category" validate:"max=100"`
	Author   string `json:"author" validate:"max=100"`
}

// PostPatch applies only the fields that are set.
type PostPatch struct {
	Title    *string `json:"title" validate:"omitempty,min=1,max=200"`
	Slug     *string `json:"slug" validate:"omitempty,min=1,max=200"`
	Content  *string `json:"content" validate:"omitempty,max=100000"`
	Status   *Status `json:"status" validate:"omitempty,oneof=Published Draft"`
	Category *string `json:"category" validate:"omitempty,max=100"`
	Author   *string `json:"author" validate:"omitempty,max=100"`
}

// Filter narrows List. Zero value lists everything.
type Filter struct {
	Status Status
	Term   string
}

// Totals are the aggregates used by dashboard statistics.
type Totals struct {
	Posts int
	Views int64
}
