package affiliate

import (
	"errors"
	"time"
)

var (
	ErrNotFound        = errors.New("affiliate: program not found")
	ErrInvalidArgument = errors.New("affiliate: invalid argument")
)

type Status string

const (
	StatusActive   Status = "Active"
	StatusInactive Status = "Inactive"
	StatusPending  Status = "Pending"
)

type Program struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Description      string    `json:"description,omitempty"`
	Category         string    `json:"category,omitempty"`
	Commission       string    `json:"commission,omitempty"`
	CookieDuration   string    `json:"cookie_duration,omitempty"`
	PaymentThreshold string    `json:"payment_threshold,omitempty"`
	Status           Status    `json:"status"`
	Website          string    `json:"website,omitempty"`
	Logo             string    `json:"logo,omitempty"`
	Rating           *float64  `json:"rating,omitempty"`
	UserID           string    `json:"user_id"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

type ProgramInput struct {
	Name             string   `json:"name" validate:"required,max=200"`
	Description      string   `json:"description" validate:"max=2000"`
	Category         string   `json:"category" validate:"max=100"`
	Commission       string   `json:"commission" validate:"max=100"`
	CookieDuration   string   `json:"cookie_duration" validate:"max=100"`
	PaymentThreshold string   `json:"payment_threshold" validate:"max=100"`
	Status           Status   `json:"status" validate:"required,oneof=Active Inactive Pending"`
	Website          string   `json:"website" validate:"omitempty,http_url"`
	Logo             string   `json:"logo" validate:"omitempty,http_url"`
	Rating           *float64 `json:"rating" validate:"omitempty,gte=0,lte=5"`
}

type ProgramPatch struct {
	Name             *string  `json:"name" validate:"omitempty,min=1,max=200"`
	Description      *string  `json:"description" validate:"omitempty,max=2000"`
	Category         *string  `json:"category" validate:"omitempty,max=100"`
	Commission       *string  `json:"commission" validate:"omitempty,max=100"`
	CookieDuration   *string  `json:"cookie_duration" validate:"omitempty,max=100"`
	PaymentThreshold *string  `json:"payment_threshold" validate:"omitempty,max=100"`
	Status           *Status  `json:"status" validate:"omitempty,oneof=Active Inactive Pending"`
	Website          *string  `json:"website" validate:"omitempty,http_url"`
	Logo             *string  `json:"logo" validate:"omitempty,http_url"`
	Rating           *float64 `json:"rating" validate:"omitempty,gte=0,lte=5"`
}
