package model

import (
	"time"
)

const (
	UserTypeUser    = "user"
	UserTypeAdmin   = "admin"
	UserTypeTrainer = "trainer"
)

type User struct {
	ID           string    `db:"id" json:"userId"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Type         string    `db:"type" json:"type"`
	Active       bool      `db:"active" json:"active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}
