package domain

import "time"

type ID string

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

type User struct {
	ID             ID
	Name           string
	PasswordHash   string
	Role           Role
	IsBlocked      bool
	IsLogged       bool
	ExpirationDate time.Time
	CreatedAt      time.Time
}

// RunningApp is the single application slot a device reports for its user.
type RunningApp struct {
	UserID  ID
	Name    string
	StartAt time.Time
}

type UserWithApp struct {
	User
	App *RunningApp
}
