package models

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

type UserRole string

const (
	RoleAdmin  UserRole = "admin"
	RoleMember UserRole = "member"
	RoleGuest  UserRole = "guest"
)

type User struct {
	Lifecycle
	Username       string     `gorm:"size:50;uniqueIndex;not null" json:"username"`
	Email          string     `gorm:"size:100;uniqueIndex;not null" json:"email"`
	HashedPassword string     `gorm:"size:100" json:"-"`
	Role           UserRole   `gorm:"size:20;default:guest" json:"role"`
	LastLogin      *time.Time `json:"last_login"`
}

func (User) TableName() string { return "user" }

func (u *User) SetPassword(plain string) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.HashedPassword = string(hashed)
	return nil
}

func (u *User) VerifyPassword(plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.HashedPassword), []byte(plain)) == nil
}
