package user

import "time"

type Role string

const (
	RoleBuyer  Role = "BUYER"
	RoleSeller Role = "SELLER"
	RoleAdmin  Role = "ADMIN"
)

type User struct {
	ID           uint
	Email        string
	PasswordHash string
	Role         Role
	SellerID     *string
	CreatedAt    time.Time
}
