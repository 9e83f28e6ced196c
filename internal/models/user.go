package models

import "github.com/uptrace/bun"

const (
	RolePassenger = "PASSENGER"
	RoleAdmin     = "ADMIN"
)

type User struct {
	bun.BaseModel `bun:"table:users"`

	ID       int64  `bun:"id,pk,autoincrement" json:"id"`
	Username string `bun:"username,notnull,unique" json:"username"`
	Role     string `bun:"role,notnull" json:"role"`
}
