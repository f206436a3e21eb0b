package models

import (
	"time"
)

// Role distinguishes enforcement officers from console administrators.
type Role string

const (
	RoleEnforcer Role = "enforcer"
	RoleAdmin    Role = "admin"
)

// User is an enforcer or admin account in the users collection. The engine
// consults it read-only, for enrichment and per-enforcer rollups.
type User struct {
	ID          string    `json:"id"`
	FullName    string    `json:"fullName"`
	BadgeNumber string    `json:"badgeNumber,omitempty"`
	Role        Role      `json:"role"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
