package models

import "github.com/golang-jwt/jwt/v5"

// UserClaims is the JWT payload attached to authenticated requests.
type UserClaims struct {
	jwt.RegisteredClaims
	UserID uint   `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}
