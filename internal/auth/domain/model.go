package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/golang-jwt/jwt/v5"
	userdomain "github.com/smallbiznis/privatedrops/internal/user/domain"
)

// Claims are carried by every access token. Subject holds the user id.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Principal is the authenticated caller resolved from a token.
type Principal struct {
	UserID snowflake.ID
	Role   userdomain.Role
}

func (p Principal) IsAdmin() bool {
	return p.Role == userdomain.RoleAdmin
}

type LoginRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type LoginResult struct {
	UserID      snowflake.ID `json:"id"`
	Nickname    *string      `json:"nickname"`
	AccessToken string       `json:"accessToken"`
	ExpiresAt   time.Time    `json:"expiresAt"`
}
