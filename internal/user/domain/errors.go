package domain

import "errors"

var (
	ErrUserNotFound    = errors.New("user_not_found")
	ErrInvalidEmail    = errors.New("invalid_email")
	ErrInvalidNickname = errors.New("invalid_nickname")
	ErrNicknameTaken   = errors.New("nickname_taken")
	ErrInvalidCurrency = errors.New("invalid_currency")
	ErrUserBanned      = errors.New("user_banned")
)
