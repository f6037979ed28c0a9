package auth

import (
	"errors"

	"authservice/internal/domain"
	"authservice/internal/pkg/password"
)

var (
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrEmailAlreadyExists    = errors.New("email already exists")
	ErrPasswordTooLong       = password.ErrTooLong
	ErrBlankUsername         = errors.New("username must not be blank")
	ErrMissingToken          = errors.New("refresh token missing")
	ErrMalformedToken        = errors.New("refresh token malformed")
	ErrUnknownToken          = errors.New("refresh token unknown")
	ErrExpiredToken          = errors.New("refresh token expired")
	ErrSessionConflict       = errors.New("concurrent session change")
	ErrUnknownSubject        = domain.ErrUnknownSubject
	ErrInternalInconsistency = errors.New("refresh token owner missing")
	ErrUserNotFound          = errors.New("user not found")
)
