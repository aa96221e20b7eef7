package model

import "errors"

var (
	// User related errors
	ErrUserNotFound      = errors.New("user not found")
	ErrUserAlreadyExists = errors.New("user already exists")

	// Token related errors
	ErrInvalidToken = errors.New("invalid token")

	// Semester related errors
	ErrSemesterNotFound      = errors.New("semester not found")
	ErrSemesterAlreadyExists = errors.New("semester already exists")

	// Generic errors
	ErrInvalidInput = errors.New("invalid input")
)
