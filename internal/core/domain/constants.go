package domain

import "errors"

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrChallengeNotFound  = errors.New("challenge not found")
	ErrSubmissionNotFound = errors.New("submission not found")
	ErrNoRoute            = errors.New("no delivery route for user")
)
