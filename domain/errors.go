package domain

import "errors"

var (
	ErrCronJobNotFound      = errors.New("cron job not found")
	ErrNotificationNotFound = errors.New("notification not found")
	ErrUserNotFound         = errors.New("user not found")
	ErrUnknownJobType       = errors.New("unknown job type")
	ErrInvalidPayload       = errors.New("invalid job payload")
)
