package domain

import "errors"

var (
	ErrConnect         = errors.New("connect to thinkgear bridge")
	ErrStreamRead      = errors.New("read thinkgear stream")
	ErrProfileNotFound = errors.New("profile not found")
	ErrEmptyUser       = errors.New("user name is empty")
	ErrNoLabels        = errors.New("at least one label is required")
)
