package model

import (
	"errors"
)

var (
	ErrAlreadyExists = errors.New("object already exists")
	ErrNotFound      = errors.New("not found")

	// ErrNoAuth means no usable credential exists and login is not allowed.
	ErrNoAuth        = errors.New("no usable credential")
	ErrLoginFailed   = errors.New("login rejected")
	ErrRefreshFailed = errors.New("token refresh failed")

	// ErrUnauthorized marks patron content the current session cannot reach.
	ErrUnauthorized = errors.New("patron content requires an active entitlement")

	ErrTransferFailed = errors.New("transfer failed")
	ErrRemuxFailed    = errors.New("remux failed")
	ErrIO             = errors.New("i/o failure")
)
