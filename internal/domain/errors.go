package domain

import "errors"

var ErrInvalidSessionID = errors.New("invalid session id")
