package domain

import (
	"errors"
)

// ErrAccountNotFound is returned when neither the account row nor any of its events exist
var ErrAccountNotFound = errors.New("account not found")
