package domain

import "errors"

// ErrUnknownSubject is returned when a validly signed access token names a
// user that no longer exists, for example after an email change.
var ErrUnknownSubject = errors.New("token subject does not exist")
