package repository

import "errors"

// ErrNotFound indicates an entity was not located.
var ErrNotFound = errors.New("repository: not found")

// ErrDuplicateEmail indicates the unique index on email rejected an insert or
// update. The service layer checks first, so hitting this means a concurrent
// writer won the race.
var ErrDuplicateEmail = errors.New("repository: email already registered")
