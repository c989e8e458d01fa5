package catalog

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("item not found")
	ErrInvalidItem       = errors.New("invalid item")
	ErrCategoryImmutable = errors.New("category cannot change on update")
)

// StoreError wraps a failure of the underlying database.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("catalog %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func storeErr(op string, err error) error {
	return &StoreError{Op: op, Err: err}
}
