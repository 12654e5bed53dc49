package typesystem

import (
	"errors"
	"fmt"
)

// ErrRegistryFrozen is returned for declarations made after Freeze.
var ErrRegistryFrozen = errors.New("classifier registry is frozen")

// ClassifierNotFoundError indicates a classifier name did not resolve
type ClassifierNotFoundError struct {
	Name string
}

func (e *ClassifierNotFoundError) Error() string {
	return fmt.Sprintf("classifier not found: %s", e.Name)
}

func NewClassifierNotFoundError(name string) *ClassifierNotFoundError {
	return &ClassifierNotFoundError{Name: name}
}

// DuplicateClassifierError indicates a name was declared twice
type DuplicateClassifierError struct {
	Name string
}

func (e *DuplicateClassifierError) Error() string {
	return fmt.Sprintf("classifier already declared: %s", e.Name)
}
