// Error types for the marketplace core. All of these are recoverable,
// caller-visible outcomes: handlers inspect them with errors.As and render
// a specific message instead of a generic failure.
package models

import (
	"errors"
	"fmt"
)

// PermissionError is returned when the actor's role does not permit the
// requested action.
type PermissionError struct {
	Role   Role
	Action string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("permission denied: role=%s action=%s", e.Role, e.Action)
}

// Is allows error type checking with errors.Is()
func (e *PermissionError) Is(target error) bool {
	_, ok := target.(*PermissionError)
	return ok
}

// InsufficientStockError is returned when a requested quantity exceeds the
// available stock. Available lets the caller offer a corrected quantity.
type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock: product=%s requested=%d available=%d",
		e.ProductID, e.Requested, e.Available)
}

// Is allows error type checking with errors.Is()
func (e *InsufficientStockError) Is(target error) bool {
	_, ok := target.(*InsufficientStockError)
	return ok
}

// InvalidTransitionError is returned when an order-status change is not
// reachable from the current status, or the actor is not allowed to make it.
type InvalidTransitionError struct {
	From  OrderStatus
	To    OrderStatus
	Actor Role
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition: %s -> %s (actor=%s)", e.From, e.To, e.Actor)
}

// Is allows error type checking with errors.Is()
func (e *InvalidTransitionError) Is(target error) bool {
	_, ok := target.(*InvalidTransitionError)
	return ok
}

// NotFoundError is returned when a referenced entity id does not resolve.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: id=%s", e.Entity, e.ID)
}

// Is allows error type checking with errors.Is()
func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)
	return ok
}

// ValidationError is returned when a request is malformed at the business
// level (empty cart, mixed-farmer cart, bad quantity).
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", e.Reason)
}

// Is allows error type checking with errors.Is()
func (e *ValidationError) Is(target error) bool {
	_, ok := target.(*ValidationError)
	return ok
}

// BackendUnavailableError wraps a transport or storage failure so callers
// can retry instead of treating it as a permanent rejection.
type BackendUnavailableError struct {
	Op  string
	Err error
}

func (e *BackendUnavailableError) Error() string {
	return fmt.Sprintf("backend unavailable: op=%s: %v", e.Op, e.Err)
}

func (e *BackendUnavailableError) Unwrap() error {
	return e.Err
}

// Is allows error type checking with errors.Is()
func (e *BackendUnavailableError) Is(target error) bool {
	_, ok := target.(*BackendUnavailableError)
	return ok
}

// Constructors

func NewPermissionError(role Role, action string) error {
	return &PermissionError{Role: role, Action: action}
}

func NewInsufficientStockError(productID string, requested, available int) error {
	return &InsufficientStockError{ProductID: productID, Requested: requested, Available: available}
}

func NewInvalidTransitionError(from, to OrderStatus, actor Role) error {
	return &InvalidTransitionError{From: from, To: to, Actor: actor}
}

func NewNotFoundError(entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}

func NewValidationError(format string, args ...interface{}) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

func NewBackendUnavailableError(op string, err error) error {
	return &BackendUnavailableError{Op: op, Err: err}
}

// Type assertion helpers for use with errors.As()

// IsInsufficientStock checks if an error is an InsufficientStockError
func IsInsufficientStock(err error) bool {
	var ise *InsufficientStockError
	return errors.As(err, &ise)
}

// IsInvalidTransition checks if an error is an InvalidTransitionError
func IsInvalidTransition(err error) bool {
	var ite *InvalidTransitionError
	return errors.As(err, &ite)
}

// IsNotFound checks if an error is a NotFoundError
func IsNotFound(err error) bool {
	var nfe *NotFoundError
	return errors.As(err, &nfe)
}

// IsBackendUnavailable checks if an error is a BackendUnavailableError
func IsBackendUnavailable(err error) bool {
	var bue *BackendUnavailableError
	return errors.As(err, &bue)
}
