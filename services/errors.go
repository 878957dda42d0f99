package services

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// ConflictError reports a transition whose guard failed because the entity is
// not in the expected state. Callers re-fetch and retry, or escalate to a
// forced release.
type ConflictError struct {
	Entity    string `json:"entity"`
	ID        string `json:"id"`
	Current   string `json:"current"`
	Requested string `json:"requested"`
	Reason    string `json:"reason,omitempty"`
}

func (e *ConflictError) Error() string {
	msg := fmt.Sprintf("%s %s is %s, cannot move to %s", e.Entity, e.ID, e.Current, e.Requested)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// NotFoundError reports a table, reservation, order, item or code that does
// not resolve.
type NotFoundError struct {
	Entity string `json:"entity"`
	Key    string `json:"key"`
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.Key)
}

// CrossTenantError reports an entity owned by another restaurant than the
// caller's. It is always fatal to the operation.
type CrossTenantError struct {
	Entity string `json:"entity"`
	ID     string `json:"id"`
	Owner  string `json:"-"`
	Caller string `json:"caller_restaurant"`
}

func (e *CrossTenantError) Error() string {
	return fmt.Sprintf("%s %s does not belong to restaurant %s", e.Entity, e.ID, e.Caller)
}

// InconsistentStateError reports store writes that partially succeeded, such
// as an occupied table with no order or an order closed without its table
// being released. Recovery is a forced release.
type InconsistentStateError struct {
	Entity string `json:"entity"`
	ID     string `json:"id"`
	Reason string `json:"reason"`
	Err    error  `json:"-"`
}

func (e *InconsistentStateError) Error() string {
	msg := fmt.Sprintf("%s %s is inconsistent: %s", e.Entity, e.ID, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *InconsistentStateError) Unwrap() error { return e.Err }

// CapacityWarning signals a party larger than the table. Returned as an error
// it means nothing was written and the caller must confirm; attached to a
// result it records a confirmed override.
type CapacityWarning struct {
	TableID   uint `json:"table_id"`
	Capacity  int  `json:"capacity"`
	PartySize int  `json:"party_size"`
}

func (w *CapacityWarning) Error() string {
	return fmt.Sprintf("party of %d exceeds capacity %d of table %d", w.PartySize, w.Capacity, w.TableID)
}

// ValidationError reports a caller mistake in the request itself.
type ValidationError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func IsConflict(err error) bool {
	var target *ConflictError
	return errors.As(err, &target)
}

func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

func IsCrossTenant(err error) bool {
	var target *CrossTenantError
	return errors.As(err, &target)
}

func IsInconsistent(err error) bool {
	var target *InconsistentStateError
	return errors.As(err, &target)
}

func IsCapacityWarning(err error) bool {
	var target *CapacityWarning
	return errors.As(err, &target)
}

func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// storeErr turns gorm's record-not-found into a NotFoundError and wraps any
// other store failure.
func storeErr(err error, entity, key string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &NotFoundError{Entity: entity, Key: key}
	}
	return fmt.Errorf("load %s %s: %w", entity, key, err)
}
