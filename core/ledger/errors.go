package ledger

import "github.com/pkg/errors"

var (
	ErrStudentNotFound    = errors.New("student not found")
	ErrAssignmentNotFound = errors.New("fee assignment not found")
	ErrDuplicateCode      = errors.New("student code already in use")
	ErrInvalidOrdering    = errors.New("invalid ordering field")
)
