package ledger

import "errors"

var (
	ErrImbalancedEntry     = errors.New("ledger: debits and credits do not balance")
	ErrEmptyEntry          = errors.New("ledger: entry has no legs")
	ErrInvalidLeg          = errors.New("ledger: leg must have exactly one positive debit or credit")
	ErrNotFound            = errors.New("ledger: entry not found")
	ErrAlreadyVoided       = errors.New("ledger: entry already voided")
	ErrDuplicateEntry      = errors.New("ledger: entry with this key already exists")
	ErrReversalEntry       = errors.New("ledger: reversal entries cannot be voided")
	ErrInsufficientBalance = errors.New("ledger: insufficient balance")
)
