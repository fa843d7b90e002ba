package domain

import "errors"

var (
	ErrDanglingReference   = errors.New("dangling_reference")
	ErrPayerNotFound       = errors.New("payer_not_found")
	ErrClaimNotFound       = errors.New("claim_not_found")
	ErrInvalidWallet       = errors.New("invalid_wallet_address")
	ErrInvalidNationalID   = errors.New("invalid_national_id")
	ErrInvalidFullName     = errors.New("invalid_full_name")
	ErrInvalidClaimStatus  = errors.New("invalid_claim_status")
	ErrInvalidDecision     = errors.New("invalid_decision")
	ErrClaimClosed         = errors.New("claim_closed")
	ErrDuplicateNationalID = errors.New("duplicate_national_id")
	ErrPolicyNumberTaken   = errors.New("policy_number_taken")
)
