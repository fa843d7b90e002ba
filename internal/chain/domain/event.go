package domain

import (
	"context"
	"errors"
	"math/big"
	"sort"
	"time"
)

var (
	ErrSourceUnavailable = errors.New("source_unavailable")
	ErrDetailUnavailable = errors.New("detail_unavailable")
	ErrUnknownEventKind  = errors.New("unknown_event_kind")
)

// EventKind names one of the contract events claimsync reconciles.
type EventKind string

const (
	KindPremiumPaid    EventKind = "premium_paid"
	KindClaimSubmitted EventKind = "claim_submitted"
	KindClaimVerified  EventKind = "claim_verified"
)

// Kinds is every event kind, in the order cursors are reported.
var Kinds = []EventKind{KindPremiumPaid, KindClaimSubmitted, KindClaimVerified}

func (k EventKind) Valid() bool {
	switch k {
	case KindPremiumPaid, KindClaimSubmitted, KindClaimVerified:
		return true
	}
	return false
}

// RawEvent is one decoded contract log. Only the fields of its Kind are set.
type RawEvent struct {
	Kind        EventKind
	TxHash      string
	BlockNumber uint64
	LogIndex    uint

	// premium_paid and claim_submitted
	Payer     string
	AmountWei *big.Int

	// premium_paid
	Timestamp time.Time

	// claim_submitted and claim_verified
	ClaimID string

	// claim_verified
	Verified bool
}

// PollResult covers blocks [FromBlock, ToBlock]. Scanned is false when no
// confirmed block was available; the cursor must not move in that case.
type PollResult struct {
	Events    []RawEvent
	FromBlock uint64
	ToBlock   uint64
	Scanned   bool
}

// TxDetail is the cost metadata of a confirmed transaction.
type TxDetail struct {
	GasUsed     uint64
	GasPrice    *big.Int
	BlockNumber uint64
	ConfirmedAt time.Time
}

type EventSource interface {
	// Poll returns decoded events of kind from fromBlock up to the confirmed head.
	Poll(ctx context.Context, kind EventKind, fromBlock uint64) (PollResult, error)
	// Head returns the latest confirmed block.
	Head(ctx context.Context) (uint64, error)
}

type DetailFetcher interface {
	Fetch(ctx context.Context, txHash string) (TxDetail, error)
}

// SortEvents orders events by block then log index, the order they were emitted.
func SortEvents(events []RawEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].BlockNumber != events[j].BlockNumber {
			return events[i].BlockNumber < events[j].BlockNumber
		}
		return events[i].LogIndex < events[j].LogIndex
	})
}
