// Package ledger implements the per-chain balance homes: atomic,
// overflow-checked balance mutation with an auditable entry trail. It is the
// only mutation path for Balance records.
package ledger

import "errors"

// ErrInvariantViolation marks fatal consistency violations (overflow,
// negative balance, spendable exceeding confirmed). Callers must abort the
// enclosing state transition; the condition indicates a bug, not a
// recoverable input error.
var ErrInvariantViolation = errors.New("ledger: invariant violation")

// Event is the kind of ledger event that caused a balance change.
type Event int

const (
	EventOrderIssue Event = iota + 1
	EventOrderCancel
	EventTrade
	EventFee
	EventFunding
)

func (e Event) String() string {
	switch e {
	case EventOrderIssue:
		return "COIN_EXCHANGE_ORDER_ISSUE"
	case EventOrderCancel:
		return "COIN_EXCHANGE_ORDER_CANCEL"
	case EventTrade:
		return "COIN_EXCHANGE_TRADE"
	case EventFee:
		return "TRANSACTION_FEE"
	case EventFunding:
		return "FUNDING"
	default:
		return "UNKNOWN"
	}
}

// Holding distinguishes which balance field an entry refers to.
type Holding int

const (
	HoldingConfirmed Holding = iota + 1
	HoldingUnconfirmed
)

func (h Holding) String() string {
	switch h {
	case HoldingConfirmed:
		return "BALANCE"
	case HoldingUnconfirmed:
		return "UNCONFIRMED_BALANCE"
	default:
		return "UNKNOWN"
	}
}

// EventID identifies the transaction behind a ledger event.
type EventID struct {
	ID       uint64
	FullHash []byte
	ChainID  uint32
}

// Entry is one audit record. Change is the signed delta applied to the
// holding, Balance the resulting value of that holding.
type Entry struct {
	Event     Event
	EventID   EventID
	AccountID uint64
	ChainID   uint32
	Holding   Holding
	Change    int64
	Balance   int64
	Height    int32
}

// Sink receives audit entries. Recording is fire-and-forget from the ledger's
// perspective: a Sink must never fail the enclosing state transition.
type Sink interface {
	Record(Entry)
}

// Policy decides whether entries are emitted for an account. The unconfirmed
// flag is true when the mutation touches the unconfirmed holding.
type Policy interface {
	MustLog(accountID uint64, unconfirmed bool) bool
}

// LogAll emits entries for every account.
type LogAll struct{}

func (LogAll) MustLog(uint64, bool) bool { return true }

// NopSink discards entries.
type NopSink struct{}

func (NopSink) Record(Entry) {}
