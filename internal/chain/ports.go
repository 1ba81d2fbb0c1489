package chain

import (
	"context"

	"vitalia/internal/domain"
)

// ContractRef names a deployed contract and its address on the selected
// network. Addresses are injected configuration; nothing in this layer reads
// ambient chain state.
type ContractRef struct {
	Name    string
	Address domain.Address
}

// TxHandle is the opaque identifier a transport returns for a submitted
// write. The outcome is observed asynchronously via Wait.
type TxHandle string

// ReceiptStatus is the terminal outcome of a submitted write.
type ReceiptStatus string

const (
	ReceiptConfirmed ReceiptStatus = "confirmed"
	ReceiptReverted  ReceiptStatus = "reverted"
)

// Receipt reports the terminal outcome of a write. Reason is human-readable
// and only set for reverted receipts.
type Receipt struct {
	Handle TxHandle
	Status ReceiptStatus
	Reason string
}

// Transport carries raw positional calls to the registry. Implementations:
// the JSON-RPC client (rpc package) and the in-memory fake (registrytest
// package). All methods honor context cancellation at the I/O boundary.
type Transport interface {
	// Call performs a read and returns the positional result values.
	// For record reads the result is the record's fields; for collection
	// reads each element is itself a positional record or scalar.
	Call(ctx context.Context, contract ContractRef, method string, args ...any) ([]any, error)

	// Submit hands a write to the chain and returns as soon as it is
	// broadcast. A pre-broadcast decline surfaces as a CategoryRejected
	// error; broadcast writes are not cancellable.
	Submit(ctx context.Context, contract ContractRef, method string, args ...any) (TxHandle, error)

	// Wait blocks until the submitted write reaches a terminal receipt or
	// the context is cancelled. Cancelling Wait abandons observation only;
	// the write itself proceeds.
	Wait(ctx context.Context, handle TxHandle) (Receipt, error)
}
