package lnd

import (
	"context"
	"errors"

	"github.com/lightningnetwork/lnd/lnrpc"
)

var ErrNoRoute = errors.New("no route found")

// LightningClientWrapper is everything the service needs from a Lightning node.
// Amounts are satoshis and ids are hex encoded payment hashes.
type LightningClientWrapper interface {
	CreateInvoice(ctx context.Context, amount int64, memo string, expiry int64) (*Invoice, error)
	DecodeInvoice(ctx context.Context, paymentRequest string) (*DecodedInvoice, error)
	ProbeRoute(ctx context.Context, destination string, amount int64, paymentAddr []byte) (*Route, error)
	PayViaRoute(ctx context.Context, id string, route *Route) (*PaymentStatus, error)
	GetPaymentStatus(ctx context.Context, id string) (*PaymentStatus, error)
	GetInvoiceStatus(ctx context.Context, id string) (*InvoiceStatus, error)
	CreateChainAddress(ctx context.Context) (string, error)
	ListChainTransactions(ctx context.Context) ([]ChainTransaction, error)
	SubscribeInvoices(ctx context.Context) (SubscribeInvoicesWrapper, error)
	SubscribeTransactions(ctx context.Context) (SubscribeTransactionsWrapper, error)
	GetInfo(ctx context.Context) (*NodeInfo, error)
}

type SubscribeInvoicesWrapper interface {
	Recv() (*InvoiceStatus, error)
}

type SubscribeTransactionsWrapper interface {
	Recv() (*ChainTransaction, error)
}

type Invoice struct {
	ID             string `json:"id"`
	PaymentRequest string `json:"payment_request"`
	Amount         int64  `json:"amount"`
	Memo           string `json:"memo"`
}

type DecodedInvoice struct {
	ID          string
	Destination string
	Description string
	Tokens      int64
	PaymentAddr []byte
}

// Route is a probed route. Raw is handed back to the node unchanged when paying.
type Route struct {
	Fee    int64
	Tokens int64
	Raw    *lnrpc.Route
}

type PaymentState int

const (
	PaymentInFlight PaymentState = iota
	PaymentSucceeded
	PaymentFailed
)

func (s PaymentState) String() string {
	switch s {
	case PaymentSucceeded:
		return "succeeded"
	case PaymentFailed:
		return "failed"
	default:
		return "in_flight"
	}
}

type PaymentStatus struct {
	State         PaymentState
	FailureReason string
	Fee           int64
}

type InvoiceStatus struct {
	ID        string
	Confirmed bool
	Received  int64
}

type ChainOutput struct {
	Address string
	Tokens  int64
}

type ChainTransaction struct {
	ID              string
	Tokens          int64
	IsOutgoing      bool
	IsConfirmed     bool
	OutputAddresses []string
	Outputs         []ChainOutput
}

type NodeInfo struct {
	IdentityPubkey   string
	Alias            string
	BlockHeight      uint32
	SyncedToChain    bool
	ActiveChannels   uint32
	InactiveChannels uint32
}
