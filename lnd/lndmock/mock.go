// Package lndmock is an in-memory Lightning node for tests. Invoices it
// creates are real BOLT11 strings signed with a regtest key.
package lndmock

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	btcec "github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/getAlby/lnledger/lnd"
	"github.com/lightningnetwork/lnd/lnrpc"
	"github.com/lightningnetwork/lnd/lnwire"
	"github.com/lightningnetwork/lnd/zpay32"
)

var ErrUnavailable = errors.New("mock lnd unavailable")

// PaymentBehaviour scripts what happens when a route payment is dispatched.
type PaymentBehaviour struct {
	Delay         time.Duration
	Fail          bool
	FailureReason string
}

type MockLND struct {
	mu       sync.Mutex
	privKey  *btcec.PrivateKey
	pubKey   *btcec.PublicKey
	Fee      int64
	NoRoute  bool
	Offline  bool
	Payment  PaymentBehaviour
	payments map[string]*lnd.PaymentStatus
	invoices map[string]*lnd.InvoiceStatus
	chainTxs []lnd.ChainTransaction

	PayCalls     int
	invoiceChan  chan *lnd.InvoiceStatus
	chainTxsChan chan *lnd.ChainTransaction
}

func NewMockLND(privkey string, fee int64) (*MockLND, error) {
	privKeyBytes, err := hex.DecodeString(privkey)
	if err != nil {
		return nil, err
	}
	privKey, pubKey := btcec.PrivKeyFromBytes(privKeyBytes)
	return &MockLND{
		privKey:      privKey,
		pubKey:       pubKey,
		Fee:          fee,
		payments:     map[string]*lnd.PaymentStatus{},
		invoices:     map[string]*lnd.InvoiceStatus{},
		invoiceChan:  make(chan *lnd.InvoiceStatus, 16),
		chainTxsChan: make(chan *lnd.ChainTransaction, 16),
	}, nil
}

func (mlnd *MockLND) signMsg(msg []byte) ([]byte, error) {
	hash := sha256.Sum256(msg)
	return ecdsa.SignCompact(mlnd.privKey, hash[:], true)
}

func (mlnd *MockLND) offline() error {
	mlnd.mu.Lock()
	defer mlnd.mu.Unlock()
	if mlnd.Offline {
		return ErrUnavailable
	}
	return nil
}

// Pubkey is the node identity, hex encoded.
func (mlnd *MockLND) Pubkey() string {
	return hex.EncodeToString(mlnd.pubKey.SerializeCompressed())
}

func (mlnd *MockLND) CreateInvoice(ctx context.Context, amount int64, memo string, expiry int64) (*lnd.Invoice, error) {
	if err := mlnd.offline(); err != nil {
		return nil, err
	}
	preimage := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, preimage); err != nil {
		return nil, err
	}
	pr, hash, err := mlnd.encode(amount, memo, preimage, expiry)
	if err != nil {
		return nil, err
	}
	mlnd.mu.Lock()
	mlnd.invoices[hash] = &lnd.InvoiceStatus{ID: hash}
	mlnd.mu.Unlock()
	return &lnd.Invoice{ID: hash, PaymentRequest: pr, Amount: amount, Memo: memo}, nil
}

// ExternalInvoice returns a payment request as if issued by another node.
func (mlnd *MockLND) ExternalInvoice(amount int64, memo string) (string, string, error) {
	preimage := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, preimage); err != nil {
		return "", "", err
	}
	return mlnd.encode(amount, memo, preimage, 3600)
}

func (mlnd *MockLND) encode(amount int64, memo string, preimage []byte, expiry int64) (string, string, error) {
	hash := sha256.Sum256(preimage)
	msat := lnwire.MilliSatoshi(1000 * amount)
	invoice := &zpay32.Invoice{
		Net:         &chaincfg.RegressionNetParams,
		MilliSat:    &msat,
		Timestamp:   time.Now(),
		PaymentHash: &hash,
		PaymentAddr: &[32]byte{1},
		Features: &lnwire.FeatureVector{
			RawFeatureVector: &lnwire.RawFeatureVector{},
		},
	}
	if amount == 0 {
		invoice.MilliSat = nil
	}
	zpay32.Expiry(time.Duration(expiry) * time.Second)(invoice)
	invoice.Description = &memo
	pr, err := invoice.Encode(zpay32.MessageSigner{
		SignCompact: mlnd.signMsg,
	})
	if err != nil {
		return "", "", err
	}
	return pr, hex.EncodeToString(hash[:]), nil
}

func (mlnd *MockLND) DecodeInvoice(ctx context.Context, paymentRequest string) (*lnd.DecodedInvoice, error) {
	if err := mlnd.offline(); err != nil {
		return nil, err
	}
	inv, err := zpay32.Decode(paymentRequest, &chaincfg.RegressionNetParams)
	if err != nil {
		return nil, err
	}
	result := &lnd.DecodedInvoice{
		ID:          hex.EncodeToString(inv.PaymentHash[:]),
		Destination: hex.EncodeToString(inv.Destination.SerializeCompressed()),
	}
	if inv.MilliSat != nil {
		result.Tokens = int64(*inv.MilliSat) / 1000
	}
	if inv.Description != nil {
		result.Description = *inv.Description
	}
	if inv.PaymentAddr != nil {
		result.PaymentAddr = inv.PaymentAddr[:]
	}
	return result, nil
}

func (mlnd *MockLND) ProbeRoute(ctx context.Context, destination string, amount int64, paymentAddr []byte) (*lnd.Route, error) {
	if err := mlnd.offline(); err != nil {
		return nil, err
	}
	mlnd.mu.Lock()
	defer mlnd.mu.Unlock()
	if mlnd.NoRoute {
		return nil, lnd.ErrNoRoute
	}
	return &lnd.Route{
		Fee:    mlnd.Fee,
		Tokens: amount + mlnd.Fee,
		Raw: &lnrpc.Route{
			TotalFees:     mlnd.Fee,
			TotalAmt:      amount + mlnd.Fee,
			TotalFeesMsat: 1000 * mlnd.Fee,
			TotalAmtMsat:  1000 * (amount + mlnd.Fee),
		},
	}, nil
}

// PayViaRoute resolves after Payment.Delay. Until then the payment reports in flight.
func (mlnd *MockLND) PayViaRoute(ctx context.Context, id string, route *lnd.Route) (*lnd.PaymentStatus, error) {
	mlnd.mu.Lock()
	mlnd.PayCalls++
	behaviour := mlnd.Payment
	mlnd.payments[id] = &lnd.PaymentStatus{State: lnd.PaymentInFlight}
	mlnd.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(behaviour.Delay):
	}

	status := &lnd.PaymentStatus{State: lnd.PaymentSucceeded, Fee: route.Fee}
	if behaviour.Fail {
		status = &lnd.PaymentStatus{State: lnd.PaymentFailed, FailureReason: behaviour.FailureReason}
	}
	mlnd.SetPaymentStatus(id, status)
	return status, nil
}

func (mlnd *MockLND) SetPaymentStatus(id string, status *lnd.PaymentStatus) {
	mlnd.mu.Lock()
	defer mlnd.mu.Unlock()
	mlnd.payments[id] = status
}

func (mlnd *MockLND) GetPaymentStatus(ctx context.Context, id string) (*lnd.PaymentStatus, error) {
	if err := mlnd.offline(); err != nil {
		return nil, err
	}
	mlnd.mu.Lock()
	defer mlnd.mu.Unlock()
	status, ok := mlnd.payments[id]
	if !ok {
		return nil, fmt.Errorf("payment %s not found", id)
	}
	copied := *status
	return &copied, nil
}

// SettleInvoice marks the invoice paid and publishes it to invoice subscribers.
func (mlnd *MockLND) SettleInvoice(id string, amount int64) {
	status := &lnd.InvoiceStatus{ID: id, Confirmed: true, Received: amount}
	mlnd.mu.Lock()
	mlnd.invoices[id] = status
	mlnd.mu.Unlock()
	select {
	case mlnd.invoiceChan <- status:
	default:
	}
}

func (mlnd *MockLND) GetInvoiceStatus(ctx context.Context, id string) (*lnd.InvoiceStatus, error) {
	if err := mlnd.offline(); err != nil {
		return nil, err
	}
	mlnd.mu.Lock()
	defer mlnd.mu.Unlock()
	status, ok := mlnd.invoices[id]
	if !ok {
		return nil, fmt.Errorf("invoice %s not found", id)
	}
	copied := *status
	return &copied, nil
}

// CreateChainAddress returns a fresh regtest p2wpkh address.
func (mlnd *MockLND) CreateChainAddress(ctx context.Context) (string, error) {
	if err := mlnd.offline(); err != nil {
		return "", err
	}
	program := make([]byte, 20)
	if _, err := io.ReadFull(rand.Reader, program); err != nil {
		return "", err
	}
	addr, err := btcutil.NewAddressWitnessPubKeyHash(program, &chaincfg.RegressionNetParams)
	if err != nil {
		return "", err
	}
	return addr.EncodeAddress(), nil
}

// AddChainTransaction records tx and publishes it to transaction subscribers.
func (mlnd *MockLND) AddChainTransaction(tx lnd.ChainTransaction) {
	mlnd.mu.Lock()
	mlnd.chainTxs = append(mlnd.chainTxs, tx)
	mlnd.mu.Unlock()
	select {
	case mlnd.chainTxsChan <- &tx:
	default:
	}
}

func (mlnd *MockLND) ListChainTransactions(ctx context.Context) ([]lnd.ChainTransaction, error) {
	if err := mlnd.offline(); err != nil {
		return nil, err
	}
	mlnd.mu.Lock()
	defer mlnd.mu.Unlock()
	return append([]lnd.ChainTransaction(nil), mlnd.chainTxs...), nil
}

type invoiceSub struct {
	ctx context.Context
	ch  chan *lnd.InvoiceStatus
}

func (s *invoiceSub) Recv() (*lnd.InvoiceStatus, error) {
	select {
	case <-s.ctx.Done():
		return nil, s.ctx.Err()
	case inv := <-s.ch:
		return inv, nil
	}
}

func (mlnd *MockLND) SubscribeInvoices(ctx context.Context) (lnd.SubscribeInvoicesWrapper, error) {
	return &invoiceSub{ctx: ctx, ch: mlnd.invoiceChan}, nil
}

type transactionSub struct {
	ctx context.Context
	ch  chan *lnd.ChainTransaction
}

func (s *transactionSub) Recv() (*lnd.ChainTransaction, error) {
	select {
	case <-s.ctx.Done():
		return nil, s.ctx.Err()
	case tx := <-s.ch:
		return tx, nil
	}
}

func (mlnd *MockLND) SubscribeTransactions(ctx context.Context) (lnd.SubscribeTransactionsWrapper, error) {
	return &transactionSub{ctx: ctx, ch: mlnd.chainTxsChan}, nil
}

func (mlnd *MockLND) GetInfo(ctx context.Context) (*lnd.NodeInfo, error) {
	if err := mlnd.offline(); err != nil {
		return nil, err
	}
	return &lnd.NodeInfo{
		IdentityPubkey:   mlnd.Pubkey(),
		Alias:            "Mocky McMockface",
		BlockHeight:      1000,
		SyncedToChain:    true,
		ActiveChannels:   10,
		InactiveChannels: 3,
	}, nil
}

func (mlnd *MockLND) SetOffline(offline bool) {
	mlnd.mu.Lock()
	defer mlnd.mu.Unlock()
	mlnd.Offline = offline
}

var _ lnd.LightningClientWrapper = (*MockLND)(nil)
