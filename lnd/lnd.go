package lnd

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/lightningnetwork/lnd/lnrpc"
	"github.com/lightningnetwork/lnd/lnrpc/routerrpc"
	"github.com/lightningnetwork/lnd/macaroons"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"gopkg.in/macaroon.v2"
)

// LNDoptions are the options for the connection to the lnd node.
type LNDoptions struct {
	Address      string
	CertFile     string
	CertHex      string
	MacaroonFile string
	MacaroonHex  string
	RPCTimeout   time.Duration
}

type LNDWrapper struct {
	client         lnrpc.LightningClient
	routerClient   routerrpc.RouterClient
	timeout        time.Duration
	IdentityPubkey string
}

func NewLNDclient(lndOptions LNDoptions) (result *LNDWrapper, err error) {
	// Get credentials either from a hex string, a file or the system's certificate store
	var creds credentials.TransportCredentials
	// if a hex string is provided
	if lndOptions.CertHex != "" {
		cp := x509.NewCertPool()
		cert, err := hex.DecodeString(lndOptions.CertHex)
		if err != nil {
			return nil, err
		}
		cp.AppendCertsFromPEM(cert)
		creds = credentials.NewClientTLSFromCert(cp, "")
		// if a path to a cert file is provided
	} else if lndOptions.CertFile != "" {
		credsFromFile, err := credentials.NewClientTLSFromFile(lndOptions.CertFile, "")
		if err != nil {
			return nil, err
		}
		creds = credsFromFile // make it available outside of the else if block
	} else {
		creds = credentials.NewTLS(&tls.Config{})
	}
	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(creds),
	}

	var macaroonData []byte
	if lndOptions.MacaroonHex != "" {
		macBytes, err := hex.DecodeString(lndOptions.MacaroonHex)
		if err != nil {
			return nil, err
		}
		macaroonData = macBytes
	} else if lndOptions.MacaroonFile != "" {
		macBytes, err := os.ReadFile(lndOptions.MacaroonFile)
		if err != nil {
			return nil, err
		}
		macaroonData = macBytes // make it available outside of the else if block
	} else {
		return nil, errors.New("LND macaroon is missing")
	}

	mac := &macaroon.Macaroon{}
	if err := mac.UnmarshalBinary(macaroonData); err != nil {
		return nil, err
	}
	macCred, err := macaroons.NewMacaroonCredential(mac)
	if err != nil {
		return nil, err
	}
	opts = append(opts, grpc.WithPerRPCCredentials(macCred))

	conn, err := grpc.Dial(lndOptions.Address, opts...)
	if err != nil {
		return nil, err
	}

	timeout := lndOptions.RPCTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &LNDWrapper{
		client:       lnrpc.NewLightningClient(conn),
		routerClient: routerrpc.NewRouterClient(conn),
		timeout:      timeout,
	}, nil
}

func InitLNDClient(c *Config, ctx context.Context) (*LNDWrapper, error) {
	client, err := NewLNDclient(LNDoptions{
		Address:      c.LNDAddress,
		MacaroonFile: c.LNDMacaroonFile,
		MacaroonHex:  c.LNDMacaroonHex,
		CertFile:     c.LNDCertFile,
		CertHex:      c.LNDCertHex,
		RPCTimeout:   time.Duration(c.LNDRPCTimeout) * time.Millisecond,
	})
	if err != nil {
		return nil, err
	}
	info, err := client.GetInfo(ctx)
	if err != nil {
		return nil, err
	}
	client.IdentityPubkey = info.IdentityPubkey
	return client, nil
}

func (wrapper *LNDWrapper) rpcContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, wrapper.timeout)
}

func (wrapper *LNDWrapper) CreateInvoice(ctx context.Context, amount int64, memo string, expiry int64) (*Invoice, error) {
	ctx, cancel := wrapper.rpcContext(ctx)
	defer cancel()
	resp, err := wrapper.client.AddInvoice(ctx, &lnrpc.Invoice{
		Memo:   memo,
		Value:  amount,
		Expiry: expiry,
	})
	if err != nil {
		return nil, err
	}
	return &Invoice{
		ID:             hex.EncodeToString(resp.RHash),
		PaymentRequest: resp.PaymentRequest,
		Amount:         amount,
		Memo:           memo,
	}, nil
}

func (wrapper *LNDWrapper) DecodeInvoice(ctx context.Context, paymentRequest string) (*DecodedInvoice, error) {
	ctx, cancel := wrapper.rpcContext(ctx)
	defer cancel()
	payReq, err := wrapper.client.DecodePayReq(ctx, &lnrpc.PayReqString{PayReq: paymentRequest})
	if err != nil {
		return nil, err
	}
	return decodedInvoice(payReq), nil
}

func decodedInvoice(payReq *lnrpc.PayReq) *DecodedInvoice {
	return &DecodedInvoice{
		ID:          payReq.PaymentHash,
		Destination: payReq.Destination,
		Description: payReq.Description,
		Tokens:      payReq.NumSatoshis,
		PaymentAddr: payReq.PaymentAddr,
	}
}

func (wrapper *LNDWrapper) ProbeRoute(ctx context.Context, destination string, amount int64, paymentAddr []byte) (*Route, error) {
	ctx, cancel := wrapper.rpcContext(ctx)
	defer cancel()
	resp, err := wrapper.client.QueryRoutes(ctx, &lnrpc.QueryRoutesRequest{
		PubKey: destination,
		Amt:    amount,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoRoute, err)
	}
	if len(resp.Routes) == 0 {
		return nil, ErrNoRoute
	}
	return toRoute(resp.Routes[0], paymentAddr), nil
}

// toRoute attaches the invoice's payment address to the final hop, which the
// receiving node requires for single-shot route payments.
func toRoute(route *lnrpc.Route, paymentAddr []byte) *Route {
	if len(paymentAddr) > 0 && len(route.Hops) > 0 {
		route.Hops[len(route.Hops)-1].MppRecord = &lnrpc.MPPRecord{
			PaymentAddr:  paymentAddr,
			TotalAmtMsat: route.TotalAmtMsat - route.TotalFeesMsat,
		}
	}
	return &Route{
		Fee:    route.TotalFees,
		Tokens: route.TotalAmt,
		Raw:    route,
	}
}

// PayViaRoute blocks until the HTLC resolves. The caller bounds the wait.
func (wrapper *LNDWrapper) PayViaRoute(ctx context.Context, id string, route *Route) (*PaymentStatus, error) {
	hash, err := hex.DecodeString(id)
	if err != nil {
		return nil, err
	}
	attempt, err := wrapper.routerClient.SendToRouteV2(ctx, &routerrpc.SendToRouteRequest{
		PaymentHash: hash,
		Route:       route.Raw,
	})
	if err != nil {
		return nil, err
	}
	return attemptStatus(attempt, route.Fee), nil
}

func attemptStatus(attempt *lnrpc.HTLCAttempt, fee int64) *PaymentStatus {
	switch attempt.Status {
	case lnrpc.HTLCAttempt_SUCCEEDED:
		return &PaymentStatus{State: PaymentSucceeded, Fee: fee}
	case lnrpc.HTLCAttempt_FAILED:
		reason := "FAILED"
		if attempt.Failure != nil {
			reason = attempt.Failure.Code.String()
		}
		return &PaymentStatus{State: PaymentFailed, FailureReason: reason}
	default:
		return &PaymentStatus{State: PaymentInFlight}
	}
}

func (wrapper *LNDWrapper) GetPaymentStatus(ctx context.Context, id string) (*PaymentStatus, error) {
	hash, err := hex.DecodeString(id)
	if err != nil {
		return nil, err
	}
	ctx, cancel := wrapper.rpcContext(ctx)
	defer cancel()
	stream, err := wrapper.routerClient.TrackPaymentV2(ctx, &routerrpc.TrackPaymentRequest{
		PaymentHash:       hash,
		NoInflightUpdates: true,
	})
	if err != nil {
		return nil, err
	}
	// the first message is the current state of the payment
	payment, err := stream.Recv()
	if err != nil {
		return nil, err
	}
	return PaymentStatusFromRPC(payment), nil
}

// PaymentStatusFromRPC maps a tracked or published lnrpc payment.
func PaymentStatusFromRPC(payment *lnrpc.Payment) *PaymentStatus {
	switch payment.Status {
	case lnrpc.Payment_SUCCEEDED:
		return &PaymentStatus{State: PaymentSucceeded, Fee: payment.FeeSat}
	case lnrpc.Payment_FAILED:
		return &PaymentStatus{State: PaymentFailed, FailureReason: payment.FailureReason.String()}
	default:
		return &PaymentStatus{State: PaymentInFlight}
	}
}

func (wrapper *LNDWrapper) GetInvoiceStatus(ctx context.Context, id string) (*InvoiceStatus, error) {
	hash, err := hex.DecodeString(id)
	if err != nil {
		return nil, err
	}
	ctx, cancel := wrapper.rpcContext(ctx)
	defer cancel()
	invoice, err := wrapper.client.LookupInvoice(ctx, &lnrpc.PaymentHash{RHash: hash})
	if err != nil {
		return nil, err
	}
	return InvoiceStatusFromRPC(invoice), nil
}

// InvoiceStatusFromRPC maps an lnrpc invoice, as returned by lookups and
// settle events.
func InvoiceStatusFromRPC(invoice *lnrpc.Invoice) *InvoiceStatus {
	return &InvoiceStatus{
		ID:        hex.EncodeToString(invoice.RHash),
		Confirmed: invoice.State == lnrpc.Invoice_SETTLED,
		Received:  invoice.AmtPaidSat,
	}
}

func (wrapper *LNDWrapper) CreateChainAddress(ctx context.Context) (string, error) {
	ctx, cancel := wrapper.rpcContext(ctx)
	defer cancel()
	resp, err := wrapper.client.NewAddress(ctx, &lnrpc.NewAddressRequest{
		Type: lnrpc.AddressType_WITNESS_PUBKEY_HASH,
	})
	if err != nil {
		return "", err
	}
	return resp.Address, nil
}

func (wrapper *LNDWrapper) ListChainTransactions(ctx context.Context) ([]ChainTransaction, error) {
	ctx, cancel := wrapper.rpcContext(ctx)
	defer cancel()
	resp, err := wrapper.client.GetTransactions(ctx, &lnrpc.GetTransactionsRequest{})
	if err != nil {
		return nil, err
	}
	result := make([]ChainTransaction, 0, len(resp.Transactions))
	for _, tx := range resp.Transactions {
		result = append(result, *chainTransaction(tx))
	}
	return result, nil
}

func chainTransaction(tx *lnrpc.Transaction) *ChainTransaction {
	result := &ChainTransaction{
		ID:          tx.TxHash,
		Tokens:      tx.Amount,
		IsOutgoing:  tx.Amount < 0,
		IsConfirmed: tx.NumConfirmations > 0,
	}
	if result.IsOutgoing {
		result.Tokens = -tx.Amount
	}
	for _, output := range tx.OutputDetails {
		if output.Address == "" {
			continue
		}
		result.OutputAddresses = append(result.OutputAddresses, output.Address)
		result.Outputs = append(result.Outputs, ChainOutput{Address: output.Address, Tokens: output.Amount})
	}
	if len(result.OutputAddresses) == 0 {
		result.OutputAddresses = tx.DestAddresses //nolint:staticcheck
	}
	return result
}

type invoiceSubscription struct {
	stream lnrpc.Lightning_SubscribeInvoicesClient
}

func (s *invoiceSubscription) Recv() (*InvoiceStatus, error) {
	invoice, err := s.stream.Recv()
	if err != nil {
		return nil, err
	}
	return InvoiceStatusFromRPC(invoice), nil
}

func (wrapper *LNDWrapper) SubscribeInvoices(ctx context.Context) (SubscribeInvoicesWrapper, error) {
	stream, err := wrapper.client.SubscribeInvoices(ctx, &lnrpc.InvoiceSubscription{})
	if err != nil {
		return nil, err
	}
	return &invoiceSubscription{stream: stream}, nil
}

type transactionSubscription struct {
	stream lnrpc.Lightning_SubscribeTransactionsClient
}

func (s *transactionSubscription) Recv() (*ChainTransaction, error) {
	tx, err := s.stream.Recv()
	if err != nil {
		return nil, err
	}
	return chainTransaction(tx), nil
}

func (wrapper *LNDWrapper) SubscribeTransactions(ctx context.Context) (SubscribeTransactionsWrapper, error) {
	stream, err := wrapper.client.SubscribeTransactions(ctx, &lnrpc.GetTransactionsRequest{})
	if err != nil {
		return nil, err
	}
	return &transactionSubscription{stream: stream}, nil
}

func (wrapper *LNDWrapper) GetInfo(ctx context.Context) (*NodeInfo, error) {
	ctx, cancel := wrapper.rpcContext(ctx)
	defer cancel()
	info, err := wrapper.client.GetInfo(ctx, &lnrpc.GetInfoRequest{})
	if err != nil {
		return nil, err
	}
	return &NodeInfo{
		IdentityPubkey:   info.IdentityPubkey,
		Alias:            info.Alias,
		BlockHeight:      info.BlockHeight,
		SyncedToChain:    info.SyncedToChain,
		ActiveChannels:   info.NumActiveChannels,
		InactiveChannels: info.NumInactiveChannels,
	}, nil
}

var _ LightningClientWrapper = (*LNDWrapper)(nil)
