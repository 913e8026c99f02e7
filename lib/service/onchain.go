package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/getAlby/lnledger/common"
	"github.com/getAlby/lnledger/ledger"
	"github.com/getAlby/lnledger/lnd"
	"github.com/getsentry/sentry-go"
)

// GetOnChainAddress asks the node for a fresh address and adds it to the
// user's address set.
func (svc *LndhubService) GetOnChainAddress(ctx context.Context, userID int64) (string, error) {
	address, err := svc.LndClient.CreateChainAddress(ctx)
	if err != nil {
		return "", &UpstreamUnavailableError{Op: "create chain address", Err: err}
	}
	params, err := svc.Config.NetworkParams()
	if err != nil {
		return "", err
	}
	decoded, err := btcutil.DecodeAddress(address, params)
	if err != nil || !decoded.IsForNet(params) {
		return "", fmt.Errorf("node returned address %s that is not valid on %s", address, params.Name)
	}
	if err := svc.Records.AddOnchainAddress(ctx, userID, decoded.EncodeAddress()); err != nil {
		return "", err
	}
	return decoded.EncodeAddress(), nil
}

// UpdateOnchainPayments credits confirmed incoming transactions that pay one
// of the user's addresses, once per transaction.
func (svc *LndhubService) UpdateOnchainPayments(ctx context.Context, userID int64) error {
	addresses, err := svc.Records.OnchainAddresses(ctx, userID)
	if err != nil {
		return err
	}
	if len(addresses) == 0 {
		return nil
	}
	owned := make(map[string]struct{}, len(addresses))
	for _, address := range addresses {
		owned[address] = struct{}{}
	}

	txs, err := svc.LndClient.ListChainTransactions(ctx)
	if err != nil {
		return &UpstreamUnavailableError{Op: "list chain transactions", Err: err}
	}

	account := UserAccount(userID)
	for _, tx := range txs {
		if tx.IsOutgoing || !tx.IsConfirmed {
			continue
		}
		amount, matched := creditedAmount(tx, owned)
		if !matched || amount <= 0 {
			continue
		}
		exists, err := svc.Book.Exists(ctx, ledger.Filter{Account: account, Hash: tx.ID, Type: common.EntryTypeOnchainReceipt})
		if err != nil {
			return err
		}
		if exists {
			continue
		}

		entry := ledger.NewEntry("", svc.currency()).
			Credit(account, amount).
			Debit(svc.reserveAccount(), amount).
			WithMeta(ledger.Meta{Hash: tx.ID, Type: common.EntryTypeOnchainReceipt}).
			WithIdempotencyKey(fmt.Sprintf("%s:%s:%s", common.EntryTypeOnchainReceipt, tx.ID, account)).
			Entry()
		if _, err := svc.Book.Commit(ctx, entry); err != nil {
			if errors.Is(err, ledger.ErrDuplicateEntry) {
				continue
			}
			reconErr := &InternalReconciliationError{Op: "credit onchain receipt", Hash: tx.ID, Err: err}
			svc.Logger.Error(reconErr)
			sentry.CaptureException(reconErr)
			return reconErr
		}
		svc.Logger.Infof("Onchain receipt credited: user_id:%v txid:%s amount:%d", userID, tx.ID, amount)
		svc.notify(ctx, userID, common.NotificationOnchainConfirmed, map[string]interface{}{
			"txid":   tx.ID,
			"amount": amount,
		})
	}
	return nil
}

// creditedAmount sums the outputs paying owned addresses. Without per-output
// details the whole transaction amount is credited on any address match.
func creditedAmount(tx lnd.ChainTransaction, owned map[string]struct{}) (int64, bool) {
	if len(tx.Outputs) > 0 {
		var amount int64
		matched := false
		for _, output := range tx.Outputs {
			if _, ok := owned[output.Address]; ok {
				amount += output.Tokens
				matched = true
			}
		}
		return amount, matched
	}
	for _, address := range tx.OutputAddresses {
		if _, ok := owned[address]; ok {
			return tx.Tokens, true
		}
	}
	return 0, false
}
