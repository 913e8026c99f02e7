package common

const (
	EntryTypeInvoice        = "invoice"
	EntryTypePayment        = "payment"
	EntryTypeEarn           = "earn"
	EntryTypeOnchainReceipt = "onchain_receipt"

	TransactionTypeUnconfirmedInvoice = "unconfirmed-invoice"
	TransactionTypePaidInvoice        = "paid-invoice"
	TransactionTypeInflightPayment    = "inflight-payment"
	TransactionTypePayment            = "payment"
	TransactionTypeEarn               = "earn"
	TransactionTypeOnchainReceipt     = "onchain_receipt"

	AccountRootLiabilities = "Liabilities"
	AccountCustomer        = "Customer"
	DefaultReserveAccount  = "Assets:Reserve:Lightning"
	DefaultCurrency        = "BTC"

	PaymentStatusSuccess = "success"
	PaymentStatusPending = "pending"
	PaymentStatusFailure = "failure"

	DescriptionPending         = "Waiting for payment confirmation"
	DescriptionPaymentSent     = "Payment sent"
	DescriptionPaymentReceived = "Payment received"
	DescriptionEarn            = "Earn"

	NotificationInvoicePaid      = "invoice.incoming.settled"
	NotificationOnchainPending   = "onchain.incoming.pending"
	NotificationOnchainConfirmed = "onchain.incoming.confirmed"
	NotificationOnchainSent      = "onchain.outgoing.confirmed"
	NotificationPaymentSettled   = "payment.outgoing.settled"
	NotificationPaymentFailed    = "payment.outgoing.error"
)
