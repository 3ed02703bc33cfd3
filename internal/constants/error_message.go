package constants

const (
	ErrCodeInsufficientBalance = "INSUFFICIENT_BALANCE"
	ErrCodeUnavailable         = "UNAVAILABLE"
	ErrCodeUnknownCustomer     = "UNKNOWN_CUSTOMER"
	ErrCodeUnmatchedRefund     = "UNMATCHED_REFUND"
	ErrCodePartialRefund       = "PARTIAL_REFUND"
	ErrCodeAccountNotFound     = "ACCOUNT_NOT_FOUND"
	ErrCodeAccountRetired      = "ACCOUNT_RETIRED"
	ErrCodeInvalidAmount       = "INVALID_AMOUNT"
	ErrCodeTransactionNotFound = "TRANSACTION_NOT_FOUND"
	ErrCodeDeadLetterNotFound  = "DEAD_LETTER_NOT_FOUND"
	ErrCodeDeadLetterClosed    = "DEAD_LETTER_CLOSED"
	ErrCodeUnknownPrice        = "UNKNOWN_PRICE"
	ErrCodeCustomerMismatch    = "CUSTOMER_MISMATCH"
	ErrCodeProviderFailed      = "PROVIDER_FAILED"
	ErrCodeProviderTimeout     = "PROVIDER_TIMEOUT"
	ErrCodeOperationFailed     = "OPERATION_FAILED"
	ErrCodeValidationFailed    = "VALIDATION_FAILED"
)

const (
	ErrMsgInsufficientBalance = "insufficient credits"
	ErrMsgUnavailable         = "ledger temporarily unavailable"
	ErrMsgUnknownCustomer     = "payment customer could not be matched to a user"
	ErrMsgUnmatchedRefund     = "refund does not match any recorded purchase"
	ErrMsgPartialRefund       = "partial refunds need manual reconciliation"
	ErrMsgAccountNotFound     = "credit account not found"
	ErrMsgAccountRetired      = "credit account is retired"
	ErrMsgInvalidAmount       = "amount must be a positive number of credits"
	ErrMsgTransactionNotFound = "transaction not found"
	ErrMsgDeadLetterNotFound  = "dead letter not found"
	ErrMsgDeadLetterClosed    = "dead letter is already closed"
	ErrMsgUnknownPrice        = "price is not for sale"
	ErrMsgCustomerMismatch    = "customer does not belong to this user"
	ErrMsgProviderFailed      = "payment provider request failed"
	ErrMsgProviderTimeout     = "payment provider did not answer in time"
	ErrMsgOperationFailed     = "operation failed"
	ErrMsgValidationFailed    = "request validation failed"
)

var errorMessages = map[string]string{
	ErrCodeInsufficientBalance: ErrMsgInsufficientBalance,
	ErrCodeUnavailable:         ErrMsgUnavailable,
	ErrCodeUnknownCustomer:     ErrMsgUnknownCustomer,
	ErrCodeUnmatchedRefund:     ErrMsgUnmatchedRefund,
	ErrCodePartialRefund:       ErrMsgPartialRefund,
	ErrCodeAccountNotFound:     ErrMsgAccountNotFound,
	ErrCodeAccountRetired:      ErrMsgAccountRetired,
	ErrCodeInvalidAmount:       ErrMsgInvalidAmount,
	ErrCodeTransactionNotFound: ErrMsgTransactionNotFound,
	ErrCodeDeadLetterNotFound:  ErrMsgDeadLetterNotFound,
	ErrCodeDeadLetterClosed:    ErrMsgDeadLetterClosed,
	ErrCodeUnknownPrice:        ErrMsgUnknownPrice,
	ErrCodeCustomerMismatch:    ErrMsgCustomerMismatch,
	ErrCodeProviderFailed:      ErrMsgProviderFailed,
	ErrCodeProviderTimeout:     ErrMsgProviderTimeout,
	ErrCodeOperationFailed:     ErrMsgOperationFailed,
	ErrCodeValidationFailed:    ErrMsgValidationFailed,
}

func GetErrorMessage(code string) string {
	msg, exists := errorMessages[code]
	if !exists {
		return ""
	}
	return msg
}
