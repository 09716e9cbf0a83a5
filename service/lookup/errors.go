package lookup

import "errors"

// UnknownErrorMessage is reported for failures that carry no usable message.
const UnknownErrorMessage = "Unknown Error"

// Steps of a lookup, used as OperationError.Op.
const (
	OpGetTransactionData   = "get_transaction_data"
	OpParseTransactionData = "parse_transaction_data"
	OpGetTransactionStatus = "get_transaction_status"
	OpGetTransaction       = "get_transaction"
	OpDecodeTags           = "decode_tags"
	OpGetBlock             = "get_block"
)

var (
	errNoStatus      = errors.New("gateway returned no status")
	errNoTransaction = errors.New("gateway returned no transaction")
	errNoBlock       = errors.New("gateway returned no block")
)

// OperationError is a lookup failure at a known step.
// Its message is the message of the underlying error, so callers see what
// the gateway or the parser reported; Op is for logs and metrics.
type OperationError struct {
	Op  string
	Err error
}

func (e *OperationError) Error() string {
	if e == nil || e.Err == nil {
		return UnknownErrorMessage
	}
	return e.Err.Error()
}

func (e *OperationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// FailureMessage returns the caller-visible message for a failed lookup.
// v is either an error returned by Lookup or a value recovered from a panic;
// anything that is not a non-nil error maps to UnknownErrorMessage.
func FailureMessage(v any) string {
	err, ok := v.(error)
	if !ok || err == nil {
		return UnknownErrorMessage
	}
	return err.Error()
}

// FailedOp returns the step a lookup failed at, or "unknown".
func FailedOp(err error) string {
	var opErr *OperationError
	if errors.As(err, &opErr) && opErr != nil {
		return opErr.Op
	}
	return "unknown"
}
