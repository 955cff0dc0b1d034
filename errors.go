package broker

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Error taxonomy shared by every adapter. Errors returned across the adapter
// boundary are *ErrorResponse values that unwrap to one of these.
var (
	// ErrInvalidSymbolQuery is returned when a symbol lookup has an empty symbol
	// or an exchange/segment the broker does not support
	ErrInvalidSymbolQuery = errors.New("invalid symbol query")

	// ErrSymbolNotFound is returned when a symbol is still missing after a reference data refresh
	ErrSymbolNotFound = errors.New("symbol not found")

	// ErrReferenceDataUnavailable is returned when the reference data refresh itself fails
	ErrReferenceDataUnavailable = errors.New("reference data unavailable")

	// ErrInvalidOrderField is returned when an order field fails validation and has no safe default
	ErrInvalidOrderField = errors.New("invalid order field")

	// ErrNotAuthenticated is returned when an operation is attempted without a live session
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrUpstream is returned when the broker answered with a structured failure
	ErrUpstream = errors.New("upstream error")

	// ErrTransport is returned when the request produced no interpretable response
	ErrTransport = errors.New("transport error")

	// ErrParse is returned when the broker payload has an unexpected shape
	ErrParse = errors.New("parse error")
)

// Status codes carried by every normalized response.
const (
	StatusSuccess = 0
	StatusFailure = 1
)

// Error codes used when the upstream broker did not supply one.
const (
	CodeInvalidSymbolQuery       = "INVALID_SYMBOL_QUERY"
	CodeSymbolNotFound           = "SYMBOL_NOT_FOUND"
	CodeReferenceDataUnavailable = "REFERENCE_DATA_UNAVAILABLE"
	CodeInvalidOrderField        = "INVALID_ORDER_FIELD"
	CodeNotAuthenticated         = "NOT_AUTHENTICATED"
	CodeUpstream                 = "UPSTREAM_ERROR"
	CodeTransport                = "TRANSPORT_ERROR"
	CodeParse                    = "PARSE_ERROR"
	CodeInternal                 = "INTERNAL_ERROR"
)

// ErrorResponse is the normalized failure returned by every adapter operation.
// It implements error and unwraps to the taxonomy sentinel it was built from.
type ErrorResponse struct {
	Status    int
	Message   string
	ErrorCode string
	// Data is the raw upstream payload, kept for debugging
	Data json.RawMessage

	kind error
}

// NewErrorResponse builds an ErrorResponse of the given kind.
func NewErrorResponse(kind error, code, message string, data json.RawMessage) *ErrorResponse {
	if code == "" {
		code = codeFor(kind)
	}
	if message == "" && kind != nil {
		message = kind.Error()
	}
	return &ErrorResponse{
		Status:    StatusFailure,
		Message:   message,
		ErrorCode: code,
		Data:      data,
		kind:      kind,
	}
}

// UpstreamFailure builds the ErrorResponse for a structured broker failure.
func UpstreamFailure(code, message string, data json.RawMessage) *ErrorResponse {
	if message == "" {
		message = "broker returned an error"
	}
	return NewErrorResponse(ErrUpstream, code, message, data)
}

// ParseFailure builds the ErrorResponse for a payload that could not be parsed.
// The raw payload is echoed back in Data.
func ParseFailure(brokerName string, raw []byte) *ErrorResponse {
	return NewErrorResponse(ErrParse, CodeParse, fmt.Sprintf("unable to parse %s response", brokerName), RawData(raw))
}

func (e *ErrorResponse) Error() string {
	return fmt.Sprintf("%s: %s", e.ErrorCode, e.Message)
}

func (e *ErrorResponse) Unwrap() error {
	return e.kind
}

// AsErrorResponse classifies any error into an ErrorResponse. Errors that are
// already ErrorResponses are returned unchanged.
func AsErrorResponse(err error) *ErrorResponse {
	if err == nil {
		return nil
	}

	var er *ErrorResponse
	if errors.As(err, &er) {
		return er
	}

	for _, kind := range []error{
		ErrInvalidSymbolQuery,
		ErrSymbolNotFound,
		ErrReferenceDataUnavailable,
		ErrInvalidOrderField,
		ErrNotAuthenticated,
		ErrUpstream,
		ErrTransport,
		ErrParse,
	} {
		if errors.Is(err, kind) {
			return NewErrorResponse(kind, codeFor(kind), err.Error(), nil)
		}
	}

	return &ErrorResponse{
		Status:    StatusFailure,
		Message:   err.Error(),
		ErrorCode: CodeInternal,
		kind:      err,
	}
}

// RawData turns a raw payload into a JSON value suitable for ErrorResponse.Data.
// Payloads that are not valid JSON are carried as a JSON string.
func RawData(raw []byte) json.RawMessage {
	if len(raw) == 0 {
		return nil
	}
	if json.Valid(raw) {
		out := make([]byte, len(raw))
		copy(out, raw)
		return out
	}
	quoted, err := json.Marshal(string(raw))
	if err != nil {
		return nil
	}
	return quoted
}

func codeFor(kind error) string {
	switch kind {
	case ErrInvalidSymbolQuery:
		return CodeInvalidSymbolQuery
	case ErrSymbolNotFound:
		return CodeSymbolNotFound
	case ErrReferenceDataUnavailable:
		return CodeReferenceDataUnavailable
	case ErrInvalidOrderField:
		return CodeInvalidOrderField
	case ErrNotAuthenticated:
		return CodeNotAuthenticated
	case ErrUpstream:
		return CodeUpstream
	case ErrTransport:
		return CodeTransport
	case ErrParse:
		return CodeParse
	default:
		return CodeInternal
	}
}
