package auth

import "fmt"

// ErrorCode identifies why a token was refused. Codes are for logs and
// metrics; clients only ever see a generic "invalid token".
type ErrorCode string

const (
	CodeMalformed         ErrorCode = "MALFORMED"
	CodeBadSignature      ErrorCode = "BAD_SIGNATURE"
	CodeExpired           ErrorCode = "EXPIRED"
	CodeAlgorithmMismatch ErrorCode = "ALGORITHM_MISMATCH"
)

// TokenError is returned by Decode. Two TokenErrors match under errors.Is
// when their codes are equal, so callers can test against the sentinels
// below.
type TokenError struct {
	Code     ErrorCode
	Message  string
	Internal error
}

func (e *TokenError) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Internal)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *TokenError) Unwrap() error { return e.Internal }

func (e *TokenError) Is(target error) bool {
	t, ok := target.(*TokenError)
	return ok && t.Code == e.Code
}

var (
	ErrMalformed         = &TokenError{Code: CodeMalformed, Message: "token is malformed"}
	ErrBadSignature      = &TokenError{Code: CodeBadSignature, Message: "token signature is invalid"}
	ErrExpired           = &TokenError{Code: CodeExpired, Message: "token has expired"}
	ErrAlgorithmMismatch = &TokenError{Code: CodeAlgorithmMismatch, Message: "unexpected signing algorithm"}
)

func newTokenError(code ErrorCode, msg string, internal error) *TokenError {
	return &TokenError{Code: code, Message: msg, Internal: internal}
}
