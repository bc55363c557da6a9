package crypt

import "fmt"

// ErrorCode identifies the category of a crypt error.
type ErrorCode int

const (
	// CodeInvalidKeyLength indicates key bytes that do not match the key size.
	CodeInvalidKeyLength ErrorCode = iota
	// CodeInvalidIVLength indicates an initialization vector that is not one block.
	CodeInvalidIVLength
	// CodeEncryptionFailed indicates input that cannot be encrypted, such as
	// a length that is not a multiple of the block size in an unpadded mode.
	CodeEncryptionFailed
	// CodeDecryptionFailed indicates ciphertext that cannot be decrypted.
	CodeDecryptionFailed
	// CodePadding indicates malformed PKCS#7 padding after CBC decryption.
	CodePadding
	// CodeUnsupportedFilter indicates an unknown crypt filter name.
	CodeUnsupportedFilter
)

// Error is the error type returned by the crypt package. Expected and Actual
// are set for CodeInvalidKeyLength and CodeInvalidIVLength.
type Error struct {
	Code     ErrorCode
	Message  string
	Expected int
	Actual   int
	Cause    error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error with the same code, so errors.Is(err, ErrPadding)
// works regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Sentinels for errors.Is.
var (
	ErrInvalidKeyLength  = &Error{Code: CodeInvalidKeyLength}
	ErrInvalidIVLength   = &Error{Code: CodeInvalidIVLength}
	ErrEncryptionFailed  = &Error{Code: CodeEncryptionFailed}
	ErrDecryptionFailed  = &Error{Code: CodeDecryptionFailed}
	ErrPadding           = &Error{Code: CodePadding}
	ErrUnsupportedFilter = &Error{Code: CodeUnsupportedFilter}
)

func newError(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func wrapError(code ErrorCode, msg string, cause error) *Error {
	return &Error{Code: code, Message: msg, Cause: cause}
}

func keyLengthError(expected, actual int) *Error {
	return &Error{
		Code:     CodeInvalidKeyLength,
		Message:  fmt.Sprintf("crypt: invalid key length: expected %d, got %d", expected, actual),
		Expected: expected,
		Actual:   actual,
	}
}

func ivLengthError(actual int) *Error {
	return &Error{
		Code:     CodeInvalidIVLength,
		Message:  fmt.Sprintf("crypt: invalid IV length: expected %d, got %d", BlockSize, actual),
		Expected: BlockSize,
		Actual:   actual,
	}
}
