/*
Package pdfsec reads the cryptographic payload of PDF digital signatures.

ParsePKCS7Signature turns the raw /Contents of a signature dictionary, a
BER- or DER-encoded CMS ContentInfo wrapping SignedData, into a
ParsedSignature describing the first signer. ByteRange and ComputeDigest
reproduce the document digest a signature covers. Signature verification
and certificate chain validation are left to the caller.
*/
package pdfsec

import "fmt"

// ErrorCode identifies the category of a pdfsec error.
type ErrorCode int

const (
	// CodeCMSParsing indicates a malformed ASN.1 structure or invalid CMS content.
	CodeCMSParsing ErrorCode = iota
	// CodeUnsupportedAlgorithm indicates a digest or signature OID outside the
	// recognised set.
	CodeUnsupportedAlgorithm
	// CodeInvalidByteRange indicates a malformed /ByteRange array.
	CodeInvalidByteRange
	// CodeByteRangeExceedsDocument indicates a signed range past the end of
	// the document.
	CodeByteRangeExceedsDocument
	// CodeContentsExtraction indicates a /Contents hex string that cannot be
	// decoded.
	CodeContentsExtraction
)

var codeNames = map[ErrorCode]string{
	CodeCMSParsing:               "CMS parsing failed",
	CodeUnsupportedAlgorithm:     "unsupported algorithm",
	CodeInvalidByteRange:         "invalid byte range",
	CodeByteRangeExceedsDocument: "byte range exceeds document",
	CodeContentsExtraction:       "contents extraction failed",
}

func (c ErrorCode) String() string {
	if s, ok := codeNames[c]; ok {
		return s
	}
	return fmt.Sprintf("ErrorCode(%d)", int(c))
}

// Error is the error type returned by all pdfsec operations. errors.Is
// matches it against the sentinels by Code.
type Error struct {
	Code    ErrorCode
	Message string

	// Algorithm names the offending OID for CodeUnsupportedAlgorithm, in the
	// form "digest OID: <oid>" or "signature OID: <oid>".
	Algorithm string

	// Offset, Length and Size describe the failing range for
	// CodeByteRangeExceedsDocument.
	Offset, Length, Size int64

	Cause error
}

func (e *Error) Error() string {
	msg := "pdfsec: " + e.Code.String()
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same Code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Sentinel errors for use with errors.Is.
var (
	ErrCMSParsing               = &Error{Code: CodeCMSParsing}
	ErrUnsupportedAlgorithm     = &Error{Code: CodeUnsupportedAlgorithm}
	ErrInvalidByteRange         = &Error{Code: CodeInvalidByteRange}
	ErrByteRangeExceedsDocument = &Error{Code: CodeByteRangeExceedsDocument}
	ErrContentsExtraction       = &Error{Code: CodeContentsExtraction}
)

func newError(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func wrapError(code ErrorCode, msg string, cause error) *Error {
	return &Error{Code: code, Message: msg, Cause: cause}
}

func unsupportedAlgorithm(kind string, oid fmt.Stringer) *Error {
	alg := kind + " OID: " + oid.String()
	return &Error{Code: CodeUnsupportedAlgorithm, Message: alg, Algorithm: alg}
}
