// Package security implements the AES-based revisions of the PDF standard
// security handler: R5 (Adobe extension level 3) and R6 (ISO 32000-2).
package security

import (
	"errors"
	"fmt"
)

// Handler computes and checks the password entries of an encryption
// dictionary.
type Handler interface {
	// GenerateParams fills d's O, U, OE, UE and Perms entries for the given
	// passwords and returns the new file encryption key.
	GenerateParams(d *EncryptDict, ownerPass, userPass []byte) ([]byte, error)

	// Authenticate returns the file key and the granted permissions when
	// pass is the owner or user password. A password that matches neither
	// yields a nil key and no error.
	Authenticate(d *EncryptDict, pass []byte) ([]byte, Permissions, error)
}

// EncryptDict is the subset of the /Encrypt dictionary used by the
// standard security handler.
type EncryptDict struct {
	R int

	P               Permissions
	EncryptMetadata bool

	O, U   []byte
	OE, UE []byte
	Perms  []byte
}

// ErrPermsMismatch is returned when the decrypted /Perms entry disagrees
// with /P or /EncryptMetadata.
var ErrPermsMismatch = errors.New("security: /Perms does not match the encryption dictionary")

// FieldError reports an encryption dictionary entry of the wrong size.
type FieldError struct {
	Func     string
	Field    string
	Expected int
	Got      int
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("security: %s: expected %s to be at least %d bytes, got %d",
		e.Func, e.Field, e.Expected, e.Got)
}

func checkAtLeast(fn, field string, exp int, b []byte) error {
	if len(b) < exp {
		return &FieldError{Func: fn, Field: field, Expected: exp, Got: len(b)}
	}
	return nil
}
