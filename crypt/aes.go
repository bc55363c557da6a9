// Package crypt implements the AES modes used by the PDF standard security
// handler: CBC with PKCS#7 padding for strings and streams, CBC without
// padding for key wrapping, and ECB for the /Perms entry.
package crypt

import (
	"crypto/aes"
	"crypto/cipher"
)

// BlockSize is the AES block size in bytes for every key size.
const BlockSize = aes.BlockSize

// KeySize selects AES-128 or AES-256.
type KeySize int

const (
	KeySize128 KeySize = 16
	KeySize256 KeySize = 32
)

// KeyLength returns the key length in bytes.
func (k KeySize) KeyLength() int {
	return int(k)
}

// BlockSize returns 16 for every key size.
func (KeySize) BlockSize() int {
	return BlockSize
}

func (k KeySize) String() string {
	switch k {
	case KeySize128:
		return "AES-128"
	case KeySize256:
		return "AES-256"
	}
	return "AES-invalid"
}

// Key is an immutable AES key whose length matches its KeySize.
type Key struct {
	b    []byte
	size KeySize
}

// NewKey copies b into a Key of the given size.
func NewKey(b []byte, size KeySize) (*Key, error) {
	if size != KeySize128 && size != KeySize256 {
		return nil, newError(CodeInvalidKeyLength, "crypt: unsupported key size %d", int(size))
	}
	if len(b) != size.KeyLength() {
		return nil, keyLengthError(size.KeyLength(), len(b))
	}
	return &Key{b: append([]byte(nil), b...), size: size}, nil
}

// NewKey128 returns an AES-128 key.
func NewKey128(b []byte) (*Key, error) {
	return NewKey(b, KeySize128)
}

// NewKey256 returns an AES-256 key.
func NewKey256(b []byte) (*Key, error) {
	return NewKey(b, KeySize256)
}

// Size returns the key size.
func (k *Key) Size() KeySize {
	return k.size
}

// Bytes returns a copy of the key bytes.
func (k *Key) Bytes() []byte {
	return append([]byte(nil), k.b...)
}

// Len returns the key length in bytes.
func (k *Key) Len() int {
	return len(k.b)
}

// Cipher performs AES operations with a fixed key. It is immutable after
// construction and safe for concurrent use.
type Cipher struct {
	size  KeySize
	block cipher.Block
	ivs   IVSource
}

// Option configures a Cipher.
type Option func(*Cipher)

// WithIVSource sets the source used by GenerateIV. The default is
// RandomIVSource.
func WithIVSource(src IVSource) Option {
	return func(c *Cipher) {
		if src != nil {
			c.ivs = src
		}
	}
}

// NewCipher returns a Cipher for key.
func NewCipher(key *Key, opts ...Option) (*Cipher, error) {
	if key == nil {
		return nil, newError(CodeInvalidKeyLength, "crypt: key is nil")
	}
	block, err := aes.NewCipher(key.b)
	if err != nil {
		return nil, wrapError(CodeInvalidKeyLength, "crypt: creating AES block", err)
	}
	c := &Cipher{size: key.size, block: block, ivs: RandomIVSource()}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// KeySize returns the size of the key the Cipher was built with.
func (c *Cipher) KeySize() KeySize {
	return c.size
}

// GenerateIV returns a fresh 16-byte IV from the configured source.
func (c *Cipher) GenerateIV() ([]byte, error) {
	iv, err := c.ivs.NextIV()
	if err != nil {
		return nil, wrapError(CodeEncryptionFailed, "crypt: generating IV", err)
	}
	if len(iv) != BlockSize {
		return nil, ivLengthError(len(iv))
	}
	return iv, nil
}

// EncryptCBC pads plaintext with PKCS#7 and encrypts it in CBC mode. Input
// that is already block aligned gains a full block of padding, so the output
// is always longer than the input.
func (c *Cipher) EncryptCBC(plaintext, iv []byte) ([]byte, error) {
	if len(iv) != BlockSize {
		return nil, ivLengthError(len(iv))
	}
	padded := pkcs7Pad(plaintext, BlockSize)
	cipher.NewCBCEncrypter(c.block, iv).CryptBlocks(padded, padded)
	return padded, nil
}

// DecryptCBC decrypts CBC ciphertext and strips its PKCS#7 padding.
func (c *Cipher) DecryptCBC(ciphertext, iv []byte) ([]byte, error) {
	if len(iv) != BlockSize {
		return nil, ivLengthError(len(iv))
	}
	if len(ciphertext)%BlockSize != 0 {
		return nil, newError(CodeDecryptionFailed,
			"crypt: decryption failed: data length %d is not a multiple of %d bytes", len(ciphertext), BlockSize)
	}
	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(c.block, iv).CryptBlocks(plaintext, ciphertext)
	return pkcs7Unpad(plaintext, BlockSize)
}

// EncryptCBCRaw encrypts block-aligned data in CBC mode without padding.
func (c *Cipher) EncryptCBCRaw(data, iv []byte) ([]byte, error) {
	if len(iv) != BlockSize {
		return nil, ivLengthError(len(iv))
	}
	if len(data)%BlockSize != 0 {
		return nil, newError(CodeEncryptionFailed,
			"crypt: encryption failed: data length %d is not a multiple of %d bytes", len(data), BlockSize)
	}
	out := make([]byte, len(data))
	cipher.NewCBCEncrypter(c.block, iv).CryptBlocks(out, data)
	return out, nil
}

// DecryptCBCRaw decrypts block-aligned CBC data without removing padding.
func (c *Cipher) DecryptCBCRaw(data, iv []byte) ([]byte, error) {
	if len(iv) != BlockSize {
		return nil, ivLengthError(len(iv))
	}
	if len(data)%BlockSize != 0 {
		return nil, newError(CodeDecryptionFailed,
			"crypt: decryption failed: data length %d is not a multiple of %d bytes", len(data), BlockSize)
	}
	out := make([]byte, len(data))
	cipher.NewCBCDecrypter(c.block, iv).CryptBlocks(out, data)
	return out, nil
}

// EncryptECB encrypts block-aligned data one block at a time. Identical
// plaintext blocks give identical ciphertext blocks; ECB is only used for
// the 16-byte /Perms value.
func (c *Cipher) EncryptECB(data []byte) ([]byte, error) {
	if len(data)%BlockSize != 0 {
		return nil, newError(CodeEncryptionFailed,
			"crypt: encryption failed: data length %d is not a multiple of %d bytes for ECB mode", len(data), BlockSize)
	}
	out := make([]byte, len(data))
	newECBEncrypter(c.block).CryptBlocks(out, data)
	return out, nil
}

// DecryptECB is the inverse of EncryptECB.
func (c *Cipher) DecryptECB(data []byte) ([]byte, error) {
	if len(data)%BlockSize != 0 {
		return nil, newError(CodeDecryptionFailed,
			"crypt: decryption failed: data length %d is not a multiple of %d bytes for ECB mode", len(data), BlockSize)
	}
	out := make([]byte, len(data))
	newECBDecrypter(c.block).CryptBlocks(out, data)
	return out, nil
}

// pkcs7Pad returns a new slice holding plaintext followed by PKCS#7 padding.
func pkcs7Pad(plaintext []byte, blockSize int) []byte {
	pad := blockSize - len(plaintext)%blockSize
	padded := make([]byte, len(plaintext)+pad)
	copy(padded, plaintext)
	for i := len(plaintext); i < len(padded); i++ {
		padded[i] = byte(pad)
	}
	return padded
}

func pkcs7Unpad(plaintext []byte, blockSize int) ([]byte, error) {
	if len(plaintext) == 0 {
		return nil, newError(CodePadding, "crypt: padding error: empty input")
	}
	pad := int(plaintext[len(plaintext)-1])
	if pad == 0 || pad > blockSize || pad > len(plaintext) {
		return nil, newError(CodePadding, "crypt: padding error: invalid padding byte %d", pad)
	}
	for _, b := range plaintext[len(plaintext)-pad:] {
		if int(b) != pad {
			return nil, newError(CodePadding, "crypt: padding error: inconsistent padding bytes")
		}
	}
	return plaintext[:len(plaintext)-pad], nil
}
