package security

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"

	"github.com/mdean75/pdfsec/crypt"
	"github.com/mdean75/pdfsec/logging"
)

// maxPasswordLen is the UTF-8 password limit of ISO 32000-2 section 7.6.4.3.3.
const maxPasswordLen = 127

// ErrUnsupportedRevision is returned for an /R other than 5 or 6.
var ErrUnsupportedRevision = errors.New("security: unsupported standard handler revision")

var zeroIV = make([]byte, crypt.BlockSize)

// HandlerR6 implements revisions 5 and 6 of the standard security handler.
type HandlerR6 struct {
	rand io.Reader
}

var _ Handler = (*HandlerR6)(nil)

// Option configures a HandlerR6.
type Option func(*HandlerR6)

// WithRandom sets the reader used for the file key, salts and the random
// bytes of /Perms. The default is crypto/rand.
func WithRandom(r io.Reader) Option {
	return func(h *HandlerR6) {
		if r != nil {
			h.rand = r
		}
	}
}

// NewHandlerR6 returns a handler for /R 5 and /R 6 dictionaries.
func NewHandlerR6(opts ...Option) *HandlerR6 {
	h := &HandlerR6{rand: rand.Reader}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func checkRevision(r int) error {
	if r != 5 && r != 6 {
		return fmt.Errorf("%w: %d", ErrUnsupportedRevision, r)
	}
	return nil
}

func truncatePassword(p []byte) []byte {
	if len(p) > maxPasswordLen {
		return p[:maxPasswordLen]
	}
	return p
}

// GenerateParams implements Algorithms 8, 9 and 10. The returned file key is
// 32 random bytes.
func (h *HandlerR6) GenerateParams(d *EncryptDict, ownerPass, userPass []byte) ([]byte, error) {
	if err := checkRevision(d.R); err != nil {
		return nil, err
	}
	fileKey := make([]byte, 32)
	if _, err := io.ReadFull(h.rand, fileKey); err != nil {
		return nil, fmt.Errorf("security: generating file key: %w", err)
	}

	d.U, d.O, d.UE, d.OE, d.Perms = nil, nil, nil, nil, nil
	userPass = truncatePassword(userPass)
	ownerPass = truncatePassword(ownerPass)

	if err := h.alg8(d, fileKey, userPass); err != nil {
		return nil, err
	}
	if err := h.alg9(d, fileKey, ownerPass); err != nil {
		return nil, err
	}
	if d.R == 5 {
		return fileKey, nil
	}
	if err := h.alg10(d, fileKey); err != nil {
		return nil, err
	}
	return fileKey, nil
}

// Authenticate implements Algorithm 2.A. The owner password is tried first,
// then the user password, then the empty user password, so documents with
// no user password open whatever pass is.
func (h *HandlerR6) Authenticate(d *EncryptDict, pass []byte) ([]byte, Permissions, error) {
	if err := checkRevision(d.R); err != nil {
		return nil, 0, err
	}
	if err := checkAtLeast("alg2a", "O", 48, d.O); err != nil {
		return nil, 0, err
	}
	if err := checkAtLeast("alg2a", "U", 48, d.U); err != nil {
		return nil, 0, err
	}
	pass = truncatePassword(pass)

	owner, err := h.alg12(d, pass)
	if err != nil {
		return nil, 0, err
	}

	var (
		data, wrapped, udata []byte
		perm                 Permissions
		field                string
	)
	if owner {
		perm = PermOwner
		data = concat(pass, d.O[40:48], d.U[:48])
		wrapped, field = d.OE, "OE"
		udata = d.U[:48]
	} else {
		user, err := h.alg11(d, pass)
		if err != nil {
			return nil, 0, err
		}
		if !user && len(pass) > 0 {
			if user, err = h.alg11(d, nil); err != nil {
				return nil, 0, err
			}
			if user {
				pass = nil
			}
		}
		if !user {
			logging.Logger().Debug("security: password rejected", slog.Int("R", d.R))
			return nil, 0, nil
		}
		perm = d.P
		data = concat(pass, d.U[40:48])
		wrapped, field = d.UE, "UE"
	}
	if err := checkAtLeast("alg2a", field, 32, wrapped); err != nil {
		return nil, 0, err
	}

	kek, err := h.hash(d.R, data, pass, udata)
	if err != nil {
		return nil, 0, err
	}
	fileKey, err := unwrapKey(kek, wrapped[:32])
	if err != nil {
		return nil, 0, err
	}

	if d.R == 6 {
		if err := h.alg13(d, fileKey); err != nil {
			return nil, 0, err
		}
	}
	logging.Logger().Debug("security: password accepted",
		slog.Int("R", d.R), slog.Bool("owner", owner))
	return fileKey, perm, nil
}

// alg8 computes /U and /UE.
func (h *HandlerR6) alg8(d *EncryptDict, fileKey, upass []byte) error {
	if err := checkAtLeast("alg8", "Key", 32, fileKey); err != nil {
		return err
	}
	valSalt, keySalt, err := h.salts()
	if err != nil {
		return err
	}

	hash, err := h.hash(d.R, concat(upass, valSalt), upass, nil)
	if err != nil {
		return err
	}
	d.U = concat(hash[:32], valSalt, keySalt)

	kek, err := h.hash(d.R, concat(upass, keySalt), upass, nil)
	if err != nil {
		return err
	}
	d.UE, err = wrapKey(kek, fileKey[:32])
	return err
}

// alg9 computes /O and /OE. /U must already be set.
func (h *HandlerR6) alg9(d *EncryptDict, fileKey, opass []byte) error {
	if err := checkAtLeast("alg9", "Key", 32, fileKey); err != nil {
		return err
	}
	if err := checkAtLeast("alg9", "U", 48, d.U); err != nil {
		return err
	}
	valSalt, keySalt, err := h.salts()
	if err != nil {
		return err
	}
	udata := d.U[:48]

	hash, err := h.hash(d.R, concat(opass, valSalt, udata), opass, udata)
	if err != nil {
		return err
	}
	d.O = concat(hash[:32], valSalt, keySalt)

	kek, err := h.hash(d.R, concat(opass, keySalt, udata), opass, udata)
	if err != nil {
		return err
	}
	d.OE, err = wrapKey(kek, fileKey[:32])
	return err
}

// alg10 computes /Perms.
func (h *HandlerR6) alg10(d *EncryptDict, fileKey []byte) error {
	if err := checkAtLeast("alg10", "Key", 32, fileKey); err != nil {
		return err
	}
	perms := make([]byte, 16)
	binary.LittleEndian.PutUint64(perms[:8], uint64(uint32(d.P))|math.MaxUint32<<32)
	perms[8] = 'F'
	if d.EncryptMetadata {
		perms[8] = 'T'
	}
	copy(perms[9:12], "adb")
	if _, err := io.ReadFull(h.rand, perms[12:16]); err != nil {
		return fmt.Errorf("security: generating /Perms: %w", err)
	}

	c, err := aes256(fileKey[:32])
	if err != nil {
		return err
	}
	d.Perms, err = c.EncryptECB(perms)
	return err
}

// alg11 reports whether upass is the user password.
func (h *HandlerR6) alg11(d *EncryptDict, upass []byte) (bool, error) {
	if err := checkAtLeast("alg11", "U", 48, d.U); err != nil {
		return false, err
	}
	hash, err := h.hash(d.R, concat(upass, d.U[32:40]), upass, nil)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare(hash[:32], d.U[:32]) == 1, nil
}

// alg12 reports whether opass is the owner password.
func (h *HandlerR6) alg12(d *EncryptDict, opass []byte) (bool, error) {
	if err := checkAtLeast("alg12", "U", 48, d.U); err != nil {
		return false, err
	}
	if err := checkAtLeast("alg12", "O", 48, d.O); err != nil {
		return false, err
	}
	hash, err := h.hash(d.R, concat(opass, d.O[32:40], d.U[:48]), opass, d.U[:48])
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare(hash[:32], d.O[:32]) == 1, nil
}

// alg13 checks /Perms against /P and /EncryptMetadata.
func (h *HandlerR6) alg13(d *EncryptDict, fileKey []byte) error {
	if err := checkAtLeast("alg13", "Key", 32, fileKey); err != nil {
		return err
	}
	if err := checkAtLeast("alg13", "Perms", 16, d.Perms); err != nil {
		return err
	}
	c, err := aes256(fileKey[:32])
	if err != nil {
		return err
	}
	perms, err := c.DecryptECB(d.Perms[:16])
	if err != nil {
		return err
	}

	if string(perms[9:12]) != "adb" {
		return fmt.Errorf("%w: marker not found", ErrPermsMismatch)
	}
	if p := Permissions(binary.LittleEndian.Uint32(perms[0:4])); p != d.P {
		return fmt.Errorf("%w: /P is %d, /Perms has %d", ErrPermsMismatch, uint32(d.P), uint32(p))
	}
	var encMeta bool
	switch perms[8] {
	case 'T':
		encMeta = true
	case 'F':
	default:
		return fmt.Errorf("%w: invalid metadata flag %q", ErrPermsMismatch, perms[8])
	}
	if encMeta != d.EncryptMetadata {
		return fmt.Errorf("%w: /EncryptMetadata disagrees", ErrPermsMismatch)
	}
	return nil
}

func (h *HandlerR6) salts() (valSalt, keySalt []byte, err error) {
	buf := make([]byte, 16)
	if _, err := io.ReadFull(h.rand, buf); err != nil {
		return nil, nil, fmt.Errorf("security: generating salts: %w", err)
	}
	return buf[:8], buf[8:], nil
}

// hash is Algorithm 2.B for R6 and plain SHA-256 for R5.
func (h *HandlerR6) hash(r int, data, pwd, udata []byte) ([]byte, error) {
	if r == 5 {
		sum := sha256.Sum256(data)
		return sum[:], nil
	}
	return alg2b(data, pwd, udata)
}

// alg2b is the iterated hash of ISO 32000-2 Algorithm 2.B.
func alg2b(data, pwd, udata []byte) ([]byte, error) {
	first := sha256.Sum256(data)
	k := first[:]

	for round := 0; ; {
		n := len(pwd) + len(k) + len(udata)
		k1 := make([]byte, 0, 64*n)
		for range 64 {
			k1 = append(k1, pwd...)
			k1 = append(k1, k...)
			k1 = append(k1, udata...)
		}

		key, err := crypt.NewKey128(k[:16])
		if err != nil {
			return nil, err
		}
		c, err := crypt.NewCipher(key)
		if err != nil {
			return nil, err
		}
		e, err := c.EncryptCBCRaw(k1, k[16:32])
		if err != nil {
			return nil, err
		}

		var sum int
		for _, b := range e[:16] {
			sum += int(b % 3)
		}
		switch sum % 3 {
		case 0:
			s := sha256.Sum256(e)
			k = s[:]
		case 1:
			s := sha512.Sum384(e)
			k = s[:]
		case 2:
			s := sha512.Sum512(e)
			k = s[:]
		}

		round++
		if round >= 64 && int(e[len(e)-1]) <= round-32 {
			break
		}
	}
	return k[:32], nil
}

func aes256(key []byte) (*crypt.Cipher, error) {
	k, err := crypt.NewKey256(key)
	if err != nil {
		return nil, err
	}
	return crypt.NewCipher(k)
}

// wrapKey encrypts the 32-byte file key with AES-256 CBC and a zero IV.
func wrapKey(kek, fileKey []byte) ([]byte, error) {
	c, err := aes256(kek[:32])
	if err != nil {
		return nil, err
	}
	return c.EncryptCBCRaw(fileKey, zeroIV)
}

func unwrapKey(kek, wrapped []byte) ([]byte, error) {
	c, err := aes256(kek[:32])
	if err != nil {
		return nil, err
	}
	return c.DecryptCBCRaw(wrapped, zeroIV)
}

func concat(parts ...[]byte) []byte {
	var n int
	for _, p := range parts {
		n += len(p)
	}
	out := make([]byte, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
