package crypt

import (
	"crypto/md5"
	"log/slog"
	"sort"

	"github.com/mdean75/pdfsec/logging"
)

// Filter is a PDF crypt filter (ISO 32000-1 section 7.6.5) that encrypts
// individual strings and streams with an object key.
type Filter interface {
	// Name is the /CFM value, e.g. "AESV2".
	Name() string
	// KeyLength is the object key length in bytes.
	KeyLength() int
	// PDFVersion is the first PDF version defining the filter.
	PDFVersion() [2]int
	// HandlerVersion is the /V and /R pair of the standard handler using it.
	HandlerVersion() (V, R int)
	// MakeKey derives the key for one indirect object from the file key.
	MakeKey(objNum, genNum uint32, fileKey []byte) ([]byte, error)
	// EncryptBytes returns IV || ciphertext for buf.
	EncryptBytes(buf, objKey []byte) ([]byte, error)
	// DecryptBytes reverses EncryptBytes.
	DecryptBytes(buf, objKey []byte) ([]byte, error)
}

// FilterOption configures a Filter built by NewFilter.
type FilterOption func(*filterAES)

// WithFilterIVSource sets the IV source used by EncryptBytes.
func WithFilterIVSource(src IVSource) FilterOption {
	return func(f *filterAES) {
		if src != nil {
			f.ivs = src
		}
	}
}

type filterFunc func(length int, opts []FilterOption) (Filter, error)

var filterMethods = map[string]filterFunc{}

func registerFilter(name string, fn filterFunc) {
	if _, ok := filterMethods[name]; ok {
		panic("crypt: filter " + name + " already registered")
	}
	filterMethods[name] = fn
}

func init() {
	registerFilter("AESV2", newFilterAESV2)
	registerFilter("AESV3", newFilterAESV3)
}

// FilterNames lists the registered /CFM values.
func FilterNames() []string {
	names := make([]string, 0, len(filterMethods))
	for n := range filterMethods {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// NewFilter returns the crypt filter registered under name. length is the
// /Length entry of the crypt filter dictionary; 0 selects the default, and
// a value given in bits rather than bytes is accepted.
func NewFilter(name string, length int, opts ...FilterOption) (Filter, error) {
	fn, ok := filterMethods[name]
	if !ok {
		return nil, newError(CodeUnsupportedFilter, "crypt: unsupported crypt filter %q", name)
	}
	return fn(length, opts)
}

func checkLength(name string, length int, size KeySize) error {
	if length == size.KeyLength()*8 {
		logging.Logger().Debug("crypt: filter length given in bits",
			slog.String("filter", name), slog.Int("length", length))
		length /= 8
	}
	if length != 0 && length != size.KeyLength() {
		return keyLengthError(size.KeyLength(), length)
	}
	return nil
}

func newFilterAES(size KeySize, opts []FilterOption) filterAES {
	f := filterAES{size: size, ivs: RandomIVSource()}
	for _, opt := range opts {
		opt(&f)
	}
	return f
}

// filterAES is the CBC/PKCS#7 body shared by AESV2 and AESV3.
type filterAES struct {
	size KeySize
	ivs  IVSource
}

func (f filterAES) KeyLength() int {
	return f.size.KeyLength()
}

func (f filterAES) cipher(objKey []byte) (*Cipher, error) {
	key, err := NewKey(objKey, f.size)
	if err != nil {
		return nil, err
	}
	return NewCipher(key, WithIVSource(f.ivs))
}

func (f filterAES) EncryptBytes(buf, objKey []byte) ([]byte, error) {
	c, err := f.cipher(objKey)
	if err != nil {
		return nil, err
	}
	iv, err := c.GenerateIV()
	if err != nil {
		return nil, err
	}
	ct, err := c.EncryptCBC(buf, iv)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(iv)+len(ct))
	out = append(out, iv...)
	return append(out, ct...), nil
}

func (f filterAES) DecryptBytes(buf, objKey []byte) ([]byte, error) {
	c, err := f.cipher(objKey)
	if err != nil {
		return nil, err
	}
	if len(buf) < BlockSize {
		logging.Logger().Debug("crypt: encrypted value shorter than IV", slog.Int("len", len(buf)))
		return nil, newError(CodeDecryptionFailed,
			"crypt: decryption failed: %d bytes is shorter than the %d byte IV", len(buf), BlockSize)
	}
	out, err := c.DecryptCBC(buf[BlockSize:], buf[:BlockSize])
	if err != nil {
		logging.Logger().Debug("crypt: AES decryption failed",
			slog.Int("len", len(buf)), slog.String("error", err.Error()))
		return nil, err
	}
	return out, nil
}

type filterAESV2 struct {
	filterAES
}

func newFilterAESV2(length int, opts []FilterOption) (Filter, error) {
	if err := checkLength("AESV2", length, KeySize128); err != nil {
		return nil, err
	}
	return filterAESV2{newFilterAES(KeySize128, opts)}, nil
}

func (filterAESV2) Name() string               { return "AESV2" }
func (filterAESV2) PDFVersion() [2]int         { return [2]int{1, 5} }
func (filterAESV2) HandlerVersion() (V, R int) { return 4, 4 }

// MakeKey implements Algorithm 1 of ISO 32000-1 section 7.6.2 with the AES
// salt "sAlT".
func (filterAESV2) MakeKey(objNum, genNum uint32, fileKey []byte) ([]byte, error) {
	return makeObjectKey(objNum, genNum, fileKey), nil
}

func makeObjectKey(objNum, genNum uint32, fileKey []byte) []byte {
	key := make([]byte, 0, len(fileKey)+9)
	key = append(key, fileKey...)
	key = append(key, byte(objNum), byte(objNum>>8), byte(objNum>>16))
	key = append(key, byte(genNum), byte(genNum>>8))
	key = append(key, 's', 'A', 'l', 'T')

	sum := md5.Sum(key)
	n := min(len(fileKey)+5, len(sum))
	return sum[:n]
}

type filterAESV3 struct {
	filterAES
}

func newFilterAESV3(length int, opts []FilterOption) (Filter, error) {
	if err := checkLength("AESV3", length, KeySize256); err != nil {
		return nil, err
	}
	return filterAESV3{newFilterAES(KeySize256, opts)}, nil
}

func (filterAESV3) Name() string               { return "AESV3" }
func (filterAESV3) PDFVersion() [2]int         { return [2]int{2, 0} }
func (filterAESV3) HandlerVersion() (V, R int) { return 5, 6 }

// MakeKey returns the file key: AESV3 uses it directly for every object.
func (filterAESV3) MakeKey(_, _ uint32, fileKey []byte) ([]byte, error) {
	return append([]byte(nil), fileKey...), nil
}
