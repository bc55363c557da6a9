// Package ber rewrites BER encoded ASN.1 into DER length form.
//
// CMS containers embedded in PDF signatures are frequently produced by
// streaming signers that emit indefinite-length constructed elements.
// Go's encoding/asn1 only accepts definite lengths, so ToDER re-emits every
// element with its minimal definite length before the container is parsed.
//
// Only length encodings change. Tags and primitive contents are copied byte
// for byte, so booleans, integers and constructed strings keep whatever form
// the signer produced.
package ber

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/crypto/cryptobyte"

	"github.com/mdean75/pdfsec/logging"
)

// Identifier octet layout (X.690 section 8.1.2).
const (
	tagConstructedBit byte = 0x20
	tagNumMask        byte = 0x1F
	tagLongFormMarker byte = 0x1F
	tagMoreBytesBit   byte = 0x80
)

// Length octet layout (X.690 section 8.1.3).
const (
	lenIndefinite   byte = 0x80
	lenHighBit      byte = 0x80
	lenLongFormMask byte = 0x7F
	lenShortFormMax      = 127
	maxLengthOctets      = 4
)

// eocByte twice in a row terminates an indefinite-length element.
const eocByte byte = 0x00

// MaxDepth is the deepest constructed nesting ToDER rewrites. Real CMS
// containers stay well under 20 levels.
const MaxDepth = 64

// ErrMalformed matches every structural error returned by this package.
var ErrMalformed = errors.New("ber: malformed encoding")

// SyntaxError describes a structural problem in the input. Offset is the
// position in the top-level input where the problem was found.
type SyntaxError struct {
	Offset  int
	Details string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("ber: %s (offset %d)", e.Details, e.Offset)
}

// Is makes errors.Is(err, ErrMalformed) true for every *SyntaxError.
func (e *SyntaxError) Is(target error) bool {
	return target == ErrMalformed
}

func syntaxError(offset int, format string, args ...any) error {
	return &SyntaxError{Offset: offset, Details: fmt.Sprintf(format, args...)}
}

// Normalize reads all of r and returns ToDER of its contents.
func Normalize(r io.Reader) ([]byte, error) {
	input, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("ber: reading input: %w", err)
	}
	return ToDER(input)
}

// ToDER returns b with every indefinite or non-minimal length of its first
// element rewritten to the minimal definite form.
//
// Input whose second octet is not the indefinite-length marker is returned
// unchanged without being inspected. This is a cheap heuristic for "already
// DER": it only looks at the outermost header, so definite-length input that
// nests indefinite-length children is passed through as-is. Callers that
// need a full rewrite of such input can wrap it in an indefinite container.
//
// Bytes after the first element are appended unchanged. The result never
// aliases b unless the input was passed through.
func ToDER(b []byte) ([]byte, error) {
	if len(b) < 2 || b[1] != lenIndefinite {
		logging.Logger().Debug("ber: definite outer length, passing through",
			slog.Int("len", len(b)))
		return b, nil
	}

	var w bytes.Buffer
	w.Grow(len(b))
	n, err := convertElement(b, 0, 1, &w)
	if err != nil {
		return nil, err
	}
	if n < len(b) {
		w.Write(b[n:])
	}
	logging.Logger().Debug("ber: rewrote indefinite-length element",
		slog.Int("in", len(b)), slog.Int("out", w.Len()), slog.Int("trailing", len(b)-n))
	return w.Bytes(), nil
}

// header is a decoded identifier and length.
type header struct {
	tag        []byte
	length     int
	indefinite bool
	size       int
}

func (h header) constructed() bool {
	return h.tag[0]&tagConstructedBit != 0
}

// convertElement converts the element starting at input[pos], writes its DER
// form to w, and returns the number of input bytes it occupied. input may be
// a prefix of the full buffer bounding an enclosing definite element; offsets
// stay absolute. depth counts the element itself.
func convertElement(input []byte, pos, depth int, w *bytes.Buffer) (int, error) {
	if depth > MaxDepth {
		return 0, syntaxError(pos, "nesting deeper than %d levels", MaxDepth)
	}
	s := cryptobyte.String(input[pos:])
	h, err := readHeader(&s, pos)
	if err != nil {
		return 0, err
	}

	if h.indefinite {
		if !h.constructed() {
			return 0, syntaxError(pos, "indefinite length on primitive element")
		}
		var inner bytes.Buffer
		cur := pos + h.size
		for {
			if len(input)-cur < 2 {
				return 0, syntaxError(cur, "missing end-of-contents")
			}
			if input[cur] == eocByte && input[cur+1] == eocByte {
				cur += 2
				break
			}
			n, err := convertElement(input, cur, depth+1, &inner)
			if err != nil {
				return 0, err
			}
			cur += n
		}
		writeElement(w, h.tag, inner.Bytes())
		return cur - pos, nil
	}

	start := pos + h.size
	end := start + h.length
	if !h.constructed() || h.length == 0 {
		writeElement(w, h.tag, input[start:end])
		return end - pos, nil
	}

	bounded := input[:end]
	var inner bytes.Buffer
	for cur := start; cur < end; {
		n, err := convertElement(bounded, cur, depth+1, &inner)
		if err != nil {
			return 0, err
		}
		cur += n
	}
	writeElement(w, h.tag, inner.Bytes())
	return end - pos, nil
}

// readHeader reads the identifier and length octets from s. pos is the
// absolute offset of s, used for error reporting only.
func readHeader(s *cryptobyte.String, pos int) (header, error) {
	orig := *s
	var first uint8
	if !s.ReadUint8(&first) {
		return header{}, syntaxError(pos, "truncated identifier")
	}
	tagLen := 1
	if first&tagNumMask == tagLongFormMarker {
		for {
			var b uint8
			if !s.ReadUint8(&b) {
				return header{}, syntaxError(pos, "truncated high-tag-number identifier")
			}
			tagLen++
			if b&tagMoreBytesBit == 0 {
				break
			}
		}
	}
	h := header{tag: orig[:tagLen]}

	var lb uint8
	if !s.ReadUint8(&lb) {
		return header{}, syntaxError(pos+tagLen, "truncated length")
	}
	switch {
	case lb == lenIndefinite:
		h.indefinite = true
	case lb&lenHighBit == 0:
		h.length = int(lb)
	default:
		n := int(lb & lenLongFormMask)
		if n > maxLengthOctets {
			return header{}, syntaxError(pos+tagLen, "unsupported length width of %d octets", n)
		}
		var octets []byte
		if !s.ReadBytes(&octets, n) {
			return header{}, syntaxError(pos+tagLen, "truncated long-form length")
		}
		var length uint64
		for _, o := range octets {
			length = length<<8 | uint64(o)
		}
		if length > uint64(len(*s)) {
			return header{}, syntaxError(pos, "length %d exceeds the %d bytes available", length, len(*s))
		}
		h.length = int(length)
	}
	if !h.indefinite && h.length > len(*s) {
		return header{}, syntaxError(pos, "length %d exceeds the %d bytes available", h.length, len(*s))
	}
	h.size = len(orig) - len(*s)
	return h, nil
}

func writeElement(w *bytes.Buffer, tag, content []byte) {
	w.Write(tag)
	w.Write(encodeLength(len(content)))
	w.Write(content)
}

// encodeLength returns the minimal definite length octets for n.
func encodeLength(n int) []byte {
	if n <= lenShortFormMax {
		return []byte{byte(n)}
	}
	var octets [8]byte
	i := len(octets)
	for v := uint64(n); v > 0; v >>= 8 {
		i--
		octets[i] = byte(v)
	}
	out := make([]byte, 0, 1+len(octets)-i)
	out = append(out, lenHighBit|byte(len(octets)-i))
	return append(out, octets[i:]...)
}
