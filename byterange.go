package pdfsec

import (
	"bytes"
	"crypto/subtle"
	"encoding/hex"
	"io"
	"math"
	"strconv"
	"strings"
)

// Range is one (offset, length) pair of a /ByteRange array.
type Range struct {
	Offset int64
	Length int64
}

// End returns the offset just past the range. It is only meaningful for
// ranges that pass wellFormed.
func (r Range) End() int64 {
	return r.Offset + r.Length
}

// wellFormed reports whether r is non-negative and End does not overflow.
func (r Range) wellFormed() bool {
	return r.Offset >= 0 && r.Length >= 0 && r.Length <= math.MaxInt64-r.Offset
}

// within reports whether r lies inside a document of size bytes.
func (r Range) within(size int64) bool {
	return r.wellFormed() && r.Offset <= size && r.Length <= size-r.Offset
}

// ByteRange lists the document regions covered by a signature, normally the
// bytes before and after the /Contents hex string.
type ByteRange []Range

// ByteRangeFromArray builds a ByteRange from a PDF array
// [offset1 length1 offset2 length2 ...].
func ByteRangeFromArray(values []int64) (ByteRange, error) {
	if len(values)%2 != 0 {
		return nil, newError(CodeInvalidByteRange,
			"ByteRange array must have even number of elements, got %d", len(values))
	}
	if len(values) < 4 {
		return nil, newError(CodeInvalidByteRange,
			"ByteRange array must have at least 4 elements, got %d", len(values))
	}

	br := make(ByteRange, 0, len(values)/2)
	for i := 0; i < len(values); i += 2 {
		offset, length := values[i], values[i+1]
		if offset < 0 {
			return nil, newError(CodeInvalidByteRange, "ByteRange offset cannot be negative: %d", offset)
		}
		if length < 0 {
			return nil, newError(CodeInvalidByteRange, "ByteRange length cannot be negative: %d", length)
		}
		if length > math.MaxInt64-offset {
			return nil, newError(CodeInvalidByteRange, "ByteRange range %d+%d overflows", offset, length)
		}
		br = append(br, Range{Offset: offset, Length: length})
	}
	return br, nil
}

// Validate checks the shape of a single-signature ByteRange: exactly two
// ranges, the first at offset 0, the second starting after the first ends.
func (br ByteRange) Validate() error {
	if len(br) != 2 {
		return newError(CodeInvalidByteRange, "expected 2 ranges for signature, got %d", len(br))
	}
	if br[0].Offset != 0 {
		return newError(CodeInvalidByteRange,
			"first range should start at offset 0, got %d", br[0].Offset)
	}
	for _, r := range br {
		if !r.wellFormed() {
			return newError(CodeInvalidByteRange, "ByteRange range %d+%d is out of bounds", r.Offset, r.Length)
		}
	}
	if br[1].Offset < br[0].End() {
		return newError(CodeInvalidByteRange, "ByteRange ranges overlap")
	}
	return nil
}

// TotalBytes is the sum of all range lengths.
func (br ByteRange) TotalBytes() int64 {
	var n int64
	for _, r := range br {
		n += r.Length
	}
	return n
}

// Gap returns the excluded region between the first two ranges, where the
// /Contents string lives.
func (br ByteRange) Gap() (Range, bool) {
	if len(br) < 2 || !br[0].wellFormed() || !br[1].wellFormed() || br[1].Offset < br[0].End() {
		return Range{}, false
	}
	return Range{Offset: br[0].End(), Length: br[1].Offset - br[0].End()}, true
}

func (br ByteRange) String() string {
	parts := make([]string, 0, 2*len(br))
	for _, r := range br {
		parts = append(parts, strconv.FormatInt(r.Offset, 10), strconv.FormatInt(r.Length, 10))
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// DigestResult is the hash of the bytes a ByteRange covers.
type DigestResult struct {
	Sum         []byte
	Algorithm   DigestAlgorithm
	BytesHashed int64
}

// Hex returns Sum as lowercase hex.
func (d *DigestResult) Hex() string {
	return hex.EncodeToString(d.Sum)
}

// Matches compares Sum with b in constant time.
func (d *DigestResult) Matches(b []byte) bool {
	return subtle.ConstantTimeCompare(d.Sum, b) == 1
}

// ComputeDigest hashes the regions of doc named by br, in order.
func ComputeDigest(doc []byte, br ByteRange, alg DigestAlgorithm) (*DigestResult, error) {
	return ComputeDigestFrom(bytes.NewReader(doc), int64(len(doc)), br, alg)
}

// ComputeDigestFrom is ComputeDigest over a document of the given size read
// through r.
func ComputeDigestFrom(r io.ReaderAt, size int64, br ByteRange, alg DigestAlgorithm) (*DigestResult, error) {
	for _, rg := range br {
		if !rg.within(size) {
			err := newError(CodeByteRangeExceedsDocument,
				"range %d+%d exceeds document of %d bytes", rg.Offset, rg.Length, size)
			err.Offset, err.Length, err.Size = rg.Offset, rg.Length, size
			return nil, err
		}
	}

	h := alg.Hash()
	if h == 0 || !h.Available() {
		return nil, newError(CodeUnsupportedAlgorithm, "digest algorithm %s", alg)
	}
	w := h.New()
	for _, rg := range br {
		if _, err := io.Copy(w, io.NewSectionReader(r, rg.Offset, rg.Length)); err != nil {
			return nil, wrapError(CodeByteRangeExceedsDocument, "reading signed range", err)
		}
	}

	return &DigestResult{
		Sum:         w.Sum(nil),
		Algorithm:   alg,
		BytesHashed: br.TotalBytes(),
	}, nil
}

// HasIncrementalUpdate reports whether doc continues past the last signed
// range, which means it was modified after signing.
func HasIncrementalUpdate(doc []byte, br ByteRange) bool {
	if len(br) == 0 {
		return false
	}
	last := br[len(br)-1]
	size := int64(len(doc))
	return last.within(size) && last.End() < size
}
