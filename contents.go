package pdfsec

import "bytes"

// DecodeContents decodes the hex string value of a signature's /Contents
// entry. The surrounding < > are optional and PDF whitespace is skipped. An
// odd number of digits is completed with a final 0.
func DecodeContents(s []byte) ([]byte, error) {
	s = bytes.TrimFunc(s, isPDFSpace)
	if len(s) > 0 && s[0] == '<' {
		if s[len(s)-1] != '>' {
			return nil, newError(CodeContentsExtraction, "hex string is missing its closing '>'")
		}
		s = s[1 : len(s)-1]
	}

	out := make([]byte, 0, len(s)/2+1)
	var (
		acc  byte
		half bool
	)
	for i, c := range s {
		if isPDFSpace(rune(c)) {
			continue
		}
		v, ok := fromHexChar(c)
		if !ok {
			return nil, newError(CodeContentsExtraction, "invalid hex digit %q at offset %d", c, i)
		}
		if half {
			out = append(out, acc|v)
			half = false
			continue
		}
		acc = v << 4
		half = true
	}
	if half {
		out = append(out, acc)
	}
	return out, nil
}

// ContentsFromDocument decodes the /Contents hex string that sits in the gap
// of a signature's ByteRange.
func ContentsFromDocument(doc []byte, br ByteRange) ([]byte, error) {
	gap, ok := br.Gap()
	if !ok {
		return nil, newError(CodeInvalidByteRange, "ByteRange %s has no gap for /Contents", br)
	}
	if !gap.within(int64(len(doc))) {
		err := newError(CodeByteRangeExceedsDocument,
			"contents gap %d+%d exceeds document of %d bytes", gap.Offset, gap.Length, len(doc))
		err.Offset, err.Length, err.Size = gap.Offset, gap.Length, int64(len(doc))
		return nil, err
	}
	return DecodeContents(doc[gap.Offset:gap.End()])
}

func fromHexChar(c byte) (byte, bool) {
	switch {
	case '0' <= c && c <= '9':
		return c - '0', true
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10, true
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// isPDFSpace reports the white-space characters of ISO 32000-1 table 1.
func isPDFSpace(r rune) bool {
	switch r {
	case 0x00, '\t', '\n', '\f', '\r', ' ':
		return true
	}
	return false
}
