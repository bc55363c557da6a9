package ber

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"
)

func TestToDER(t *testing.T) {
	tests := []struct {
		name    string
		input   []byte
		want    []byte
		wantErr bool
	}{
		// --- Fast path: outer length is not indefinite ---
		{
			name:  "empty input passes through",
			input: []byte{},
			want:  []byte{},
		},
		{
			name:  "single byte passes through",
			input: []byte{0x30},
			want:  []byte{0x30},
		},
		{
			name:  "DER SEQUENCE passes through",
			input: []byte{0x30, 0x06, 0x02, 0x01, 0x01, 0x02, 0x01, 0x02},
			want:  []byte{0x30, 0x06, 0x02, 0x01, 0x01, 0x02, 0x01, 0x02},
		},
		{
			// The heuristic only inspects the outer header.
			name:  "non-minimal outer length is not inspected",
			input: []byte{0x04, 0x81, 0x03, 0x01, 0x02, 0x03},
			want:  []byte{0x04, 0x81, 0x03, 0x01, 0x02, 0x03},
		},
		{
			name:  "garbage with definite second octet passes through",
			input: []byte{0xDE, 0xAD, 0xBE, 0xEF},
			want:  []byte{0xDE, 0xAD, 0xBE, 0xEF},
		},

		// --- Indefinite-length encoding ---
		{
			name: "indefinite SEQUENCE with content",
			input: []byte{
				0x30, 0x80, // SEQUENCE, indefinite
				0x02, 0x01, 0x2A, // INTEGER 42
				0x00, 0x00, // end-of-contents
			},
			want: []byte{0x30, 0x03, 0x02, 0x01, 0x2A},
		},
		{
			name:  "indefinite empty SEQUENCE",
			input: []byte{0x30, 0x80, 0x00, 0x00},
			want:  []byte{0x30, 0x00},
		},
		{
			name: "indefinite explicit [0] wrapping an empty OCTET STRING",
			input: []byte{
				0xA0, 0x80, // [0], indefinite
				0x04, 0x00, // OCTET STRING, length 0
				0x00, 0x00, // end-of-contents
			},
			want: []byte{0xA0, 0x02, 0x04, 0x00},
		},
		{
			name: "nested indefinite containers",
			input: []byte{
				0x30, 0x80,
				0x30, 0x80,
				0x02, 0x01, 0x07,
				0x00, 0x00,
				0x00, 0x00,
			},
			want: []byte{0x30, 0x05, 0x30, 0x03, 0x02, 0x01, 0x07},
		},
		{
			name: "indefinite child inside definite constructed element",
			input: []byte{
				0x30, 0x80,
				0x31, 0x07, // SET, definite
				0x30, 0x80, 0x02, 0x01, 0x05, 0x00, 0x00, // SEQUENCE, indefinite
				0x00, 0x00,
			},
			want: []byte{0x30, 0x07, 0x31, 0x05, 0x30, 0x03, 0x02, 0x01, 0x05},
		},

		// --- Length re-encoding inside the slow path ---
		{
			name: "non-minimal one-octet long form",
			input: []byte{
				0x30, 0x80,
				0x04, 0x81, 0x01, 0xAA,
				0x00, 0x00,
			},
			want: []byte{0x30, 0x03, 0x04, 0x01, 0xAA},
		},
		{
			name: "four-octet long form",
			input: []byte{
				0x30, 0x80,
				0x04, 0x84, 0x00, 0x00, 0x00, 0x01, 0xAA,
				0x00, 0x00,
			},
			want: []byte{0x30, 0x03, 0x04, 0x01, 0xAA},
		},

		// --- Contents are never rewritten ---
		{
			name: "non-canonical BOOLEAN kept",
			input: []byte{
				0x30, 0x80,
				0x01, 0x01, 0x01,
				0x00, 0x00,
			},
			want: []byte{0x30, 0x03, 0x01, 0x01, 0x01},
		},
		{
			name: "constructed OCTET STRING kept constructed",
			input: []byte{
				0x30, 0x80,
				0x24, 0x80, // constructed OCTET STRING, indefinite
				0x04, 0x02, 0x01, 0x02,
				0x04, 0x01, 0x03,
				0x00, 0x00,
				0x00, 0x00,
			},
			want: []byte{
				0x30, 0x09,
				0x24, 0x07,
				0x04, 0x02, 0x01, 0x02,
				0x04, 0x01, 0x03,
			},
		},
		{
			name: "high-tag-number identifier preserved",
			input: []byte{
				0x30, 0x80,
				0x9F, 0x1F, 0x01, 0xAA, // [31] IMPLICIT, one content byte
				0x00, 0x00,
			},
			want: []byte{0x30, 0x04, 0x9F, 0x1F, 0x01, 0xAA},
		},
		{
			name: "bytes after the outer element are kept",
			input: []byte{
				0x30, 0x80, 0x02, 0x01, 0x01, 0x00, 0x00,
				0x00, 0x00, 0x00,
			},
			want: []byte{0x30, 0x03, 0x02, 0x01, 0x01, 0x00, 0x00, 0x00},
		},

		// --- Error cases ---
		{
			name:    "indefinite length on primitive element",
			input:   []byte{0x04, 0x80, 0x00, 0x00},
			wantErr: true,
		},
		{
			name:    "nested indefinite primitive",
			input:   []byte{0x30, 0x80, 0x04, 0x80, 0x00, 0x00, 0x00, 0x00},
			wantErr: true,
		},
		{
			name:    "missing end-of-contents",
			input:   []byte{0x30, 0x80, 0x02, 0x01, 0x01},
			wantErr: true,
		},
		{
			name:    "child length exceeds input",
			input:   []byte{0x30, 0x80, 0x04, 0x05, 0x01, 0x00, 0x00},
			wantErr: true,
		},
		{
			name:    "five length octets",
			input:   []byte{0x30, 0x80, 0x04, 0x85, 0x00, 0x00, 0x00, 0x00, 0x01, 0xAA, 0x00, 0x00},
			wantErr: true,
		},
		{
			name:    "truncated long-form length",
			input:   []byte{0x30, 0x80, 0x04, 0x82, 0x01},
			wantErr: true,
		},
		{
			name:    "truncated high-tag-number identifier",
			input:   []byte{0x30, 0x80, 0x9F, 0x81},
			wantErr: true,
		},
		{
			name:    "child overruns definite parent",
			input:   []byte{0x30, 0x80, 0x31, 0x02, 0x04, 0x02, 0xAA, 0xBB, 0x00, 0x00},
			wantErr: true,
		},
		{
			name:    "nesting one level past the limit",
			input:   nestedIndefinite(MaxDepth + 1),
			wantErr: true,
		},
		{
			name:    "deeply nested streaming encoder output",
			input:   nestedIndefinite(100_000),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToDER(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrMalformed)
				var se *SyntaxError
				assert.True(t, errors.As(err, &se))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// nestedIndefinite returns depth indefinite-length SEQUENCEs nested inside
// each other, the innermost empty.
func nestedIndefinite(depth int) []byte {
	out := make([]byte, 0, 4*depth)
	for range depth {
		out = append(out, 0x30, lenIndefinite)
	}
	for range depth {
		out = append(out, eocByte, eocByte)
	}
	return out
}

func TestToDER_DepthLimit(t *testing.T) {
	got, err := ToDER(nestedIndefinite(MaxDepth))
	require.NoError(t, err)
	assert.Len(t, got, 2*MaxDepth)

	_, err = ToDER(nestedIndefinite(MaxDepth + 1))
	var se *SyntaxError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 2*MaxDepth, se.Offset)
	assert.Contains(t, se.Details, "nesting deeper than 64 levels")
}

func TestNormalize_ReadsReader(t *testing.T) {
	got, err := Normalize(bytes.NewReader([]byte{0x30, 0x80, 0x05, 0x00, 0x00, 0x00}))
	require.NoError(t, err)
	assert.Equal(t, []byte{0x30, 0x02, 0x05, 0x00}, got)
}

func TestSyntaxError_Offset(t *testing.T) {
	_, err := ToDER([]byte{0x30, 0x80, 0x02, 0x01, 0x01, 0x04, 0x80, 0x00, 0x00, 0x00, 0x00})
	var se *SyntaxError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 5, se.Offset)
	assert.Contains(t, se.Error(), "primitive")
}

func TestEncodeLength(t *testing.T) {
	tests := []struct {
		n    int
		want []byte
	}{
		{0, []byte{0x00}},
		{1, []byte{0x01}},
		{127, []byte{0x7F}},
		{128, []byte{0x81, 0x80}},
		{255, []byte{0x81, 0xFF}},
		{256, []byte{0x82, 0x01, 0x00}},
		{65535, []byte{0x82, 0xFF, 0xFF}},
		{65536, []byte{0x83, 0x01, 0x00, 0x00}},
		{1 << 24, []byte{0x84, 0x01, 0x00, 0x00, 0x00}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, encodeLength(tt.n), "n=%d", tt.n)
	}
}

func TestToDER_LargeContent(t *testing.T) {
	payload := bytes.Repeat([]byte{0x5A}, 300)
	input := []byte{0x30, 0x80, 0x04, 0x82, 0x01, 0x2C}
	input = append(input, payload...)
	input = append(input, 0x00, 0x00)

	got, err := ToDER(input)
	require.NoError(t, err)

	want := []byte{0x30, 0x82, 0x01, 0x30, 0x04, 0x82, 0x01, 0x2C}
	want = append(want, payload...)
	assert.Equal(t, want, got)
}

func TestToDER_Idempotent(t *testing.T) {
	inputs := [][]byte{
		{0x30, 0x80, 0x30, 0x80, 0x02, 0x01, 0x07, 0x00, 0x00, 0x00, 0x00},
		{0x30, 0x80, 0x04, 0x81, 0x01, 0xAA, 0x00, 0x00},
		{0x30, 0x03, 0x02, 0x01, 0x01},
		buildBenchmarkInput(),
	}
	for _, in := range inputs {
		once, err := ToDER(in)
		require.NoError(t, err)
		twice, err := ToDER(once)
		require.NoError(t, err)
		assert.Equal(t, once, twice)
	}
}

// TestToDER_IndefiniteMatchesDER rewrites a DER structure into an all
// indefinite-length form and checks the conversion restores the original.
func TestToDER_IndefiniteMatchesDER(t *testing.T) {
	der := []byte{
		0x30, 0x0E,
		0x06, 0x03, 0x2A, 0x03, 0x04,
		0xA0, 0x07,
		0x31, 0x05,
		0x04, 0x03, 'a', 'b', 'c',
	}
	berInput := toIndefinite(t, der)
	require.Equal(t, lenIndefinite, berInput[1])

	got, err := ToDER(berInput)
	require.NoError(t, err)
	assert.Equal(t, der, got)
}

// toIndefinite re-encodes every constructed element of der with an
// indefinite length.
func toIndefinite(t *testing.T, der []byte) []byte {
	t.Helper()
	s := cryptobyte.String(der)
	var out []byte
	for !s.Empty() {
		var elem cryptobyte.String
		var tag cbasn1.Tag
		require.True(t, s.ReadAnyASN1Element(&elem, &tag))
		if byte(tag)&tagConstructedBit == 0 {
			out = append(out, elem...)
			continue
		}
		var content cryptobyte.String
		require.True(t, elem.ReadAnyASN1(&content, &tag))
		out = append(out, byte(tag), lenIndefinite)
		out = append(out, toIndefinite(t, content)...)
		out = append(out, eocByte, eocByte)
	}
	return out
}

var benchResult []byte

func BenchmarkToDER(b *testing.B) {
	input := buildBenchmarkInput()

	var r []byte
	for b.Loop() {
		var err error
		r, err = ToDER(input)
		if err != nil {
			b.Fatal(err)
		}
	}
	benchResult = r
}

// buildBenchmarkInput returns an indefinite SEQUENCE of 20 INTEGERs.
func buildBenchmarkInput() []byte {
	var buf bytes.Buffer
	buf.Write([]byte{0x30, 0x80})
	for i := range 20 {
		buf.Write([]byte{0x02, 0x01, byte(i + 1)})
	}
	buf.Write([]byte{0x00, 0x00})
	return buf.Bytes()
}
