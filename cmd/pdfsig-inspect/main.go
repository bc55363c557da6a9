// Command pdfsig-inspect prints what a PDF signature container holds: the
// digest and signature algorithms, the signer, and the signing and timestamp
// times.
//
// The input is a raw DER/BER container, a PEM "PKCS7"/"CMS" block, the hex
// string of a /Contents entry, or a whole PDF together with its /ByteRange.
//
// Usage: pdfsig-inspect [flags] <file>
package main

import (
	"bytes"
	"encoding/json"
	"encoding/pem"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mdean75/pdfsec"
	"github.com/mdean75/pdfsec/logging"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

type report struct {
	Digest         string `json:"digest_algorithm"`
	Signature      string `json:"signature_algorithm"`
	SignatureBytes int    `json:"signature_bytes"`
	Signer         string `json:"signer,omitempty"`
	SigningTime    string `json:"signing_time,omitempty"`
	TimestampTime  string `json:"timestamp_time,omitempty"`

	ByteRange         string `json:"byte_range,omitempty"`
	DocumentDigest    string `json:"document_digest,omitempty"`
	BytesHashed       int64  `json:"bytes_hashed,omitempty"`
	IncrementalUpdate *bool  `json:"incremental_update,omitempty"`
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("pdfsig-inspect", flag.ContinueOnError)
	fs.SetOutput(stderr)
	format := fs.String("format", "text", "output format: text or json")
	input := fs.String("input", "auto", "input encoding: auto, der, pem, hex or pdf")
	byteRange := fs.String("byterange", "", "signature /ByteRange for -input pdf, e.g. \"0 1000 2000 500\"")
	certOut := fs.String("cert-out", "", "write the signer certificate as PEM to this file")
	strict := fs.Bool("strict", false, "reject padding after the container")
	verbose := fs.Bool("v", false, "debug logging to stderr")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: pdfsig-inspect [flags] <file>\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return 2
	}

	if *verbose {
		logging.SetLogger(slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
		defer logging.SetLogger(nil)
	}

	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(stderr, "read input: %v\n", err)
		return 1
	}

	contents, doc, err := decodeInput(data, *input, *byteRange)
	if err != nil {
		fmt.Fprintf(stderr, "decode input: %v\n", err)
		return 1
	}

	var opts []pdfsec.ParseOption
	if *strict {
		opts = append(opts, pdfsec.WithStrictTrailingData())
	}
	ps, err := pdfsec.ParsePKCS7Signature(contents, opts...)
	if err != nil {
		fmt.Fprintf(stderr, "parse signature: %v\n", err)
		return 1
	}
	rep := newReport(ps)
	if doc != nil {
		if err := rep.addDocument(doc, ps.DigestAlgorithm); err != nil {
			fmt.Fprintf(stderr, "document digest: %v\n", err)
			return 1
		}
	}

	if *certOut != "" {
		block := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: ps.SignerCertificateDER})
		if err := os.WriteFile(*certOut, block, 0o644); err != nil {
			fmt.Fprintf(stderr, "write certificate: %v\n", err)
			return 1
		}
	}

	switch *format {
	case "text":
		writeText(stdout, rep)
	case "json":
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rep); err != nil {
			fmt.Fprintf(stderr, "encode json: %v\n", err)
			return 1
		}
	default:
		fmt.Fprintf(stderr, "unknown format %q\n", *format)
		return 2
	}
	return 0
}

// signedPDF is a whole document and the ranges its signature covers.
type signedPDF struct {
	data []byte
	br   pdfsec.ByteRange
}

// decodeInput returns the raw container bytes, plus the document when the
// input is a PDF.
func decodeInput(data []byte, mode, byteRange string) ([]byte, *signedPDF, error) {
	if mode == "auto" {
		mode = detectInput(data)
	}
	switch mode {
	case "der":
		return data, nil, nil
	case "pem":
		block, _ := pem.Decode(data)
		if block == nil {
			return nil, nil, errors.New("no PEM block found")
		}
		return block.Bytes, nil, nil
	case "hex":
		contents, err := pdfsec.DecodeContents(data)
		return contents, nil, err
	case "pdf":
		return decodePDF(data, byteRange)
	default:
		return nil, nil, fmt.Errorf("unknown input encoding %q", mode)
	}
}

func detectInput(data []byte) string {
	trimmed := bytes.TrimSpace(data)
	switch {
	case bytes.HasPrefix(trimmed, []byte("%PDF-")):
		return "pdf"
	case bytes.Contains(trimmed, []byte("-----BEGIN ")):
		return "pem"
	case len(trimmed) > 0 && (trimmed[0] == '<' || isHexText(trimmed)):
		return "hex"
	default:
		return "der"
	}
}

func isHexText(b []byte) bool {
	for _, c := range b {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		case c == ' ', c == '\t', c == '\r', c == '\n':
		default:
			return false
		}
	}
	return true
}

func decodePDF(data []byte, byteRange string) ([]byte, *signedPDF, error) {
	if byteRange == "" {
		return nil, nil, errors.New("-byterange is required for PDF input")
	}
	values, err := parseByteRange(byteRange)
	if err != nil {
		return nil, nil, err
	}
	br, err := pdfsec.ByteRangeFromArray(values)
	if err != nil {
		return nil, nil, err
	}
	if err := br.Validate(); err != nil {
		return nil, nil, err
	}
	contents, err := pdfsec.ContentsFromDocument(data, br)
	if err != nil {
		return nil, nil, err
	}
	return contents, &signedPDF{data: data, br: br}, nil
}

func parseByteRange(s string) ([]int64, error) {
	fields := strings.Fields(strings.Trim(strings.TrimSpace(s), "[]"))
	values := make([]int64, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseInt(f, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("byterange value %q: %w", f, err)
		}
		values = append(values, v)
	}
	return values, nil
}

func newReport(ps *pdfsec.ParsedSignature) *report {
	rep := &report{
		Digest:         ps.DigestAlgorithm.String(),
		Signature:      ps.SignatureAlgorithm.String(),
		SignatureBytes: len(ps.SignatureValue),
		SigningTime:    ps.SigningTime,
	}
	if !ps.TimestampTime.IsZero() {
		rep.TimestampTime = ps.TimestampTime.Format(time.RFC3339)
	}
	if cn, err := ps.SignerCommonName(); err == nil {
		rep.Signer = cn
	}
	return rep
}

// addDocument hashes the signed ranges with the signer's digest algorithm.
func (rep *report) addDocument(doc *signedPDF, alg pdfsec.DigestAlgorithm) error {
	res, err := pdfsec.ComputeDigest(doc.data, doc.br, alg)
	if err != nil {
		return err
	}
	updated := pdfsec.HasIncrementalUpdate(doc.data, doc.br)
	rep.ByteRange = doc.br.String()
	rep.DocumentDigest = res.Hex()
	rep.BytesHashed = res.BytesHashed
	rep.IncrementalUpdate = &updated
	return nil
}

func writeText(w io.Writer, rep *report) {
	fmt.Fprintf(w, "Digest algorithm:    %s\n", rep.Digest)
	fmt.Fprintf(w, "Signature algorithm: %s\n", rep.Signature)
	fmt.Fprintf(w, "Signature size:      %d bytes\n", rep.SignatureBytes)
	if rep.Signer != "" {
		fmt.Fprintf(w, "Signer:              %s\n", rep.Signer)
	}
	if rep.SigningTime != "" {
		fmt.Fprintf(w, "Signing time:        %s\n", rep.SigningTime)
	}
	if rep.TimestampTime != "" {
		fmt.Fprintf(w, "Timestamp:           %s\n", rep.TimestampTime)
	}
	if rep.ByteRange != "" {
		fmt.Fprintf(w, "ByteRange:           %s\n", rep.ByteRange)
		fmt.Fprintf(w, "Document digest:     %s (%d bytes)\n", rep.DocumentDigest, rep.BytesHashed)
		fmt.Fprintf(w, "Incremental update:  %t\n", *rep.IncrementalUpdate)
	}
}
