package pdfsec

import (
	"crypto/elliptic"
	"testing"

	"go.mozilla.org/pkcs7"
)

var fuzzParsedSignatureSink *ParsedSignature

// FuzzParsePKCS7Signature checks that arbitrary /Contents never panic the
// extractor and that every accepted input yields a complete descriptor.
func FuzzParsePKCS7Signature(f *testing.F) {
	cert, key := generateSelfSignedECDSA(f, elliptic.P256(), "fuzz-seed")
	der := signDetached(f, cert, key, pkcs7.OIDDigestAlgorithmSHA256, signedContent)
	f.Add(der)
	f.Add(toIndefinite(f, der))
	f.Add(append(append([]byte{}, der...), 0, 0, 0, 0))
	f.Add([]byte{0x30, 0x80, 0x00, 0x00})
	f.Add([]byte{})

	f.Fuzz(func(t *testing.T, data []byte) {
		ps, err := ParsePKCS7Signature(data)
		if err != nil {
			return
		}
		if ps.DigestAlgorithm.Hash() == 0 || ps.SignatureAlgorithm.DigestAlgorithm() == 0 {
			t.Fatalf("accepted input with unknown algorithms: %+v", ps)
		}
		if len(ps.SignerCertificateDER) == 0 {
			t.Fatal("accepted input without a certificate")
		}
		fuzzParsedSignatureSink = ps
		_, _ = ps.SignerCommonName()
	})
}
