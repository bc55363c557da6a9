package pdfsec

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mozilla.org/pkcs7"
	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"

	pkiasn1 "github.com/mdean75/pdfsec/internal/asn1"
	"github.com/mdean75/pdfsec/internal/timestamp"
)

// --- Test certificate helpers ---

func generateSelfSignedRSA(t testing.TB, cn string) (*x509.Certificate, *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return selfSigned(t, key.Public(), key, &x509.Certificate{Subject: pkix.Name{CommonName: cn}}), key
}

func generateSelfSignedECDSA(t testing.TB, curve elliptic.Curve, cn string) (*x509.Certificate, *ecdsa.PrivateKey) {
	t.Helper()
	key, err := ecdsa.GenerateKey(curve, rand.Reader)
	require.NoError(t, err)
	return selfSigned(t, key.Public(), key, &x509.Certificate{Subject: pkix.Name{CommonName: cn}}), key
}

// selfSigned fills the validity fields of tmpl and self-signs it.
func selfSigned(t testing.TB, pub crypto.PublicKey, signer crypto.Signer, tmpl *x509.Certificate) *x509.Certificate {
	t.Helper()
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	require.NoError(t, err)

	tmpl.SerialNumber = serial
	tmpl.NotBefore = time.Now().Add(-time.Hour)
	tmpl.NotAfter = time.Now().Add(24 * time.Hour)
	tmpl.KeyUsage = x509.KeyUsageDigitalSignature
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, pub, signer)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return cert
}

// --- pkcs7-built containers ---

// signDetached produces a detached PDF-style SignedData over content.
func signDetached(t testing.TB, cert *x509.Certificate, key crypto.PrivateKey, digest asn1.ObjectIdentifier, content []byte) []byte {
	t.Helper()
	sd, err := pkcs7.NewSignedData(content)
	require.NoError(t, err)
	sd.SetDigestAlgorithm(digest)
	require.NoError(t, sd.AddSigner(cert, key, pkcs7.SignerInfoConfig{}))
	sd.Detach()
	der, err := sd.Finish()
	require.NoError(t, err)
	return der
}

// buildTimestampToken wraps a TSTInfo over imprint in a token signed by a
// throwaway TSA certificate.
func buildTimestampToken(t testing.TB, genTime time.Time, imprint []byte) []byte {
	t.Helper()
	tstDER, err := asn1.Marshal(timestamp.TSTInfo{
		Version: 1,
		Policy:  asn1.ObjectIdentifier{1, 2, 3, 4},
		MessageImprint: timestamp.MessageImprint{
			HashAlgorithm: pkix.AlgorithmIdentifier{Algorithm: pkiasn1.OIDDigestAlgorithmSHA256},
			HashedMessage: imprint,
		},
		SerialNumber: big.NewInt(99),
		GenTime:      genTime,
	})
	require.NoError(t, err)

	sd, err := pkcs7.NewSignedData(tstDER)
	require.NoError(t, err)
	sd.GetSignedData().ContentInfo.ContentType = pkiasn1.OIDTSTInfo
	sd.SetDigestAlgorithm(pkcs7.OIDDigestAlgorithmSHA256)
	cert, key := generateSelfSignedECDSA(t, elliptic.P256(), "test-tsa")
	require.NoError(t, sd.AddSigner(cert, key, pkcs7.SignerInfoConfig{}))
	token, err := sd.Finish()
	require.NoError(t, err)
	return token
}

// --- Hand-built containers ---

// issuerAndSerialNumber is the SignerIdentifier choice of RFC 5652 section
// 10.2.4. The parser never decodes the SID, so only fixtures need it.
type issuerAndSerialNumber struct {
	Issuer       asn1.RawValue
	SerialNumber *big.Int
}

// cmsFixture describes a SignedData built field by field, for shapes a
// signing library will not produce.
type cmsFixture struct {
	contentType asn1.ObjectIdentifier
	digest      asn1.ObjectIdentifier
	sigAlg      asn1.ObjectIdentifier
	signature   []byte

	cert      *x509.Certificate
	certs     []asn1.RawValue // overrides cert when non-nil
	omitCerts bool

	signedAttrs   []pkiasn1.Attribute
	unsignedAttrs []pkiasn1.Attribute
	noSigners     bool
}

func (f cmsFixture) build(t testing.TB) []byte {
	t.Helper()

	if f.contentType == nil {
		f.contentType = pkiasn1.OIDSignedData
	}
	if f.digest == nil {
		f.digest = pkiasn1.OIDDigestAlgorithmSHA256
	}
	if f.sigAlg == nil {
		f.sigAlg = pkiasn1.OIDSignatureAlgorithmSHA256WithRSA
	}
	if f.signature == nil {
		f.signature = []byte("not a real signature")
	}
	if f.cert == nil {
		f.cert, _ = generateSelfSignedECDSA(t, elliptic.P256(), "fixture-signer")
	}

	sid, err := asn1.Marshal(issuerAndSerialNumber{
		Issuer:       asn1.RawValue{FullBytes: f.cert.RawIssuer},
		SerialNumber: f.cert.SerialNumber,
	})
	require.NoError(t, err)

	si := pkiasn1.SignerInfo{
		Version:            1,
		SID:                asn1.RawValue{FullBytes: sid},
		DigestAlgorithm:    pkix.AlgorithmIdentifier{Algorithm: f.digest},
		SignatureAlgorithm: pkix.AlgorithmIdentifier{Algorithm: f.sigAlg},
		Signature:          f.signature,
	}
	if f.signedAttrs != nil {
		si.SignedAttrs = asn1.RawValue{FullBytes: marshalAttrSet(t, f.signedAttrs, 0xA0)}
	}
	if f.unsignedAttrs != nil {
		si.UnsignedAttrs = asn1.RawValue{FullBytes: marshalAttrSet(t, f.unsignedAttrs, 0xA1)}
	}

	sd := pkiasn1.SignedData{
		Version:          1,
		DigestAlgorithms: []pkix.AlgorithmIdentifier{{Algorithm: f.digest}},
		EncapContentInfo: pkiasn1.EncapsulatedContentInfo{EContentType: pkiasn1.OIDData},
	}
	if !f.noSigners {
		sd.SignerInfos = []pkiasn1.SignerInfo{si}
	}
	switch {
	case f.omitCerts:
	case f.certs != nil:
		sd.Certificates = f.certs
	default:
		sd.Certificates = []asn1.RawValue{{FullBytes: f.cert.Raw}}
	}

	sdDER, err := asn1.Marshal(sd)
	require.NoError(t, err)
	der, err := asn1.Marshal(pkiasn1.ContentInfo{
		ContentType: f.contentType,
		Content: asn1.RawValue{
			Class:      asn1.ClassContextSpecific,
			Tag:        0,
			IsCompound: true,
			Bytes:      sdDER,
		},
	})
	require.NoError(t, err)
	return der
}

// marshalAttrSet encodes attrs as a SET and replaces the tag with the
// IMPLICIT [0] or [1] tag used inside SignerInfo.
func marshalAttrSet(t testing.TB, attrs []pkiasn1.Attribute, tag byte) []byte {
	t.Helper()
	b, err := asn1.MarshalWithParams(pkiasn1.RawAttributes(attrs), "set")
	require.NoError(t, err)
	b[0] = tag
	return b
}

// attr builds an attribute holding a single already-encoded value.
func attr(oid asn1.ObjectIdentifier, value []byte) pkiasn1.Attribute {
	return pkiasn1.Attribute{
		Type: oid,
		Values: asn1.RawValue{
			Class:      asn1.ClassUniversal,
			Tag:        asn1.TagSet,
			IsCompound: true,
			Bytes:      value,
		},
	}
}

func mustMarshal(t testing.TB, v any, params string) []byte {
	t.Helper()
	b, err := asn1.MarshalWithParams(v, params)
	require.NoError(t, err)
	return b
}

// toIndefinite re-encodes every constructed element of der with indefinite
// length, the way streaming encoders emit CMS.
func toIndefinite(t testing.TB, der []byte) []byte {
	t.Helper()
	var out []byte
	s := cryptobyte.String(der)
	for !s.Empty() {
		var (
			elem cryptobyte.String
			tag  cbasn1.Tag
		)
		require.True(t, s.ReadAnyASN1Element(&elem, &tag))
		if tag&cbasn1.Tag(0x20) == 0 {
			out = append(out, elem...)
			continue
		}
		var content cryptobyte.String
		require.True(t, elem.ReadAnyASN1(&content, &tag))
		out = append(out, byte(tag), 0x80)
		out = append(out, toIndefinite(t, content)...)
		out = append(out, 0x00, 0x00)
	}
	return out
}
