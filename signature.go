package pdfsec

import (
	"bytes"
	"crypto/x509"
	"encoding/asn1"
	"fmt"
	"time"

	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"

	"github.com/mdean75/pdfsec/ber"
	pkiasn1 "github.com/mdean75/pdfsec/internal/asn1"
	"github.com/mdean75/pdfsec/internal/timestamp"
	"github.com/mdean75/pdfsec/logging"
)

// setTagByte is the universal constructed SET tag. IMPLICIT [0] and [1]
// attribute sets are retagged with it before unmarshaling.
const setTagByte = byte(0x31)

// SigningTimePresent is the SigningTime text used when a signing-time
// attribute exists but its value cannot be decoded.
const SigningTimePresent = "(signing time present)"

// ParsedSignature describes the first signer of a PDF signature container.
// Byte slices are owned by the caller.
type ParsedSignature struct {
	DigestAlgorithm    DigestAlgorithm
	SignatureAlgorithm SignatureAlgorithm

	// SignatureValue is the raw signature. For ECDSA it is a DER
	// Ecdsa-Sig-Value.
	SignatureValue []byte

	// SignerCertificateDER is the first certificate of the SignedData
	// certificate set.
	SignerCertificateDER []byte

	// SigningTime is empty when the signer has no signing-time attribute,
	// RFC 3339 text when it decodes and SigningTimePresent otherwise.
	SigningTime string

	// SignedAt is the decoded signing time, zero when absent or undecodable.
	SignedAt time.Time

	// TimestampTime is the genTime of an embedded RFC 3161 signature
	// timestamp token, zero when there is none.
	TimestampTime time.Time
}

// ParsePKCS7Signature parses the /Contents of a PDF signature dictionary: a
// BER- or DER-encoded ContentInfo wrapping SignedData. Only the first
// SignerInfo and the first certificate are examined.
func ParsePKCS7Signature(contents []byte, opts ...ParseOption) (*ParsedSignature, error) {
	cfg := newParseConfig(opts)

	der, err := ber.ToDER(contents)
	if err != nil {
		return nil, wrapError(CodeCMSParsing, "BER to DER normalization failed", err)
	}

	var ci pkiasn1.ContentInfo
	rest, err := asn1.Unmarshal(der, &ci)
	if err != nil {
		return nil, wrapError(CodeCMSParsing, "parsing ContentInfo", err)
	}
	if err := checkTrailing(rest, cfg.strictTrailing); err != nil {
		return nil, err
	}
	if !ci.ContentType.Equal(pkiasn1.OIDSignedData) {
		return nil, newError(CodeCMSParsing, "expected SignedData, got OID: %s", ci.ContentType)
	}

	var sd pkiasn1.SignedData
	if _, err := asn1.Unmarshal(ci.Content.Bytes, &sd); err != nil {
		return nil, wrapError(CodeCMSParsing, "parsing SignedData", err)
	}
	if len(sd.SignerInfos) == 0 {
		return nil, newError(CodeCMSParsing, "No signer info found in SignedData")
	}
	si := sd.SignerInfos[0]

	digest, err := DigestAlgorithmFromOID(si.DigestAlgorithm.Algorithm)
	if err != nil {
		return nil, err
	}
	sigAlg, err := SignatureAlgorithmFromOID(si.SignatureAlgorithm.Algorithm, digest)
	if err != nil {
		return nil, err
	}
	logging.Logger().Debug("pdfsec: signer algorithms",
		"digest", digest.String(), "signature", sigAlg.String(), "signers", len(sd.SignerInfos))

	certDER, err := firstCertificate(sd.Certificates)
	if err != nil {
		return nil, err
	}

	ps := &ParsedSignature{
		DigestAlgorithm:      digest,
		SignatureAlgorithm:   sigAlg,
		SignatureValue:       bytes.Clone(si.Signature),
		SignerCertificateDER: certDER,
	}

	if err := ps.readSignedAttrs(si.SignedAttrs.FullBytes); err != nil {
		return nil, err
	}
	if err := ps.readUnsignedAttrs(si.UnsignedAttrs.FullBytes, cfg.checkImprint); err != nil {
		return nil, err
	}
	return ps, nil
}

// checkTrailing accepts trailing bytes only when they are all zero and strict
// is false.
func checkTrailing(rest []byte, strict bool) error {
	if len(rest) == 0 {
		return nil
	}
	if strict {
		return newError(CodeCMSParsing, "%d bytes of trailing data after ContentInfo", len(rest))
	}
	for i, b := range rest {
		if b != 0 {
			return newError(CodeCMSParsing,
				"non-zero trailing data after ContentInfo at offset %d", i)
		}
	}
	logging.Logger().Debug("pdfsec: ignoring zero padding after ContentInfo", "bytes", len(rest))
	return nil
}

// firstCertificate returns a copy of the first CertificateChoices entry,
// which must be a plain X.509 certificate.
func firstCertificate(certs []asn1.RawValue) ([]byte, error) {
	if certs == nil {
		return nil, newError(CodeCMSParsing, "No certificates in SignedData")
	}
	if len(certs) == 0 {
		return nil, newError(CodeCMSParsing, "No certificates found")
	}
	first := certs[0]
	if first.Class != asn1.ClassUniversal || first.Tag != asn1.TagSequence || !first.IsCompound {
		return nil, newError(CodeCMSParsing, "Unsupported certificate type")
	}
	return bytes.Clone(first.FullBytes), nil
}

func parseAttributes(implicit []byte, which string) (pkiasn1.RawAttributes, error) {
	setBytes := retagAsSet(implicit)
	var attrs pkiasn1.RawAttributes
	if _, err := asn1.UnmarshalWithParams(setBytes, &attrs, "set"); err != nil {
		return nil, wrapError(CodeCMSParsing, "parsing "+which+" attributes", err)
	}
	return attrs, nil
}

func (ps *ParsedSignature) readSignedAttrs(raw []byte) error {
	if len(raw) == 0 {
		return nil
	}
	attrs, err := parseAttributes(raw, "signed")
	if err != nil {
		return err
	}
	for _, attr := range attrs {
		if !attr.Type.Equal(pkiasn1.OIDAttributeSigningTime) {
			continue
		}
		t, ok := decodeTime(attr.Values.Bytes)
		if !ok {
			logging.Logger().Debug("pdfsec: signing time attribute not decodable")
			ps.SigningTime = SigningTimePresent
			return nil
		}
		ps.SignedAt = t
		ps.SigningTime = t.Format(time.RFC3339)
		return nil
	}
	return nil
}

func (ps *ParsedSignature) readUnsignedAttrs(raw []byte, checkImprint bool) error {
	if len(raw) == 0 {
		return nil
	}
	attrs, err := parseAttributes(raw, "unsigned")
	if err != nil {
		return err
	}
	for _, attr := range attrs {
		if !attr.Type.Equal(pkiasn1.OIDAttributeTimeStampToken) {
			continue
		}
		// Values.Bytes is the token ContentInfo inside the SET.
		tst, err := timestamp.ParseTSTInfo(attr.Values.Bytes)
		if err != nil {
			if checkImprint {
				return wrapError(CodeCMSParsing, "parsing signature timestamp token", err)
			}
			logging.Logger().Debug("pdfsec: ignoring unparseable signature timestamp token",
				"error", err)
			return nil
		}
		if checkImprint {
			if err := timestamp.VerifyHash(attr.Values.Bytes, ps.SignatureValue); err != nil {
				return wrapError(CodeCMSParsing, "checking signature timestamp imprint", err)
			}
		}
		ps.TimestampTime = tst.GenTime.UTC()
		return nil
	}
	return nil
}

// decodeTime reads the first value of a signing-time attribute, a UTCTime
// or GeneralizedTime.
func decodeTime(values []byte) (time.Time, bool) {
	s := cryptobyte.String(values)
	var t time.Time
	switch {
	case s.PeekASN1Tag(cbasn1.UTCTime):
		if !s.ReadASN1UTCTime(&t) {
			return time.Time{}, false
		}
	case s.PeekASN1Tag(cbasn1.GeneralizedTime):
		if !s.ReadASN1GeneralizedTime(&t) {
			return time.Time{}, false
		}
	default:
		return time.Time{}, false
	}
	return t.UTC(), true
}

// retagAsSet copies an IMPLICIT [n] attribute set and gives it the SET tag.
func retagAsSet(implicit []byte) []byte {
	if len(implicit) == 0 {
		return implicit
	}
	out := bytes.Clone(implicit)
	out[0] = setTagByte
	return out
}

// Certificate parses SignerCertificateDER.
func (ps *ParsedSignature) Certificate() (*x509.Certificate, error) {
	cert, err := x509.ParseCertificate(ps.SignerCertificateDER)
	if err != nil {
		return nil, wrapError(CodeCMSParsing, "Failed to parse certificate", err)
	}
	return cert, nil
}

// SignerCommonName returns the first commonName of the signer certificate's
// subject. Values that are neither UTF8String nor PrintableString are
// reported as "<binary CN: N bytes>".
func (ps *ParsedSignature) SignerCommonName() (string, error) {
	cert, err := ps.Certificate()
	if err != nil {
		return "", err
	}

	subject := cryptobyte.String(cert.RawSubject)
	var rdns cryptobyte.String
	if !subject.ReadASN1(&rdns, cbasn1.SEQUENCE) {
		return "", newError(CodeCMSParsing, "malformed certificate subject")
	}
	for !rdns.Empty() {
		var rdn cryptobyte.String
		if !rdns.ReadASN1(&rdn, cbasn1.SET) {
			return "", newError(CodeCMSParsing, "malformed relative distinguished name")
		}
		for !rdn.Empty() {
			var (
				atv   cryptobyte.String
				oid   asn1.ObjectIdentifier
				value cryptobyte.String
				tag   cbasn1.Tag
			)
			if !rdn.ReadASN1(&atv, cbasn1.SEQUENCE) ||
				!atv.ReadASN1ObjectIdentifier(&oid) ||
				!atv.ReadAnyASN1(&value, &tag) {
				return "", newError(CodeCMSParsing, "malformed attribute type and value")
			}
			if !oid.Equal(pkiasn1.OIDCommonName) {
				continue
			}
			switch tag {
			case cbasn1.UTF8String, cbasn1.PrintableString:
				return string(value), nil
			default:
				return fmt.Sprintf("<binary CN: %d bytes>", len(value)), nil
			}
		}
	}
	return "", newError(CodeCMSParsing, "Certificate has no common name")
}
