package pdfsec

import (
	"crypto"
	_ "crypto/sha256"
	_ "crypto/sha512"
	"encoding/asn1"

	pkiasn1 "github.com/mdean75/pdfsec/internal/asn1"
)

// DigestAlgorithm is a message digest recognised in PDF signatures.
type DigestAlgorithm int

const (
	SHA256 DigestAlgorithm = iota + 1
	SHA384
	SHA512
)

type digestInfo struct {
	name string
	oid  asn1.ObjectIdentifier
	hash crypto.Hash
}

var digests = map[DigestAlgorithm]digestInfo{
	SHA256: {"SHA-256", pkiasn1.OIDDigestAlgorithmSHA256, crypto.SHA256},
	SHA384: {"SHA-384", pkiasn1.OIDDigestAlgorithmSHA384, crypto.SHA384},
	SHA512: {"SHA-512", pkiasn1.OIDDigestAlgorithmSHA512, crypto.SHA512},
}

// oidToDigest maps a digest OID string back to its DigestAlgorithm.
var oidToDigest = map[string]DigestAlgorithm{
	pkiasn1.OIDDigestAlgorithmSHA256.String(): SHA256,
	pkiasn1.OIDDigestAlgorithmSHA384.String(): SHA384,
	pkiasn1.OIDDigestAlgorithmSHA512.String(): SHA512,
}

// OID returns the algorithm's object identifier, or nil for an unknown value.
func (d DigestAlgorithm) OID() asn1.ObjectIdentifier {
	return digests[d].oid
}

// Hash returns the crypto.Hash implementing d, or 0 for an unknown value.
func (d DigestAlgorithm) Hash() crypto.Hash {
	return digests[d].hash
}

func (d DigestAlgorithm) String() string {
	if info, ok := digests[d]; ok {
		return info.name
	}
	return "unknown"
}

// DigestAlgorithmFromOID maps oid to a DigestAlgorithm. Unknown OIDs
// return an ErrUnsupportedAlgorithm error naming the OID.
func DigestAlgorithmFromOID(oid asn1.ObjectIdentifier) (DigestAlgorithm, error) {
	d, ok := oidToDigest[oid.String()]
	if !ok {
		return 0, unsupportedAlgorithm("digest", oid)
	}
	return d, nil
}

// SignatureAlgorithm is a signature scheme recognised in PDF signatures.
type SignatureAlgorithm int

const (
	RSASHA256 SignatureAlgorithm = iota + 1
	RSASHA384
	RSASHA512
	ECDSASHA256
	ECDSASHA384
)

var signatureNames = map[SignatureAlgorithm]string{
	RSASHA256:   "RSA-SHA256",
	RSASHA384:   "RSA-SHA384",
	RSASHA512:   "RSA-SHA512",
	ECDSASHA256: "ECDSA-SHA256",
	ECDSASHA384: "ECDSA-SHA384",
}

var signatureDigests = map[SignatureAlgorithm]DigestAlgorithm{
	RSASHA256:   SHA256,
	RSASHA384:   SHA384,
	RSASHA512:   SHA512,
	ECDSASHA256: SHA256,
	ECDSASHA384: SHA384,
}

// oidToSignature holds the OIDs that name their digest. rsaEncryption is
// resolved separately through the SignerInfo digest algorithm.
var oidToSignature = map[string]SignatureAlgorithm{
	pkiasn1.OIDSignatureAlgorithmSHA256WithRSA.String():   RSASHA256,
	pkiasn1.OIDSignatureAlgorithmSHA384WithRSA.String():   RSASHA384,
	pkiasn1.OIDSignatureAlgorithmSHA512WithRSA.String():   RSASHA512,
	pkiasn1.OIDSignatureAlgorithmECDSAWithSHA256.String(): ECDSASHA256,
	pkiasn1.OIDSignatureAlgorithmECDSAWithSHA384.String(): ECDSASHA384,
}

var rsaByDigest = map[DigestAlgorithm]SignatureAlgorithm{
	SHA256: RSASHA256,
	SHA384: RSASHA384,
	SHA512: RSASHA512,
}

// DigestAlgorithm returns the digest the signature scheme hashes with.
func (s SignatureAlgorithm) DigestAlgorithm() DigestAlgorithm {
	return signatureDigests[s]
}

func (s SignatureAlgorithm) String() string {
	if name, ok := signatureNames[s]; ok {
		return name
	}
	return "unknown"
}

// SignatureAlgorithmFromOID maps oid to a SignatureAlgorithm. The generic
// rsaEncryption OID takes its hash from digest.
func SignatureAlgorithmFromOID(oid asn1.ObjectIdentifier, digest DigestAlgorithm) (SignatureAlgorithm, error) {
	if oid.Equal(pkiasn1.OIDSignatureAlgorithmRSA) {
		if s, ok := rsaByDigest[digest]; ok {
			return s, nil
		}
		return 0, unsupportedAlgorithm("signature", oid)
	}
	s, ok := oidToSignature[oid.String()]
	if !ok {
		return 0, unsupportedAlgorithm("signature", oid)
	}
	return s, nil
}
