package pkiasn1

import (
	"crypto/x509/pkix"
	"encoding/asn1"
)

// ContentInfo is the outer CMS wrapper (RFC 5652 section 3).
type ContentInfo struct {
	ContentType asn1.ObjectIdentifier
	// Content holds the [0] EXPLICIT wrapper; Content.Bytes is the inner TLV.
	Content asn1.RawValue `asn1:"explicit,tag:0"`
}

// SignedData is RFC 5652 section 5.1.
type SignedData struct {
	Version          int
	DigestAlgorithms []pkix.AlgorithmIdentifier `asn1:"set"`
	EncapContentInfo EncapsulatedContentInfo
	// Certificates is the IMPLICIT [0] CertificateSet. Each entry is one
	// CertificateChoices value; only untagged entries are X.509 certificates.
	Certificates []asn1.RawValue `asn1:"optional,tag:0"`
	CRLs         []asn1.RawValue `asn1:"optional,tag:1"`
	SignerInfos  []SignerInfo    `asn1:"set"`
}

// EncapsulatedContentInfo is RFC 5652 section 5.2. PDF signatures are
// detached, so EContent is normally absent.
type EncapsulatedContentInfo struct {
	EContentType asn1.ObjectIdentifier
	EContent     asn1.RawValue `asn1:"optional,explicit,tag:0"`
}

// IsDetached reports whether EContent is absent.
func (e *EncapsulatedContentInfo) IsDetached() bool {
	return len(e.EContent.FullBytes) == 0
}

// SignerInfo is RFC 5652 section 5.3.
type SignerInfo struct {
	Version int
	// SID is IssuerAndSerialNumber or [0] SubjectKeyIdentifier.
	SID             asn1.RawValue
	DigestAlgorithm pkix.AlgorithmIdentifier
	// SignedAttrs keeps its IMPLICIT [0] tag; retag to SET (0x31) before
	// unmarshaling the attributes.
	SignedAttrs        asn1.RawValue `asn1:"optional,tag:0"`
	SignatureAlgorithm pkix.AlgorithmIdentifier
	Signature          []byte
	UnsignedAttrs      asn1.RawValue `asn1:"optional,tag:1"`
}

// Attribute is a CMS attribute: an OID and a SET OF values.
type Attribute struct {
	Type   asn1.ObjectIdentifier
	Values asn1.RawValue `asn1:"set"`
}

// RawAttributes is a SET OF Attribute.
type RawAttributes []Attribute
