/*
Package timestamp reads RFC 3161 timestamp tokens carried as unsigned
attributes of a PDF signature's SignerInfo.
*/
package timestamp

import (
	"bytes"
	"crypto"
	"crypto/x509/pkix"
	"encoding/asn1"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/mdean75/pdfsec/ber"
	pkiasn1 "github.com/mdean75/pdfsec/internal/asn1"
)

// ErrImprintMismatch is returned by VerifyHash when the token's message
// imprint does not cover the given bytes.
var ErrImprintMismatch = errors.New("timestamp: message imprint does not match signature bytes")

// MessageImprint is the hash of the timestamped data (RFC 3161 section 2.4.1).
type MessageImprint struct {
	HashAlgorithm pkix.AlgorithmIdentifier
	HashedMessage []byte
}

// TSTInfo is the signed content of a timestamp token (RFC 3161 section 2.4.2).
type TSTInfo struct {
	Version        int
	Policy         asn1.ObjectIdentifier
	MessageImprint MessageImprint
	SerialNumber   *big.Int
	GenTime        time.Time        `asn1:"generalized"`
	Accuracy       Accuracy         `asn1:"optional"`
	Ordering       bool             `asn1:"optional,default:false"`
	Nonce          *big.Int         `asn1:"optional"`
	TSA            asn1.RawValue    `asn1:"optional,tag:0"`
	Extensions     []pkix.Extension `asn1:"optional,tag:1"`
}

// Accuracy bounds the deviation of GenTime.
type Accuracy struct {
	Seconds int `asn1:"optional"`
	Millis  int `asn1:"optional,tag:1"`
	Micros  int `asn1:"optional,tag:2"`
}

// ParseTSTInfo extracts the TSTInfo from a timestamp token: a ContentInfo
// wrapping SignedData whose eContent is an OCTET STRING holding TSTInfo.
// BER-encoded tokens are normalized first.
func ParseTSTInfo(token []byte) (*TSTInfo, error) {
	der, err := ber.ToDER(token)
	if err != nil {
		return nil, fmt.Errorf("normalize timestamp token: %w", err)
	}

	var ci pkiasn1.ContentInfo
	if _, err := asn1.Unmarshal(der, &ci); err != nil {
		return nil, fmt.Errorf("parse timestamp token ContentInfo: %w", err)
	}
	if !ci.ContentType.Equal(pkiasn1.OIDSignedData) {
		return nil, fmt.Errorf("timestamp token content type is not signedData: %s", ci.ContentType)
	}

	var sd pkiasn1.SignedData
	if _, err := asn1.Unmarshal(ci.Content.Bytes, &sd); err != nil {
		return nil, fmt.Errorf("parse timestamp token SignedData: %w", err)
	}
	if !sd.EncapContentInfo.EContentType.Equal(pkiasn1.OIDTSTInfo) {
		return nil, fmt.Errorf("timestamp token eContentType is not id-ct-TSTInfo: %s",
			sd.EncapContentInfo.EContentType)
	}
	if sd.EncapContentInfo.IsDetached() {
		return nil, errors.New("timestamp token has no eContent")
	}

	var tstDER []byte
	if _, err := asn1.Unmarshal(sd.EncapContentInfo.EContent.Bytes, &tstDER); err != nil {
		return nil, fmt.Errorf("parse TSTInfo OCTET STRING: %w", err)
	}

	var tst TSTInfo
	if _, err := asn1.Unmarshal(tstDER, &tst); err != nil {
		return nil, fmt.Errorf("parse TSTInfo: %w", err)
	}
	return &tst, nil
}

// VerifyHash checks that the token's message imprint is the hash of
// sigBytes, using the hash named in the imprint.
func VerifyHash(token, sigBytes []byte) error {
	tst, err := ParseTSTInfo(token)
	if err != nil {
		return err
	}

	h, err := hashForAlgorithm(tst.MessageImprint.HashAlgorithm.Algorithm)
	if err != nil {
		return err
	}

	hw := h.New()
	hw.Write(sigBytes)
	if !bytes.Equal(hw.Sum(nil), tst.MessageImprint.HashedMessage) {
		return ErrImprintMismatch
	}
	return nil
}

func hashForAlgorithm(oid asn1.ObjectIdentifier) (crypto.Hash, error) {
	switch {
	case oid.Equal(pkiasn1.OIDDigestAlgorithmSHA256):
		return crypto.SHA256, nil
	case oid.Equal(pkiasn1.OIDDigestAlgorithmSHA384):
		return crypto.SHA384, nil
	case oid.Equal(pkiasn1.OIDDigestAlgorithmSHA512):
		return crypto.SHA512, nil
	default:
		return 0, fmt.Errorf("unsupported hash algorithm in timestamp token: %s", oid)
	}
}
