package pdfsec

// ParseOption configures ParsePKCS7Signature.
type ParseOption func(*parseConfig)

type parseConfig struct {
	strictTrailing bool
	checkImprint   bool
}

// WithStrictTrailingData rejects any bytes after the ContentInfo, including
// the zero padding PDF writers leave in a reserved /Contents string.
func WithStrictTrailingData() ParseOption {
	return func(c *parseConfig) {
		c.strictTrailing = true
	}
}

// WithTimestampImprintCheck requires an embedded signature timestamp token to
// parse and to carry the hash of the signature value in its message imprint.
// Without it a token that does not parse leaves TimestampTime zero.
func WithTimestampImprintCheck() ParseOption {
	return func(c *parseConfig) {
		c.checkImprint = true
	}
}

func newParseConfig(opts []ParseOption) *parseConfig {
	cfg := &parseConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}
