package signing

const (
	// ClobDomainName is the EIP-712 domain for credential attestation.
	ClobDomainName = "ClobAuthDomain"

	// ClobVersion is the attestation domain version.
	ClobVersion = "1"

	// ExchangeDomainName is the EIP-712 domain for order signing.
	ExchangeDomainName = "Polymarket CTF Exchange"

	// ExchangeVersion is the order domain version.
	ExchangeVersion = "1"

	// MsgToSign is the attestation message the wallet signs when deriving
	// API credentials.
	MsgToSign = "This message attests that I control the given wallet"
)
