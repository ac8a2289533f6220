package sanitize

// Policy drives link extraction on the rendering side. Keywords
// short-circuit everything: a message containing one is rendered as
// plain text with no link detection at all. Domains are matched on
// equality or subdomain suffix.
type Policy struct {
	// BlockedKeywords disable link detection for the whole message
	// (case-insensitive substring match).
	BlockedKeywords []string

	// AllowedProtocols is the scheme whitelist. Empty means the
	// defaults: http, https, mailto, ftp.
	AllowedProtocols []string

	// AllowedDomains is consulted only in strict mode: a link survives
	// only if its host equals or is a subdomain of one entry.
	AllowedDomains []string

	// BlockedDomains is consulted outside strict mode: a link is
	// rejected if its host equals or is a subdomain of one entry.
	BlockedDomains []string

	StrictMode bool
}

// DefaultProtocols are the schemes accepted when the policy names none.
var DefaultProtocols = []string{"http", "https", "mailto", "ftp"}
