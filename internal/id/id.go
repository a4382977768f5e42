package id

import (
	"regexp"
	"strings"
)

var platformIdentityPattern = regexp.MustCompile(`^U[0-9A-Z]{10}$`)

// Kind classifies an account identifier
type Kind string

const (
	// KindPlatform is an identifier issued by the chat platform (U + 10 uppercase alphanumerics)
	KindPlatform Kind = "platform"
	// KindProvisional is any other identifier, created before identity verification
	KindProvisional Kind = "provisional"
)

// IsPlatformIdentity reports whether the identifier matches the platform's strict issuer format.
// No trimming or case folding is applied.
func IsPlatformIdentity(accountID string) bool {
	return platformIdentityPattern.MatchString(accountID)
}

// Classify returns the identifier kind
func Classify(accountID string) Kind {
	if IsPlatformIdentity(accountID) {
		return KindPlatform
	}
	return KindProvisional
}

// NormalizeEmail lowercases an email for duplicate detection.
// Whitespace is significant: two emails collide only when equal ignoring case.
func NormalizeEmail(email string) string {
	return strings.ToLower(email)
}
