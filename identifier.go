package depender

import "regexp"

// IdentifierPattern is the rule step identifiers are checked against.
//
// The match is unanchored: an identifier is valid as soon as it contains a
// run of three allowed characters anywhere, so "a b!cde" passes because of
// "cde" while "ab" and "a!b!c" do not.
const IdentifierPattern = `[a-zA-Z0-9.\-_]{3,}`

var identifierRegexp = regexp.MustCompile(IdentifierPattern)

// ValidIdentifier reports whether id satisfies IdentifierPattern.
func ValidIdentifier(id string) bool {
	return identifierRegexp.MatchString(id)
}
