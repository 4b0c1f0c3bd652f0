package util

import (
	"regexp"
	"unicode"
)

// Pre-compiled regex for WebFinger username validation
var webFingerValidCharsRegex = regexp.MustCompile(`^[A-Za-z0-9\-._~!$&'()*+,;=]+$`)

// IsValidWebFingerUsername validates that a username meets WebFinger/ActivityPub requirements.
//
// WebFinger allows these characters without percent-encoding:
// A-Z a-z 0-9 - . _ ~ ! $ & ' ( ) * + , ; =
//
// Any other Unicode character (like Ã¤, å­—, ðŸ”¥) must be percent-encoded and is rejected here.
// Non-printable/control characters are also rejected.
//
// Returns (true, "") if valid, or (false, "error message") if invalid.
func IsValidWebFingerUsername(username string) (bool, string) {
	if len(username) == 0 {
		return false, "Username must be at least 1 character"
	}

	// Check for valid WebFinger characters (no Unicode, no spaces, no special chars except allowed set)
	// Allowed: A-Z a-z 0-9 - . _ ~ ! $ & ' ( ) * + , ; =
	if !webFingerValidCharsRegex.MatchString(username) {
		return false, "Username contains invalid characters. Only A-Z, a-z, 0-9, and -._~!$&'()*+,;= are allowed"
	}

	// Check for control characters (shouldn't match regex above, but double-check)
	for _, r := range username {
		if unicode.IsControl(r) || !unicode.IsPrint(r) {
			return false, "Username contains non-printable characters"
		}
	}

	return true, ""
}

// preferredUsernameRegex is the stricter constraint on a local actor's
// preferred_username: at most 32 chars of [A-Za-z0-9_].
var preferredUsernameRegex = regexp.MustCompile(`^[A-Za-z0-9_]{1,32}$`)

// IsValidPreferredUsername validates an actor document's preferredUsername.
func IsValidPreferredUsername(username string) bool {
	return preferredUsernameRegex.MatchString(username)
}

// jsonPathSafeRegex bounds what a caller may splice into a JSON-path
// text fragment (e.g. a LIKE clause built from a host name).
var jsonPathSafeRegex = regexp.MustCompile(`^[A-Za-z0-9_:./-]+$`)

// IsJSONPathSafe reports whether s contains only characters permitted in a
// composed JSON-path text fragment. Persistence operations that interpolate
// a string into a path expression must reject anything that fails this
// check rather than pass it to the query.
func IsJSONPathSafe(s string) bool {
	return s != "" && jsonPathSafeRegex.MatchString(s)
}
