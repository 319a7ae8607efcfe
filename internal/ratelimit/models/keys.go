package models

import "strings"

// SanitizeKeySegment escapes the key delimiter so an identifier containing
// ':' cannot address a neighbouring bucket.
func SanitizeKeySegment(s string) string {
	return strings.ReplaceAll(s, ":", "_")
}

// WriteKey names the bucket counting one user's state-changing requests.
func WriteKey(userID string) string {
	return "writes:user:" + SanitizeKeySegment(userID)
}
