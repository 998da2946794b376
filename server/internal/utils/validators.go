package utils

import "unicode"

// MaxParticipantIDLength bounds participant IDs supplied by clients.
const MaxParticipantIDLength = 64

// IsValidParticipantID checks that id is non-empty, bounded and made only of
// letters, digits, dashes and underscores.
func IsValidParticipantID(id string) bool {
	if id == "" || len(id) > MaxParticipantIDLength {
		return false
	}
	for _, char := range id {
		switch {
		case unicode.IsLetter(char), unicode.IsDigit(char):
		case char == '-' || char == '_':
		default:
			return false
		}
	}
	return true
}
