package utils

import (
	"crypto/rand"
	"encoding/base64"
	"io"
	"math/big"
)

const participantAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// ParticipantIDLength is the length of generated participant IDs.
const ParticipantIDLength = 6

// GenerateSecureToken creates a cryptographically secure random token.
func GenerateSecureToken(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := io.ReadFull(rand.Reader, bytes); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(bytes), nil
}

// GenerateParticipantID returns a short uppercase alphanumeric ID.
func GenerateParticipantID() (string, error) {
	base := big.NewInt(int64(len(participantAlphabet)))
	id := make([]byte, ParticipantIDLength)
	for i := range id {
		n, err := rand.Int(rand.Reader, base)
		if err != nil {
			return "", err
		}
		id[i] = participantAlphabet[n.Int64()]
	}
	return string(id), nil
}
