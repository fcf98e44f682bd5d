package pkg

import (
	"crypto/rand"
	"fmt"
)

const (
	roomCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	roomCodeLength   = 6
)

// GenerateRoomCode - returns a short shareable room code. Codes are not
// globally unique; callers must check the store before committing to one.
func GenerateRoomCode() (string, error) {
	b := make([]byte, roomCodeLength)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}

	for i := range b {
		b[i] = roomCodeAlphabet[int(b[i])%len(roomCodeAlphabet)]
	}

	return string(b), nil
}
