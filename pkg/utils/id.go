package utils

import (
	"crypto/rand"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// GenerateConnectionID generates a unique connection ID for transports that
// do not supply their own.
func GenerateConnectionID() string {
	return "conn_" + uuid.NewString()
}

// GenerateGuestID generates a user ID for an unauthenticated connection.
func GenerateGuestID() string {
	return "guest_" + uuid.NewString()[:8]
}

const meetingCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// GenerateMeetingCode generates an 8-character meeting code. Ambiguous
// characters (0/O, 1/I) are excluded.
func GenerateMeetingCode() string {
	b := make([]byte, 8)
	rand.Read(b)
	var sb strings.Builder
	for _, c := range b {
		sb.WriteByte(meetingCodeAlphabet[int(c)%len(meetingCodeAlphabet)])
	}
	return sb.String()
}

// GenerateRequestID generates a unique request ID for HTTP logging.
func GenerateRequestID() string {
	return fmt.Sprintf("req_%s", uuid.NewString()[:13])
}
