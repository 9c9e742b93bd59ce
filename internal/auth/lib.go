package auth

import (
	"strings"
)

// bcrypt ignores everything past 72 bytes.
const MaxPasswordBytes = 72

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
