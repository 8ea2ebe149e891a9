package subscription

import (
	"fmt"
	"regexp"
	"strings"
)

var tokenPattern = regexp.MustCompile(`^[A-Z0-9]{64}$`)

// ValidateToken trims a pasted token and checks its format. Lowercase input is
// rejected as is. Nothing is sent to the API for a token that fails here.
func ValidateToken(raw string) (string, error) {
	token := strings.TrimSpace(raw)
	if !tokenPattern.MatchString(token) {
		return "", fmt.Errorf("%w: want 64 characters of A-Z and 0-9, got %d characters", ErrInvalidToken, len(token))
	}
	return token, nil
}
