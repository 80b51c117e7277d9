package vtube

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var idPattern = regexp.MustCompile(`^[a-f0-9]{32}$`)

// ValidateID reports whether s is a 32-character lowercase hex identifier,
// the format used for both ModelID and HotkeyID.
func ValidateID(s string) bool {
	return idPattern.MatchString(s)
}

// GenerateID returns a new random identifier in the installation's format.
// No registry is kept; collisions are treated as negligible.
func GenerateID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
