// Package agent handles agent identifier validation for ingestion and
// simulation requests.
package agent

import (
	"errors"
	"fmt"
	"regexp"
)

// ErrInvalidID is returned for identifiers that do not match the accepted
// format.
var ErrInvalidID = errors.New("agent: invalid agent id")

// idRegex matches 1-64 characters: letters, digits, dot, dash, underscore,
// starting with a letter or digit. Example: claude-3.5, gpt4o_trader.
var idRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,63}$`)

// ParseID validates an agent identifier from a request path or body.
func ParseID(id string) (string, error) {
	if !idRegex.MatchString(id) {
		return "", fmt.Errorf("%w: %q (expected 1-64 chars of [A-Za-z0-9._-], starting alphanumeric)", ErrInvalidID, id)
	}
	return id, nil
}
