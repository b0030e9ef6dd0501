package domain

// Handle names with a fixed meaning across kinds.
const (
	// HandleDefault is the implicit single output of non-branching nodes.
	// It is omitted on the wire.
	HandleDefault = ""
	// HandleTrue and HandleFalse are the two outputs of a conditional node.
	HandleTrue  = "true"
	HandleFalse = "false"
	// HandleInvalid is the menu output taken on timeout or an undeclared digit.
	HandleInvalid = "invalid"
)

// DTMFKeys lists the characters a caller can send from a keypad.
const DTMFKeys = "0123456789*#"

// IsDTMF reports whether s is exactly one keypad character.
func IsDTMF(s string) bool {
	if len(s) != 1 {
		return false
	}
	for i := 0; i < len(DTMFKeys); i++ {
		if DTMFKeys[i] == s[0] {
			return true
		}
	}
	return false
}
