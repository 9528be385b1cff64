package flagcube

import (
	"fmt"
	"strings"
)

// Policy controls how Load merges pre-existing flags.
type Policy uint8

const (
	// PolicyReset discards pre-existing flags. Every loaded cell and row
	// starts clean and agents re-derive everything.
	PolicyReset Policy = iota
	// PolicyHonor copies pre-existing flags faithfully.
	PolicyHonor
	// PolicyIgnore currently behaves like PolicyHonor.
	PolicyIgnore
)

// String returns the policy name.
func (p Policy) String() string {
	switch p {
	case PolicyReset:
		return "reset"
	case PolicyHonor:
		return "honor"
	case PolicyIgnore:
		return "ignore"
	default:
		return fmt.Sprintf("Policy(%d)", uint8(p))
	}
}

// ParsePolicy parses a policy name as returned by String.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "reset":
		return PolicyReset, nil
	case "honor", "honour":
		return PolicyHonor, nil
	case "ignore":
		return PolicyIgnore, nil
	default:
		return 0, fmt.Errorf("unknown policy %q", s)
	}
}

// keepsPreFlags reports whether loads under p copy pre-existing flags.
func (p Policy) keepsPreFlags() bool {
	return p != PolicyReset
}
