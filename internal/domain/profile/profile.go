// Package profile identifies the purchaser a cart is priced for.
package profile

import "strings"

// Profile is the purchasing identity. Guest checkouts use the zero value.
type Profile struct {
	ID    string
	Email string
}

// Anonymous is the guest profile.
var Anonymous = Profile{}

// IsAnonymous reports whether the profile is a guest.
func (p Profile) IsAnonymous() bool {
	return strings.TrimSpace(p.ID) == ""
}
