package api

// Policy is the single place authorization and visibility rules live.
// Handlers never inspect the admin flag directly; they ask the policy.
//
// The rules: exactly one admin exists once any user does. Only the admin may
// update the passcode, hide a message for everyone, hard-clear the chat,
// delete users, reset the app, or reassign the admin role. Everyone else may
// post, react, mark seen and clear their own view.
type Policy struct{}

// CanUpdatePasscode reports whether u may change the shared passcode.
func (Policy) CanUpdatePasscode(u User) bool {
	return u.IsAdmin
}

// CanModerate reports whether u may hide a message for all users or
// hard-delete the entire history.
func (Policy) CanModerate(u User) bool {
	return u.IsAdmin
}

// CanManageUsers reports whether u may delete other users or reset the app.
func (Policy) CanManageUsers(u User) bool {
	return u.IsAdmin
}

// CanAssignAdmin reports whether u may hand the admin role to someone.
// Before any admin exists, anyone may bootstrap one.
func (Policy) CanAssignAdmin(u User, hasAdmin bool) bool {
	if !hasAdmin {
		return true
	}
	return u.IsAdmin
}

// Visible reports whether viewer sees msg. The admin sees everything; other
// users do not see messages hidden for them. An empty viewer id means an
// unscoped listing, which is unfiltered.
func (Policy) Visible(msg Message, viewer User) bool {
	if viewer.ID == "" || viewer.IsAdmin {
		return true
	}
	for _, id := range msg.DeletedFor {
		if id == viewer.ID {
			return false
		}
	}
	return true
}
