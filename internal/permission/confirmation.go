// Package permission implements the recorded-decision store that backs
// tool approval: once a caller grants or denies a specific tool call,
// the decision is keyed on the tool name and a canonical hash of its
// arguments so the same call (but not a superficially similar one)
// skips the approval prompt on replay.
package permission

// Permission is the caller's decision on a single approval prompt.
type Permission string

const (
	PermissionAlwaysAllow Permission = "always_allow"
	PermissionAllowOnce   Permission = "allow_once"
	PermissionCancel      Permission = "cancel"
	PermissionDenyOnce    Permission = "deny_once"
)

// PrincipalType identifies what kind of thing a confirmation applies
// to: a whole extension, a single tool, or a sampling (LLM-initiated)
// request.
type PrincipalType string

const (
	PrincipalExtension PrincipalType = "extension"
	PrincipalTool       PrincipalType = "tool"
	PrincipalSampling   PrincipalType = "sampling"
)

// Confirmation is the caller's response to one approval prompt.
type Confirmation struct {
	PrincipalType PrincipalType
	Permission    Permission
}

// IsAllow reports whether the confirmation permits the action to run.
func (c Confirmation) IsAllow() bool {
	return c.Permission == PermissionAlwaysAllow || c.Permission == PermissionAllowOnce
}

// IsDurable reports whether the confirmation should be persisted
// beyond this single call (AlwaysAllow is recorded with no expiry;
// AllowOnce/DenyOnce/Cancel are not recorded at all).
func (c Confirmation) IsDurable() bool {
	return c.Permission == PermissionAlwaysAllow
}
