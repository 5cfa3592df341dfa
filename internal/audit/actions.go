package audit

// Actions recorded by the credential subsystem.
const (
	ActionKeyGenerate = "authkey_generate"
	ActionKeyCommit   = "authkey_commit"
	ActionKeyReset    = "authkey_reset"
	ActionKeyRevoke   = "authkey_revoke"
)
