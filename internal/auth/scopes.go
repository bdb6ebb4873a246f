package auth

// Scopes carried by session tokens.
const (
	ScopeSubmissionsWrite = "submissions:write"
	ScopeProgressRead     = "progress:read"
	ScopeProfileWrite     = "profile:write"
	// ScopeExperienceAdjust is never granted by sign-in; operators mint tokens carrying it.
	ScopeExperienceAdjust = "experience:adjust"
)

// DefaultScopes are granted to every signed-in user.
var DefaultScopes = []string{ScopeSubmissionsWrite, ScopeProgressRead, ScopeProfileWrite}
