package auth

// Identity represents verified claims returned by an identity provider.
// It contains facts only, no decisions.
type Identity struct {
	Provider      string // e.g. "google"
	Subject       string // provider-scoped stable user identifier (sub)
	Email         string // email as asserted by the provider
	EmailVerified bool   // whether the provider asserts email ownership
	Name          string // display name, may be empty
	AvatarURL     string // picture claim, may be empty
}
