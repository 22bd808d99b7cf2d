package request

// AuthKind identifies which authentication scheme an Auth carries.
type AuthKind int

const (
	AuthNone AuthKind = iota
	AuthBasic
	AuthDigest
	AuthOAuth2
)

func (k AuthKind) String() string {
	switch k {
	case AuthBasic:
		return "basic"
	case AuthDigest:
		return "digest"
	case AuthOAuth2:
		return "oauth2"
	default:
		return "none"
	}
}

// Auth is the authentication attached to a request. The zero value means no
// authentication. The protocols themselves are carried out by the transport.
type Auth struct {
	Kind       AuthKind
	Username   string
	Password   string
	Preemptive bool
	Token      string
}

// BasicAuth sends credentials only after the server challenges with 401.
func BasicAuth(username, password string) Auth {
	return Auth{Kind: AuthBasic, Username: username, Password: password}
}

// PreemptiveBasicAuth sends credentials with the first request.
func PreemptiveBasicAuth(username, password string) Auth {
	return Auth{Kind: AuthBasic, Username: username, Password: password, Preemptive: true}
}

func DigestAuth(username, password string) Auth {
	return Auth{Kind: AuthDigest, Username: username, Password: password}
}

// OAuth2Auth sends token as a bearer token.
func OAuth2Auth(token string) Auth {
	return Auth{Kind: AuthOAuth2, Token: token}
}
