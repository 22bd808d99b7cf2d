package http

import (
	"crypto/md5"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
)

// Challenge is one parsed WWW-Authenticate challenge.
type Challenge struct {
	Scheme string
	Params map[string]string
}

// ParseWWWAuthenticate parses the WWW-Authenticate header from a 401 response.
// Quoted values may contain commas, e.g. qop="auth,auth-int".
func ParseWWWAuthenticate(header string) *Challenge {
	header = strings.TrimSpace(header)
	scheme, rest, _ := strings.Cut(header, " ")
	c := &Challenge{
		Scheme: strings.ToLower(scheme),
		Params: make(map[string]string),
	}

	for _, part := range splitParams(rest) {
		key, value, found := strings.Cut(part, "=")
		if !found {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.Trim(strings.TrimSpace(value), `"`)
		c.Params[key] = value
	}

	return c
}

func splitParams(s string) []string {
	var parts []string
	var current strings.Builder
	quoted := false
	for _, ch := range s {
		switch {
		case ch == '"':
			quoted = !quoted
			current.WriteRune(ch)
		case ch == ',' && !quoted:
			parts = append(parts, current.String())
			current.Reset()
		default:
			current.WriteRune(ch)
		}
	}
	if current.Len() > 0 {
		parts = append(parts, current.String())
	}
	return parts
}

// BasicAuthorization returns the Authorization header value for basic auth.
func BasicAuthorization(username, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(username+":"+password))
}

// DigestAuth contains the parameters needed for digest authentication
type DigestAuth struct {
	Username string
	Password string
	Realm    string
	Nonce    string
	URI      string
	Qop      string
	Nc       string
	Cnonce   string
	Opaque   string
	Method   string
}

// NewDigestAuth prepares a digest response for a challenge. Only the "auth"
// quality of protection is supported; a challenge offering qop without "auth"
// is answered in the legacy RFC 2069 form.
func NewDigestAuth(creds *DigestAuthCredentials, challenge *Challenge, method, uri string) (*DigestAuth, error) {
	auth := &DigestAuth{
		Username: creds.Username,
		Password: creds.Password,
		Realm:    challenge.Params["realm"],
		Nonce:    challenge.Params["nonce"],
		Opaque:   challenge.Params["opaque"],
		URI:      uri,
		Method:   method,
	}

	if algorithm := challenge.Params["algorithm"]; algorithm != "" && !strings.EqualFold(algorithm, "MD5") {
		return nil, fmt.Errorf("unsupported digest algorithm: %s", algorithm)
	}

	for _, qop := range strings.Split(challenge.Params["qop"], ",") {
		if strings.TrimSpace(qop) == "auth" {
			cnonce, err := GenerateCnonce()
			if err != nil {
				return nil, err
			}
			auth.Qop = "auth"
			auth.Nc = "00000001"
			auth.Cnonce = cnonce
			break
		}
	}

	return auth, nil
}

// ComputeDigestResponse calculates the digest response hash
func (d *DigestAuth) ComputeDigestResponse() string {
	// HA1 = MD5(username:realm:password)
	ha1 := md5Hash(fmt.Sprintf("%s:%s:%s", d.Username, d.Realm, d.Password))

	// HA2 = MD5(method:uri)
	ha2 := md5Hash(fmt.Sprintf("%s:%s", d.Method, d.URI))

	if d.Qop == "auth" {
		return md5Hash(fmt.Sprintf("%s:%s:%s:%s:%s:%s", ha1, d.Nonce, d.Nc, d.Cnonce, d.Qop, ha2))
	}
	return md5Hash(fmt.Sprintf("%s:%s:%s", ha1, d.Nonce, ha2))
}

// BuildAuthorizationHeader creates the Authorization header value
func (d *DigestAuth) BuildAuthorizationHeader() string {
	parts := []string{
		fmt.Sprintf(`username="%s"`, d.Username),
		fmt.Sprintf(`realm="%s"`, d.Realm),
		fmt.Sprintf(`nonce="%s"`, d.Nonce),
		fmt.Sprintf(`uri="%s"`, d.URI),
		fmt.Sprintf(`response="%s"`, d.ComputeDigestResponse()),
	}

	if d.Qop != "" {
		parts = append(parts, "qop="+d.Qop, "nc="+d.Nc, fmt.Sprintf(`cnonce="%s"`, d.Cnonce))
	}

	if d.Opaque != "" {
		parts = append(parts, fmt.Sprintf(`opaque="%s"`, d.Opaque))
	}

	return "Digest " + strings.Join(parts, ", ")
}

// GenerateCnonce generates a random client nonce
func GenerateCnonce() (string, error) {
	b := make([]byte, 8)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func md5Hash(s string) string {
	h := md5.New()
	h.Write([]byte(s))
	return hex.EncodeToString(h.Sum(nil))
}
