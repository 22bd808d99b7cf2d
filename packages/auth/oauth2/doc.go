// Package oauth2 obtains access tokens for requests that use OAuth2 bearer
// authentication.
//
// A Provider requests tokens with the client_credentials, password or
// refresh_token grant and caches them until they expire. Client credentials
// and refresh tokens are read from an env.Source, typically with a prefix:
//
//	cfg, err := oauth2.ConfigFromSource(env.OSSource{}, "IMGUR_")
//	auth, err := oauth2.NewProvider(cfg).Auth(ctx)
//	resp, err := request.Given().WithBaseURI(api).WithAuth(auth).Get()
package oauth2
