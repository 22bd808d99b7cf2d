package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/restcheck/packages/auth/oauth2"
)

var (
	tokenPrefixFlag string
	tokenJSONFlag   bool
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Request an OAuth2 access token",
	Long: `Request an access token from an OAuth2 token endpoint and print it.

Credentials are read from the environment and the env file under a prefix:

  <prefix>TOKEN_URL, <prefix>CLIENT_ID       required
  <prefix>CLIENT_SECRET, <prefix>SCOPES      optional
  <prefix>REFRESH_TOKEN                      selects the refresh_token grant
  <prefix>USERNAME, <prefix>PASSWORD         select the password grant

Examples:
  restcheck token --prefix IMGUR_
  restcheck token --prefix IMGUR_ --json`,
	Args: usageArgs(cobra.NoArgs),
	RunE: tokenCommand,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenPrefixFlag, "prefix", getEnvString("RESTCHECK_OAUTH2_PREFIX", "OAUTH2_"), "Credential prefix (env: RESTCHECK_OAUTH2_PREFIX)")
	tokenCmd.Flags().BoolVar(&tokenJSONFlag, "json", false, "Print the whole token as JSON")
}

func tokenCommand(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}
	source, err := credentialSource(settings)
	if err != nil {
		return err
	}

	cfg, err := oauth2.ConfigFromSource(source, tokenPrefixFlag)
	if err != nil {
		return err
	}
	token, err := oauth2.NewProvider(cfg).Token(cmd.Context())
	if err != nil {
		return &codeError{code: ExitNetworkError, err: err}
	}

	if !tokenJSONFlag {
		fmt.Fprintln(cmd.OutOrStdout(), token.AccessToken)
		return nil
	}

	out := map[string]any{
		"access_token": token.AccessToken,
		"token_type":   token.TokenType,
		"grant_type":   string(cfg.GrantType),
	}
	if token.RefreshToken != "" {
		out["refresh_token"] = token.RefreshToken
	}
	if !token.ExpiresAt.IsZero() {
		out["expires_at"] = token.ExpiresAt.Format(time.RFC3339)
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
