package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/restcheck/packages/core/config"
)

var forceInit bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new restcheck project",
	Long: `Initialize a new restcheck project in the current directory.

This creates:
  - .restcheck.yaml  - Configuration file
  - booking.yaml     - Example scenario against the Restful Booker API

Examples:
  restcheck init
  restcheck init --force`,
	Args: usageArgs(cobra.NoArgs),
	RunE: initCommand,
}

func init() {
	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "Overwrite existing files")
}

const exampleScenario = `name: Restful Booker
baseUri: https://restful-booker.herokuapp.com
headers:
  Accept: application/json

steps:
  - name: auth
    method: POST
    path: /auth
    body:
      username: "{{$BOOKER_USERNAME}}"
      password: "{{$BOOKER_PASSWORD}}"
    expect:
      status: 200
      fields:
        - {path: token, op: exists}
    capture:
      token: token

  - name: createBooking
    method: POST
    path: /booking
    tags: [smoke]
    body:
      firstname: Jim
      lastname: Brown
      totalprice: 111
      depositpaid: true
      bookingdates:
        checkin: "2018-01-01"
        checkout: "2019-01-01"
    expect:
      status: 200
      rootPath: booking
      fields:
        - {path: firstname, value: Jim}
        - {path: totalprice, op: ">", value: 100}
        - {path: bookingdates.checkin, value: "2018-01-01"}
    capture:
      bookingid: bookingid

  - name: getBooking
    path: /booking/{id}
    dependsOn: [createBooking]
    pathParams:
      id: "{{createBooking.bookingid}}"
    expect:
      status: 200
      fields:
        - {path: lastname, value: Brown}

  - name: deleteBooking
    method: DELETE
    path: /booking/{id}
    dependsOn: [auth, createBooking]
    pathParams:
      id: "{{createBooking.bookingid}}"
    headers:
      Cookie: "token={{auth.token}}"
    expect:
      status: 201
`

func initCommand(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}

	configFile := filepath.Join(cwd, config.ConfigFilenames[0])
	exampleFile := filepath.Join(cwd, "booking.yaml")

	if !forceInit {
		for _, f := range []string{configFile, exampleFile} {
			if _, err := os.Stat(f); err == nil {
				return usageError{fmt.Errorf("file already exists: %s (use --force to overwrite)", f)}
			}
		}
	}

	cfg := config.DefaultConfig()
	cfg.EnvFile = ".env"
	cfg.Headers = map[string]string{
		"User-Agent": "restcheck/" + version,
	}
	if err := cfg.SaveConfig(configFile); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", configFile)

	if err := os.WriteFile(exampleFile, []byte(exampleScenario), 0644); err != nil {
		return fmt.Errorf("failed to create example file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", exampleFile)

	fmt.Fprintf(cmd.OutOrStdout(), "\nrestcheck project initialized!\n")
	fmt.Fprintf(cmd.OutOrStdout(), "Set BOOKER_USERNAME and BOOKER_PASSWORD in .env, then run 'restcheck run booking.yaml'.\n")

	return nil
}
