// studytrackctl is an operator CLI for the study-enforcer service: user
// management, log inspection, and timer-state maintenance over the HTTP
// API.
package main

import (
	"fmt"
	"os"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var serviceURL string
var debug bool

func main() {
	cmd := NewRootCmd()
	if err := cmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

// NewRootCmd constructs the root CLI command; exposed for unit testing.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "studytrackctl",
		Short: "Manage users, logs and timer state on a study-enforcer service",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
			log.Logger = log.Output(zerolog.ConsoleWriter{
				Out:        os.Stderr,
				TimeFormat: "2006-01-02 15:04:05",
				NoColor:    true,
			})
			if debug {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			} else {
				zerolog.SetGlobalLevel(zerolog.InfoLevel)
			}
		},
	}

	defaultURL := getEnv("STUDYTRACK_SERVICE_URL", "http://localhost:3000")
	rootCmd.PersistentFlags().StringVar(&serviceURL, "service-url", defaultURL, "Base URL of the study-enforcer service")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Enable verbose debug output")

	rootCmd.AddCommand(newPingCmd())
	rootCmd.AddCommand(newListUsersCmd())
	rootCmd.AddCommand(newInitUserCmd())
	rootCmd.AddCommand(newRemoveUserCmd())
	rootCmd.AddCommand(newDumpLogsCmd())
	rootCmd.AddCommand(newClearLogsCmd())
	rootCmd.AddCommand(newShowTimerCmd())
	rootCmd.AddCommand(newClearTimerCmd())

	return rootCmd
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// rest returns a client rooted at the configured service URL.
func rest() *resty.Client {
	return resty.New().SetBaseURL(serviceURL)
}

// check turns a transport error or non-200 response into a command error.
func check(resp *resty.Response, err error) error {
	if err != nil {
		return err
	}
	if resp.StatusCode() != 200 {
		return fmt.Errorf("http %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}
