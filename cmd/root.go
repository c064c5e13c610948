package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/wkalt/dapd/client"
	"github.com/wkalt/dapd/util/httputil"
)

var serverURL string

var rootCmd = &cobra.Command{
	Use:   "dapd",
	Short: "dapd client and server",
}

// Execute runs the root command.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func bailf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

// nolint:gochecknoglobals
var (
	errorLabel  = color.New(color.FgRed, color.Bold)
	detailLabel = color.New(color.FgYellow)
)

// printError writes err to stderr, with its detail on a second line if it
// has one.
func printError(err error) {
	errorLabel.Fprint(os.Stderr, "ERROR: ")
	fmt.Fprintln(os.Stderr, err.Error())
	var d httputil.Detailer
	if errors.As(err, &d) && d.Detail() != "" {
		detailLabel.Fprint(os.Stderr, "DETAIL: ")
		fmt.Fprintln(os.Stderr, d.Detail())
	}
}

func checkErr(err error) {
	if err != nil {
		printError(err)
		os.Exit(1)
	}
}

func newClient() *client.Client {
	return client.New(serverURL)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&serverURL, "server-url", "", "http://localhost:8089", "server-url")
}
