package cmd

import (
	"context"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var getFormat string

var getCmd = &cobra.Command{
	Use:   "get [name] [variables...]",
	Short: "Fetch a dataset",
	Long: `Fetch a representation of a dataset, optionally projected onto the
named variables. The dataset may be qualified with a version as name/version.

Formats are asc (the default), json, dds, das and dods.`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		switch getFormat {
		case "asc", "json", "dds", "das", "dods":
		default:
			bailf("invalid format: %s", getFormat)
		}
		projection := splitProjection(args[1:])
		checkErr(newClient().Get(context.Background(), os.Stdout, args[0], getFormat, projection...))
	},
}

// splitProjection accepts variables as separate arguments, comma-separated,
// or both.
func splitProjection(args []string) []string {
	var out []string
	for _, arg := range args {
		for _, p := range strings.Split(arg, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

func init() {
	rootCmd.AddCommand(getCmd)
	getCmd.PersistentFlags().StringVarP(&getFormat, "format", "f", "asc", "Output format")
}
