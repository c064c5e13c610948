package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/wkalt/dapd/catalog"
	"github.com/wkalt/dapd/util"
)

var listJSON bool

func renderEntries(w io.Writer, entries []catalog.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "(0 datasets)")
		return
	}
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Name", "Version", "Format", "Size", "Created"})
	for _, entry := range entries {
		t.AppendRow(table.Row{
			entry.Name,
			entry.Version,
			entry.Format,
			util.HumanBytes(entry.Size),
			entry.Created,
		})
	}
	t.Render()
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List datasets",
	Run: func(cmd *cobra.Command, args []string) {
		entries, err := newClient().List(context.Background())
		checkErr(err)
		if listJSON {
			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			checkErr(encoder.Encode(entries))
			return
		}
		renderEntries(os.Stdout, entries)
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.PersistentFlags().BoolVarP(&listJSON, "json", "", false, "Output in JSON format")
}
