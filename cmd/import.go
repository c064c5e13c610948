package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"github.com/wkalt/dapd/catalog"
	"github.com/wkalt/dapd/routes"
	"github.com/wkalt/dapd/util"
)

var (
	importDDS    string
	importDAS    string
	importData   string
	importValues string
	importNetCDF string
)

func readOptional(path string) []byte {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	checkErr(err)
	return data
}

func printEntry(entry catalog.Entry) {
	fmt.Printf("imported %s version %d (%s, %s)\n",
		entry.Name, entry.Version, entry.Format, util.HumanBytes(entry.Size))
}

var importCmd = &cobra.Command{
	Use:   "import [name]",
	Short: "Import a new version of a dataset",
	Long: `Import a new version of a dataset. Supply either --netcdf, or --dds with
an optional --das and at most one of --data (a binary value stream) or
--values (a JSON values document).`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		name := args[0]
		c := newClient()
		if importNetCDF != "" {
			if importDDS != "" {
				bailf("cannot specify both --netcdf and --dds")
			}
			f, err := os.Open(importNetCDF)
			checkErr(err)
			defer f.Close()
			entry, err := c.ImportNetCDF(ctx, name, f)
			checkErr(err)
			printEntry(entry)
			return
		}
		if importDDS == "" {
			bailf("must specify either --netcdf or --dds")
		}
		if importData != "" && importValues != "" {
			bailf("cannot specify both --data and --values")
		}
		entry, err := c.Import(ctx, name, routes.ImportRequest{
			DDS:    string(readOptional(importDDS)),
			DAS:    string(readOptional(importDAS)),
			Data:   readOptional(importData),
			Values: json.RawMessage(readOptional(importValues)),
		})
		checkErr(err)
		printEntry(entry)
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.PersistentFlags().StringVarP(&importDDS, "dds", "", "", "DDS file")
	importCmd.PersistentFlags().StringVarP(&importDAS, "das", "", "", "DAS file")
	importCmd.PersistentFlags().StringVarP(&importData, "data", "", "", "Binary value stream")
	importCmd.PersistentFlags().StringVarP(&importValues, "values", "", "", "JSON values document")
	importCmd.PersistentFlags().StringVarP(&importNetCDF, "netcdf", "", "", "Classic netCDF file")
}
