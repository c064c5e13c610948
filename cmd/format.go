package cmd

import (
	"bufio"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/wkalt/dapd/das"
	"github.com/wkalt/dapd/dataset"
	"github.com/wkalt/dapd/dds"
)

var formatCheck bool

func openInput(args []string) io.ReadCloser {
	if len(args) == 0 || args[0] == "-" {
		return io.NopCloser(os.Stdin)
	}
	f, err := os.Open(args[0])
	checkErr(err)
	return f
}

var ddsCmd = &cobra.Command{
	Use:   "dds [file]",
	Short: "Validate and reformat a DDS file",
	Long: `Parse a DDS document from a file or stdin and print it in canonical
form. With --check, only report whether it parses.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		r := openInput(args)
		defer r.Close()
		d, err := dds.Parse(r)
		checkErr(err)
		if formatCheck {
			return
		}
		w := bufio.NewWriter(os.Stdout)
		checkErr(dds.Format(w, d))
		checkErr(w.Flush())
	},
}

var dasCmd = &cobra.Command{
	Use:   "das [file]",
	Short: "Validate and reformat a DAS file",
	Long: `Parse a DAS document from a file or stdin and print it in canonical
form. With --dds, also report attribute containers that name no variable in
the given DDS.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		r := openInput(args)
		defer r.Close()
		table, err := das.Parse(r)
		checkErr(err)
		if dasAgainst != "" {
			f, err := os.Open(dasAgainst)
			checkErr(err)
			defer f.Close()
			d, err := dds.Parse(f)
			checkErr(err)
			for _, path := range dataset.New(d, table).Unreachable() {
				detailLabel.Fprint(os.Stderr, "WARNING: ")
				os.Stderr.WriteString("attribute container " + path + " matches no variable\n")
			}
		}
		if formatCheck {
			return
		}
		w := bufio.NewWriter(os.Stdout)
		checkErr(das.Format(w, table))
		checkErr(w.Flush())
	},
}

var dasAgainst string

func init() {
	rootCmd.AddCommand(ddsCmd)
	rootCmd.AddCommand(dasCmd)
	ddsCmd.PersistentFlags().BoolVarP(&formatCheck, "check", "", false, "Only check that the input parses")
	dasCmd.PersistentFlags().BoolVarP(&formatCheck, "check", "", false, "Only check that the input parses")
	dasCmd.PersistentFlags().StringVarP(&dasAgainst, "dds", "", "", "DDS file to match attribute containers against")
}
