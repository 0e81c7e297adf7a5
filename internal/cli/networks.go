package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var networksCmd = &cobra.Command{
	Use:   "networks",
	Short: "List supported networks and their source kinds",
	Run:   runNetworks,
}

func init() {
	rootCmd.AddCommand(networksCmd)
}

func runNetworks(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "NETWORK\tKIND\tSYMBOL\tDECIMALS\tPRICED")

	for _, n := range cfg.AllNetworks() {
		priced := "yes"
		if n.PriceID == "" {
			priced = "no"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
			n.Name, n.Kind, n.Symbol, n.Decimals, priced)
	}
	_ = w.Flush()
}
