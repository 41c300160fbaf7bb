package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"opentry/internal/catalog"
)

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "Print the built-in reel template catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := catalog.Default()
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tSHOTS\tREFS\tPRICE")
		for _, t := range c.List() {
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\n", t.ID, t.Name, t.Shots, t.ReferenceImagesRequired, t.Price)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(templatesCmd)
}
