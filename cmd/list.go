package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// NewListCmd creates the list command.
func NewListCmd(s *Settings) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cameras",
		Long:  "Enumerates cameras on the configured backend.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cameras, err := s.Detector().FindDevices()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(cameras)
			}
			if len(cameras) == 0 {
				fmt.Fprintln(out, "no cameras found")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "INDEX\tBACKEND\tNAME\tDESCRIPTION\tLOCATION")
			for _, c := range cameras {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", c.Index, c.Backend, c.HumanName, c.Description, c.Misc)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}
