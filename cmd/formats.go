package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/smazurov/camcap/pkg/capture"
	"github.com/spf13/cobra"
)

// NewFormatsCmd creates the formats command.
func NewFormatsCmd(s *Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "formats <index>",
		Short: "List the formats a camera offers",
		Long:  "Prints every resolution, frame rate and encoding the camera offers, best first. The active format is marked.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.withSession(cmd.Context(), args[0], func(session *capture.AsyncSession) error {
				formats, err := session.CompatibleFormats(cmd.Context())
				if err != nil {
					return err
				}
				active := session.CameraFormat()

				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "\tRESOLUTION\tFPS\tFOURCC")
				for _, f := range formats {
					mark := ""
					if f == active {
						mark = "*"
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", mark, f.Resolution, f.FrameRate, f.Format)
				}
				return tw.Flush()
			})
		},
	}
}
