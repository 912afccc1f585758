package cmd

import (
	"fmt"
	"os"

	"github.com/smazurov/camcap/internal/decode"
	"github.com/smazurov/camcap/pkg/capture"
	"github.com/spf13/cobra"
)

// NewSnapshotCmd creates the snapshot command.
func NewSnapshotCmd(s *Settings) *cobra.Command {
	var (
		output  string
		raw     bool
		quality int
	)

	cmd := &cobra.Command{
		Use:   "snapshot <index>",
		Short: "Capture a single frame",
		Long: "Opens the stream for one frame and closes it again. The frame is written as JPEG " +
			"unless --raw is given, in which case the source encoding is kept.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.withSession(cmd.Context(), args[0], func(session *capture.AsyncSession) error {
				buf, err := session.OneShot(cmd.Context())
				if err != nil {
					return err
				}

				data := buf.Bytes()
				if !raw {
					if data, err = decode.EncodeJPEG(buf, quality); err != nil {
						return err
					}
				}

				if output == "-" {
					_, err = cmd.OutOrStdout().Write(data)
					return err
				}
				if err := os.WriteFile(output, data, 0o644); err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s (%d bytes, %s %s)\n",
					output, len(data), buf.Resolution(), buf.SourceFormat())
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "snapshot.jpg", "Output file, or - for stdout")
	cmd.Flags().BoolVar(&raw, "raw", false, "Write the frame in its source encoding")
	cmd.Flags().IntVarP(&quality, "quality", "q", decode.DefaultQuality, "JPEG quality (1-100)")
	return cmd
}
