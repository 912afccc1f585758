package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/smazurov/camcap/internal/config"
	"github.com/smazurov/camcap/internal/decode"
	"github.com/smazurov/camcap/internal/logging"
	"github.com/smazurov/camcap/pkg/capture"
	"github.com/spf13/cobra"
)

// NewStreamCmd creates the stream command.
func NewStreamCmd(s *Settings) *cobra.Command {
	var (
		frames uint64
		outDir string
		watch  bool
	)

	cmd := &cobra.Command{
		Use:   "stream <index>",
		Short: "Stream frames from a camera",
		Long: "Opens the stream and pulls frames until --frames have been read or the command is " +
			"interrupted. With --watch the control profile is re-applied whenever its file changes.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := logging.GetLogger("stream").With("camera", args[0])

			mgr, err := s.Manager()
			if err != nil {
				return err
			}
			defer func() { _ = mgr.CloseAll(context.Background()) }()

			session, err := mgr.Get(ctx, capture.ParseIndex(args[0]))
			if err != nil {
				return fmt.Errorf("open camera %s: %w", args[0], err)
			}

			if watch && s.Profile != "" {
				watcher := config.NewConfigWatcher(s.Profile, config.LoadProfile, logger,
					config.WithErrorHandler[config.Profile](func(err error) {
						logger.Warn("Profile reload failed", "error", err)
					}))
				watcher.OnReload(func(p config.Profile) {
					if err := mgr.SetProfile(ctx, p); err != nil {
						logger.Warn("Profile applied with errors", "error", err)
						return
					}
					logger.Info("Profile re-applied")
				})
				if err := watcher.Start(); err != nil {
					logger.Warn("Failed to watch profile, hot-reload disabled", "error", err)
				} else {
					defer func() { _ = watcher.Stop() }()
				}
			}

			if outDir != "" {
				if err := os.MkdirAll(outDir, 0o755); err != nil {
					return err
				}
			}

			if err := session.OpenStream(ctx); err != nil {
				return err
			}
			logger.Info("Streaming", "format", session.CameraFormat().String())

			out := cmd.OutOrStdout()
			start := time.Now()
			var count, total uint64
			for frames == 0 || count < frames {
				buf, err := session.Frame(ctx)
				if err != nil {
					if errors.Is(err, context.Canceled) || ctx.Err() != nil {
						break
					}
					return err
				}
				count++
				total += uint64(buf.Len())
				fmt.Fprintf(out, "%d\t%s\t%d\t%s %s\n",
					buf.Sequence(), buf.Timestamp().Format(time.RFC3339Nano), buf.Len(), buf.Resolution(), buf.SourceFormat())

				if outDir != "" {
					if err := writeFrame(outDir, buf); err != nil {
						logger.Warn("Failed to write frame", "sequence", buf.Sequence(), "error", err)
					}
				}
			}

			if err := session.StopStream(context.Background()); err != nil {
				return err
			}
			elapsed := time.Since(start)
			rate := 0.0
			if elapsed > 0 {
				rate = float64(count) / elapsed.Seconds()
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%d frames, %d bytes in %s (%.1f fps)\n",
				count, total, elapsed.Round(time.Millisecond), rate)
			return nil
		},
	}

	cmd.Flags().Uint64VarP(&frames, "frames", "n", 0, "Stop after this many frames (0 streams until interrupted)")
	cmd.Flags().StringVar(&outDir, "output-dir", "", "Write every frame as a JPEG into this directory")
	cmd.Flags().BoolVar(&watch, "watch", false, "Re-apply the control profile when its file changes")
	return cmd
}

func writeFrame(dir string, buf *capture.Buffer) error {
	data, err := decode.EncodeJPEG(buf, decode.DefaultQuality)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, fmt.Sprintf("frame-%06d.jpg", buf.Sequence())), data, 0o644)
}
