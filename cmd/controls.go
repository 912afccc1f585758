package cmd

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/smazurov/camcap/pkg/capture"
	"github.com/spf13/cobra"
)

// NewControlsCmd creates the controls command.
func NewControlsCmd(s *Settings) *cobra.Command {
	var sets []string

	cmd := &cobra.Command{
		Use:   "controls <index>",
		Short: "Show or change camera controls",
		Long: "Prints the camera's controls. Each --set name=value is validated and applied " +
			"before printing; menu controls accept the entry name.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return s.withSession(ctx, args[0], func(session *capture.AsyncSession) error {
				var errs []error
				for _, kv := range sets {
					if err := setControl(cmd, session, kv); err != nil {
						errs = append(errs, fmt.Errorf("%s: %w", kv, err))
					}
				}

				controls, err := session.CameraControls(ctx)
				if err != nil {
					return errors.Join(append(errs, err)...)
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "CONTROL\tKIND\tVALUE\tRANGE\tDEFAULT\tFLAGS")
				for _, c := range controls {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
						c.ID, c.Kind, c.Current, controlRange(c), c.Default, strings.Join(c.Flags.Names(), ","))
				}
				if err := tw.Flush(); err != nil {
					errs = append(errs, err)
				}
				return errors.Join(errs...)
			})
		},
	}

	cmd.Flags().StringArrayVar(&sets, "set", nil, "Set a control, as name=value (repeatable)")
	return cmd
}

func setControl(cmd *cobra.Command, session *capture.AsyncSession, kv string) error {
	name, raw, ok := strings.Cut(kv, "=")
	if !ok {
		return errors.New("want name=value")
	}
	id, err := capture.ParseKnownControl(strings.TrimSpace(name))
	if err != nil {
		return err
	}
	desc, err := session.CameraControl(cmd.Context(), id)
	if err != nil {
		return err
	}
	value, err := capture.ParseControlValue(desc.Kind, strings.TrimSpace(raw), desc.Menu)
	if err != nil {
		return err
	}
	return session.SetCameraControl(cmd.Context(), id, value)
}

func controlRange(c capture.CameraControl) string {
	switch c.Kind {
	case capture.ControlKindInteger:
		return fmt.Sprintf("%d..%d/%d", c.Min, c.Max, c.Step)
	case capture.ControlKindEnum:
		names := make([]string, len(c.Menu))
		for i, m := range c.Menu {
			names[i] = m.Name
		}
		return strings.Join(names, "|")
	case capture.ControlKindBoolean:
		return "on|off"
	}
	return "-"
}
