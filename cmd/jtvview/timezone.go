package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"jtvview/internal/config"
	"jtvview/internal/jtv"
)

func newTimezoneCmd(a *app) *cobra.Command {
	var local bool

	cmd := &cobra.Command{
		Use:   "timezone [seconds]",
		Short: "Show or set the source time zone offset",
		Long: `Without arguments, print the source time zone offset in seconds east of
UTC. With an argument, pin a new offset in the config file. With --local,
drop the pinned offset so every run uses this machine's current offset.
The offset must lie within [-86400, 86400]. Put -- before a negative
value: jtvview timezone -- -3600`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && !local {
				fmt.Fprintf(cmd.OutOrStdout(), "%d\n", a.cfg.Offset())
				return nil
			}
			if len(args) == 1 && local {
				return fmt.Errorf("--local takes no offset argument")
			}

			// a.cfg carries command-line overrides; save from the file.
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			if local {
				cfg.FollowLocalOffset()
			} else {
				n, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("offset %q is not an integer", args[0])
				}
				if err := jtv.ValidateOffset(n); err != nil {
					return err
				}
				cfg.SetOffset(n)
			}
			if err := cfg.Save(a.configPath); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d\n", cfg.Offset())
			return nil
		},
	}

	cmd.Flags().BoolVar(&local, "local", false, "follow this machine's current UTC offset")
	return cmd
}
