package cli

import (
	"github.com/spf13/cobra"

	"github.com/hupe1980/flagcube/internal/config"
)

func (c *CLI) newConfigCmd() *cobra.Command {
	var defaults bool

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runConfig(defaults)
		},
	}
	cmd.Flags().BoolVar(&defaults, "defaults", false, "print the built-in defaults instead")
	return cmd
}

func (c *CLI) runConfig(defaults bool) error {
	cfg := c.cfg
	if defaults {
		cfg = config.DefaultConfig()
	}

	if c.jsonOutput {
		return c.output(cfg)
	}

	out, err := cfg.YAML()
	if err != nil {
		return err
	}
	_, err = c.out.Write(out)
	return err
}
