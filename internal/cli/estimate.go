package cli

import (
	"github.com/spf13/cobra"

	"github.com/hupe1980/flagcube"
)

func (c *CLI) newEstimateCmd() *cobra.Command {
	var agents int

	cmd := &cobra.Command{
		Use:   "estimate",
		Short: "Estimate the flag storage of the configured shape",
		Long: `Estimate reports the bytes a full compact grid would need and the storage
an allocation would actually build under the configured limits.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if agents <= 0 {
				agents = c.cfg.Agents.Clip
			}
			return c.runEstimate(agents)
		},
	}
	cmd.Flags().IntVar(&agents, "agents", 0, "number of agents (default: agents.clip)")
	return cmd
}

// EstimateOutput is the result of the estimate command.
type EstimateOutput struct {
	Shape     flagcube.Shape           `json:"shape"`
	Agents    int                      `json:"agents"`
	FullBytes int64                    `json:"full_bytes"`
	Plan      flagcube.StorageEstimate `json:"plan"`
}

func (c *CLI) runEstimate(agents int) error {
	shape := c.cfg.Shape.Cube()
	opts, err := c.storageOptions()
	if err != nil {
		return err
	}

	plan, err := flagcube.EstimateStorage(shape, agents, opts...)
	if err != nil {
		return err
	}

	out := EstimateOutput{
		Shape:     shape,
		Agents:    agents,
		FullBytes: flagcube.EstimateMemoryUsage(shape.NumChannels, shape.NumBaselines, shape.NumTimeSlots),
		Plan:      plan,
	}
	if c.jsonOutput {
		return c.output(out)
	}

	c.printf("shape:      %d corr x %d chan x %d ifr x %d time\n",
		shape.NumCorrelations, shape.NumChannels, shape.NumBaselines, shape.NumTimeSlots)
	c.printf("agents:     %d\n", agents)
	c.printf("full grid:  %d bytes\n", out.FullBytes)
	c.printf("mode:       %s\n", plan.Mode)
	c.printf("depth:      %d\n", plan.Depth)
	c.printf("allocation: %d bytes\n", plan.Bytes)
	return nil
}

// storageOptions maps the storage config to engine options.
func (c *CLI) storageOptions() ([]flagcube.Option, error) {
	wide, err := c.cfg.WideMode()
	if err != nil {
		return nil, err
	}
	return []flagcube.Option{
		flagcube.WithWideMode(wide),
		flagcube.WithMemoryLimit(c.cfg.Storage.MemoryLimit),
		flagcube.WithIOLimit(c.cfg.Storage.IOLimit),
		flagcube.WithTimeWindow(c.cfg.Storage.TimeWindow),
		flagcube.WithWorkers(c.cfg.Storage.Workers),
	}, nil
}
