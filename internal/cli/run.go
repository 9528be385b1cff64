package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/hupe1980/flagcube"
	"github.com/hupe1980/flagcube/dataset"
	"github.com/hupe1980/flagcube/internal/clip"
)

func (c *CLI) newRunCmd() *cobra.Command {
	var outFile string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the clip agents over a simulated dataset",
		Long: `Run generates random amplitudes and pre-existing flags for every time slot,
lets the configured clip agents flag them through one shared store and prints
the merged report. With --out the published frames are also written to a
frame file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if outFile != "" {
				c.cfg.Output.File = outFile
			}
			report, err := c.runSimulation(cmd.Context())
			if err != nil {
				return err
			}
			return c.printRun(report)
		},
	}
	cmd.Flags().StringVarP(&outFile, "out", "o", "", "write published frames to this file")
	return cmd
}

// AgentReport summarises one agent of a run.
type AgentReport struct {
	Name       string `json:"name"`
	Mask       uint64 `json:"mask"`
	Raised     int64  `json:"raised"`
	Cleared    int64  `json:"cleared"`
	RowsRaised int64  `json:"rows_raised"`
}

// RunReport is the result of the run command.
type RunReport struct {
	RunID        string                     `json:"run_id"`
	Duration     time.Duration              `json:"duration"`
	Outliers     int                        `json:"outliers"`
	FlaggedCells uint64                     `json:"flagged_cells"`
	FlaggedRows  uint64                     `json:"flagged_rows"`
	Agents       []AgentReport              `json:"agents"`
	Store        *flagcube.Report           `json:"store"`
	Metrics      flagcube.BasicMetricsStats `json:"metrics"`
	File         string                     `json:"file,omitempty"`
	Frames       int                        `json:"frames,omitempty"`
}

// teeSink publishes every frame to all of its sinks in order.
type teeSink []flagcube.Sink

func (t teeSink) WriteFlags(ctx context.Context, f *flagcube.Frame) error {
	for _, s := range t {
		if err := s.WriteFlags(ctx, f); err != nil {
			return err
		}
	}
	return nil
}

// agentMasks splits the correlations round-robin over n agents. Agents left
// without a correlation watch all of them.
func agentMasks(numCorr, n int) []flagcube.CorrMask {
	masks := make([]flagcube.CorrMask, n)
	for c := range numCorr {
		masks[c%n] |= 1 << c
	}
	for i, m := range masks {
		if m == 0 {
			masks[i] = flagcube.FullCorrMask(numCorr)
		}
	}
	return masks
}

func (c *CLI) runSimulation(ctx context.Context) (_ *RunReport, err error) {
	start := time.Now()
	cfg := c.cfg
	shape := cfg.Shape.Cube()
	runID := uuid.NewString()

	logger, err := c.logger()
	if err != nil {
		return nil, err
	}
	logger = &flagcube.Logger{Logger: logger.With("run_id", runID)}

	policy, err := flagcube.ParsePolicy(cfg.Agents.Policy)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errValidation, err)
	}
	storage, err := c.storageOptions()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errValidation, err)
	}

	gen := newGenerator(cfg.Data.Seed)
	mem := dataset.NewMemory(shape)
	gen.fill(mem, shape, cfg.Data.AbsentRate, cfg.Data.FlagRate)

	sinks := teeSink{mem}
	var file *dataset.FileSink
	if cfg.Output.File != "" {
		comp, perr := dataset.ParseCompression(cfg.Output.Compression)
		if perr != nil {
			return nil, fmt.Errorf("%w: %w", errValidation, perr)
		}
		fh, cerr := c.fs.Create(cfg.Output.File)
		if cerr != nil {
			return nil, cerr
		}
		// Runs after the agents are closed; err is the named result.
		defer func() {
			if err == nil {
				err = fh.Sync()
			}
			err = errors.Join(err, fh.Close())
			if err != nil {
				_ = c.fs.Remove(cfg.Output.File)
			}
		}()
		if file, err = dataset.NewFileSink(fh, shape, dataset.WithCompression(comp)); err != nil {
			return nil, err
		}
		sinks = append(sinks, file)
	}

	metrics := &flagcube.BasicMetricsCollector{}
	opts := append(storage,
		flagcube.WithSource(mem),
		flagcube.WithSink(sinks),
		flagcube.WithLogger(logger),
		flagcube.WithMetricsCollector(metrics),
	)
	shared, err := flagcube.NewShared(shape, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errValidation, err)
	}

	masks := agentMasks(shape.NumCorrelations, cfg.Agents.Clip)
	selectors := make([]*clip.Selector, len(masks))
	for i, m := range masks {
		a, err := shared.NewAgent(fmt.Sprintf("clip-%d", i), m, policy)
		if err != nil {
			return nil, err
		}
		sel, err := clip.New(a, clip.Config{
			Min:         cfg.Agents.Min,
			Max:         cfg.Agents.Max,
			Average:     cfg.Agents.Average,
			RowFraction: cfg.Agents.RowFraction,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %w", errValidation, err)
		}
		selectors[i] = sel
	}
	defer func() {
		for _, sel := range selectors {
			_ = sel.Agent().Close()
		}
	}()
	for _, sel := range selectors {
		if err := sel.Agent().Init(); err != nil {
			return nil, err
		}
	}

	report := &RunReport{RunID: runID, Agents: make([]AgentReport, len(selectors))}
	lead := selectors[0].Agent()

	for t := range shape.NumTimeSlots {
		amps := gen.amplitudes(shape.NumBaselines, shape.NumChannels, cfg.Data.Mean, cfg.Data.Spread)
		report.Outliers += gen.outliers(amps, cfg.Data.OutlierRate, cfg.Data.OutlierGain)

		if err := lead.Advance(t); err != nil {
			return nil, err
		}
		// Every agent loads; the store reads the source once per slot.
		for _, sel := range selectors {
			if err := sel.Agent().Load(ctx, t); err != nil {
				return nil, err
			}
		}
		for i, sel := range selectors {
			res, err := sel.Flag(ctx, t, amps)
			if err != nil {
				return nil, err
			}
			report.Agents[i].Cleared += res.Cleared
		}
		for _, sel := range selectors {
			if err := sel.Agent().Publish(ctx, t); err != nil {
				return nil, err
			}
		}
		report.FlaggedCells += mem.FlaggedCells(t)
		report.FlaggedRows += mem.FlaggedRows(t)
	}

	for i, sel := range selectors {
		a := sel.Agent()
		st := a.Stats()
		report.Agents[i].Name = a.Name()
		report.Agents[i].Mask = uint64(a.Mask())
		report.Agents[i].Raised = st.TotalRaised
		report.Agents[i].RowsRaised = st.TotalRowsRaised
	}

	if report.Store, err = shared.Report(); err != nil {
		return nil, err
	}
	report.Metrics = metrics.GetStats()
	report.Duration = time.Since(start)
	if file != nil {
		report.File = cfg.Output.File
		report.Frames = file.Frames()
	}
	return report, nil
}

func (c *CLI) printRun(r *RunReport) error {
	if c.jsonOutput {
		return c.output(r)
	}

	s := r.Store
	c.printf("run %s (%s)\n", r.RunID, r.Duration.Round(time.Millisecond))
	c.printf("  store:    %s, depth %d, %d bytes, %d agents\n", s.Mode, s.Depth, s.MemoryBytes, s.Agents)
	c.printf("  outliers: %d\n", r.Outliers)
	c.printf("  flagged:  %d cell correlations, %d rows\n", r.FlaggedCells, r.FlaggedRows)
	for _, a := range r.Agents {
		c.printf("  %-8s  mask %#b  raised %d  rows %d\n", a.Name, a.Mask, a.Raised, a.RowsRaised)
	}
	if r.File != "" {
		c.printf("  wrote %d frames to %s\n", r.Frames, r.File)
	}
	return nil
}
