package flagcube_test

import (
	"context"
	"fmt"
	"log"

	"github.com/hupe1980/flagcube"
	"github.com/hupe1980/flagcube/dataset"
)

// Example_twoAgents shows two agents flagging one time slot of a shared store.
func Example_twoAgents() {
	shape := flagcube.Shape{NumCorrelations: 2, NumChannels: 3, NumBaselines: 2, NumTimeSlots: 1}

	mem := dataset.NewMemory(shape)
	mem.SetPresent(0, 0, true)
	mem.SetPresent(0, 1, true)

	shared, err := flagcube.NewShared(shape, flagcube.WithSource(mem), flagcube.WithSink(mem))
	if err != nil {
		log.Fatal(err)
	}

	xx, _ := shared.NewAgent("xx", 0b01, flagcube.PolicyHonor)
	yy, _ := shared.NewAgent("yy", 0b10, flagcube.PolicyHonor)
	for _, a := range []*flagcube.Agent{xx, yy} {
		if err := a.Init(); err != nil {
			log.Fatal(err)
		}
		defer a.Close()
	}

	ctx := context.Background()
	_ = xx.Advance(0)
	_ = xx.Load(ctx, 0)

	_, _ = xx.SetFlag(1, 0)
	_, _ = yy.SetRowFlag(1, 0)

	if err := xx.Publish(ctx, 0); err != nil {
		log.Fatal(err)
	}

	out, _ := mem.Published(0)
	fmt.Println("mode:", mustMode(shared))
	fmt.Println("cell (1,0):", out.Flag(0, 1, 0), out.Flag(1, 1, 0))
	fmt.Println("row 1 flagged:", out.RowFlags[1])
	fmt.Println("flagged cells:", mem.FlaggedCells(0))
	// Output:
	// mode: compact
	// cell (1,0): true false
	// row 1 flagged: true
	// flagged cells: 7
}

func mustMode(s *flagcube.Shared) flagcube.Mode {
	m, err := s.Mode()
	if err != nil {
		log.Fatal(err)
	}
	return m
}

// ExampleEstimateStorage shows how a memory limit shrinks the compact ring.
func ExampleEstimateStorage() {
	shape := flagcube.Shape{NumCorrelations: 4, NumChannels: 64, NumBaselines: 21, NumTimeSlots: 100}

	full, _ := flagcube.EstimateStorage(shape, 3)
	limited, _ := flagcube.EstimateStorage(shape, 3, flagcube.WithMemoryLimit(64*1024))

	fmt.Println(full.Mode, full.Depth)
	fmt.Println(limited.Mode, limited.Depth)
	// Output:
	// compact 100
	// compact 10
}
