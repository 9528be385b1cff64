// Package flagcube provides shared, bit-packed flag storage for multi-agent
// data-quality flagging.
//
// Many independent flagging passes ("agents") mark measurements of a dataset
// chunk shaped correlation × channel × baseline × time as suspect. Instead of
// each agent owning a private mask, all agents write into one shared store:
// in compact mode every (channel, baseline) cell is a single 32-bit word that
// holds one pre-flag bit per correlation followed by one bit per agent.
//
//	bit:  0 .. nCorr-1          base .. base+nAgents-1
//	      ┌──────────────────┬──┬──────────────────────┬───┐
//	      │ pre-flag per corr│  │ one bit per agent    │   │
//	      └──────────────────┴──┴──────────────────────┴───┘
//	      base = max(nCorr, 2)
//
// When agents and correlations do not fit a word, wide mode keeps one boolean
// per correlation for the current time slot and tracks agent membership in
// roaring bitmaps. The mode is picked once at allocation.
//
// # Lifecycle
//
//	shared, _ := flagcube.NewShared(shape,
//	    flagcube.WithSource(src),
//	    flagcube.WithSink(sink),
//	)
//	a, _ := shared.NewAgent("clip", flagcube.FullCorrMask(4), flagcube.PolicyHonor)
//	b, _ := shared.NewAgent("rows", 0b1001, flagcube.PolicyHonor)
//	_ = a.Init() // first Init allocates for every declared agent
//	_ = b.Init()
//	defer a.Close()
//	defer b.Close() // last Close frees
//
//	for t := range shape.NumTimeSlots {
//	    _ = a.Advance(t)
//	    _ = a.Load(ctx, t)
//	    _, _ = a.SetFlag(ch, ifr)
//	    _, _ = b.SetRowFlag(ifr, t)
//	    _ = a.Publish(ctx, t)
//	}
//
// Cells that were never loaded read as flagged on every correlation: unloaded
// data is never treated as clean.
//
// # Concurrency
//
// SetFlag, ClearFlag, SetRowFlag and ClearRowFlag only touch their own key,
// and distinct baselines never share memory, so work can be sharded by
// baseline without locks (see Shared.ForEachBaseline). Advance, Load,
// Publish, NewAgent, Init and Close are barriers.
package flagcube
