package codec

import (
	"bytes"
	"io"
	"testing"
)

type benchReport struct {
	Mode                string  `json:"mode"`
	Agents              int     `json:"agents"`
	LastPublished       *int    `json:"last_published,omitempty"`
	FlaggedCorrelations []int64 `json:"flagged_correlations"`
	FlaggedChannels     []int32 `json:"flagged_channels"`
	FlaggedRows         []int64 `json:"flagged_rows"`
}

func newBenchReport() benchReport {
	last := 99
	r := benchReport{
		Mode:                "compact",
		Agents:              6,
		LastPublished:       &last,
		FlaggedCorrelations: make([]int64, 1024*32),
		FlaggedChannels:     make([]int32, 32*100),
		FlaggedRows:         make([]int64, 100),
	}
	for i := range r.FlaggedCorrelations {
		r.FlaggedCorrelations[i] = int64(i % 5)
	}
	return r
}

func BenchmarkEncode_Report(b *testing.B) {
	r := newBenchReport()
	for _, name := range Names {
		e, err := ByName(name)
		if err != nil {
			b.Fatal(err)
		}
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			for b.Loop() {
				if err := e.Encode(io.Discard, r); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkDecode_Report(b *testing.B) {
	data, err := Marshal(Default, newBenchReport())
	if err != nil {
		b.Fatal(err)
	}
	b.ReportAllocs()
	b.SetBytes(int64(len(data)))
	for b.Loop() {
		var r benchReport
		if err := Decode(bytes.NewReader(data), &r); err != nil {
			b.Fatal(err)
		}
	}
}
