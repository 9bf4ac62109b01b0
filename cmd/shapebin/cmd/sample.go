package cmd

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/spf13/cobra"

	"github.com/ssargent/shapebin/pkg/codec"
)

// Reading is the record written by the sample command
type Reading struct {
	Sensor   string            `shapebin:"sensor"`
	Taken    time.Time         `shapebin:"taken"`
	Celsius  float64           `shapebin:"celsius"`
	Samples  []int16           `shapebin:"samples"`
	Labels   map[string]string `shapebin:"labels"`
	Previous *float64          `shapebin:"previous"`
}

func sampleReadings(count int, seed int64) []Reading {
	rng := rand.New(rand.NewSource(seed))
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	out := make([]Reading, count)
	var prev *float64
	for i := range out {
		r := Reading{
			Sensor:   fmt.Sprintf("sensor-%02d", i%8),
			Taken:    start.Add(time.Duration(i) * time.Minute),
			Celsius:  15 + rng.Float64()*10,
			Samples:  make([]int16, rng.Intn(6)),
			Labels:   map[string]string{"site": fmt.Sprintf("site-%d", i%3)},
			Previous: prev,
		}
		for j := range r.Samples {
			r.Samples[j] = int16(rng.Intn(2000) - 1000)
		}
		c := r.Celsius
		prev = &c
		out[i] = r
	}
	return out
}

func newSampleCmd(a *app) *cobra.Command {
	var (
		out   string
		count int
		seed  int64
	)

	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Write a blob of generated sensor readings",
		Long: `Write a blob of generated sensor readings. A count of zero writes a single
Object blob, anything larger an Array blob.

Examples:
  shapebin sample --out readings.bin --count 1000
  shapebin sample --out one.bin --count 0`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if count < 0 {
				return fmt.Errorf("count must not be negative")
			}
			var err error
			if count == 0 {
				err = codec.ToFile(out, sampleReadings(1, seed)[0], a.codecOpts...)
			} else {
				err = codec.ToFileSeq(out, sampleReadings(count, seed), a.codecOpts...)
			}
			if err != nil {
				return err
			}
			cmd.Printf("Wrote %s\n", out)
			return nil
		},
	}

	cmd.Flags().StringVar(&out, "out", "sample.bin", "Output file")
	cmd.Flags().IntVar(&count, "count", 100, "Number of readings, 0 for a single object")
	cmd.Flags().Int64Var(&seed, "seed", 1, "Random seed")
	return cmd
}
