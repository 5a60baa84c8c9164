package main

import (
	"fmt"
	"io"
	"os"
	"runtime/pprof"
	"sort"

	"github.com/google/pprof/profile"
)

type hotspot struct {
	Func  string
	Flat  int64
	Share float64
}

// withCPUProfile runs fn while profiling the process into path and returns
// the hottest functions. The profile is finished even when fn panics.
func withCPUProfile(path string, fn func() error) ([]hotspot, error) {
	stop, err := startCPUProfile(path)
	if err != nil {
		return nil, err
	}
	defer stop()

	if err := fn(); err != nil {
		return nil, err
	}
	return stop()
}

// startCPUProfile profiles the process into path. The returned stop
// function ends the profile and summarises its hottest functions; calls
// after the first do nothing.
func startCPUProfile(path string) (func() ([]hotspot, error), error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("[profile] create %s: %w", path, err)
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		f.Close()
		return nil, fmt.Errorf("[profile] start: %w", err)
	}

	stopped := false
	return func() ([]hotspot, error) {
		if stopped {
			return nil, nil
		}
		stopped = true
		pprof.StopCPUProfile()
		if err := f.Close(); err != nil {
			return nil, err
		}

		r, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer r.Close()
		p, err := profile.Parse(r)
		if err != nil {
			return nil, fmt.Errorf("[profile] parse %s: %w", path, err)
		}
		return topFunctions(p, 5), nil
	}, nil
}

// topFunctions ranks leaf functions by their share of the last sample
// value (cpu time for CPU profiles).
func topFunctions(p *profile.Profile, n int) []hotspot {
	if len(p.SampleType) == 0 {
		return nil
	}
	vi := len(p.SampleType) - 1

	var total int64
	flat := map[string]int64{}
	for _, s := range p.Sample {
		v := s.Value[vi]
		total += v
		if len(s.Location) == 0 || len(s.Location[0].Line) == 0 || s.Location[0].Line[0].Function == nil {
			continue
		}
		flat[s.Location[0].Line[0].Function.Name] += v
	}

	out := make([]hotspot, 0, len(flat))
	for name, v := range flat {
		out = append(out, hotspot{Func: name, Flat: v, Share: float64(v) / float64(total)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Flat != out[j].Flat {
			return out[i].Flat > out[j].Flat
		}
		return out[i].Func < out[j].Func
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func printHotspots(w io.Writer, hs []hotspot) {
	if len(hs) == 0 {
		fmt.Fprintln(w, "  profile: no samples")
		return
	}
	fmt.Fprintln(w, "  profile:")
	for _, h := range hs {
		fmt.Fprintf(w, "    %5.1f%%  %s\n", 100*h.Share, h.Func)
	}
}
