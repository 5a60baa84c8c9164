package main

import (
	"fmt"
	"io"
	"time"

	"github.com/bietkhonhungvandi212/kswap/internal/sim"
	util "github.com/bietkhonhungvandi212/kswap/internal/utils"
	"github.com/fatih/color"
)

func printReport(w io.Writer, opts util.Options, r *sim.Report) {
	var (
		title = color.New(color.FgCyan, color.Bold)
		label = color.New(color.Faint).SprintFunc()
		good  = color.New(color.FgGreen).SprintFunc()
		warn  = color.New(color.FgYellow).SprintFunc()
	)

	title.Fprintf(w, "kswap: %d cpus, %d processes x %d pages, %d frames, %s swap\n",
		opts.CPUs, opts.Processes, opts.PagesPerProc, r.Loaded.TotalFrames, opts.SwapBackend)

	rate := fmt.Sprintf("%.2f%%", 100*r.FaultRate())
	if r.FaultRate() > 0.2 {
		rate = warn(rate)
	} else {
		rate = good(rate)
	}

	fmt.Fprintf(w, "  %s %d in %s\n", label("rounds"), r.Rounds, r.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(w, "  %s %d, %s %d (%s)\n", label("accesses"), r.Accesses, label("faults"), r.Faults, rate)
	fmt.Fprintf(w, "  %s %.1f ± %.1f per round\n", label("faults"), r.FaultMean, r.FaultStdDev)
	fmt.Fprintf(w, "  %s %.1f ± %.1f per round\n", label("evictions"), r.EvictionMean, r.EvictionStdDev)
	fmt.Fprintf(w, "  %s free %d, lru %d, swapped %d/%d, evictions %d, swap-ins %d, ooms %d, clock steps %d\n",
		label("memory"), r.Loaded.Free, r.Loaded.LRU, r.Loaded.Swapped, r.Loaded.SwapSlots,
		r.Loaded.Evictions, r.Loaded.SwapIns, r.Loaded.OOMs, r.Loaded.ClockSteps)

	if r.Final.LRU == 0 && r.Final.SwapOut == 0 && r.Final.Swapped == 0 {
		fmt.Fprintf(w, "  %s all %d user frames returned after exit\n", good("ok"), r.Final.Free)
	} else {
		fmt.Fprintf(w, "  %s %d frames free after exit, %d slots still live\n", warn("leak"), r.Final.Free, r.Final.Swapped)
	}
}
