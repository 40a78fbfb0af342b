package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/spf13/cobra"

	"github.com/leynos/netsuke/internal/policy"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Report host diagnostics and suggest byte-budget sizing",
	Long: "Reports host memory the way cmd/tcpo/cmd/sonar-security-exporter use\n" +
		"gopsutil for process inspection, repurposed here to help operators size\n" +
		"the fetch/command byte budgets from spec §6 sensibly: budgets too close\n" +
		"to available memory risk OOM under concurrent compilations.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDoctor()
	},
}

func runDoctor() error {
	v, err := mem.VirtualMemory()
	if err != nil {
		return fmt.Errorf("reading host memory: %w", err)
	}

	budgets := policy.DefaultBudgets()
	if flagFetchMaxBytes > 0 {
		budgets.FetchMaxBytes = flagFetchMaxBytes
	}
	if flagCommandMaxBytes > 0 {
		budgets.CommandCapturedMaxBytes = flagCommandMaxBytes
	}

	fmt.Printf("host memory: %s total, %s available\n", humanize.Bytes(v.Total), humanize.Bytes(v.Available))
	fmt.Printf("fetch max bytes:            %s\n", humanize.Bytes(uint64(budgets.FetchMaxBytes)))
	fmt.Printf("command captured max bytes: %s\n", humanize.Bytes(uint64(budgets.CommandCapturedMaxBytes)))
	fmt.Printf("command stream max bytes:   %s\n", humanize.Bytes(uint64(budgets.CommandStreamMaxBytes)))

	const budgetWarnFraction = 10 // warn if the command stream budget exceeds 1/10th of available memory
	if v.Available > 0 {
		if uint64(budgets.CommandStreamMaxBytes) > v.Available/budgetWarnFraction {
			fmt.Println("warning: command stream budget is large relative to available memory; concurrent compilations may pressure the host")
		}
	}
	return nil
}
