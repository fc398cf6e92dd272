package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rcliao/agent-bridge/internal/calendar"
)

type parseResult struct {
	Input  string `json:"input"`
	OK     bool   `json:"ok"`
	Result any    `json:"result,omitempty"`
}

func init() {
	parseCmd := &cobra.Command{
		Use:   "parse",
		Short: "Run the calendar dialogue parsers on a sample answer",
	}

	durationCmd := &cobra.Command{
		Use:   "duration <text>",
		Short: "Parse a duration answer into minutes",
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			in := strings.Join(args, " ")
			minutes := calendar.ParseDuration(in)
			res := parseResult{Input: in, OK: minutes > 0}
			if res.OK {
				res.Result = minutes
			}
			printJSON(cmd.OutOrStdout(), res)
		},
	}

	datetimeCmd := &cobra.Command{
		Use:   "datetime <text>",
		Short: "Parse a date/time answer",
		Args:  cobra.MinimumNArgs(1),
		Run:   runParseDateTime,
	}
	datetimeCmd.Flags().String("now", "", "Reference time (RFC3339, default: current time)")

	priorityCmd := &cobra.Command{
		Use:   "priority <text>",
		Short: "Parse a 1-10 priority answer",
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			in := strings.Join(args, " ")
			p := calendar.ExtractNumber(in)
			res := parseResult{Input: in, OK: p >= 1 && p <= 10}
			if res.OK {
				res.Result = p
			}
			printJSON(cmd.OutOrStdout(), res)
		},
	}

	numberCmd := &cobra.Command{
		Use:   "number <text>",
		Short: "Extract the first run of digits",
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			in := strings.Join(args, " ")
			printJSON(cmd.OutOrStdout(), parseResult{Input: in, OK: true, Result: calendar.ExtractNumber(in)})
		},
	}

	parseCmd.AddCommand(durationCmd, datetimeCmd, priorityCmd, numberCmd)
	RootCmd.AddCommand(parseCmd)
}

func runParseDateTime(cmd *cobra.Command, args []string) {
	nowStr, _ := cmd.Flags().GetString("now")
	now := time.Now()
	if nowStr != "" {
		t, err := time.Parse(time.RFC3339, nowStr)
		if err != nil {
			exitErr("parse datetime", fmt.Errorf("invalid --now: %w", err))
		}
		now = t
	}

	in := strings.Join(args, " ")
	when, ok := calendar.ParseDateTime(in, now)
	res := parseResult{Input: in, OK: ok}
	if ok {
		res.Result = when.Format(time.RFC3339)
	}
	printJSON(cmd.OutOrStdout(), res)
}
