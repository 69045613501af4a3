package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/noah-isme/insight-compliance-api/internal/app"
)

var complianceCmd = &cobra.Command{
	Use:   "compliance <participant-id>",
	Short: "Show a participant's compliance grid",
	Long: `Evaluate every study day of a participant and print one row per date with
the verdict of each of the four daily surveys.

Examples:
  insightctl compliance 1042
  insightctl compliance 1042 --json`,
	Args: cobra.ExactArgs(1),
	RunE: runCompliance,
}

var sendTimesCmd = &cobra.Command{
	Use:   "send-times <participant-id>",
	Short: "Show reconstructed survey send times",
	Args:  cobra.ExactArgs(1),
	RunE:  runSendTimes,
}

var dailyDate string

var dailyCmd = &cobra.Command{
	Use:   "daily",
	Short: "Show compliance of all in-study participants for a date",
	Long: `Print the participant buckets and each in-study participant's surveys for
one calendar date. Defaults to today in the reference timezone.

Examples:
  insightctl daily
  insightctl daily --date 2024-01-06`,
	Args: cobra.NoArgs,
	RunE: runDaily,
}

func init() {
	rootCmd.AddCommand(complianceCmd)
	rootCmd.AddCommand(sendTimesCmd)
	rootCmd.AddCommand(dailyCmd)

	dailyCmd.Flags().StringVarP(&dailyDate, "date", "d", "", "Report date (YYYY-MM-DD)")
}

func parseParticipantID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid participant id %q", arg)
	}
	return id, nil
}

func runCompliance(cmd *cobra.Command, args []string) error {
	id, err := parseParticipantID(args[0])
	if err != nil {
		return err
	}
	return withContainer(cmd, func(ctx context.Context, c *app.Container) error {
		report, err := c.Compliance.EvaluateParticipant(ctx, id)
		if err != nil {
			return err
		}
		if outputJSON {
			return writeJSON(cmd.OutOrStdout(), report)
		}
		return renderComplianceReport(cmd.OutOrStdout(), report)
	})
}

func runSendTimes(cmd *cobra.Command, args []string) error {
	id, err := parseParticipantID(args[0])
	if err != nil {
		return err
	}
	return withContainer(cmd, func(ctx context.Context, c *app.Container) error {
		table, err := c.Compliance.SendTimes(ctx, id)
		if err != nil {
			return err
		}
		if outputJSON {
			return writeJSON(cmd.OutOrStdout(), table)
		}
		return renderSendTimes(cmd.OutOrStdout(), table)
	})
}

func runDaily(cmd *cobra.Command, args []string) error {
	return withContainer(cmd, func(ctx context.Context, c *app.Container) error {
		date := dailyDate
		if date == "" {
			date = c.Compliance.Today()
		}
		report, err := c.Daily.Generate(ctx, date)
		if err != nil {
			return err
		}
		if outputJSON {
			return writeJSON(cmd.OutOrStdout(), report)
		}
		return renderDailyReport(cmd.OutOrStdout(), report)
	})
}
