package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/noah-isme/insight-compliance-api/internal/app"
	"github.com/noah-isme/insight-compliance-api/internal/dto"
	"github.com/noah-isme/insight-compliance-api/internal/models"
)

var participantsCmd = &cobra.Command{
	Use:   "participants",
	Short: "Inspect registered participants",
}

var participantsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List participants with their study status",
	Long: `List registered participants ordered by id.

Examples:
  insightctl participants list
  insightctl participants list --status in_study
  insightctl participants list --as-of 2024-02-01 --page 2`,
	Args: cobra.NoArgs,
	RunE: runParticipantsList,
}

var (
	participantsStatus   string
	participantsAsOf     string
	participantsPage     int
	participantsPageSize int
)

func init() {
	rootCmd.AddCommand(participantsCmd)
	participantsCmd.AddCommand(participantsListCmd)

	participantsListCmd.Flags().StringVarP(&participantsStatus, "status", "s", "", "Filter: not_started, in_study, completed")
	participantsListCmd.Flags().StringVar(&participantsAsOf, "as-of", "", "Evaluate status on this date (YYYY-MM-DD)")
	participantsListCmd.Flags().IntVarP(&participantsPage, "page", "p", 1, "Page number")
	participantsListCmd.Flags().IntVarP(&participantsPageSize, "page-size", "n", 50, "Participants per page")
}

func runParticipantsList(cmd *cobra.Command, args []string) error {
	filter := dto.ParticipantFilter{
		Status:   models.ParticipantStatus(participantsStatus),
		AsOf:     participantsAsOf,
		Page:     participantsPage,
		PageSize: participantsPageSize,
	}
	return withContainer(cmd, func(ctx context.Context, c *app.Container) error {
		items, pagination, err := c.Participants.List(ctx, filter)
		if err != nil {
			return err
		}
		if outputJSON {
			return writeJSON(cmd.OutOrStdout(), map[string]interface{}{
				"data":       items,
				"pagination": pagination,
			})
		}
		return renderParticipants(cmd.OutOrStdout(), items, pagination)
	})
}
