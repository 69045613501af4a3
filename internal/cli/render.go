package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/noah-isme/insight-compliance-api/internal/dto"
	"github.com/noah-isme/insight-compliance-api/internal/models"
)

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func slotHeaders() []string {
	headers := make([]string, models.SlotsPerDay)
	for i := range headers {
		headers[i] = fmt.Sprintf("SURVEY %d", i+1)
	}
	return headers
}

func renderComplianceReport(w io.Writer, report *models.ComplianceReport) error {
	p := report.Participant
	fmt.Fprintf(w, "Participant %d (%s), %s to %s, as of %s\n\n",
		p.ParticipantID, p.ScheduleType, p.StartDate, p.EndDate, report.AsOf)

	tw := newTable(w)
	fmt.Fprintf(tw, "DATE\tDAY\t%s\tDAILY\tROLLING\n", strings.Join(slotHeaders(), "\t"))
	for _, row := range report.Grid.Rows {
		cells := make([]string, len(row.Cells))
		for i, cell := range row.Cells {
			cells[i] = formatCell(cell)
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\n",
			row.Date, row.StudyDay, strings.Join(cells, "\t"),
			formatPercent(row.DailyPercentage), formatPercent(row.RollingAverage))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\nCompleted %d of %d due surveys. Current compliance: %s. Total compliance: %.1f%%\n",
		report.CompletedCells, report.CountedCells, formatPercent(report.CurrentCompliance), report.TotalCompliance)
	return nil
}

func renderSendTimes(w io.Writer, table *models.SendTimeTable) error {
	fmt.Fprintf(w, "%s\n\n", table.ScheduleType)

	tw := newTable(w)
	fmt.Fprintf(tw, "DATE\t%s\n", strings.Join(slotHeaders(), "\t"))
	for _, row := range table.Rows {
		slots := make([]string, len(row.Slots))
		for i, v := range row.Slots {
			slots[i] = orDash(v)
		}
		fmt.Fprintf(tw, "%s\t%s\n", row.Date, strings.Join(slots, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	writeFailedSlots(w, table.FailedSlots)
	return nil
}

func renderDailyReport(w io.Writer, report *models.DailyReport) error {
	b := report.Buckets
	fmt.Fprintf(w, "Daily compliance for %s\n", report.Date)
	fmt.Fprintf(w, "Not started: %d  In study: %d  Completed: %d\n\n",
		len(b.NotStarted), len(b.InStudy), len(b.Completed))

	if len(report.Entries) == 0 {
		fmt.Fprintln(w, "No participants in study on this date")
		return nil
	}

	tw := newTable(w)
	fmt.Fprintf(tw, "ID\tSCHEDULE\tDAY\t%s\tDAILY\n", strings.Join(slotHeaders(), "\t"))
	for _, e := range report.Entries {
		if e.Error != "" {
			fmt.Fprintf(tw, "%d\t%s\t%d\terror: %s\n", e.ParticipantID, e.ScheduleType, e.StudyDay, e.Error)
			continue
		}
		cells := make([]string, len(e.Cells))
		for i, cell := range e.Cells {
			cells[i] = formatCell(cell)
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\n",
			e.ParticipantID, e.ScheduleType, e.StudyDay, strings.Join(cells, "\t"), formatPercent(e.DailyPercentage))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	for _, t := range report.SendTimes {
		writeFailedSlots(w, t.FailedSlots)
	}
	return nil
}

func renderParticipants(w io.Writer, items []dto.ParticipantResponse, pagination *models.Pagination) error {
	if len(items) == 0 {
		fmt.Fprintln(w, "No participants found")
		return nil
	}

	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tSTART\tEND\tSCHEDULE\tSTATUS\tDAY\tPHASE\tPHONE")
	for _, p := range items {
		day, phase := "-", "-"
		if p.StudyDay > 0 {
			day = fmt.Sprintf("%d", p.StudyDay)
		}
		if p.Phase > 0 {
			phase = fmt.Sprintf("%d", p.Phase)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			p.ParticipantID, p.StartDate, p.EndDate, p.ScheduleType, p.Status, day, phase, p.PhoneNumber)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if pagination != nil {
		fmt.Fprintf(w, "\nPage %d, %d per page, %d total\n", pagination.Page, pagination.PageSize, pagination.TotalCount)
	}
	return nil
}

func writeFailedSlots(w io.Writer, failed []models.FailedSlot) {
	for _, f := range failed {
		fmt.Fprintf(w, "warning: survey %d send times unavailable (%s): %s\n", f.Slot, f.Source, f.Reason)
	}
}

func formatCell(cell models.ComplianceCell) string {
	label := cell.Label
	if label == "" {
		label = cell.Verdict.Label()
	}
	if ts := cell.ResponseTimestamp; len(ts) > len(models.DateLayout)+1 {
		return fmt.Sprintf("%s @ %s", label, ts[len(models.DateLayout)+1:])
	}
	return label
}

func formatPercent(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f%%", *v)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
