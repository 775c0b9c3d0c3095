package main

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/noah-isme/fyp-grading-api/internal/dto"
	"github.com/noah-isme/fyp-grading-api/internal/grading"
)

func render(w io.Writer, data *dto.SemesterResults, withComponents bool) error {
	table := tablewriter.NewTable(w, tablewriter.WithConfig(tablewriter.Config{
		Row: tw.CellConfig{
			Alignment: tw.CellAlignment{
				PerColumn: []tw.Align{tw.AlignLeft, tw.AlignLeft, tw.AlignRight, tw.AlignRight, tw.AlignRight, tw.AlignLeft},
			},
		},
	}))
	table.Header("Student", "Name / Component", "Supervisor", "Moderator", "Score", "Status")

	for _, result := range data.Results {
		if err := table.Append(
			result.StudentID,
			result.StudentName,
			"",
			"",
			fmt.Sprintf("%.2f / %.2f", result.TotalScore, result.MaxScore),
			string(result.Status),
		); err != nil {
			return err
		}
		if !withComponents {
			continue
		}
		for _, component := range result.Components {
			if err := table.Append(
				"",
				fmt.Sprintf("  %s (diff %s)", component.ComponentName, grading.FormatDiscrepancy(component.Discrepancy)),
				formatScore(component.SupervisorScore),
				formatScore(component.ModeratorScore),
				formatScore(component.Weighted),
				string(component.Status),
			); err != nil {
				return err
			}
		}
	}

	table.Footer(
		data.SemesterID,
		fmt.Sprintf("Supervisor %.0f%% / Moderator %.0f%%", data.Weightage.Supervisor, data.Weightage.Moderator),
		"",
		"",
		fmt.Sprintf("Pass %d Fail %d", data.Counts.Pass, data.Counts.Fail),
		fmt.Sprintf("Pending %d", data.Counts.Pending),
	)
	return table.Render()
}

func formatScore(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *v)
}
