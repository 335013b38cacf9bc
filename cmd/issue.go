package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Sudharshanj25/bugtracker/internal/export"
	"github.com/Sudharshanj25/bugtracker/internal/output"
)

var issueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Inspect and export tracked issues",
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueListRun()
	},
}

var issueListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List all issues, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueListRun()
	},
}

var issueShowCmd = &cobra.Command{
	Use:   "show <issue-id>",
	Short: "Show one issue's fields",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueShowRun(args[0])
	},
}

var issueExportCmd = &cobra.Command{
	Use:   "export <file.xlsx>",
	Short: "Write the spreadsheet snapshot to a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueExportRun(args[0])
	},
}

func init() {
	issueCmd.AddCommand(issueListCmd)
	issueCmd.AddCommand(issueShowCmd)
	issueCmd.AddCommand(issueExportCmd)
	rootCmd.AddCommand(issueCmd)
}

func issueListRun() error {
	svc, _, err := getService()
	if err != nil {
		return err
	}

	issues, err := svc.List(context.Background())
	if err != nil {
		return err
	}
	if len(issues) == 0 {
		ui.Info("No issues recorded")
		return nil
	}

	table := ui.Table([]string{"ID", "TRACK", "SUMMARY", "STATUS", "ASSIGNEE", "FILES", "CREATED"})
	for _, issue := range issues {
		summary := issue.Summary
		if len(summary) > 60 {
			summary = summary[:57] + "..."
		}
		assignee := ""
		if issue.Assignee != nil {
			assignee = *issue.Assignee
		}
		_ = table.Append([]string{
			strconv.FormatInt(issue.ID, 10),
			output.Cyan(string(issue.Track)),
			summary,
			output.StatusColor(issue.Status),
			assignee,
			strconv.Itoa(len(issue.Attachments)),
			issue.CreatedAt.Format("2006-01-02 15:04"),
		})
	}
	return table.Render()
}

func issueShowRun(arg string) error {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid issue id: %s", arg)
	}

	svc, _, err := getService()
	if err != nil {
		return err
	}
	issue, err := svc.Get(context.Background(), id)
	if err != nil {
		return err
	}

	orEmpty := func(s *string) string {
		if s == nil {
			return "-"
		}
		return *s
	}

	fmt.Printf("Issue #%d\n", issue.ID)
	fmt.Printf("  Track:       %s\n", output.Cyan(string(issue.Track)))
	fmt.Printf("  Status:      %s\n", output.StatusColor(issue.Status))
	fmt.Printf("  Summary:     %s\n", issue.Summary)
	fmt.Printf("  Description: %s\n", orEmpty(issue.Description))
	fmt.Printf("  Raised by:   %s\n", orEmpty(issue.RaisedBy))
	fmt.Printf("  Assignee:    %s\n", orEmpty(issue.Assignee))
	fmt.Printf("  Scenario:    %s / step %s\n", orEmpty(issue.ScenarioID), orEmpty(issue.StepNo))
	fmt.Printf("  Created:     %s\n", issue.CreatedAt.Format("2006-01-02 15:04:05 MST"))
	if len(issue.Attachments) > 0 {
		fmt.Printf("  Attachments: %s\n", strings.Join(issue.Attachments, ", "))
	}
	return nil
}

func issueExportRun(path string) error {
	svc, _, err := getService()
	if err != nil {
		return err
	}

	issues, err := svc.List(context.Background())
	if err != nil {
		return err
	}

	data, err := export.Workbook(issues)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	ui.Success("Exported %d issue(s) to %s", len(issues), path)
	return nil
}
