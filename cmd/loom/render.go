package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/loomworks/loom/internal/types"
)

var stdoutColors = termenv.NewOutput(os.Stdout)

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func stdoutIsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func colorStatus(s types.Status) string {
	str := stdoutColors.String(string(s))
	switch s {
	case types.StatusOpen:
		str = str.Foreground(stdoutColors.Color("2"))
	case types.StatusInProgress:
		str = str.Foreground(stdoutColors.Color("3"))
	case types.StatusBlocked:
		str = str.Foreground(stdoutColors.Color("1"))
	case types.StatusClosed:
		str = str.Foreground(stdoutColors.Color("8"))
	}
	return str.String()
}

// printIssueTable renders issues as a bordered table on a terminal and as
// tab-separated lines otherwise, so pipes get stable parseable output.
func printIssueTable(issues []*types.Issue) {
	if len(issues) == 0 {
		fmt.Println("No issues found.")
		return
	}

	if !stdoutIsTerminal() {
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		for _, issue := range issues {
			fmt.Fprintf(w, "%s\t%s\tP%d\t%s\t%s\n",
				issue.ID, issue.Status, issue.Priority, issue.IssueType, issue.Title)
		}
		_ = w.Flush()
		return
	}

	tbl := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("240"))).
		Headers("ID", "STATUS", "PRI", "TYPE", "TITLE", "ASSIGNEE")
	for _, issue := range issues {
		tbl.Row(issue.ID, colorStatus(issue.Status),
			fmt.Sprintf("P%d", issue.Priority), string(issue.IssueType),
			truncate(issue.Title, 60), issue.Assignee)
	}
	fmt.Println(tbl)
}

func printIssueDetail(issue *types.Issue) {
	fmt.Printf("%s: %s\n", issue.ID, issue.Title)
	fmt.Printf("  Status:   %s\n", colorStatus(issue.Status))
	fmt.Printf("  Priority: P%d\n", issue.Priority)
	fmt.Printf("  Type:     %s\n", issue.IssueType)
	if issue.Assignee != "" {
		fmt.Printf("  Assignee: %s\n", issue.Assignee)
	}
	if len(issue.Labels) > 0 {
		fmt.Printf("  Labels:   %s\n", strings.Join(issue.Labels, ", "))
	}
	if issue.EstimatedHours != nil {
		fmt.Printf("  Estimate: %.1fh\n", *issue.EstimatedHours)
	}
	if issue.ActualHours != nil {
		fmt.Printf("  Actual:   %.1fh\n", *issue.ActualHours)
	}
	fmt.Printf("  Created:  %s\n", issue.CreatedAt.Format("2006-01-02 15:04"))
	fmt.Printf("  Updated:  %s\n", issue.UpdatedAt.Format("2006-01-02 15:04"))
	if issue.ClosedAt != nil {
		fmt.Printf("  Closed:   %s (%s)\n", issue.ClosedAt.Format("2006-01-02 15:04"), issue.CloseReason)
	}
	for _, section := range []struct{ name, text string }{
		{"Description", issue.Description},
		{"Design", issue.Design},
		{"Acceptance Criteria", issue.AcceptanceCriteria},
		{"Notes", issue.Notes},
	} {
		if section.text != "" {
			fmt.Printf("\n%s:\n%s\n", section.name, indent(section.text, "  "))
		}
	}
}

func printTree(node *types.TreeNode) {
	marker := ""
	if node.EdgeType != "" {
		marker = fmt.Sprintf("[%s] ", node.EdgeType)
	}
	fmt.Printf("%s%s%s %s (%s)\n",
		strings.Repeat("  ", node.Depth), marker, node.ID, truncate(node.Title, 60), colorStatus(node.Status))
	for _, child := range node.Children {
		printTree(child)
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

func indent(s, prefix string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}
