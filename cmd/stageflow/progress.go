package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/eduxora/stageflow/internal/lifecycle"
	"github.com/eduxora/stageflow/pkg/progress"
)

var progressJSON bool

var progressCmd = &cobra.Command{
	Use:   "progress <request-id>",
	Short: "Fetch a request and show its stage progress",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := newApp(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		rv, err := a.lifecycle.Load(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if progressJSON {
			return writeJSON(cmd.OutOrStdout(), rv)
		}
		_, err = io.WriteString(cmd.OutOrStdout(), renderRequestView(rv))
		return err
	},
}

func init() {
	progressCmd.Flags().BoolVar(&progressJSON, "json", false, "Print the view as JSON")
}

var (
	primaryColor = lipgloss.Color("#7C3AED")
	okColor      = lipgloss.Color("#10B981")
	mutedColor   = lipgloss.Color("#6B7280")
	dangerColor  = lipgloss.Color("#EF4444")
	warnColor    = lipgloss.Color("#F59E0B")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(primaryColor).
			Padding(0, 1)

	currentStyle = lipgloss.NewStyle().Bold(true).Foreground(primaryColor)
	okStyle      = lipgloss.NewStyle().Foreground(okColor)
	mutedStyle   = lipgloss.NewStyle().Foreground(mutedColor)
	dangerStyle  = lipgloss.NewStyle().Foreground(dangerColor)
	warnStyle    = lipgloss.NewStyle().Foreground(warnColor)

	barFull  = lipgloss.NewStyle().Foreground(okColor)
	barEmpty = lipgloss.NewStyle().Foreground(mutedColor)
)

// barCells is the rendered width of the completion bar.
const barCells = 30

func statusStyle(s progress.StageStatus) lipgloss.Style {
	switch s {
	case progress.StatusCurrent:
		return currentStyle
	case progress.StatusApproved:
		return okStyle
	case progress.StatusRejected:
		return dangerStyle
	case progress.StatusNotStarted:
		return mutedStyle
	default:
		return warnStyle
	}
}

func renderBar(p progress.Percent) string {
	filled := p.Width() * barCells / 100
	return barFull.Render(strings.Repeat("█", filled)) +
		barEmpty.Render(strings.Repeat("░", barCells-filled)) +
		" " + p.Label() + "%"
}

// renderView draws the stage list, sub-stages, completion bar and any
// integrity issues.
func renderView(v *progress.View) string {
	var b strings.Builder

	title := "Workflow " + v.WorkflowID
	if v.RequestID != "" {
		title = "Request " + v.RequestID + " · " + title
	}
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n\n")

	if v.HasPercent {
		b.WriteString(renderBar(v.Percent))
		b.WriteString("\n\n")
	}

	for i, sv := range v.Stages {
		marker := "  "
		if sv.Status == progress.StatusCurrent {
			marker = currentStyle.Render("▶ ")
		}
		fmt.Fprintf(&b, "%s%d. %s  %s\n", marker, i+1, sv.Stage.Name, statusStyle(sv.Status).Render(string(sv.Status)))
		for _, sub := range sv.SubStages {
			line := fmt.Sprintf("     └ %s  %s", sub.Response.StageName, statusStyle(sub.Status).Render(string(sub.Status)))
			if sub.Attempts > 1 {
				line += mutedStyle.Render(fmt.Sprintf(" (%d attempts)", sub.Attempts))
			}
			b.WriteString(line + "\n")
		}
	}
	if len(v.Stages) == 0 {
		b.WriteString(mutedStyle.Render("No stages defined") + "\n")
	}

	if len(v.Issues) > 0 {
		b.WriteString("\n" + warnStyle.Render(fmt.Sprintf("%d data issue(s):", len(v.Issues))) + "\n")
		for _, issue := range v.Issues {
			b.WriteString("  - " + issue.Error() + "\n")
		}
	}
	return b.String()
}

func renderRequestView(rv *lifecycle.RequestView) string {
	out := renderView(rv.View)
	if rv.Stale {
		out += "\n" + warnStyle.Render("Showing stored data; the backend could not be reached.") + "\n"
	}
	if rv.Partial {
		out += mutedStyle.Render("Current stage unavailable.") + "\n"
	}
	return out
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
