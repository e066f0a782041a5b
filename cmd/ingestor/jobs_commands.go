package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"ingestor/internal/api"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	var statuses []string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List retained jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := ctx.client().Jobs(cmd.Context())
			if err != nil {
				return ctx.wrapDialError(err)
			}
			list = filterJobs(list, statuses)
			if jsonOutput {
				return writeJSON(cmd, list)
			}
			if len(list) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No jobs")
				return nil
			}
			fmt.Fprint(cmd.OutOrStdout(), renderTable(tableView{
				Headers: []string{"ID", "Kind", "Status", "Progress", "Items", "Title", "Created"},
				Rows:    buildJobRows(list),
				Aligns:  []columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignLeft},
				Footer:  []string{fmt.Sprintf("%d jobs", len(list))},
			}))
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Only show jobs with these statuses")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print jobs as JSON")
	return cmd
}

func filterJobs(list []api.Job, statuses []string) []api.Job {
	if len(statuses) == 0 {
		return list
	}
	wanted := make(map[string]struct{}, len(statuses))
	for _, status := range statuses {
		wanted[strings.ToLower(strings.TrimSpace(status))] = struct{}{}
	}
	out := list[:0:0]
	for _, job := range list {
		if _, ok := wanted[job.Status]; ok {
			out = append(out, job)
		}
	}
	return out
}

// buildJobRows renders jobs newest first.
func buildJobRows(list []api.Job) [][]string {
	sorted := append([]api.Job(nil), list...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt > sorted[j].CreatedAt
	})
	rows := make([][]string, 0, len(sorted))
	for _, job := range sorted {
		items := ""
		if job.Total > 0 {
			items = fmt.Sprintf("%d/%d", job.Processed, job.Total)
		}
		rows = append(rows, []string{
			shortID(job.ID),
			job.Kind,
			job.Status,
			strconv.Itoa(job.Percentage) + "%",
			items,
			truncate(job.Title, 40),
			job.CreatedAt,
		})
	}
	return rows
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status [job-id]",
		Short: "Show daemon status or a single job",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := ctx.client()
			if len(args) == 1 {
				job, err := client.Job(cmd.Context(), args[0])
				if err != nil {
					return ctx.wrapDialError(err)
				}
				if jsonOutput {
					return writeJSON(cmd, job)
				}
				fmt.Fprint(cmd.OutOrStdout(), strings.Join(jobDetailLines(job, shouldColorize(cmd.OutOrStdout())), "\n")+"\n")
				return nil
			}
			status, err := client.Status(cmd.Context())
			if err != nil {
				return ctx.wrapDialError(err)
			}
			if jsonOutput {
				return writeJSON(cmd, status)
			}
			fmt.Fprint(cmd.OutOrStdout(), strings.Join(daemonStatusLines(status, shouldColorize(cmd.OutOrStdout())), "\n")+"\n")
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print status as JSON")
	return cmd
}

func daemonStatusLines(status api.Status, colorize bool) []string {
	lines := renderSectionHeader("Daemon", colorize)
	engineKind, engineText := statusOK, "Running"
	if !status.Engine.Running {
		engineKind, engineText = statusWarn, "Stopped"
	}
	lines = append(lines,
		renderStatusLine("Engine", engineKind, engineText, colorize),
		renderStatusLine("PID", statusInfo, strconv.Itoa(status.PID), colorize),
		renderStatusLine("Database", statusInfo, status.DatabasePath, colorize),
		renderStatusLine("Capacity", statusInfo, fmt.Sprintf("%d/%d in flight (peak %d)", status.Engine.InFlight, status.Engine.Capacity, status.Engine.Peak), colorize),
		renderStatusLine("NATS", statusInfo, yesNo(status.NATS), colorize),
	)
	if status.InboxDir != "" {
		lines = append(lines, renderStatusLine("Inbox", statusInfo, status.InboxDir, colorize))
	}
	if status.Engine.LastError != "" {
		lines = append(lines, renderStatusLine("Last error", statusError, status.Engine.LastError, colorize))
	}

	lines = append(lines, "")
	lines = append(lines, renderSectionHeader("Jobs", colorize)...)
	if len(status.Engine.Counts) == 0 {
		lines = append(lines, renderStatusLine("Registered", statusInfo, "none", colorize))
	}
	for _, count := range status.Engine.Counts {
		lines = append(lines, renderStatusLine(count.Status, jobStatusKind(count.Status), strconv.Itoa(count.Count), colorize))
	}

	if status.Knowledge != nil {
		lines = append(lines, "")
		lines = append(lines, renderSectionHeader("Knowledge", colorize)...)
		lines = append(lines,
			renderStatusLine("Sources", statusInfo, strconv.Itoa(status.Knowledge.Sources), colorize),
			renderStatusLine("Documents", statusInfo, strconv.Itoa(status.Knowledge.Documents), colorize),
			renderStatusLine("Chunks", statusInfo, strconv.Itoa(status.Knowledge.Chunks), colorize),
		)
	}

	if len(status.Dependencies) > 0 {
		lines = append(lines, "")
		lines = append(lines, renderSectionHeader("Dependencies", colorize)...)
		lines = append(lines, dependencyLines(status.Dependencies, colorize)...)
	}

	if len(status.Checks) > 0 {
		lines = append(lines, "")
		lines = append(lines, renderSectionHeader("Checks", colorize)...)
		for _, check := range status.Checks {
			kind := statusOK
			if !check.Passed {
				kind = statusError
			}
			lines = append(lines, renderStatusLine(check.Name, kind, check.Detail, colorize))
		}
	}
	return lines
}

func dependencyLines(list []api.Dependency, colorize bool) []string {
	lines := make([]string, 0, len(list)+1)
	var missing []string
	for _, dep := range list {
		if dep.Available {
			message := "Ready"
			if dep.Command != "" {
				message = fmt.Sprintf("Ready (command: %s)", dep.Command)
			}
			lines = append(lines, renderStatusLine(dep.Name, statusOK, message, colorize))
			continue
		}
		detail := strings.TrimSpace(dep.Detail)
		if detail == "" {
			detail = "not available"
		}
		kind := statusError
		if dep.Optional {
			kind = statusWarn
		}
		lines = append(lines, renderStatusLine(dep.Name, kind, detail, colorize))
		missing = append(missing, dep.Name)
	}
	if len(missing) > 0 {
		lines = append(lines, renderStatusLine("Missing dependencies", statusWarn, strings.Join(missing, ", "), colorize))
	}
	return lines
}

func jobDetailLines(job api.Job, colorize bool) []string {
	lines := renderSectionHeader("Job "+job.ID, colorize)
	lines = append(lines,
		renderStatusLine("Kind", statusInfo, job.Kind, colorize),
		renderStatusLine("Status", jobStatusKind(job.Status), job.Status, colorize),
		renderStatusLine("Progress", statusInfo, fmt.Sprintf("%s %d%%", renderProgressBar(job.Percentage), job.Percentage), colorize),
	)
	if job.Title != "" {
		lines = append(lines, renderStatusLine("Title", statusInfo, job.Title, colorize))
	}
	if job.CurrentItem != "" {
		lines = append(lines, renderStatusLine("Current", statusInfo, job.CurrentItem, colorize))
	}
	if job.Total > 0 {
		lines = append(lines, renderStatusLine("Items", statusInfo, fmt.Sprintf("%d/%d", job.Processed, job.Total), colorize))
	}
	if job.Stats.SourceID != "" {
		lines = append(lines, renderStatusLine("Source", statusInfo, job.Stats.SourceID, colorize))
	}
	lines = append(lines, renderStatusLine("Stored", statusInfo, fmt.Sprintf("%d chunks, %d words", job.Stats.ChunksStored, job.Stats.WordsProcessed), colorize))
	if job.Error != "" {
		lines = append(lines, renderStatusLine("Error", statusError, job.Error, colorize))
	}
	for _, item := range job.FailedItems {
		lines = append(lines, renderStatusLine("Failed", statusWarn, item.Name+": "+item.Reason, colorize))
	}
	if len(job.Log) > 0 {
		lines = append(lines, "")
		lines = append(lines, renderSectionHeader("Log", colorize)...)
		for _, line := range job.Log {
			lines = append(lines, statusIndent+line)
		}
	}
	return lines
}

func newCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Cancel a running job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := ctx.client().Cancel(cmd.Context(), args[0])
			if err != nil {
				return ctx.wrapDialError(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", resp.Message, resp.JobID)
			return nil
		},
	}
}

func truncate(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit-1]) + "…"
}
