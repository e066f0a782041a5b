package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"ingestor/internal/api"
)

func newSourcesCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "sources",
		Short: "List stored knowledge sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			sources, err := ctx.client().Sources(cmd.Context())
			if err != nil {
				return ctx.wrapDialError(err)
			}
			if jsonOutput {
				return writeJSON(cmd, sources)
			}
			if len(sources) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No sources stored")
				return nil
			}
			fmt.Fprint(cmd.OutOrStdout(), renderTable(tableView{
				Headers: []string{"Source", "Type", "Title", "Knowledge", "Docs", "Chunks", "Code", "Tags"},
				Rows:    buildSourceRows(sources),
				Aligns:  []columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft},
				Footer:  sourceTotals(sources),
			}))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print sources as JSON")
	cmd.AddCommand(newSourcesDeleteCommand(ctx), newSourcesRefreshCommand(ctx), newSourcesCodeCommand(ctx))
	return cmd
}

func buildSourceRows(sources []api.Source) [][]string {
	rows := make([][]string, 0, len(sources))
	for _, src := range sources {
		title := src.Title
		if title == "" {
			title = src.URL
		}
		rows = append(rows, []string{
			src.ID,
			src.Type,
			truncate(title, 40),
			src.KnowledgeType,
			strconv.Itoa(src.Documents),
			strconv.Itoa(src.Chunks),
			strconv.Itoa(src.CodeExamples),
			strings.Join(src.Tags, ", "),
		})
	}
	return rows
}

func sourceTotals(sources []api.Source) []string {
	var docs, chunks, code int
	for _, src := range sources {
		docs += src.Documents
		chunks += src.Chunks
		code += src.CodeExamples
	}
	return []string{
		fmt.Sprintf("%d sources", len(sources)), "", "", "",
		strconv.Itoa(docs), strconv.Itoa(chunks), strconv.Itoa(code), "",
	}
}

func newSourcesDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <source-id>",
		Short: "Delete a source and everything stored under it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.client().DeleteSource(cmd.Context(), args[0]); err != nil {
				return ctx.wrapDialError(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted source %s\n", args[0])
			return nil
		},
	}
}

func newSourcesRefreshCommand(ctx *commandContext) *cobra.Command {
	var flags submitFlags

	cmd := &cobra.Command{
		Use:   "refresh <source-id>",
		Short: "Re-crawl a stored source with its original settings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := ctx.client().RefreshSource(cmd.Context(), args[0])
			return finishSubmit(cmd, ctx, flags, resp, err)
		},
	}
	cmd.Flags().BoolVarP(&flags.follow, "follow", "f", false, "Follow job progress until it finishes")
	cmd.Flags().BoolVar(&flags.jsonOutput, "json", false, "Print the accepted job as JSON")
	return cmd
}

func newSourcesCodeCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "code <source-id>",
		Short: "List code examples captured for a source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := ctx.client().CodeExamples(cmd.Context(), args[0])
			if err != nil {
				return ctx.wrapDialError(err)
			}
			if jsonOutput {
				return writeJSON(cmd, resp)
			}
			out := cmd.OutOrStdout()
			if resp.Count == 0 {
				fmt.Fprintf(out, "No code examples for %s\n", resp.SourceID)
				return nil
			}
			colorize := shouldColorize(out)
			for i, example := range resp.CodeExamples {
				if i > 0 {
					fmt.Fprintln(out)
				}
				language := example.Language
				if language == "" {
					language = "text"
				}
				fmt.Fprintln(out, paint(fmt.Sprintf("%d. %s (%s)", i+1, example.Ref, language), statusInfo, colorize))
				for _, line := range strings.Split(example.Content, "\n") {
					fmt.Fprintln(out, statusIndent+line)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print code examples as JSON")
	return cmd
}

func newSearchCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search stored chunks",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			resp, err := ctx.client().Search(cmd.Context(), query, limit)
			if err != nil {
				return ctx.wrapDialError(err)
			}
			if jsonOutput {
				return writeJSON(cmd, resp)
			}
			out := cmd.OutOrStdout()
			if len(resp.Hits) == 0 {
				fmt.Fprintf(out, "No matches for %q\n", query)
				return nil
			}
			colorize := shouldColorize(out)
			for i, hit := range resp.Hits {
				if i > 0 {
					fmt.Fprintln(out)
				}
				header := fmt.Sprintf("%d. %s  (%s #%d, score %.2f)", i+1, hit.Title, hit.Ref, hit.ChunkIndex, hit.Score)
				fmt.Fprintln(out, paint(header, statusInfo, colorize))
				fmt.Fprintln(out, statusIndent+truncate(strings.Join(strings.Fields(hit.Content), " "), 240))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 5, "Maximum number of results")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print results as JSON")
	return cmd
}
