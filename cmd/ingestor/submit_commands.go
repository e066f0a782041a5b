package main

import (
	"context"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"ingestor/internal/api"
)

type submitFlags struct {
	knowledgeType string
	tags          []string
	follow        bool
	jsonOutput    bool
}

func (f *submitFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.knowledgeType, "type", "", "Knowledge type (defaults to technical)")
	cmd.Flags().StringSliceVar(&f.tags, "tag", nil, "Tag to attach (repeatable)")
	cmd.Flags().BoolVarP(&f.follow, "follow", "f", false, "Follow job progress until it finishes")
	cmd.Flags().BoolVar(&f.jsonOutput, "json", false, "Print the accepted response as JSON")
}

func (f *submitFlags) uploadOptions() api.UploadOptions {
	return api.UploadOptions{KnowledgeType: f.knowledgeType, Tags: f.tags}
}

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit ingestion jobs",
	}
	cmd.AddCommand(newSubmitCrawlCommand(ctx))
	cmd.AddCommand(newSubmitDocumentCommand(ctx))
	cmd.AddCommand(newSubmitFolderCommand(ctx))
	return cmd
}

func newSubmitCrawlCommand(ctx *commandContext) *cobra.Command {
	var flags submitFlags
	var depth int
	var code bool

	cmd := &cobra.Command{
		Use:   "crawl <url>",
		Short: "Crawl a website, sitemap or text file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := ctx.client().SubmitCrawl(cmd.Context(), api.CrawlRequest{
				URL:                 args[0],
				MaxDepth:            depth,
				ExtractCodeExamples: code,
				KnowledgeType:       flags.knowledgeType,
				Tags:                flags.tags,
			})
			return finishSubmit(cmd, ctx, flags, resp, err)
		},
	}
	flags.bind(cmd)
	cmd.Flags().IntVar(&depth, "depth", 0, "Maximum link depth, 1-5 (defaults to 2)")
	cmd.Flags().BoolVar(&code, "code", true, "Extract fenced code examples")
	return cmd
}

func newSubmitDocumentCommand(ctx *commandContext) *cobra.Command {
	var flags submitFlags

	cmd := &cobra.Command{
		Use:   "document <path>",
		Short: "Upload a single document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			upload, err := readUpload(args[0], filepath.Base(args[0]))
			if err != nil {
				return err
			}
			resp, err := ctx.client().SubmitDocument(cmd.Context(), upload, flags.uploadOptions())
			return finishSubmit(cmd, ctx, flags, resp, err)
		},
	}
	flags.bind(cmd)
	return cmd
}

func newSubmitFolderCommand(ctx *commandContext) *cobra.Command {
	var flags submitFlags
	var name string
	var recursive bool

	cmd := &cobra.Command{
		Use:   "folder <dir>",
		Short: "Upload every file in a directory as one job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := args[0]
			uploads, err := collectFolder(dir, recursive)
			if err != nil {
				return err
			}
			folderName := strings.TrimSpace(name)
			if folderName == "" {
				abs, err := filepath.Abs(dir)
				if err != nil {
					return err
				}
				folderName = filepath.Base(abs)
			}
			resp, err := ctx.client().SubmitFolder(cmd.Context(), folderName, uploads, flags.uploadOptions())
			return finishSubmit(cmd, ctx, flags, resp, err)
		},
	}
	flags.bind(cmd)
	cmd.Flags().StringVar(&name, "name", "", "Folder name (defaults to the directory name)")
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "Include files in subdirectories")
	return cmd
}

func finishSubmit(cmd *cobra.Command, ctx *commandContext, flags submitFlags, resp api.AcceptedResponse, err error) error {
	if err != nil {
		return ctx.wrapDialError(err)
	}
	if flags.jsonOutput {
		return writeJSON(cmd, resp)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s: %s\n", resp.Message, resp.JobID)
	if resp.SourceID != "" {
		fmt.Fprintf(out, "Source: %s\n", resp.SourceID)
	}
	if resp.FileCount > 0 {
		fmt.Fprintf(out, "Files: %d accepted, %d filtered\n", resp.FileCount, resp.Filtered)
	}
	if !flags.follow {
		return nil
	}
	return ctx.wrapDialError(followJob(cmd, ctx.client(), resp.JobID))
}

func readUpload(path, name string) (api.Upload, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return api.Upload{}, fmt.Errorf("read %s: %w", path, err)
	}
	return api.Upload{
		Name:        name,
		ContentType: mime.TypeByExtension(filepath.Ext(name)),
		Content:     content,
	}, nil
}

// collectFolder reads the regular, non-hidden files under dir in name order.
func collectFolder(dir string, recursive bool) ([]api.Upload, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == dir {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no files found in %s", dir)
	}
	sort.Strings(paths)
	uploads := make([]api.Upload, 0, len(paths))
	for _, path := range paths {
		upload, err := readUpload(path, filepath.Base(path))
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, upload)
	}
	return uploads, nil
}

// followJob prints the job's events until its terminal event and reports a
// failed job as an error.
func followJob(cmd *cobra.Command, client *api.Client, jobID string) error {
	var last api.Event
	emit := eventPrinter(cmd, false)
	err := watchAPI(cmd, client, jobID, 20*time.Second, func(evt api.Event) error {
		last = evt
		return emit(evt)
	})
	if err != nil {
		return err
	}
	if cmd.Context().Err() != nil {
		return context.Cause(cmd.Context())
	}
	if last.Type == "error" {
		return fmt.Errorf("job %s failed: %s", jobID, last.Error)
	}
	return nil
}
