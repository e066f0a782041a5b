package jobs_test

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ingestor/internal/jobs"
	"ingestor/internal/services"
)

func testLimits() jobs.Limits {
	return jobs.Limits{
		MaxFiles:         3,
		MaxFolderBytes:   100,
		MaxDocumentBytes: 50,
		Supported: func(name string) bool {
			switch strings.ToLower(filepath.Ext(name)) {
			case ".txt", ".md":
				return true
			}
			return false
		},
	}
}

func requireValidation(t *testing.T, err error, fragment string) {
	t.Helper()
	require.Error(t, err)
	require.True(t, errors.Is(err, services.ErrValidation), "expected validation marker, got %v", err)
	require.Contains(t, services.DisplayMessage(err), fragment)
}

func TestValidateCrawl(t *testing.T) {
	_, _, err := jobs.Spec{Kind: jobs.KindCrawl}.Validate(testLimits())
	requireValidation(t, err, "URL is required")

	_, _, err = jobs.Spec{Kind: jobs.KindCrawl, URL: "ftp://example.com"}.Validate(testLimits())
	requireValidation(t, err, "http:// or https://")

	_, _, err = jobs.Spec{Kind: jobs.KindCrawl, URL: "https://example.com", MaxDepth: 6}.Validate(testLimits())
	requireValidation(t, err, "max_depth")

	spec, _, err := jobs.Spec{Kind: jobs.KindCrawl, URL: " https://example.com/docs ", Tags: []string{" a ", ""}}.Validate(testLimits())
	require.NoError(t, err)
	require.Equal(t, "https://example.com/docs", spec.URL)
	require.Equal(t, jobs.DefaultMaxDepth, spec.MaxDepth)
	require.Equal(t, jobs.DefaultKnowledgeType, spec.KnowledgeType)
	require.Equal(t, []string{"a"}, spec.Tags)
}

func TestValidateDocument(t *testing.T) {
	_, _, err := jobs.Spec{Kind: jobs.KindDocument, Document: jobs.File{Content: []byte("x")}}.Validate(testLimits())
	requireValidation(t, err, "filename is required")

	_, _, err = jobs.Spec{Kind: jobs.KindDocument, Document: jobs.File{Name: "a.txt"}}.Validate(testLimits())
	requireValidation(t, err, "document is empty")

	_, _, err = jobs.Spec{Kind: jobs.KindDocument, Document: jobs.File{Name: "a.txt", Content: make([]byte, 51)}}.Validate(testLimits())
	requireValidation(t, err, "exceeds")

	spec, report, err := jobs.Spec{Kind: jobs.KindDocument, Document: jobs.File{Name: "a.txt", Content: []byte("hello")}}.Validate(testLimits())
	require.NoError(t, err)
	require.Equal(t, "text/plain", spec.Document.ContentType)
	require.Equal(t, int64(5), report.TotalBytes)
}

func TestValidateFolderFiltersAndLimits(t *testing.T) {
	files := []jobs.File{
		{Name: "a.txt", Content: []byte("aaa")},
		{Name: "", Content: []byte("skip")},
		{Name: "image.png", Content: []byte("skip")},
	}
	spec, report, err := jobs.Spec{Kind: jobs.KindFolder, FolderName: "docs", Files: files}.Validate(testLimits())
	require.NoError(t, err)
	require.Len(t, spec.Files, 1)
	require.Equal(t, 2, report.Filtered)
	require.Equal(t, 1, report.Accepted)
	require.Equal(t, int64(3), report.TotalBytes)

	tooMany := append(files, jobs.File{Name: "b.txt", Content: []byte("b")})
	_, _, err = jobs.Spec{Kind: jobs.KindFolder, FolderName: "docs", Files: tooMany}.Validate(testLimits())
	requireValidation(t, err, "Maximum 3 files")

	big := []jobs.File{{Name: "a.txt", Content: make([]byte, 60)}, {Name: "b.md", Content: make([]byte, 60)}}
	_, _, err = jobs.Spec{Kind: jobs.KindFolder, FolderName: "docs", Files: big}.Validate(testLimits())
	requireValidation(t, err, "Total folder size")

	none := []jobs.File{{Name: "x.png", Content: []byte("x")}}
	_, _, err = jobs.Spec{Kind: jobs.KindFolder, FolderName: "docs", Files: none}.Validate(testLimits())
	requireValidation(t, err, "No valid files")

	_, _, err = jobs.Spec{Kind: jobs.KindFolder, Files: files}.Validate(testLimits())
	requireValidation(t, err, "folder_name")
}

func TestSourceIDs(t *testing.T) {
	now := time.Unix(1700000000, 0)
	require.Equal(t, "folder_my_docs_1700000000", jobs.FolderSourceID("my docs", now))
	require.Equal(t, "file_read_me_md_1700000000", jobs.DocumentSourceID("read me.md", now))
	require.Equal(t, "folder://docs/a.txt", jobs.FolderFileRef("docs", "a.txt"))
}
