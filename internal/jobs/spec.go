package jobs

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"ingestor/internal/services"
)

const (
	DefaultKnowledgeType = "technical"
	DefaultMaxDepth      = 2
	MinCrawlDepth        = 1
	MaxCrawlDepth        = 5
	defaultContentType   = "text/plain"
)

// File is one uploaded document.
type File struct {
	Name        string
	ContentType string
	Content     []byte
}

// Size returns the content length in bytes.
func (f File) Size() int64 {
	return int64(len(f.Content))
}

// Spec describes a submission before it is accepted.
type Spec struct {
	Kind                Kind
	URL                 string
	MaxDepth            int
	ExtractCodeExamples bool
	KnowledgeType       string
	Tags                []string
	Document            File
	FolderName          string
	Files               []File
}

// Limits bounds what a submission may carry.
type Limits struct {
	MaxFiles         int
	MaxFolderBytes   int64
	MaxDocumentBytes int64
	// Supported reports whether a file name carries an accepted extension.
	// A nil func accepts every name.
	Supported func(name string) bool
}

// Report summarizes folder filtering performed during validation.
type Report struct {
	Accepted   int
	Filtered   int
	TotalBytes int64
}

// Title returns the human-facing subject of the submission.
func (s Spec) Title() string {
	switch s.Kind {
	case KindCrawl:
		return s.URL
	case KindDocument:
		return s.Document.Name
	case KindFolder:
		return s.FolderName
	default:
		return ""
	}
}

// Target returns the current_item reference used before any item starts.
func (s Spec) Target() string {
	switch s.Kind {
	case KindCrawl:
		return s.URL
	case KindDocument:
		return FileRef(s.Document.Name)
	case KindFolder:
		return FolderRef(s.FolderName)
	default:
		return ""
	}
}

// Validate checks the submission against limits and returns a normalized copy.
// Folder submissions come back holding only the files that passed filtering.
func (s Spec) Validate(limits Limits) (Spec, Report, error) {
	out := s
	out.KnowledgeType = strings.ToLower(strings.TrimSpace(s.KnowledgeType))
	if out.KnowledgeType == "" {
		out.KnowledgeType = DefaultKnowledgeType
	}
	out.Tags = normalizeTags(s.Tags)

	switch s.Kind {
	case KindCrawl:
		return out, Report{}, out.validateCrawl()
	case KindDocument:
		return out, Report{Accepted: 1, TotalBytes: s.Document.Size()}, out.validateDocument(limits)
	case KindFolder:
		return out.validateFolder(limits)
	default:
		return out, Report{}, invalid(fmt.Sprintf("unknown job kind %q", s.Kind))
	}
}

func (s *Spec) validateCrawl() error {
	s.URL = strings.TrimSpace(s.URL)
	if s.URL == "" {
		return invalid("URL is required")
	}
	parsed, err := url.Parse(s.URL)
	if err != nil {
		return invalid("URL is malformed")
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return invalid("URL must start with http:// or https://")
	}
	if parsed.Host == "" {
		return invalid("URL must include a host")
	}
	if s.MaxDepth == 0 {
		s.MaxDepth = DefaultMaxDepth
	}
	if s.MaxDepth < MinCrawlDepth || s.MaxDepth > MaxCrawlDepth {
		return invalid(fmt.Sprintf("max_depth must be between %d and %d", MinCrawlDepth, MaxCrawlDepth))
	}
	return nil
}

func (s *Spec) validateDocument(limits Limits) error {
	s.Document.Name = strings.TrimSpace(s.Document.Name)
	if s.Document.Name == "" {
		return invalid("filename is required")
	}
	if len(s.Document.Content) == 0 {
		return invalid("document is empty")
	}
	if limits.MaxDocumentBytes > 0 && s.Document.Size() > limits.MaxDocumentBytes {
		return invalid(fmt.Sprintf("document exceeds %s limit", formatBytes(limits.MaxDocumentBytes)))
	}
	if strings.TrimSpace(s.Document.ContentType) == "" {
		s.Document.ContentType = defaultContentType
	}
	return nil
}

func (s Spec) validateFolder(limits Limits) (Spec, Report, error) {
	var report Report
	s.FolderName = strings.TrimSpace(s.FolderName)
	if s.FolderName == "" {
		return s, report, invalid("folder_name is required")
	}
	if limits.MaxFiles > 0 && len(s.Files) > limits.MaxFiles {
		return s, report, invalid(fmt.Sprintf("Maximum %d files allowed per folder", limits.MaxFiles))
	}

	valid := make([]File, 0, len(s.Files))
	for _, file := range s.Files {
		file.Name = strings.TrimSpace(file.Name)
		if file.Name == "" {
			report.Filtered++
			continue
		}
		if limits.Supported != nil && !limits.Supported(file.Name) {
			report.Filtered++
			continue
		}
		report.TotalBytes += file.Size()
		if limits.MaxFolderBytes > 0 && report.TotalBytes > limits.MaxFolderBytes {
			return s, report, invalid(fmt.Sprintf("Total folder size exceeds %s limit", formatBytes(limits.MaxFolderBytes)))
		}
		if strings.TrimSpace(file.ContentType) == "" {
			file.ContentType = defaultContentType
		}
		valid = append(valid, file)
	}
	if len(valid) == 0 {
		return s, report, invalid("No valid files found in folder")
	}
	report.Accepted = len(valid)
	s.Files = valid
	return s, report, nil
}

// FolderSourceID builds the shared content identifier for a folder upload.
func FolderSourceID(folderName string, now time.Time) string {
	return "folder_" + strings.ReplaceAll(folderName, " ", "_") + "_" + strconv.FormatInt(now.Unix(), 10)
}

// DocumentSourceID builds the content identifier for a single document upload.
func DocumentSourceID(fileName string, now time.Time) string {
	name := strings.NewReplacer(" ", "_", ".", "_").Replace(fileName)
	return "file_" + name + "_" + strconv.FormatInt(now.Unix(), 10)
}

// FileRef formats a document reference for current_item.
func FileRef(name string) string {
	return "file://" + name
}

// FolderRef formats a folder reference for current_item.
func FolderRef(name string) string {
	return "folder://" + name
}

// FolderFileRef formats a reference to one file inside a folder upload.
func FolderFileRef(folder, name string) string {
	return "folder://" + folder + "/" + name
}

func normalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if tag = strings.TrimSpace(tag); tag != "" {
			out = append(out, tag)
		}
	}
	return out
}

func invalid(message string) error {
	return services.Wrap(services.ErrValidation, "jobs", "validate", message, nil)
}

func formatBytes(n int64) string {
	const mib = 1024 * 1024
	if n%mib == 0 {
		return strconv.FormatInt(n/mib, 10) + "MB"
	}
	return strconv.FormatInt(n, 10) + " bytes"
}
