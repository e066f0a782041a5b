// Package deps reports which external binaries the daemon can call.
package deps

import (
	"fmt"
	"os/exec"
	"strings"
)

// PDFToText is the poppler converter used for PDF uploads.
const PDFToText = "pdftotext"

// Requirement defines an external dependency the ingestor relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// Requirements lists the binaries the extraction pipeline may shell out to.
func Requirements() []Requirement {
	return []Requirement{
		{
			Name:        "pdftotext",
			Command:     PDFToText,
			Description: "Converts uploaded PDFs to text",
			Optional:    true,
		},
	}
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		resolved, err := exec.LookPath(cmd)
		if err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Command = resolved
		status.Available = true
		results = append(results, status)
	}
	return results
}

// Unavailable returns the names of dependencies that could not be found.
func Unavailable(statuses []Status) []string {
	var names []string
	for _, status := range statuses {
		if !status.Available {
			names = append(names, status.Name)
		}
	}
	return names
}
