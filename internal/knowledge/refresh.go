package knowledge

import (
	"strings"

	"ingestor/internal/jobs"
	"ingestor/internal/services"
)

// CrawlSpec rebuilds the crawl that produced src so it can be run again. Code
// example extraction is always enabled on a refresh.
func (src Source) CrawlSpec() (jobs.Spec, error) {
	target := strings.TrimSpace(src.URL)
	if target == "" {
		target = strings.TrimSpace(src.Metadata.URL)
	}
	if target == "" {
		return jobs.Spec{}, services.Wrap(services.ErrValidation, "knowledge", "refresh source",
			"source "+src.ID+" has no URL to refresh", nil)
	}
	knowledgeType := src.KnowledgeType
	if knowledgeType == "" {
		knowledgeType = src.Metadata.KnowledgeType
	}
	tags := src.Tags
	if len(tags) == 0 {
		tags = src.Metadata.Tags
	}
	depth := src.Metadata.MaxDepth
	if depth == 0 {
		depth = jobs.DefaultMaxDepth
	}
	return jobs.Spec{
		Kind:                jobs.KindCrawl,
		URL:                 target,
		MaxDepth:            depth,
		ExtractCodeExamples: true,
		KnowledgeType:       knowledgeType,
		Tags:                append([]string(nil), tags...),
	}, nil
}
