package progress

import (
	"math"
	"sync"

	"ingestor/internal/jobs"
)

// Stage names shared by the band tables.
const (
	StageStarting        = "starting"
	StageAnalyzing       = "analyzing"
	StageCrawling        = "crawling"
	StageProcessing      = "processing"
	StageDocumentStorage = "document_storage"
	StageCodeExtraction  = "code_extraction"
	StageFinalization    = "finalization"
	StageCompleted       = "completed"
)

// Band is the slice of the overall percentage owned by one stage.
type Band struct {
	Stage string
	Low   float64
	High  float64
}

// Span returns the width of the band.
func (b Band) Span() float64 {
	return b.High - b.Low
}

// At maps a 0–100 stage-local value into the band.
func (b Band) At(local float64) float64 {
	return b.Low + b.Span()*ClampPercent(local)/100
}

var crawlBands = []Band{
	{StageStarting, 0, 1},
	{StageAnalyzing, 1, 5},
	{StageCrawling, 5, 30},
	{StageProcessing, 30, 50},
	{StageDocumentStorage, 50, 90},
	{StageCodeExtraction, 90, 95},
	{StageFinalization, 95, 99},
	{StageCompleted, 100, 100},
}

var documentBands = []Band{
	{StageStarting, 0, 1},
	{StageProcessing, 1, 30},
	{StageDocumentStorage, 30, 95},
	{StageFinalization, 95, 99},
	{StageCompleted, 100, 100},
}

var folderBands = []Band{
	{StageStarting, 0, 2},
	{StageProcessing, 2, 10},
	{StageDocumentStorage, 10, 98},
	{StageFinalization, 98, 99},
	{StageCompleted, 100, 100},
}

// BandsFor returns a copy of the band table for a job kind.
func BandsFor(kind jobs.Kind) []Band {
	var src []Band
	switch kind {
	case jobs.KindCrawl:
		src = crawlBands
	case jobs.KindDocument:
		src = documentBands
	case jobs.KindFolder:
		src = folderBands
	default:
		src = documentBands
	}
	out := make([]Band, len(src))
	copy(out, src)
	return out
}

// Mapper converts stage-local progress into a monotone job percentage.
type Mapper struct {
	mu    sync.Mutex
	bands []Band
	last  int
}

// New constructs a mapper for the given job kind.
func New(kind jobs.Kind) *Mapper {
	return NewWithBands(BandsFor(kind))
}

// NewWithBands constructs a mapper over a custom band table.
func NewWithBands(bands []Band) *Mapper {
	cp := make([]Band, len(bands))
	copy(cp, bands)
	return &Mapper{bands: cp}
}

// Map returns the overall percentage for local progress within stage. Unknown
// stages and values behind the high-water mark return the mark unchanged.
func (m *Mapper) Map(stage string, local float64) int {
	band, ok := m.Band(stage)
	if !ok {
		return m.Last()
	}
	return m.Clamp(band.At(local))
}

// Clamp records an already-computed overall value and returns
// max(last, value) bounded to [0,100].
func (m *Mapper) Clamp(overall float64) int {
	value := int(math.Floor(ClampPercent(overall)))
	m.mu.Lock()
	defer m.mu.Unlock()
	if value > m.last {
		m.last = value
	}
	return m.last
}

// Band returns the band registered for stage.
func (m *Mapper) Band(stage string) (Band, bool) {
	for _, band := range m.bands {
		if band.Stage == stage {
			return band, true
		}
	}
	return Band{}, false
}

// Last returns the highest percentage returned so far.
func (m *Mapper) Last() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// ClampPercent bounds v to [0,100]; NaN maps to 0.
func ClampPercent(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}
