package textutil

import (
	"math"
	"strings"
	"testing"
)

func TestTerms(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "empty", input: "", want: ""},
		{name: "short words dropped", input: "go is ok", want: ""},
		{name: "stop words dropped", input: "the retry policy for this queue", want: "retry,policy,queue"},
		{name: "punctuation splits", input: "Hello, world! (v2.0)", want: "hello,world"},
		{name: "camel case", input: "retryPolicy", want: "retry,policy,retrypolicy"},
		{name: "acronym", input: "HTTPServer", want: "http,server,httpserver"},
		{name: "snake case", input: "max_depth", want: "max,depth"},
		{name: "unicode letters", input: "Größe über", want: "größe,über"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := strings.Join(Terms(tt.input), ","); got != tt.want {
				t.Fatalf("Terms(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestCosine(t *testing.T) {
	text := "quick brown fox jumps over lazy dog"
	if got := Cosine(NewVector(text), NewVector(text)); math.Abs(got-1) > 1e-9 {
		t.Fatalf("identical text similarity = %v, want 1", got)
	}
	if got := Cosine(NewVector("apple banana cherry"), NewVector("dog elephant frog")); got != 0 {
		t.Fatalf("disjoint text similarity = %v, want 0", got)
	}
	partial := Cosine(NewVector("quick brown fox"), NewVector("slow brown cat"))
	if partial <= 0 || partial >= 1 {
		t.Fatalf("partial overlap similarity = %v, want between 0 and 1", partial)
	}
	if Cosine(nil, NewVector("hello world")) != 0 || Cosine(NewVector("hello world"), nil) != 0 {
		t.Fatal("expected nil vectors to score 0")
	}
	a, b := NewVector("alpha beta gamma beta"), NewVector("beta delta")
	if Cosine(a, b) != Cosine(b, a) {
		t.Fatal("expected cosine to be symmetric")
	}
}

func TestNewVectorWithoutTerms(t *testing.T) {
	if v := NewVector("a an to"); v != nil {
		t.Fatalf("expected nil vector, got %d terms", v.Len())
	}
	if got := NewVector("hello hello world").Len(); got != 2 {
		t.Fatalf("expected 2 distinct terms, got %d", got)
	}
}

func TestCorpusIDFDownweightsCommonTerms(t *testing.T) {
	corpus := NewCorpus()
	for _, doc := range []string{
		"golang channels select statement",
		"golang goroutine scheduler",
		"golang garbage collector tuning",
	} {
		corpus.Add(NewVector(doc))
	}
	idf := corpus.IDF()
	if idf["golang"] >= idf["scheduler"] {
		t.Fatalf("expected common term weight %v below rare term %v", idf["golang"], idf["scheduler"])
	}
	if idf["golang"] <= 0 {
		t.Fatalf("expected smoothed weight for ubiquitous term, got %v", idf["golang"])
	}
}

func TestRankPrefersRelevantChunk(t *testing.T) {
	docs := []string{
		"The dashboard shows a chart of monthly active users and a table of recent signups.",
		"Webhook delivery uses an exponential retryPolicy. Configure maximum attempts in the delivery section.",
		"",
	}
	scores := Rank("configure the retry policy for webhook delivery", docs)
	if len(scores) != len(docs) {
		t.Fatalf("expected %d scores, got %d", len(docs), len(scores))
	}
	if scores[1] <= scores[0] {
		t.Fatalf("relevant chunk scored %v, unrelated %v", scores[1], scores[0])
	}
	if scores[0] != 0 || scores[2] != 0 {
		t.Fatalf("expected unrelated and empty docs to score 0, got %v", scores)
	}
	if scores[1] > 1 {
		t.Fatalf("score above 1: %v", scores[1])
	}
}

func TestRankWithoutQueryTerms(t *testing.T) {
	scores := Rank("to be", []string{"to be or not to be"})
	if len(scores) != 1 || scores[0] != 0 {
		t.Fatalf("expected zero scores, got %v", scores)
	}
}
