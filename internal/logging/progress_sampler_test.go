package logging

import "testing"

func TestNewProgressSampler(t *testing.T) {
	tests := []struct {
		name       string
		bucketSize float64
		wantSize   float64
	}{
		{"default bucket size for zero", 0, 10},
		{"default bucket size for negative", -1, 10},
		{"custom bucket size", 5, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewProgressSampler(tt.bucketSize)
			if s.bucketSize != tt.wantSize {
				t.Errorf("bucketSize = %v, want %v", s.bucketSize, tt.wantSize)
			}
			if s.lastBucket != -1 {
				t.Errorf("lastBucket = %d, want -1", s.lastBucket)
			}
		})
	}
}

func TestProgressSampler_NilSampler(t *testing.T) {
	var s *ProgressSampler
	if !s.ShouldLog(50, "processing") {
		t.Error("ShouldLog on nil sampler should always return true")
	}
	s.Reset()
}

func TestProgressSampler_StageChange(t *testing.T) {
	s := NewProgressSampler(10)
	if !s.ShouldLog(0, "processing") {
		t.Error("first stage should log")
	}
	if s.ShouldLog(0, "processing") {
		t.Error("same stage and percent should not log again")
	}
	if !s.ShouldLog(1, "document_storage") {
		t.Error("different stage should log")
	}
	if s.lastStage != "document_storage" {
		t.Errorf("lastStage = %q, want document_storage", s.lastStage)
	}
}

func TestProgressSampler_Buckets(t *testing.T) {
	s := NewProgressSampler(10)
	s.ShouldLog(12, "document_storage")
	if s.ShouldLog(17, "document_storage") {
		t.Error("same bucket should not log")
	}
	if !s.ShouldLog(20, "document_storage") {
		t.Error("next bucket should log")
	}
	if !s.ShouldLog(-1, "document_storage") {
		t.Error("cancellation sentinel should always log")
	}
	s.Reset()
	if !s.ShouldLog(20, "document_storage") {
		t.Error("expected log after reset")
	}
}
