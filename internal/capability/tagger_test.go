package capability

import (
	"reflect"
	"testing"

	"github.com/danmuck/expertmesh/internal/testutil/testlog"
)

func TestTagDetectsMultipleGroups(t *testing.T) {
	testlog.Start(t)
	got := NewKeywordTagger().Tag("Write a poem about the Krebs cycle in Python code")
	want := []string{Python, CodeGeneration, Poetry, CreativeWriting, MedicalTerminology, Biology}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected tags: got=%v want=%v", got, want)
	}
}

func TestTagIsCaseInsensitive(t *testing.T) {
	testlog.Start(t)
	got := NewKeywordTagger().Tag("Deploy a SMART CONTRACT")
	want := []string{Blockchain, SmartContracts}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected tags: got=%v want=%v", got, want)
	}
}

func TestTagEmptyAndUnmatched(t *testing.T) {
	testlog.Start(t)
	tagger := NewKeywordTagger()
	for _, text := range []string{"", "   ", "what is the weather tomorrow"} {
		if got := tagger.Tag(text); len(got) != 0 {
			t.Fatalf("expected no tags for %q, got %v", text, got)
		}
	}
}

func TestTagDeduplicatesSharedTags(t *testing.T) {
	testlog.Start(t)
	tagger := NewKeywordTagger(
		TriggerGroup{Triggers: []string{"rust"}, Tags: []string{"systems", "code_generation"}},
		TriggerGroup{Triggers: []string{"golang", "go"}, Tags: []string{"systems", "concurrency"}},
	)
	got := tagger.Tag("port this Rust crate to Go please")
	want := []string{"systems", "code_generation", "concurrency"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected tags: got=%v want=%v", got, want)
	}
}

func TestTagIsDeterministic(t *testing.T) {
	testlog.Start(t)
	tagger := NewKeywordTagger()
	first := tagger.Tag("python poem on ethereum anatomy")
	for i := 0; i < 20; i++ {
		if got := tagger.Tag("python poem on ethereum anatomy"); !reflect.DeepEqual(got, first) {
			t.Fatalf("tagging not deterministic: %v vs %v", got, first)
		}
	}
}
