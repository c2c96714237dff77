package git

import (
	"reflect"
	"testing"
)

func TestExtractTaskReferences(t *testing.T) {
	tests := []struct {
		message string
		want    []string
	}{
		{"Fix task 27.6 and refs #14", []string{"14", "27.6"}},
		{"closes #42", []string{"42"}},
		{"Resolve: 8", []string{"8"}},
		{"references 12.3", []string{"12.3"}},
		{"tasks 5 and 6", []string{"5"}},
		{"Finish 3.1 follow-up", []string{"3.1"}},
		{"TASK#9 done, fix #9", []string{"9"}},
		{"Update README", []string{}},
		{"", []string{}},
	}
	for _, tt := range tests {
		if got := ExtractTaskReferences(tt.message); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("ExtractTaskReferences(%q) = %v, want %v", tt.message, got, tt.want)
		}
	}
}

func TestExtractTaskReferences_Idempotent(t *testing.T) {
	msg := "task 1.2 refs #3 and #3 again"
	first := ExtractTaskReferences(msg)
	second := ExtractTaskReferences(msg)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("extraction not stable: %v vs %v", first, second)
	}
}

func TestExtractTaskReferences_UnionOfMessages(t *testing.T) {
	a := "fix #10"
	b := "task 4.2"
	union := map[string]bool{}
	for _, ref := range append(ExtractTaskReferences(a), ExtractTaskReferences(b)...) {
		union[ref] = true
	}
	combined := ExtractTaskReferences(a + "\n" + b)
	if len(combined) != len(union) {
		t.Fatalf("expected %d refs, got %v", len(union), combined)
	}
	for _, ref := range combined {
		if !union[ref] {
			t.Fatalf("unexpected ref %s", ref)
		}
	}
}
