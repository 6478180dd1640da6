package buildinfo

import (
	"strings"
	"testing"
)

func TestString(t *testing.T) {
	origVersion, origCommit, origDate := Version, Commit, Date
	defer func() {
		Version, Commit, Date = origVersion, origCommit, origDate
	}()

	Version = "v1.0.0"
	Commit = "abc123"
	Date = "2024-01-01"

	got := String()
	for _, want := range []string{"v1.0.0", "abc123", "2024-01-01"} {
		if !strings.Contains(got, want) {
			t.Errorf("String() = %q, missing %q", got, want)
		}
	}
}

func TestTemplate(t *testing.T) {
	got := Template()
	if !strings.Contains(got, "{{.Name}}") {
		t.Errorf("Template() = %q, missing cobra name placeholder", got)
	}
	if !strings.Contains(got, Version) {
		t.Errorf("Template() = %q, missing version %q", got, Version)
	}
	if !strings.HasSuffix(got, "\n") {
		t.Errorf("Template() = %q, should end in newline", got)
	}
}
