package orchestrator

import (
	"testing"

	"ai-grader/core/models"
)

func TestNormalizeKind(t *testing.T) {
	t.Parallel()

	cases := []struct {
		tag  string
		want models.ArtifactKind
	}{
		{"pdf", models.KindPDF},
		{".pdf", models.KindPDF},
		{"TXT", models.KindText},
		{"md", models.KindText},
		{"ipynb", models.KindNotebook},
		{"py", models.KindCode},
		{"go", models.KindCode},
		{"mp4", models.KindVideo},
		{"png", models.KindImage},
		{"application/pdf", models.KindPDF},
		{"text/plain", models.KindText},
		{"text/x-rst", models.KindText},
		{"video/quicktime", models.KindVideo},
		{"image/webp", models.KindImage},
		{"application/zip", models.KindOther},
		{"xyz", models.KindOther},
		{"", models.KindOther},
	}

	for _, tc := range cases {
		if got := NormalizeKind(tc.tag); got != tc.want {
			t.Errorf("NormalizeKind(%q) = %s, want %s", tc.tag, got, tc.want)
		}
	}
}

func TestKindFromFilename(t *testing.T) {
	t.Parallel()

	cases := []struct {
		filename string
		want     models.ArtifactKind
	}{
		{"essay.pdf", models.KindPDF},
		{"notebook.ipynb", models.KindNotebook},
		{"solution.PY", models.KindCode},
		{"demo.mp4", models.KindVideo},
		{"archive.tar.gz", models.KindOther},
		{"README", models.KindOther},
		{"trailing.", models.KindOther},
	}

	for _, tc := range cases {
		if got := KindFromFilename(tc.filename); got != tc.want {
			t.Errorf("KindFromFilename(%q) = %s, want %s", tc.filename, got, tc.want)
		}
	}
}
