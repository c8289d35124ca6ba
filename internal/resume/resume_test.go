package resume

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/garnizeh/applyd/internal/models"
)

func TestSlugify(t *testing.T) {
	cases := []struct{ in, want string }{
		{"Acme Corp", "acme-corp"},
		{"  O'Reilly & Sons!  ", "o-reilly-sons"},
		{"already-slugged", "already-slugged"},
		{"---", ""},
	}
	for _, tc := range cases {
		if got := Slugify(tc.in); got != tc.want {
			t.Fatalf("Slugify(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func writePDF(t *testing.T, path string, mod time.Time) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("%PDF-1.4"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(path, mod, mod); err != nil {
		t.Fatal(err)
	}
}

func TestFindArtifact_PrefersRecordedPath(t *testing.T) {
	dir := t.TempDir()
	recorded := filepath.Join(dir, "tailored.pdf")
	writePDF(t, recorded, time.Now())
	writePDF(t, filepath.Join(dir, "output", "acme", "other.pdf"), time.Now())

	f := NewFinder(dir)
	got, err := f.FindArtifact(&models.Job{Company: "Acme", ResumePath: recorded})
	if err != nil {
		t.Fatalf("FindArtifact: %v", err)
	}
	if got != recorded {
		t.Fatalf("expected recorded path %q, got %q", recorded, got)
	}
}

func TestFindArtifact_StaleRecordedPathFallsThrough(t *testing.T) {
	dir := t.TempDir()
	tailored := filepath.Join(dir, "output", "acme", "resume.pdf")
	writePDF(t, tailored, time.Now())

	f := NewFinder(dir)
	got, err := f.FindArtifact(&models.Job{Company: "Acme", ResumePath: filepath.Join(dir, "gone.pdf")})
	if err != nil {
		t.Fatalf("FindArtifact: %v", err)
	}
	if got != tailored {
		t.Fatalf("expected company dir artifact %q, got %q", tailored, got)
	}
}

func TestFindArtifact_NewestInCompanyDirWins(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "output", "acme", "old.pdf")
	fresh := filepath.Join(dir, "output", "acme", "fresh.pdf")
	writePDF(t, old, time.Now().Add(-time.Hour))
	writePDF(t, fresh, time.Now())

	f := NewFinder(dir)
	got, err := f.FindArtifact(&models.Job{Company: "Acme"})
	if err != nil {
		t.Fatalf("FindArtifact: %v", err)
	}
	if got != fresh {
		t.Fatalf("expected newest %q, got %q", fresh, got)
	}
}

func TestFindArtifact_RenderOutputFallback(t *testing.T) {
	dir := t.TempDir()
	rendered := filepath.Join(dir, "rendercv_output", "cv.pdf")
	writePDF(t, rendered, time.Now())

	f := NewFinder(dir)
	got, err := f.FindArtifact(&models.Job{Company: "NoSuchCo"})
	if err != nil {
		t.Fatalf("FindArtifact: %v", err)
	}
	if got != rendered {
		t.Fatalf("expected render fallback %q, got %q", rendered, got)
	}
}

func TestFindArtifact_AnyPDFLastResort(t *testing.T) {
	dir := t.TempDir()
	stray := filepath.Join(dir, "archive", "base.pdf")
	writePDF(t, stray, time.Now())

	f := NewFinder(dir)
	got, err := f.FindArtifact(&models.Job{Company: "NoSuchCo"})
	if err != nil {
		t.Fatalf("FindArtifact: %v", err)
	}
	if got != stray {
		t.Fatalf("expected last-resort %q, got %q", stray, got)
	}
}

func TestFindArtifact_NoneFound(t *testing.T) {
	f := NewFinder(t.TempDir())
	if _, err := f.FindArtifact(&models.Job{Company: "Acme"}); err != ErrNoArtifact {
		t.Fatalf("expected ErrNoArtifact, got %v", err)
	}
}
