// Package resume locates and tailors resume artifacts. The finder prefers
// a job-specific tailored PDF and degrades to the freshest PDF available.
package resume

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/garnizeh/applyd/internal/models"
)

// ErrNoArtifact indicates no PDF could be located for the job.
var ErrNoArtifact = errors.New("no resume artifact found")

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases text and collapses every non-alphanumeric run into a
// single hyphen.
func Slugify(text string) string {
	return strings.Trim(slugRe.ReplaceAllString(strings.ToLower(text), "-"), "-")
}

// Tailorer produces a company-specific resume PDF for a job and returns
// its path. Implementations shell out to a rendering toolchain; the
// pipeline treats tailoring as best-effort.
type Tailorer interface {
	Tailor(ctx context.Context, job *models.Job) (string, error)
}

// Finder locates resume PDFs under a base directory laid out as
// output/<company-slug>/*.pdf plus a rendercv_output/ fallback.
type Finder struct {
	dir string
}

func NewFinder(dir string) *Finder {
	return &Finder{dir: dir}
}

// FindArtifact returns the best resume PDF for the job. Lookup order: the
// recorded resume_path when it still exists, the newest PDF under
// output/<company-slug>/, the newest PDF under rendercv_output/, and
// finally the newest PDF anywhere under the base directory.
func (f *Finder) FindArtifact(job *models.Job) (string, error) {
	if job.ResumePath != "" {
		if _, err := os.Stat(job.ResumePath); err == nil {
			return job.ResumePath, nil
		}
	}

	if slug := Slugify(job.Company); slug != "" {
		if p := newestPDF(filepath.Join(f.dir, "output", slug), false); p != "" {
			return p, nil
		}
	}

	if p := newestPDF(filepath.Join(f.dir, "rendercv_output"), false); p != "" {
		return p, nil
	}

	if p := newestPDF(f.dir, true); p != "" {
		return p, nil
	}

	return "", ErrNoArtifact
}

// newestPDF returns the most recently modified PDF in dir, optionally
// walking subdirectories. Empty string when none exists.
func newestPDF(dir string, recursive bool) string {
	var best string
	var bestMod int64

	consider := func(path string, info fs.FileInfo) {
		if !strings.EqualFold(filepath.Ext(path), ".pdf") {
			return
		}
		if mt := info.ModTime().UnixNano(); best == "" || mt > bestMod {
			best, bestMod = path, mt
		}
	}

	if recursive {
		_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return nil
			}
			if info, err := d.Info(); err == nil {
				consider(path, info)
			}
			return nil
		})
		return best
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if info, err := e.Info(); err == nil {
			consider(filepath.Join(dir, e.Name()), info)
		}
	}
	return best
}
