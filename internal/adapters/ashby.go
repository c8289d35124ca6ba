package adapters

import (
	"context"
	"strings"

	"github.com/garnizeh/applyd/internal/browser"
	"github.com/garnizeh/applyd/internal/models"
)

// ashby fills jobs.ashbyhq.com forms. Ashby is a React SPA without stable
// field ids, so everything is matched by the scraped question labels.
type ashby struct {
	base
}

func newAshby(deps Deps) *ashby {
	return &ashby{base{deps: deps, platform: "ashby"}}
}

// personalLabels maps label fragments to personal/profile answer keys.
// Checked in order; the first fragment contained in the label wins.
var personalLabels = []struct {
	fragment string
	key      string
	profile  bool // key lives in the lookup table, not the personal map
}{
	{"first name", "first_name", false},
	{"last name", "last_name", false},
	{"email", "email", false},
	{"phone", "phone_display", false},
	{"linkedin", "linkedin_url", true},
	{"github", "github_url", true},
	{"website", "website_url", true},
	{"portfolio", "website_url", true},
	{"location", "address", false},
	{"city", "city", false},
}

func (a *ashby) personalValue(label string) (string, bool) {
	l := strings.ToLower(label)
	for _, pl := range personalLabels {
		if !strings.Contains(l, pl.fragment) {
			continue
		}
		var v string
		if pl.profile {
			v = a.deps.Answers.Value(pl.key)
		} else {
			v = a.deps.Answers.Personal()[pl.key]
			if v == "" && pl.key == "phone_display" {
				v = a.deps.Answers.Personal()["phone"]
			}
		}
		return v, true
	}
	return "", false
}

func (a *ashby) Run(ctx context.Context, job *models.Job, resumePath string) (*models.FillResult, error) {
	res := &models.FillResult{}

	sess, err := a.open(ctx, job.URL)
	if err != nil {
		return nil, err
	}
	defer sess.Close()

	res.Append(models.LogInfo, "filling ashby form for "+job.Company)
	// the SPA renders fields asynchronously; give it a beat
	a.pause(ctx)

	qs, err := sess.Questions(ctx)
	if err != nil {
		return nil, err
	}

	uploaded := false
	var screening []browser.Question
	for _, q := range qs {
		if q.Kind == "file" {
			uploaded = a.uploadResume(ctx, sess, res, resumePath, q.Selector) || uploaded
			continue
		}
		if v, ok := a.personalValue(q.Label); ok {
			if v == "" {
				continue
			}
			if q.Kind == "select" {
				if opt, ok := matchOption(v, q.Options); ok {
					if err := sess.Select(ctx, q.Selector, opt); err == nil {
						res.Append(models.LogOK, "filled: "+truncate(q.Label, 40))
					}
				}
			} else if err := sess.Type(ctx, q.Selector, v); err == nil {
				res.Append(models.LogOK, "filled: "+truncate(q.Label, 40))
			}
			a.pause(ctx)
			continue
		}
		screening = append(screening, q)
	}

	if !uploaded {
		if _, ok := firstVisible(ctx, sess, `input[type="file"]`); ok {
			a.uploadResume(ctx, sess, res, resumePath, `input[type="file"]`)
		}
	}

	for _, q := range screening {
		if q.Label == "" {
			continue
		}
		a.answerOne(ctx, sess, job, res, q)
	}

	a.finalize(ctx, sess, job, res)
	return res, nil
}
