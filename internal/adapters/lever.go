package adapters

import (
	"context"
	"strings"

	"github.com/garnizeh/applyd/internal/models"
)

// lever fills jobs.lever.co forms. Lever applications live at an /apply
// suffix of the posting URL and use flat input names.
type lever struct {
	base
}

func newLever(deps Deps) *lever {
	return &lever{base{deps: deps, platform: "lever"}}
}

// applyURL normalizes a posting URL to its application form.
func applyURL(u string) string {
	if strings.HasSuffix(u, "/apply") {
		return u
	}
	return strings.TrimSuffix(u, "/") + "/apply"
}

func (l *lever) Run(ctx context.Context, job *models.Job, resumePath string) (*models.FillResult, error) {
	res := &models.FillResult{}

	sess, err := l.open(ctx, applyURL(job.URL))
	if err != nil {
		return nil, err
	}
	defer sess.Close()

	res.Append(models.LogInfo, "filling lever form for "+job.Company)
	p := l.deps.Answers.Personal()

	name := p["full_name"]
	if name == "" && p["first_name"] != "" {
		name = strings.TrimSpace(p["first_name"] + " " + p["last_name"])
	}
	phone := p["phone_display"]
	if phone == "" {
		phone = p["phone"]
	}

	l.fillField(ctx, sess, res, name, `input[name="name"]`)
	l.fillField(ctx, sess, res, p["email"], `input[name="email"]`)
	l.fillField(ctx, sess, res, phone, `input[name="phone"]`)
	l.fillField(ctx, sess, res, l.deps.Answers.Value("linkedin_url"), `input[name="urls[LinkedIn]"]`)
	l.fillField(ctx, sess, res, l.deps.Answers.Value("github_url"), `input[name="urls[GitHub]"]`)
	l.fillField(ctx, sess, res, l.deps.Answers.Value("website_url"),
		`input[name="urls[Portfolio]"]`, `input[name="urls[Other]"]`)

	l.uploadResume(ctx, sess, res, resumePath,
		`input[type="file"][name="resume"]`,
		`input[type="file"]`)

	l.answerQuestions(ctx, sess, job, res)
	l.finalize(ctx, sess, job, res)
	return res, nil
}
