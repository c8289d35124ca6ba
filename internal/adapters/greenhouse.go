package adapters

import (
	"context"

	"github.com/garnizeh/applyd/internal/models"
)

// greenhouse fills boards.greenhouse.io forms. Greenhouse renders stable
// field ids (#first_name, #last_name, ...) with custom questions grouped
// under #custom_fields.
type greenhouse struct {
	base
}

func newGreenhouse(deps Deps) *greenhouse {
	return &greenhouse{base{deps: deps, platform: "greenhouse"}}
}

func (g *greenhouse) Run(ctx context.Context, job *models.Job, resumePath string) (*models.FillResult, error) {
	res := &models.FillResult{}

	sess, err := g.open(ctx, job.URL)
	if err != nil {
		return nil, err
	}
	defer sess.Close()

	res.Append(models.LogInfo, "filling greenhouse form for "+job.Company)
	p := g.deps.Answers.Personal()

	phone := p["phone_display"]
	if phone == "" {
		phone = p["phone"]
	}
	location := p["address"]
	if location == "" {
		location = p["location"]
	}

	g.fillField(ctx, sess, res, p["first_name"], "#first_name")
	g.fillField(ctx, sess, res, p["last_name"], "#last_name")
	g.fillField(ctx, sess, res, p["email"], "#email")
	g.fillField(ctx, sess, res, phone, "#phone")
	g.fillField(ctx, sess, res, location, "#job_application_location")

	g.fillField(ctx, sess, res, g.deps.Answers.Value("linkedin_url"),
		`input[name*="linkedin"], input[id*="linkedin"]`)
	g.fillField(ctx, sess, res, g.deps.Answers.Value("github_url"),
		`input[name*="github"], input[id*="github"]`)
	g.fillField(ctx, sess, res, g.deps.Answers.Value("website_url"),
		`input[name*="website"], input[name*="portfolio"], input[id*="website"]`)

	g.uploadResume(ctx, sess, res, resumePath,
		`input[type="file"]#resume`,
		`input[type="file"][name*="resume"]`,
		`#resume_file`,
		`input[type="file"]`)

	g.answerQuestions(ctx, sess, job, res)
	g.finalize(ctx, sess, job, res)
	return res, nil
}
