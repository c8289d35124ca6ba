package adapters

import (
	"context"
	"fmt"

	"github.com/garnizeh/applyd/internal/browser"
	"github.com/garnizeh/applyd/internal/models"
)

// maxWorkdayPages bounds the wizard walk; real flows run 4 to 6 pages.
const maxWorkdayPages = 8

// workday fills *.myworkdayjobs.com applications. Workday is a multi-page
// wizard behind an account wall; fields carry data-automation-id
// attributes.
type workday struct {
	base
}

func newWorkday(deps Deps) *workday {
	return &workday{base{deps: deps, platform: "workday"}}
}

func (w *workday) Run(ctx context.Context, job *models.Job, resumePath string) (*models.FillResult, error) {
	res := &models.FillResult{}

	sess, err := w.open(ctx, job.URL)
	if err != nil {
		return nil, err
	}
	defer sess.Close()

	res.Append(models.LogInfo, "filling workday form for "+job.Company)
	p := w.deps.Answers.Personal()

	// posting pages need an explicit Apply click before the form shows
	if sel, ok := firstVisible(ctx, sess,
		`a[data-automation-id="jobPostingApplyButton"]`,
		`button[data-automation-id="jobPostingApplyButton"]`); ok {
		if err := sess.Click(ctx, sel); err != nil {
			return nil, fmt.Errorf("click apply: %w", err)
		}
		w.pause(ctx)
	}

	if err := w.handleAuth(ctx, sess, res, p); err != nil {
		return nil, err
	}

	for page := 1; page <= maxWorkdayPages; page++ {
		res.Append(models.LogInfo, fmt.Sprintf("processing form page %d", page))
		w.fillPage(ctx, sess, res, p)

		if sel, ok := firstVisible(ctx, sess,
			`input[type="file"][data-automation-id*="file"]`,
			`input[type="file"]`); ok {
			w.uploadResume(ctx, sess, res, resumePath, sel)
		}

		w.answerQuestions(ctx, sess, job, res)

		next, ok := firstVisible(ctx, sess,
			`button[data-automation-id="bottom-navigation-next-button"]`,
			`button[data-automation-id="nextButton"]`)
		if !ok {
			break
		}
		if err := sess.Click(ctx, next); err != nil {
			res.Append(models.LogError, fmt.Sprintf("advance page: %v", err))
			break
		}
		w.pause(ctx)
	}

	w.finalize(ctx, sess, job, res)
	return res, nil
}

// handleAuth signs in or creates an account when Workday demands one.
// Missing credentials are a session-level failure: nothing else on the
// form is reachable without them.
func (w *workday) handleAuth(ctx context.Context, sess browser.Session, res *models.FillResult, p map[string]string) error {
	emailSel, ok := firstVisible(ctx, sess,
		`input[data-automation-id="email"]`,
		`input[type="email"]`)
	if !ok {
		return nil // no auth wall
	}

	email := p["email"]
	if email == "" {
		return fmt.Errorf("workday requires an account but no email is configured")
	}

	res.Append(models.LogInfo, "handling workday authentication")
	if err := sess.Type(ctx, emailSel, email); err != nil {
		return fmt.Errorf("enter email: %w", err)
	}
	w.pause(ctx)

	if pwSel, ok := firstVisible(ctx, sess,
		`input[data-automation-id="createAccountPasswordInput"]`,
		`input[type="password"]`); ok {
		password := p["workday_password"]
		if password == "" {
			return fmt.Errorf("workday requires a password but workday_password is not configured")
		}
		if err := sess.Type(ctx, pwSel, password); err != nil {
			return fmt.Errorf("enter password: %w", err)
		}
		if confirm, ok := firstVisible(ctx, sess,
			`input[data-automation-id="createAccountConfirmPasswordInput"]`); ok {
			if err := sess.Type(ctx, confirm, password); err != nil {
				return fmt.Errorf("confirm password: %w", err)
			}
		}
		if terms, ok := firstVisible(ctx, sess,
			`input[data-automation-id="createAccountCheckBox"]`); ok {
			_ = sess.Click(ctx, terms)
		}
	}

	submit, ok := firstVisible(ctx, sess,
		`button[data-automation-id="createAccountSubmitButton"]`,
		`button[data-automation-id="signInSubmitButton"]`,
		`button[type="submit"]`)
	if !ok {
		return fmt.Errorf("workday auth form has no submit button")
	}
	if err := sess.Click(ctx, submit); err != nil {
		return fmt.Errorf("submit auth: %w", err)
	}
	w.pause(ctx)
	res.Append(models.LogOK, "authentication completed")
	return nil
}

// fillPage fills the identity fields present on the current wizard page.
func (w *workday) fillPage(ctx context.Context, sess browser.Session, res *models.FillResult, p map[string]string) {
	phone := p["phone_digits"]
	if phone == "" {
		phone = p["phone"]
	}

	w.fillField(ctx, sess, res, p["first_name"], `input[data-automation-id="legalNameSection_firstName"]`)
	w.fillField(ctx, sess, res, p["last_name"], `input[data-automation-id="legalNameSection_lastName"]`)
	w.fillField(ctx, sess, res, p["address"], `input[data-automation-id="addressSection_addressLine1"]`)
	w.fillField(ctx, sess, res, p["city"], `input[data-automation-id="addressSection_city"]`)
	w.fillField(ctx, sess, res, p["zip"], `input[data-automation-id="addressSection_postalCode"]`)
	w.fillField(ctx, sess, res, phone, `input[data-automation-id="phone-number"]`)
	w.fillField(ctx, sess, res, p["email"], `input[data-automation-id="email"]`)
}
