// Package answers resolves screening questions to answers. Resolution
// priority is lookup table, then custom answers, then an AI fallback for
// free-text questions, then skip.
package answers

import (
	"errors"
	"io/fs"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// File is the operator-maintained answers file. Top-level keys are answer
// keys the pattern table resolves to; personal and custom_answers are
// reserved sections.
type File struct {
	// Personal holds identity fields adapters fill directly, keyed
	// first_name, last_name, email, phone, location and so on.
	Personal map[string]string `yaml:"personal"`
	// Custom maps literal question text to an answer. Matching is
	// substring based in both directions.
	Custom map[string]string `yaml:"custom_answers"`
	// AboutMe seeds the AI fallback prompt.
	AboutMe string `yaml:"about_me"`
	// Lookup catches the remaining keys, e.g. work_auth, sponsorship.
	Lookup map[string]string `yaml:",inline"`
}

// LoadFile reads the answers file at path. A missing file yields an empty
// File so the engine degrades to AI-or-skip.
func LoadFile(path string) (*File, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &File{}, nil
	}
	if err != nil {
		return nil, err
	}

	var f File
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

type pattern struct {
	re  *regexp.Regexp
	key string
}

// questionPatterns maps common screening questions to lookup keys. Order
// matters: the first match wins, so specific patterns come before the
// general ones they overlap with.
var questionPatterns = []pattern{
	// work authorization
	{regexp.MustCompile(`authorized.*work.*(?:us|united states)`), "work_auth"},
	{regexp.MustCompile(`legally.*authorized`), "work_auth"},
	{regexp.MustCompile(`eligib(?:le|ility).*work.*(?:us|united states)`), "work_auth"},
	{regexp.MustCompile(`right to work`), "work_auth"},
	// sponsorship
	{regexp.MustCompile(`sponsor`), "sponsorship"},
	{regexp.MustCompile(`visa`), "sponsorship"},
	{regexp.MustCompile(`require.*immigration`), "sponsorship"},
	// start date / availability
	{regexp.MustCompile(`(?:when|earliest|start date|available to start)`), "start_date"},
	{regexp.MustCompile(`notice period`), "start_date"},
	// location / relocation
	{regexp.MustCompile(`(?:willing|open).*relocat`), "relocation"},
	{regexp.MustCompile(`(?:preferred|current|where).*locat`), "location"},
	{regexp.MustCompile(`work.*(?:on-?site|remote|hybrid|office)`), "work_mode"},
	// salary
	{regexp.MustCompile(`salary.*(?:expect|require|range|desire)`), "salary"},
	{regexp.MustCompile(`compensation.*(?:expect|require)`), "salary"},
	{regexp.MustCompile(`pay.*(?:expect|range)`), "salary"},
	// years of experience, specific stacks before the catch-all
	{regexp.MustCompile(`(?:years?|how long|how much).*experience.*python`), "years_python"},
	{regexp.MustCompile(`(?:years?|how long|how much).*experience.*javascript`), "years_javascript"},
	{regexp.MustCompile(`(?:years?|how long|how much).*experience.*(?:ml|machine learning)`), "years_ml"},
	{regexp.MustCompile(`(?:years?|how long|how much).*experience.*sql`), "years_sql"},
	{regexp.MustCompile(`(?:years?|how long|how much).*experience.*react`), "years_react"},
	{regexp.MustCompile(`(?:years?|how long|how much).*experience`), "years_general"},
	// education
	{regexp.MustCompile(`(?:highest|level).*(?:education|degree)`), "education_level"},
	{regexp.MustCompile(`(?:gpa|grade point)`), "gpa"},
	// demographics: answered only when the operator chose to provide one
	{regexp.MustCompile(`gender`), "gender"},
	{regexp.MustCompile(`race|ethnicity`), "ethnicity"},
	{regexp.MustCompile(`veteran`), "veteran"},
	{regexp.MustCompile(`disability|disabled`), "disability"},
	{regexp.MustCompile(`pronouns`), "pronouns"},
	// profiles
	{regexp.MustCompile(`linkedin`), "linkedin_url"},
	{regexp.MustCompile(`github`), "github_url"},
	{regexp.MustCompile(`portfolio|website|personal.*(?:site|page)`), "website_url"},
	// cover letter / motivation
	{regexp.MustCompile(`(?:why|what).*(?:interest|excit|attract|compan|role|position|apply)`), "why_interested"},
	{regexp.MustCompile(`cover letter`), "cover_letter"},
	{regexp.MustCompile(`tell.*(?:us|me).*(?:about|yourself)`), "about_me"},
	// age / legal
	{regexp.MustCompile(`(?:18|age|legal age|at least 18)`), "over_18"},
	{regexp.MustCompile(`background.*check`), "background_check"},
	{regexp.MustCompile(`drug.*(?:test|screen)`), "drug_test"},
}

// matchKey resolves a question to a lookup key, or "" when nothing matches.
func matchKey(question string) string {
	q := strings.ToLower(strings.TrimSpace(question))
	for _, p := range questionPatterns {
		if p.re.MatchString(q) {
			return p.key
		}
	}
	return ""
}

// freetextSignals mark questions that expect prose rather than a choice.
var freetextSignals = []string{
	"why", "what", "how", "describe", "tell us", "explain",
	"share", "elaborate", "additional", "anything else",
}

func isFreetext(question string) bool {
	q := strings.ToLower(question)
	for _, s := range freetextSignals {
		if strings.Contains(q, s) {
			return true
		}
	}
	return false
}
