// Package detect identifies which ATS platform hosts a job application
// URL. URL patterns are checked first; page markup markers are a fallback
// for career pages served from custom domains.
package detect

import (
	"regexp"
	"strings"
)

// Unknown is returned when no platform matches.
const Unknown = "unknown"

type urlPattern struct {
	re       *regexp.Regexp
	platform string
}

var urlPatterns = []urlPattern{
	{regexp.MustCompile(`(?i)jobs\.lever\.co/`), "lever"},
	{regexp.MustCompile(`(?i)lever\.co/`), "lever"},
	{regexp.MustCompile(`(?i)boards\.greenhouse\.io/`), "greenhouse"},
	{regexp.MustCompile(`(?i)greenhouse\.io/`), "greenhouse"},
	{regexp.MustCompile(`(?i)jobs\.ashbyhq\.com/`), "ashby"},
	{regexp.MustCompile(`(?i)ashbyhq\.com/`), "ashby"},
	{regexp.MustCompile(`(?i)myworkdayjobs\.com/`), "workday"},
	{regexp.MustCompile(`(?i)wd\d+\.myworkdayjobs\.com/`), "workday"},
	{regexp.MustCompile(`(?i)careers-.*\.icims\.com/`), "icims"},
	{regexp.MustCompile(`(?i)icims\.com/`), "icims"},
	{regexp.MustCompile(`(?i)taleo\.net/`), "taleo"},
	{regexp.MustCompile(`(?i)bamboohr\.com/`), "bamboohr"},
	{regexp.MustCompile(`(?i)jobs\.smartrecruiters\.com/`), "smartrecruiters"},
	{regexp.MustCompile(`(?i)ats\.rippling\.com/`), "rippling"},
}

// htmlMarkers pairs a platform with markup fragments that identify it.
// Checked in order so detection is deterministic when a page mentions
// more than one vendor.
var htmlMarkers = []struct {
	platform string
	markers  []string
}{
	{"lever", []string{"lever-jobs-embed", "lever.co", "data-lever"}},
	{"greenhouse", []string{"greenhouse.io", "gh_jid", "greenhouse-job-board"}},
	{"ashby", []string{"ashbyhq.com", "ashby-job-posting"}},
	{"workday", []string{"workday.com", "myworkdayjobs", "wd-popup"}},
	{"icims", []string{"icims.com"}},
}

// supported is the closed set of platforms with an adapter implementation.
var supported = map[string]bool{
	"lever":      true,
	"greenhouse": true,
	"ashby":      true,
	"workday":    true,
}

// FromURL detects the platform from the URL alone.
func FromURL(url string) string {
	for _, p := range urlPatterns {
		if p.re.MatchString(url) {
			return p.platform
		}
	}
	return Unknown
}

// FromHTML detects the platform from page markup.
func FromHTML(html string) string {
	lower := strings.ToLower(html)
	for _, entry := range htmlMarkers {
		for _, m := range entry.markers {
			if strings.Contains(lower, strings.ToLower(m)) {
				return entry.platform
			}
		}
	}
	return Unknown
}

// Detect runs URL detection first and falls back to markup when provided.
func Detect(url, html string) string {
	if p := FromURL(url); p != Unknown {
		return p
	}
	if html != "" {
		return FromHTML(html)
	}
	return Unknown
}

// Supported reports whether an adapter exists for the platform.
func Supported(platform string) bool {
	return supported[platform]
}
