package answers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/qri-io/jsonschema"

	"github.com/garnizeh/applyd/internal/config"
	"github.com/garnizeh/applyd/pkg/ollama"
)

// aiConfidenceCeiling caps the confidence of AI-sourced answers so they
// never outrank a lookup hit.
const aiConfidenceCeiling = 0.7

// maxAnswerLen bounds free-text answers; forms rarely accept more anyway.
const maxAnswerLen = 500

// answerSchema constrains the JSON object the model must return.
var answerSchema = []byte(`{
	"type": "object",
	"required": ["answer", "confidence"],
	"properties": {
		"answer": {"type": "string", "minLength": 1},
		"confidence": {"type": "number", "minimum": 0, "maximum": 1}
	}
}`)

const answerPrompt = `You are filling out a job application for {{.Company}}, role: {{.Role}}.

Applicant background: {{.About}}

Answer this screening question in 2-3 sentences max. Be direct, no fluff, no corporate speak. Sound like a real person, not a chatbot.

Question: {{.Question}}

Rules:
- Keep under 500 characters
- No made-up claims
- Don't mention other companies
- Be honest and straightforward
- If the question is about salary, say "open to discussion" or use the range from context

Respond with only a JSON object: {"answer": "<your answer>", "confidence": <0.0-1.0>}`

// Generator produces model output for a prompt. *ollama.Client satisfies it.
type Generator interface {
	Generate(ctx context.Context, model, prompt string) (ollama.GenerateResult, error)
}

// Answer is a resolved screening answer. Source is lookup, custom, ai, or
// skip; Text is empty exactly when Source is skip.
type Answer struct {
	Text       string
	Source     string
	Confidence float64
}

var skip = Answer{Source: "skip"}

// Engine resolves screening questions against the answers file, falling
// back to the model for free-text questions when a generator is wired.
type Engine struct {
	file   *File
	gen    Generator
	cfg    config.EngineConfig
	schema *jsonschema.Schema
	logger *slog.Logger
}

// NewEngine builds an engine. gen may be nil; the AI fallback is then
// disabled and unmatched questions resolve to skip.
func NewEngine(file *File, gen Generator, cfg config.EngineConfig, logger *slog.Logger) (*Engine, error) {
	if file == nil {
		file = &File{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	rs := &jsonschema.Schema{}
	if err := json.Unmarshal(answerSchema, rs); err != nil {
		return nil, fmt.Errorf("parse answer schema: %w", err)
	}

	return &Engine{file: file, gen: gen, cfg: cfg, schema: rs, logger: logger}, nil
}

// Personal exposes the identity section for adapters.
func (e *Engine) Personal() map[string]string {
	if e.file.Personal == nil {
		return map[string]string{}
	}
	return e.file.Personal
}

// Value returns a lookup-table entry directly, for adapters that address
// well-known keys like linkedin_url without going through a question.
func (e *Engine) Value(key string) string {
	return e.file.Lookup[key]
}

// Resolve answers one screening question. It never returns an error: a
// question that cannot be answered resolves to a skip answer, and the
// caller decides whether that blocks the form.
func (e *Engine) Resolve(ctx context.Context, question, company, role, jdText string) Answer {
	// 1. pattern match into the lookup table
	if key := matchKey(question); key != "" {
		if v, ok := e.file.Lookup[key]; ok && v != "" {
			return Answer{Text: v, Source: "lookup", Confidence: 1.0}
		}
		if key == "about_me" && e.file.AboutMe != "" {
			return Answer{Text: e.file.AboutMe, Source: "lookup", Confidence: 1.0}
		}
	}

	// 2. literal custom answers, substring match in either direction
	q := strings.ToLower(strings.TrimSpace(question))
	for custom, a := range e.file.Custom {
		c := strings.ToLower(custom)
		if strings.Contains(q, c) || strings.Contains(c, q) {
			return Answer{Text: a, Source: "custom", Confidence: 0.9}
		}
	}

	// 3. AI fallback for free-text questions
	if e.gen != nil && isFreetext(question) {
		if a, ok := e.generate(ctx, question, company, role); ok {
			return a
		}
	}

	// 4. cannot answer
	return skip
}

func (e *Engine) generate(ctx context.Context, question, company, role string) (Answer, bool) {
	if company == "" {
		company = "a company"
	}
	if role == "" {
		role = "Software Engineer"
	}
	about := e.file.AboutMe
	if about == "" {
		about = "Software engineer."
	}

	prompt, err := ollama.RenderTemplate(answerPrompt, map[string]string{
		"Company":  company,
		"Role":     role,
		"About":    about,
		"Question": question,
	})
	if err != nil {
		e.logger.Error("render answer prompt", "error", err)
		return skip, false
	}

	ctxReq, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	out, err := e.gen.Generate(ctxReq, e.cfg.Model, prompt)
	if err != nil {
		e.logger.Error("answer generation failed", "question", question, "error", err)
		return skip, false
	}

	j := extractJSON(out.Text)
	if j == "" {
		e.logger.Warn("no JSON object in model output", "question", question)
		return skip, false
	}

	verrs, err := e.schema.ValidateBytes(ctxReq, []byte(j))
	if err != nil || len(verrs) > 0 {
		e.logger.Warn("model output failed schema validation", "question", question, "error", err)
		return skip, false
	}

	var parsed struct {
		Answer     string  `json:"answer"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(j), &parsed); err != nil {
		return skip, false
	}

	conf := parsed.Confidence
	if conf > aiConfidenceCeiling {
		conf = aiConfidenceCeiling
	}
	if conf < e.cfg.MinConfidence {
		e.logger.Info("discarding low-confidence answer", "question", question, "confidence", conf)
		return skip, false
	}

	text := strings.TrimSpace(parsed.Answer)
	if len(text) > maxAnswerLen {
		text = text[:maxAnswerLen]
	}

	return Answer{Text: text, Source: "ai", Confidence: conf}, true
}

// extractJSON returns the substring from the first '{' to the last '}'.
// Model outputs often wrap JSON in prose or markdown fences.
func extractJSON(s string) string {
	first := strings.Index(s, "{")
	last := strings.LastIndex(s, "}")
	if first == -1 || last == -1 || last < first {
		return ""
	}
	return s[first : last+1]
}
