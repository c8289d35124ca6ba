package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	DatabasePath  string `yaml:"database_path"`
	ResumeDir     string `yaml:"resume_dir"`
	ScreenshotDir string `yaml:"screenshot_dir"`
	AnswersFile   string `yaml:"answers_file"`

	API     APIConfig     `yaml:"api"`
	Daemon  DaemonConfig  `yaml:"daemon"`
	Browser BrowserConfig `yaml:"browser"`
	Engine  EngineConfig  `yaml:"engine"`
	Notion  NotionConfig  `yaml:"notion"`
}

// APIConfig configures the operator HTTP surface.
type APIConfig struct {
	Addr string `yaml:"addr"`
	// JWTSecret signs operator session tokens.
	JWTSecret string `yaml:"jwt_secret"`
	// OperatorHash is the bcrypt hash of the operator password. Signin is
	// disabled while it is empty.
	OperatorHash  string        `yaml:"operator_hash"`
	TokenDuration time.Duration `yaml:"token_duration"`
	Timeout       time.Duration `yaml:"timeout"`
}

// DaemonConfig governs the processing loop. All pacing that used to be
// tunable only by editing the process lives here.
type DaemonConfig struct {
	// Interval is the sleep between queue checks.
	Interval time.Duration `yaml:"interval"`
	// MaxPerRun bounds how many approved jobs one drain processes.
	MaxPerRun int `yaml:"max_per_run"`
	// Retries is the number of additional fill attempts after the first.
	Retries int `yaml:"retries"`
	// RetryBackoff is the base wait before a retry; attempt n waits n*base.
	RetryBackoff time.Duration `yaml:"retry_backoff"`
	// JobDelayMin/JobDelayMax bound the randomized pause between jobs.
	JobDelayMin time.Duration `yaml:"job_delay_min"`
	JobDelayMax time.Duration `yaml:"job_delay_max"`
	// Tailoring enables the resume tailoring collaborator for jobs that
	// carry a job description.
	Tailoring bool `yaml:"tailoring"`
}

// BrowserConfig is handed to the automation collaborator and to the
// human-pacing helpers adapters use.
type BrowserConfig struct {
	Headless     bool          `yaml:"headless"`
	UserAgent    string        `yaml:"user_agent"`
	MinDelay     time.Duration `yaml:"min_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
	TypingDelay  time.Duration `yaml:"typing_delay"`
	PageTimeout  time.Duration `yaml:"page_timeout"`
	PageLoadWait time.Duration `yaml:"page_load_wait"`
}

// EngineConfig configures the AI fallback of the answer engine.
type EngineConfig struct {
	Model         string        `yaml:"model"`
	Timeout       time.Duration `yaml:"timeout"`
	MinConfidence float64       `yaml:"min_confidence"`
	Ollama        OllamaConfig  `yaml:"ollama"`
}

// OllamaConfig holds settings for the Ollama client.
type OllamaConfig struct {
	BaseURL                 string        `yaml:"base_url"`
	Timeout                 time.Duration `yaml:"timeout"`
	Retries                 int           `yaml:"retries"`
	Backoff                 time.Duration `yaml:"backoff"`
	CircuitFailureThreshold int           `yaml:"circuit_failure_threshold"`
	CircuitReset            time.Duration `yaml:"circuit_reset"`
}

// NotionConfig mirrors the queue into a Notion database when a token is
// configured; empty token disables the sync.
type NotionConfig struct {
	Token      string `yaml:"token"`
	DatabaseID string `yaml:"database_id"`
}

// LoadConfig builds the configuration from environment-backed defaults and
// then overlays the YAML file at path, when given.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{
		DatabasePath:  getEnv("APPLYD_DATABASE_PATH", "applyd.db"),
		ResumeDir:     getEnv("APPLYD_RESUME_DIR", "resume"),
		ScreenshotDir: getEnv("APPLYD_SCREENSHOT_DIR", "logs/screenshots"),
		AnswersFile:   getEnv("APPLYD_ANSWERS_FILE", "answers.yaml"),
		API: APIConfig{
			Addr:          getEnv("APPLYD_ADDR", ":8080"),
			JWTSecret:     getEnv("APPLYD_JWT_SECRET", ""),
			OperatorHash:  getEnv("APPLYD_OPERATOR_HASH", ""),
			TokenDuration: 12 * time.Hour,
			Timeout:       15 * time.Second,
		},
		Daemon: DaemonConfig{
			Interval:     30 * time.Minute,
			MaxPerRun:    5,
			Retries:      2,
			RetryBackoff: 10 * time.Second,
			JobDelayMin:  30 * time.Second,
			JobDelayMax:  90 * time.Second,
			Tailoring:    true,
		},
		Browser: BrowserConfig{
			Headless:     true,
			UserAgent:    "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
			MinDelay:     2 * time.Second,
			MaxDelay:     7 * time.Second,
			TypingDelay:  50 * time.Millisecond,
			PageTimeout:  30 * time.Second,
			PageLoadWait: 3 * time.Second,
		},
		Engine: EngineConfig{
			Model:         getEnv("APPLYD_MODEL", "llama3"),
			Timeout:       30 * time.Second,
			MinConfidence: 0.5,
			Ollama: OllamaConfig{
				BaseURL:                 getEnv("APPLYD_OLLAMA_URL", "http://localhost:11434"),
				Timeout:                 30 * time.Second,
				Retries:                 3,
				Backoff:                 500 * time.Millisecond,
				CircuitFailureThreshold: 5,
				CircuitReset:            30 * time.Second,
			},
		},
		Notion: NotionConfig{
			Token:      getEnv("APPLYD_NOTION_TOKEN", ""),
			DatabaseID: getEnv("APPLYD_NOTION_DB", ""),
		},
	}

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		dec := yaml.NewDecoder(f)
		if err := dec.Decode(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return def
}
