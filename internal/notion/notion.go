// Package notion mirrors the job queue into a Notion database so the
// operator can track applications from their existing board. The mirror is
// best-effort: sync failures are logged and never block the pipeline.
package notion

import (
	"context"
	"log/slog"
	"sync"
	"time"

	gnt "github.com/dstotijn/go-notion"

	"github.com/garnizeh/applyd/internal/models"
)

// Client wraps the Notion API for one tracking database.
type Client struct {
	api        *gnt.Client
	databaseID string
	logger     *slog.Logger

	mu    sync.Mutex
	pages map[int64]string // job id -> notion page id
}

func New(token, databaseID string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		api:        gnt.NewClient(token),
		databaseID: databaseID,
		logger:     logger,
		pages:      make(map[int64]string),
	}
}

// Ping runs a tiny QueryDatabase to check the DB is reachable.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.api.QueryDatabase(ctx, c.databaseID, &gnt.DatabaseQuery{
		PageSize: 1,
	})
	return err
}

// richText builds a valid Notion rich_text slice from a plain string.
func richText(s string) []gnt.RichText {
	if s == "" {
		return nil
	}
	return []gnt.RichText{
		{
			Text: &gnt.Text{
				Content: s,
			},
		},
	}
}

func jobPageProperties(job *models.Job) gnt.DatabasePageProperties {
	props := gnt.DatabasePageProperties{}

	if job.Role != "" {
		props["Position"] = gnt.DatabasePageProperty{
			Title: richText(job.Role),
		}
	}
	if job.Company != "" {
		props["Company"] = gnt.DatabasePageProperty{
			RichText: richText(job.Company),
		}
	}
	if job.URL != "" {
		url := job.URL
		props["Job Posting"] = gnt.DatabasePageProperty{
			URL: &url,
		}
	}
	if job.Platform != "" {
		props["Platform"] = gnt.DatabasePageProperty{
			Select: &gnt.SelectOptions{
				Name: job.Platform,
			},
		}
	}

	props["Stage"] = gnt.DatabasePageProperty{
		Select: &gnt.SelectOptions{
			Name: string(job.Status),
		},
	}

	if job.Error != "" {
		props["Notes"] = gnt.DatabasePageProperty{
			RichText: richText(job.Error),
		}
	}
	if job.Submitted != nil {
		dt := gnt.NewDateTime(time.Unix(*job.Submitted, 0).UTC(), true)
		props["Submitted"] = gnt.DatabasePageProperty{
			Date: &gnt.Date{
				Start: dt,
			},
		}
	}

	return props
}

// CreateJobPage creates a row for the job and remembers its page id.
func (c *Client) CreateJobPage(ctx context.Context, job *models.Job) (string, error) {
	props := jobPageProperties(job)

	page, err := c.api.CreatePage(ctx, gnt.CreatePageParams{
		ParentType:             gnt.ParentTypeDatabase,
		ParentID:               c.databaseID,
		DatabasePageProperties: &props,
	})
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.pages[job.ID] = page.ID
	c.mu.Unlock()
	return page.ID, nil
}

// UpdateJobPage pushes the job's current state to its existing row.
func (c *Client) UpdateJobPage(ctx context.Context, pageID string, job *models.Job) error {
	props := jobPageProperties(job)
	_, err := c.api.UpdatePage(ctx, pageID, gnt.UpdatePageParams{
		DatabasePageProperties: props,
	})
	return err
}

// JobUpdated implements the pipeline notifier: upsert the job's row. A
// page we have not created in this process gets created fresh.
func (c *Client) JobUpdated(ctx context.Context, job *models.Job) {
	c.mu.Lock()
	pageID, ok := c.pages[job.ID]
	c.mu.Unlock()

	var err error
	if ok {
		err = c.UpdateJobPage(ctx, pageID, job)
	} else {
		_, err = c.CreateJobPage(ctx, job)
	}
	if err != nil {
		c.logger.Warn("notion sync failed", "id", job.ID, "error", err)
	}
}
