package ics

import (
	"context"
	"fmt"
	"time"

	appLog "planner/internal/log"
	"planner/internal/model"
)

// Creator stores events for the user in ctx; *service.EventService
// satisfies it. ids is aligned with reqs and "" marks a rejected event.
type Creator interface {
	CreateBatch(ctx context.Context, reqs []model.CreateEventRequest) ([]string, error)
}

// ImportResult counts what happened to each parsed VEVENT.
type ImportResult struct {
	Imported []string `json:"imported"`
	Failed   int      `json:"failed"`
}

// Import parses body and hands every event to c in one batch. Events the
// creator rejects are counted and skipped.
func Import(ctx context.Context, c Creator, body []byte, loc *time.Location) (ImportResult, error) {
	reqs, err := Parse(body, loc)
	if err != nil {
		return ImportResult{}, err
	}

	res := ImportResult{Imported: make([]string, 0, len(reqs))}
	if len(reqs) == 0 {
		return res, nil
	}
	ids, err := c.CreateBatch(ctx, reqs)
	if err != nil {
		return ImportResult{}, fmt.Errorf("import events: %w", err)
	}
	for _, id := range ids {
		if id == "" {
			res.Failed++
			continue
		}
		res.Imported = append(res.Imported, id)
	}
	appLog.Info("ics import completed", "imported", len(res.Imported), "failed", res.Failed)
	return res, nil
}
