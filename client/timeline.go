package client

import (
	"context"
	"sort"

	"github.com/commandpost/dispatch-core/models"
)

// Timeline returns the ordered history of actions taken against one
// call, newest first. An empty call id yields an empty timeline, the
// "nothing selected" prompt state, not an error.
func (c *Client) Timeline(ctx context.Context, callID string) ([]models.AuditEvent, error) {
	if callID == "" {
		return []models.AuditEvent{}, nil
	}

	events, err := c.Events(ctx)
	if err != nil {
		return nil, err
	}

	timeline := make([]models.AuditEvent, 0, len(events))
	for _, e := range events {
		if e.Details.TargetType == models.TargetCall && e.Details.TargetID == callID {
			timeline = append(timeline, e)
		}
	}
	sort.SliceStable(timeline, func(i, j int) bool {
		return timeline[i].Details.CreatedAt.After(timeline[j].Details.CreatedAt)
	})
	return timeline, nil
}
