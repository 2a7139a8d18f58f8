package services

import (
	"context"
	"fmt"
	"sync"

	"waitlist-system/models"
	"waitlist-system/store"
	"waitlist-system/utils"
)

const codeRetries = 10

// CodeIssuer generates the short verification codes a merchant reads
// aloud at the counter. Codes only need to be unambiguous among the
// entries of one queue that are simultaneously called; collisions
// across queues are fine.
type CodeIssuer struct {
	repo   store.Repository
	length int

	// Held only while a code is generated so two concurrent calls in
	// the same queue cannot pick the same code.
	mu sync.Mutex
}

func NewCodeIssuer(repo store.Repository, length int) *CodeIssuer {
	if length < 4 {
		length = 4
	}
	return &CodeIssuer{repo: repo, length: length}
}

// Issue returns a fresh code for the entry, distinct from its prior
// code and from every code held by the queue's currently called
// entries. Retries generation on collision.
func (g *CodeIssuer) Issue(ctx context.Context, queueID, entryID, priorCode string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	taken, err := g.calledCodes(ctx, queueID, entryID)
	if err != nil {
		return "", err
	}

	for attempt := 0; attempt < codeRetries; attempt++ {
		code, err := utils.GenerateOTP(g.length)
		if err != nil {
			return "", err
		}
		if code == priorCode || taken[code] {
			continue
		}
		return code, nil
	}

	return "", fmt.Errorf("verification code space exhausted for queue %s", queueID)
}

func (g *CodeIssuer) calledCodes(ctx context.Context, queueID, entryID string) (map[string]bool, error) {
	entries, err := g.repo.ListActiveEntries(ctx, queueID)
	if err != nil {
		return nil, err
	}

	taken := make(map[string]bool)
	for _, entry := range entries {
		if entry.ID == entryID {
			continue
		}
		if entry.Status == models.StatusCalled && entry.VerificationCode != "" {
			taken[entry.VerificationCode] = true
		}
	}
	return taken, nil
}
