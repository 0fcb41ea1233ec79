package main

import (
	"testing"
	"time"

	"github.com/gridley-labs/fanout/pkg/models"
)

func TestNewestSession(t *testing.T) {
	now := time.Now()
	old := models.Session{ID: "old", CreatedAt: now.Add(-time.Hour)}
	newer := models.Session{ID: "newer", CreatedAt: now}

	// The store lists newest first, but the pick must not depend on order.
	for _, sessions := range [][]models.Session{
		{newer, old},
		{old, newer},
	} {
		if got := newestSession(sessions); got != "newer" {
			t.Errorf("newestSession(%v) = %q, want newer", []string{sessions[0].ID, sessions[1].ID}, got)
		}
	}
}
