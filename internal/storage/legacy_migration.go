package storage

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/riskguard/analyzer/internal/model"
)

// MigrateLegacyThreads is the one-shot utility for the "legacy persistent
// space" question (spec §9 Open Question 2): a fresh deployment has no
// such space, so this only runs when legacyPrefix names cache keys under
// which a prior system wrote ThreadRecord JSON. It is idempotent — a
// thread already present under its own id is left alone, and re-running
// after a full migration finds nothing left to copy.
func MigrateLegacyThreads(ctx context.Context, repo Repository, legacyPrefix string, legacyKeys []string) (int, error) {
	if legacyPrefix == "" {
		return 0, nil
	}

	migrated := 0
	for _, key := range legacyKeys {
		if !strings.HasPrefix(key, legacyPrefix) {
			continue
		}

		entry, err := repo.GetCache(ctx, key)
		if err != nil {
			continue
		}

		var thread model.ThreadRecord
		if err := json.Unmarshal(entry.Value, &thread); err != nil || thread.ThreadID == "" {
			continue
		}

		if _, err := repo.GetThread(ctx, thread.ThreadID); err == nil {
			continue // already migrated
		}

		if err := repo.SaveThread(ctx, thread); err != nil {
			return migrated, err
		}
		migrated++
	}
	return migrated, nil
}
