package repository

import (
	"fmt"
	"time"
)

// rowLease describes the optimistic claim columns of a leasable table.
// Provider events and shipments share the same pattern: owner id + expiry,
// taken with a compare-and-set update and self-expiring if the claimant
// crashes.
type rowLease struct {
	ownerCol   string
	expiresCol string
	// stampCol, when set, records when the claim was taken.
	stampCol string
}

// availableClause matches rows whose lease is free or expired. Takes one
// placeholder argument: now.
func (l rowLease) availableClause() string {
	return fmt.Sprintf("(%s = '' OR %s IS NULL OR %s < ?)", l.ownerCol, l.expiresCol, l.expiresCol)
}

func (l rowLease) claimUpdates(owner string, now time.Time, ttl time.Duration) map[string]interface{} {
	updates := map[string]interface{}{
		l.ownerCol:   owner,
		l.expiresCol: now.Add(ttl),
	}
	if l.stampCol != "" {
		updates[l.stampCol] = now
	}
	return updates
}

func (l rowLease) releaseUpdates() map[string]interface{} {
	updates := map[string]interface{}{
		l.ownerCol:   "",
		l.expiresCol: nil,
	}
	if l.stampCol != "" {
		updates[l.stampCol] = nil
	}
	return updates
}
