package cache

import (
	"fmt"
	"time"
)

// The settlement batcher performs no locking itself; at most one settlement
// attempt may be in flight per (user, workspace). This lock is the
// integration-layer serialization around it. The TTL bounds how long a
// crashed holder can block retries; a live holder always releases earlier.
const settlementLockTTL = 2 * time.Minute

// SettlementLockKey builds the lock key for a user/workspace pair.
func SettlementLockKey(userID uint, workspaceID string) string {
	return fmt.Sprintf("settle:%d:%s", userID, workspaceID)
}

// AcquireSettlementLock takes the per-(user,workspace) settlement lock.
// Returns false when another settlement for the same pair is in flight.
func AcquireSettlementLock(userID uint, workspaceID string) (bool, error) {
	return GetClient().SetNX(ctx, SettlementLockKey(userID, workspaceID), "1", settlementLockTTL).Result()
}

// ReleaseSettlementLock releases the settlement lock.
func ReleaseSettlementLock(userID uint, workspaceID string) error {
	return GetClient().Del(ctx, SettlementLockKey(userID, workspaceID)).Err()
}
