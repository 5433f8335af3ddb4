// Package store provides SQLite-backed key-value persistence for the plan
// tracker.
//
// The engine stores three records, named after the browser build's
// local storage keys:
//   - user1Data, user2Data: one UserData JSON document per user
//   - sharedPlanData: both users plus the version counter
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//
// All failures are returned as plan.Error with code STORAGE_UNAVAILABLE.
// The engine logs them and carries on with its in-memory state.
package store
