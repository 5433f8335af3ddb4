// Package plan defines the shared plan tracker's data model and the pure
// rules that act on it.
//
// A SharedState holds two users. Each user keeps a short-term and a
// long-term plan list, earns at most one star per calendar day, and
// converts every five stars into a sun. At each month boundary the
// current tally is archived into the user's achievement history and reset.
//
// INVARIANTS:
//   - 0 <= Stars < StarsPerSun after every rule in this package
//   - MonthlyAchievements is newest first
//   - Plan ids are unique within their list
//
// Nothing here performs I/O. The engine package owns a SharedState and
// calls these rules under its lock.
package plan
