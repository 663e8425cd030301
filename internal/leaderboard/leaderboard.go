// Package leaderboard applies review decisions to per-user standings and
// derives the ranking. Both operations are pure; persistence and caching
// live with the callers.
package leaderboard

import (
	"cmp"
	"slices"
	"time"

	"github.com/projectsentinel/apiserver/types"
)

// Apply returns entry updated for the review that moved a submission from
// before to after. Counters move once per submission: the submission count
// on its first review, verified and implemented counts when the submission
// enters those states. Points are credited as the increase over what the
// submission had already earned, so repeated reviews never double count.
func Apply(entry types.LeaderboardEntry, before, after types.Submission, at time.Time) types.LeaderboardEntry {
	if before.Status == types.StatusPending && after.Status != types.StatusPending {
		entry.SubmissionsCount++
	}
	if after.Status == types.StatusApproved && before.Status != types.StatusApproved {
		entry.VerifiedCount++
	}
	if after.Status == types.StatusImplemented && before.Status != types.StatusImplemented {
		entry.ImplementedCount++
	}
	if delta := PointsDelta(before, after); delta > 0 {
		entry.TotalPoints += delta
		ts := at
		entry.LastPointsAt = &ts
	}
	return entry
}

// PointsDelta is the number of points a review adds to the submitter's total.
func PointsDelta(before, after types.Submission) int {
	if !after.Status.Credited() {
		return 0
	}
	credited := 0
	if before.Status.Credited() {
		credited = before.PointsAwarded
	}
	if delta := after.PointsAwarded - credited; delta > 0 {
		return delta
	}
	return 0
}

// Rank returns a copy of entries ordered by total points, highest first,
// with dense 1-based ranks. Equal totals are ordered by who reached the
// total first, then by user id; entries that never scored come last.
func Rank(entries []types.LeaderboardEntry) []types.LeaderboardEntry {
	ranked := slices.Clone(entries)
	slices.SortFunc(ranked, compare)
	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return ranked
}

func compare(a, b types.LeaderboardEntry) int {
	if c := cmp.Compare(b.TotalPoints, a.TotalPoints); c != 0 {
		return c
	}
	switch {
	case a.LastPointsAt != nil && b.LastPointsAt == nil:
		return -1
	case a.LastPointsAt == nil && b.LastPointsAt != nil:
		return 1
	case a.LastPointsAt != nil && b.LastPointsAt != nil:
		if c := a.LastPointsAt.Compare(*b.LastPointsAt); c != 0 {
			return c
		}
	}
	return cmp.Compare(a.UserID, b.UserID)
}

// Filter returns the entries matching keep, preserving order and re-ranking
// them densely.
func Filter(entries []types.LeaderboardEntry, keep func(types.LeaderboardEntry) bool) []types.LeaderboardEntry {
	out := make([]types.LeaderboardEntry, 0, len(entries))
	for _, entry := range entries {
		if keep(entry) {
			out = append(out, entry)
		}
	}
	return Rank(out)
}
