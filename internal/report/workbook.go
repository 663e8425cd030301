package report

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/projectsentinel/apiserver/types"
)

const leaderboardSheet = "Leaderboard"

var leaderboardHeader = []any{
	"Rank", "User ID", "Name", "Region", "Sentinel",
	"Total Points", "Submissions", "Verified", "Implemented",
}

// LeaderboardWorkbook renders ranked entries as an XLSX document.
func LeaderboardWorkbook(entries []types.LeaderboardEntry) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", leaderboardSheet); err != nil {
		return nil, err
	}
	if err := f.SetSheetRow(leaderboardSheet, "A1", &leaderboardHeader); err != nil {
		return nil, err
	}
	for i, entry := range entries {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		row := []any{
			entry.Rank, entry.UserID, entry.DisplayName, entry.Region, entry.IsSentinel,
			entry.TotalPoints, entry.SubmissionsCount, entry.VerifiedCount, entry.ImplementedCount,
		}
		if err := f.SetSheetRow(leaderboardSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
