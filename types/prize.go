package types

import "time"

// Prize is a reward for a leaderboard place within a quarter.
type Prize struct {
	ID              int       `json:"id" db:"id"`
	QuarterName     string    `json:"quarter_name" db:"quarter_name"`
	StartDate       time.Time `json:"start_date" db:"start_date"`
	EndDate         time.Time `json:"end_date" db:"end_date"`
	IsSentinelPrize bool      `json:"is_sentinel_prize" db:"is_sentinel_prize"`
	Place           int       `json:"place" db:"place"`
	Amount          int       `json:"amount" db:"amount"`
	Description     string    `json:"description" db:"description"`
	IsActive        bool      `json:"is_active" db:"is_active"`
}

// PrizeStanding pairs a prize with the entry currently holding its place.
// Holder is nil when nobody has reached the place yet.
type PrizeStanding struct {
	Prize  Prize             `json:"prize"`
	Holder *LeaderboardEntry `json:"holder,omitempty"`
}

// PrizeStandings is the projection of the leaderboard onto active prizes.
type PrizeStandings struct {
	Quarter   string          `json:"quarter"`
	EndsAt    time.Time       `json:"ends_at"`
	Remaining Countdown       `json:"remaining"`
	Standings []PrizeStanding `json:"standings"`
}

// Countdown is the time left until a quarter ends.
type Countdown struct {
	Days    int  `json:"days"`
	Hours   int  `json:"hours"`
	Minutes int  `json:"minutes"`
	Expired bool `json:"expired"`
}
