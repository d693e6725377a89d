package history

import (
	"time"

	"team-health/internal/jira"
)

// Interval is a span spent in one status. An open interval has a nil Left.
type Interval struct {
	Entered time.Time  `json:"entered"`
	Left    *time.Time `json:"left,omitempty"`
	Days    int        `json:"days"`
}

// Stuck is how long an issue has sat in its current status.
type Stuck struct {
	Status string `json:"status"`
	Days   int    `json:"days"`
	// CreatedInStatus is true when the issue started life in its current status.
	CreatedInStatus bool       `json:"createdInStatus"`
	Intervals       []Interval `json:"intervals"`
}

// DaysStuck sums every visit to the current status. Each interval is floored to whole days on
// its own before summing. A nil changelog means "no transitions": the issue has been in its
// current status since it was created.
func DaysStuck(current string, created time.Time, changelog []jira.ChangelogEntry, now time.Time) Stuck {
	transitions := Transitions(changelog)
	res := Stuck{Status: current}

	var enteredAt *time.Time
	if len(transitions) == 0 || sameStatus(transitions[0].FromStatus, current) {
		res.CreatedInStatus = true
		c := created
		enteredAt = &c
	}

	for _, tr := range transitions {
		entering := sameStatus(tr.ToStatus, current) && !sameStatus(tr.FromStatus, current)
		leaving := sameStatus(tr.FromStatus, current) && !sameStatus(tr.ToStatus, current)

		switch {
		case entering:
			d := tr.Date
			enteredAt = &d
		case leaving:
			if enteredAt != nil {
				left := tr.Date
				days := WholeDays(left.Sub(*enteredAt))
				res.Intervals = append(res.Intervals, Interval{Entered: *enteredAt, Left: &left, Days: days})
				res.Days += days
				enteredAt = nil
			}
		}
	}

	if enteredAt != nil {
		days := WholeDays(now.Sub(*enteredAt))
		res.Intervals = append(res.Intervals, Interval{Entered: *enteredAt, Days: days})
		res.Days += days
	}
	return res
}
