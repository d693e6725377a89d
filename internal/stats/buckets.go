package stats

import "math"

// AgeBucket is a half-open [MinDays, MaxDays) age range.
type AgeBucket struct {
	Label   string `json:"label"`
	MinDays int    `json:"minDays"`
	// MaxDays is math.MaxInt for the open-ended last bucket.
	MaxDays int `json:"maxDays"`
	Count   int `json:"count"`
}

// AgeBuckets are the backlog age ranges in display order.
var AgeBuckets = []AgeBucket{
	{Label: "0-7 days", MinDays: 0, MaxDays: 7},
	{Label: "1-2 weeks", MinDays: 7, MaxDays: 14},
	{Label: "2-4 weeks", MinDays: 14, MaxDays: 30},
	{Label: "1-3 months", MinDays: 30, MaxDays: 90},
	{Label: "3-6 months", MinDays: 90, MaxDays: 180},
	{Label: "6-12 months", MinDays: 180, MaxDays: 365},
	{Label: "1-2 years", MinDays: 365, MaxDays: 730},
	{Label: "2+ years", MinDays: 730, MaxDays: math.MaxInt},
}

// BucketIndex returns the first bucket with MinDays <= ageDays < MaxDays. Negative ages land in
// the first bucket.
func BucketIndex(ageDays int) int {
	if ageDays < 0 {
		return 0
	}
	for i, b := range AgeBuckets {
		if ageDays >= b.MinDays && ageDays < b.MaxDays {
			return i
		}
	}
	return len(AgeBuckets) - 1
}

// BucketAges counts ages into a fresh copy of AgeBuckets.
func BucketAges(ages []int) []AgeBucket {
	out := make([]AgeBucket, len(AgeBuckets))
	copy(out, AgeBuckets)
	for _, age := range ages {
		out[BucketIndex(age)].Count++
	}
	return out
}
