package stats

import (
	"math"
	"slices"
)

// Creep is the scope change of one sprint, in issue counts.
type Creep struct {
	StartedWith int `json:"startedWith"`
	EndedWith   int `json:"endedWith"`
	Added       int `json:"added"`
	Removed     int `json:"removed"`
	NetChange   int `json:"netChange"`
	// CreepPct is nil when StartedWith is zero.
	CreepPct *float64 `json:"creepPct"`
}

// CalculateCreep derives the starting scope from the final scope:
// startedWith = endedWith - added + removed.
func CalculateCreep(endedWith, added, removed int) Creep {
	c := Creep{
		EndedWith:   endedWith,
		Added:       added,
		Removed:     removed,
		StartedWith: endedWith - added + removed,
		NetChange:   added - removed,
	}
	if c.StartedWith > 0 {
		pct := Round1(float64(c.NetChange) / float64(c.StartedWith) * 100)
		c.CreepPct = &pct
	}
	return c
}

// PctLabel renders CreepPct as "12.5%", or "—" when undefined.
func (c Creep) PctLabel() string {
	if c.CreepPct == nil {
		return "—"
	}
	return FormatOneDecimal(*c.CreepPct) + "%"
}

// Imbalance describes how uneven a load distribution is.
type Imbalance struct {
	Flagged bool    `json:"flagged"`
	Max     int     `json:"max"`
	MaxWho  string  `json:"maxWho,omitempty"`
	Mean    float64 `json:"mean"`
	Ratio   float64 `json:"ratio"`
}

// DetectImbalance flags when max(load) >= ratio × mean(load). Ties on the maximum go to the
// alphabetically first name so the result is stable.
func DetectImbalance(loads map[string]int, ratio float64) Imbalance {
	res := Imbalance{Ratio: ratio}
	if len(loads) == 0 {
		return res
	}

	names := make([]string, 0, len(loads))
	values := make([]float64, 0, len(loads))
	for name := range loads {
		names = append(names, name)
	}
	slices.Sort(names)
	res.Max = math.MinInt
	for _, name := range names {
		v := loads[name]
		values = append(values, float64(v))
		if v > res.Max {
			res.Max = v
			res.MaxWho = name
		}
	}
	res.Mean = Mean(values)
	res.Flagged = res.Mean > 0 && float64(res.Max) >= ratio*res.Mean
	return res
}
