package history

import (
	"strconv"
	"strings"

	"team-health/internal/jira"
)

// DistinctSprints counts the sprints an issue has ever belonged to, from its current sprint
// field and every sprint change in its changelog. Numeric ids win over names; a name is
// folded into its id whenever any source pairs the two.
func DistinctSprints(current []jira.SprintRef, changelog []jira.ChangelogEntry, sprintFieldID string) int {
	return len(SprintSet(current, changelog, sprintFieldID))
}

// SprintSet is the de-duplicated set behind DistinctSprints. Keys are "id:<n>" or "name:<s>".
func SprintSet(current []jira.SprintRef, changelog []jira.ChangelogEntry, sprintFieldID string) map[string]bool {
	nameToID := make(map[string]int)
	for _, ref := range current {
		if ref.ID != 0 && ref.Name != "" {
			nameToID[ref.Name] = ref.ID
		}
	}

	var items []jira.ChangeItem
	for _, e := range changelog {
		for _, itm := range e.Items {
			if !jira.IsSprintField(itm, sprintFieldID) {
				continue
			}
			items = append(items, itm)
			pairNames(nameToID, splitList(itm.From), splitList(itm.FromString))
			pairNames(nameToID, splitList(itm.To), splitList(itm.ToString))
		}
	}

	set := make(map[string]bool)
	add := func(id int, name string) {
		switch {
		case id != 0:
			set["id:"+strconv.Itoa(id)] = true
		case name != "":
			if known, ok := nameToID[name]; ok {
				set["id:"+strconv.Itoa(known)] = true
			} else {
				set["name:"+name] = true
			}
		}
	}

	for _, ref := range current {
		add(ref.ID, ref.Name)
	}
	for _, itm := range items {
		addSide(add, splitList(itm.From), splitList(itm.FromString))
		addSide(add, splitList(itm.To), splitList(itm.ToString))
	}
	return set
}

func addSide(add func(int, string), ids, names []string) {
	if len(ids) > 0 {
		for _, raw := range ids {
			id, err := strconv.Atoi(raw)
			if err != nil {
				continue
			}
			add(id, "")
		}
		return
	}
	for _, n := range names {
		add(0, n)
	}
}

// pairNames learns name→id when both sides of a change list the same number of sprints.
func pairNames(nameToID map[string]int, ids, names []string) {
	if len(ids) == 0 || len(ids) != len(names) {
		return
	}
	for i, raw := range ids {
		if id, err := strconv.Atoi(raw); err == nil {
			nameToID[names[i]] = id
		}
	}
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
