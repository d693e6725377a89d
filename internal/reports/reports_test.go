package reports

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"team-health/internal/github"
	"team-health/internal/identity"
	"team-health/internal/jira"
	"team-health/internal/stats"
)

func TestBacklog_BucketsAndMedian(t *testing.T) {
	src := &fakeSource{issues: []jira.Issue{
		{Key: "TH-1", StatusCategory: "new", IssueType: "Story", Priority: "Medium", Created: daysAgo(3)},
		{Key: "TH-2", StatusCategory: "new", IssueType: "Bug", Priority: "High", Created: daysAgo(10)},
		{Key: "TH-3", StatusCategory: "new", IssueType: "Story", Priority: "Medium", Created: daysAgo(400)},
		{Key: "TH-4", StatusCategory: "new", Created: daysAgo(50), Sprints: []jira.SprintRef{{ID: 1, State: "active"}}},
		{Key: "TH-5", StatusCategory: "done", Created: daysAgo(50)},
	}}

	res, err := newTestBuilder(src).Backlog(context.Background(), Params{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Total != 3 {
		t.Errorf("total: got %d, want 3", res.Total)
	}
	want := map[string]int{"0-7 days": 1, "1-2 weeks": 1, "1-2 years": 1, "2+ years": 0}
	for _, b := range res.Buckets {
		if n, ok := want[b.Label]; ok && b.Count != n {
			t.Errorf("bucket %s: got %d, want %d", b.Label, b.Count, n)
		}
	}
	if res.MedianAgeDays != 10 {
		t.Errorf("median: got %v, want 10", res.MedianAgeDays)
	}
	if res.Oldest[0].Key != "TH-3" {
		t.Errorf("oldest first: got %s", res.Oldest[0].Key)
	}
	if res.ByType[0] != (Count{Label: "Story", Count: 2}) {
		t.Errorf("by type: %+v", res.ByType)
	}
}

func TestSlow_ThresholdAndBadges(t *testing.T) {
	active := sprint(7, "Sprint 7", "active", daysAgo(7), 14)
	inProgress := func(key string, age int) jira.Issue {
		return jira.Issue{
			Key: key, Status: "In Progress", StatusCategory: "indeterminate", Created: daysAgo(age),
			Sprints: []jira.SprintRef{{ID: 7, Name: "Sprint 7", State: "active"}},
		}
	}
	done := inProgress("TH-5", 90)
	done.StatusCategory = "done"

	src := &fakeSource{
		active: &active,
		issues: []jira.Issue{inProgress("TH-1", 6), inProgress("TH-2", 7), inProgress("TH-3", 14), inProgress("TH-4", 28), done},
	}
	res, err := newTestBuilder(src).Slow(context.Background(), Params{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.SprintDurationDays != 14 {
		t.Errorf("sprint duration: got %d", res.SprintDurationDays)
	}

	tests := []struct {
		key   string
		days  int
		badge string
	}{
		{"TH-4", 28, "danger"},
		{"TH-3", 14, "warning"},
		{"TH-2", 7, ""},
	}
	if len(res.Issues) != len(tests) {
		t.Fatalf("got %d issues, want %d: %+v", len(res.Issues), len(tests), res.Issues)
	}
	for i, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got := res.Issues[i]
			if got.Key != tt.key || got.DaysStuck != tt.days || got.BadgeClass != tt.badge {
				t.Errorf("got %s %dd %q, want %s %dd %q", got.Key, got.DaysStuck, got.BadgeClass, tt.key, tt.days, tt.badge)
			}
			if got.Sprints != 1 || !got.CreatedIn {
				t.Errorf("sprints %d, createdIn %v", got.Sprints, got.CreatedIn)
			}
		})
	}
}

func TestBadgeClass(t *testing.T) {
	tests := []struct {
		days int
		want string
	}{
		{7, ""}, {13, ""}, {14, "warning"}, {27, "warning"}, {28, "danger"},
	}
	for _, tt := range tests {
		if got := BadgeClass(tt.days, 14); got != tt.want {
			t.Errorf("BadgeClass(%d): got %q, want %q", tt.days, got, tt.want)
		}
	}
}

func TestSweat_CellLabels(t *testing.T) {
	a := sprint(1, "Sprint A", "closed", daysAgo(14), 14)
	b := sprint(2, "Sprint B", "closed", daysAgo(28), 14)
	src := &fakeSource{
		closed: []jira.Sprint{a, b},
		reports: map[int]*jira.SprintReport{1: {
			Completed:    []jira.SprintReportIssue{reportLine("TH-1", "Joe", true), reportLine("TH-2", "Joe", true), reportLine("TH-3", "Joe", true), reportLine("TH-5", "Ann", true)},
			NotCompleted: []jira.SprintReportIssue{reportLine("TH-4", "Joe", false), reportLine("TH-6", "", false)},
		}},
		reportErrs: map[int]error{2: errors.New("gone")},
	}

	res, err := newTestBuilder(src).Sweat(context.Background(), Params{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Columns) != 2 || res.Columns[0].Name != "Sprint B" || res.Columns[0].Error == "" {
		t.Fatalf("columns: %+v", res.Columns)
	}
	if len(res.Rows) != 3 {
		t.Fatalf("rows: %+v", res.Rows)
	}
	joe := res.Rows[0]
	if joe.Assignee != "Joe" || joe.Cells[1].Label != "4 (75%)" || joe.Cells[0].Label != "" {
		t.Errorf("joe: %+v", joe)
	}
	if res.Rows[1].Cells[1].Label != "1 (100%)" {
		t.Errorf("ann: %+v", res.Rows[1])
	}
	if res.Rows[2].Assignee != stats.Unassigned || res.Rows[2].Total.Label != "1 (0%)" {
		t.Errorf("unassigned: %+v", res.Rows[2])
	}
}

func TestDone_GroupsByAssignee(t *testing.T) {
	src := &fakeSource{issues: []jira.Issue{
		{Key: "TH-1", StatusCategory: "done", IssueType: "Story", Assignee: user("Joe"), Created: daysAgo(6), ResolutionDate: ptr(daysAgo(2))},
		{Key: "TH-2", StatusCategory: "done", IssueType: "Bug", Created: daysAgo(3), ResolutionDate: ptr(daysAgo(1))},
		{Key: "TH-3", StatusCategory: "done", IssueType: "Bug", Assignee: user("Ann"), Created: daysAgo(30), ResolutionDate: ptr(daysAgo(10))},
		{Key: "TH-4", StatusCategory: "indeterminate", Assignee: user("Ann"), Created: daysAgo(3)},
	}}

	res, err := newTestBuilder(src).Done(context.Background(), Params{Period: stats.PeriodLast7Days})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Total != 2 || len(res.Groups) != 2 {
		t.Fatalf("got %d issues in %d groups", res.Total, len(res.Groups))
	}
	if res.Groups[0].Assignee != "Joe" || res.Groups[1].Assignee != stats.Unassigned {
		t.Errorf("group order: %s, %s", res.Groups[0].Assignee, res.Groups[1].Assignee)
	}
	if res.AvgCycleDays == nil || *res.AvgCycleDays != 3 {
		t.Errorf("avg cycle: %v", res.AvgCycleDays)
	}
	if !strings.Contains(src.queries[0], `project = "TH"`) || !strings.Contains(src.queries[0], "statusCategory = Done") {
		t.Errorf("jql: %s", src.queries[0])
	}
}

func TestDone_IncludesLastMinuteOfWindow(t *testing.T) {
	lastMinute := time.Date(2024, 3, 14, 23, 59, 30, 0, time.UTC)
	tests := []struct {
		name   string
		period string
		bound  string
		issues []jira.Issue
		want   int
	}{
		{
			name:   "yesterday",
			period: stats.PeriodYesterday,
			bound:  `resolved < "2024-03-15 00:00"`,
			issues: []jira.Issue{{Key: "TH-1", StatusCategory: "done", Created: daysAgo(3), ResolutionDate: &lastMinute}},
			want:   1,
		},
		{
			name:   "today",
			period: stats.PeriodToday,
			bound:  `resolved < "2024-03-15 12:01"`,
			issues: []jira.Issue{{Key: "TH-2", StatusCategory: "done", Created: daysAgo(3), ResolutionDate: ptr(now)}},
			want:   1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &fakeSource{issues: tt.issues}
			res, err := newTestBuilder(src).Done(context.Background(), Params{Period: tt.period})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !strings.Contains(src.queries[0], tt.bound) {
				t.Errorf("jql %q does not contain %q", src.queries[0], tt.bound)
			}
			if res.Total != tt.want {
				t.Errorf("total = %d, want %d", res.Total, tt.want)
			}
		})
	}
}

func TestDone_UnknownPeriod(t *testing.T) {
	src := &fakeSource{}
	_, err := newTestBuilder(src).Done(context.Background(), Params{Period: "fortnight"})

	var pe *stats.UnknownPeriodError
	if !errors.As(err, &pe) || pe.Period != "fortnight" {
		t.Fatalf("expected UnknownPeriodError, got %v", err)
	}
	if len(src.queries) != 0 {
		t.Errorf("no search expected, got %v", src.queries)
	}
}

func TestProgress_OnlyIssuesChangedInWindow(t *testing.T) {
	joe := user("Joe")
	src := &fakeSource{
		issues: []jira.Issue{
			{Key: "TH-1", Status: "In Review", Assignee: joe, Priority: "High", IssueType: "Story"},
			{Key: "TH-2", Status: "To Do", Priority: "Low", IssueType: "Bug"},
		},
		changelogs: map[string][]jira.ChangelogEntry{
			"TH-1": {
				{Created: daysAgo(10), Items: []jira.ChangeItem{{Field: "status", FromString: "To Do", ToString: "In Progress"}}},
				{Created: daysAgo(2), Items: []jira.ChangeItem{{Field: "status", FromString: "In Progress", ToString: "In Review"}}},
				{Created: daysAgo(1), Items: []jira.ChangeItem{{Field: "assignee", To: "id-joe"}}},
			},
			"TH-2": {
				{Created: daysAgo(20), Items: []jira.ChangeItem{{Field: "priority", FromString: "High", ToString: "Low"}}},
			},
		},
	}

	res, err := newTestBuilder(src).Progress(context.Background(), Params{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Issues) != 1 || res.Issues[0].Key != "TH-1" {
		t.Fatalf("issues: %+v", res.Issues)
	}
	fields := res.Issues[0].Fields
	if len(fields) != 2 {
		t.Fatalf("fields: %+v", fields)
	}
	if fields[0].Field != "status" || fields[0].Start != "In Progress" || fields[0].End != "In Review" {
		t.Errorf("status: %+v", fields[0])
	}
	if fields[1].Field != "assignee" || fields[1].Changes[0].To != "Joe" {
		t.Errorf("assignee: %+v", fields[1])
	}
	if res.Changes[0] != (Count{Label: "status", Count: 1}) || res.Changes[2].Count != 0 {
		t.Errorf("change counts: %+v", res.Changes)
	}
}

func TestLoad_PivotAndImbalance(t *testing.T) {
	active := sprint(7, "Sprint 7", "active", daysAgo(3), 14)
	issue := func(key string, who *jira.User, statusID, status, category string) jira.Issue {
		return jira.Issue{Key: key, Assignee: who, StatusID: statusID, Status: status, StatusCategory: category}
	}
	joe, ann, bo := user("Joe"), user("Ann"), user("Bo")
	src := &fakeSource{
		active: &active,
		columns: []jira.BoardColumn{
			{Name: "To Do", StatusIDs: []string{"1"}},
			{Name: "In Progress", StatusIDs: []string{"3"}},
			{Name: "Done", StatusIDs: []string{"10001"}},
		},
		issues: []jira.Issue{
			issue("TH-1", joe, "3", "In Progress", "indeterminate"),
			issue("TH-2", joe, "3", "In Progress", "indeterminate"),
			issue("TH-3", joe, "3", "In Progress", "indeterminate"),
			issue("TH-4", joe, "3", "In Progress", "indeterminate"),
			issue("TH-5", ann, "1", "To Do", "new"),
			issue("TH-6", bo, "10001", "Done", "done"),
			issue("TH-7", nil, "99", "Blocked", "indeterminate"),
		},
	}

	res, err := newTestBuilder(src).Load(context.Background(), Params{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantCols := []string{"To Do", "In Progress", "Done", "Blocked"}
	if strings.Join(res.Columns, ",") != strings.Join(wantCols, ",") {
		t.Errorf("columns: %v", res.Columns)
	}
	var order []string
	for _, r := range res.Rows {
		order = append(order, r.Assignee)
	}
	if strings.Join(order, ",") != "Joe,Ann,Bo,Unassigned" {
		t.Errorf("rows: %v", order)
	}
	if res.Rows[0].Cells[1] != 4 || res.Rows[2].Done != 1 || res.Total != 7 {
		t.Errorf("counts: %+v total %d", res.Rows, res.Total)
	}
	if !res.Imbalance.Flagged || res.Imbalance.MaxWho != "Joe" {
		t.Errorf("imbalance: %+v", res.Imbalance)
	}
}

func TestLoad_NoActiveSprint(t *testing.T) {
	res, err := newTestBuilder(&fakeSource{}).Load(context.Background(), Params{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Sprint != nil || len(res.Rows) != 0 {
		t.Errorf("expected empty report, got %+v", res)
	}
}

func TestCreep_FailingSprintIsKept(t *testing.T) {
	active := sprint(10, "Sprint 10", "active", daysAgo(3), 14)
	src := &fakeSource{
		active: &active,
		closed: []jira.Sprint{sprint(9, "Sprint 9", "closed", daysAgo(17), 14)},
		reports: map[int]*jira.SprintReport{10: {
			Completed:    []jira.SprintReportIssue{reportLine("TH-1", "Joe", true), reportLine("TH-2", "Joe", true)},
			NotCompleted: []jira.SprintReportIssue{reportLine("TH-3", "Ann", false)},
			Punted:       []jira.SprintReportIssue{reportLine("TH-4", "Ann", false)},
			AddedKeys:    map[string]bool{"TH-2": true, "TH-4": true},
		}},
		reportErrs: map[int]error{9: errors.New("greenhopper unavailable")},
	}

	res, err := newTestBuilder(src).Creep(context.Background(), Params{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Sprints) != 2 {
		t.Fatalf("sprints: %d", len(res.Sprints))
	}
	cur := res.Sprints[0]
	if cur.Sprint.ID != 10 || cur.Creep.StartedWith != 2 || cur.Creep.EndedWith != 3 || cur.Creep.NetChange != 1 || cur.PctLabel != "50%" {
		t.Errorf("active sprint creep: %+v", cur)
	}
	if len(cur.AddedIn) != 2 {
		t.Errorf("added issues: %+v", cur.AddedIn)
	}
	if failed := res.Sprints[1]; failed.Error == "" || failed.PctLabel != "—" {
		t.Errorf("failed sprint: %+v", failed)
	}
}

func TestRetro_ChecksAndMarkdown(t *testing.T) {
	s5 := sprint(5, "Sprint 5", "closed", daysAgo(14), 14)
	src := &fakeSource{
		closed: []jira.Sprint{s5},
		reports: map[int]*jira.SprintReport{5: {
			Completed:    []jira.SprintReportIssue{reportLine("TH-1", "Joe", true), reportLine("TH-2", "Joe", true)},
			NotCompleted: []jira.SprintReportIssue{reportLine("TH-3", "Joe", false), reportLine("TH-4", "Ann", false)},
			AddedKeys:    map[string]bool{"TH-4": true},
		}},
		issues: []jira.Issue{
			{Key: "TH-3", Summary: "Flaky export", Status: "In Progress", Assignee: user("Joe"),
				Sprints: []jira.SprintRef{{ID: 3, State: "closed"}, {ID: 4, State: "closed"}, {ID: 5, State: "closed"}}},
			{Key: "TH-4", Status: "To Do", Sprints: []jira.SprintRef{{ID: 5, State: "closed"}}},
		},
	}

	res, err := newTestBuilder(src).Retro(context.Background(), Params{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Sprint.ID != 5 || res.Committed != 3 || res.CompletionPct != 50 {
		t.Errorf("summary: sprint %d committed %d completion %d", res.Sprint.ID, res.Committed, res.CompletionPct)
	}
	if len(res.CarryOver) != 1 || res.CarryOver[0].Key != "TH-3" || res.CarryOver[0].Sprints != 3 {
		t.Errorf("carry-over: %+v", res.CarryOver)
	}

	triggered := map[string]bool{}
	for _, c := range res.Checks {
		triggered[c.Name] = c.Triggered
	}
	want := map[string]bool{"imbalance": false, "completion": true, "creep": true, "carry-over": true}
	for name, w := range want {
		if triggered[name] != w {
			t.Errorf("check %s: got %v, want %v", name, triggered[name], w)
		}
	}

	md := res.Markdown()
	for _, frag := range []string{"# Retro: Sprint 5", "| Joe | 3 | 2 | 67% |", "[TH-3](https://jira.test/browse/TH-3)"} {
		if !strings.Contains(md, frag) {
			t.Errorf("markdown missing %q:\n%s", frag, md)
		}
	}
}

func TestRetro_UnknownSprint(t *testing.T) {
	_, err := newTestBuilder(&fakeSource{}).Retro(context.Background(), Params{SprintID: 42})
	if !errors.Is(err, ErrNoSprint) {
		t.Fatalf("expected ErrNoSprint, got %v", err)
	}
}

type fakeGitHub struct{}

func (fakeGitHub) ListOrgRepos(ctx context.Context) ([]github.Repo, error) {
	return []github.Repo{{FullName: "acme/api"}}, nil
}

func (fakeGitHub) ListOpenPulls(ctx context.Context, fullName string) ([]github.Pull, error) {
	return []github.Pull{{Number: 7, Title: "TH-1 fix login", CreatedAt: daysAgo(3)}}, nil
}

func (fakeGitHub) ListReviews(ctx context.Context, fullName string, number int) ([]github.Review, error) {
	return nil, nil
}

func (fakeGitHub) ListRequestedReviewers(ctx context.Context, fullName string, number int) ([]string, error) {
	return []string{"ann"}, nil
}

func TestPullRequests(t *testing.T) {
	t.Run("NotConfigured", func(t *testing.T) {
		res, err := newTestBuilder(&fakeSource{}).PullRequests(context.Background(), Params{})
		if err != nil {
			t.Fatal(err)
		}
		if res.Configured || res.SetupMessage != PRSetupMessage {
			t.Errorf("got %+v", res)
		}
	})

	t.Run("LinksTickets", func(t *testing.T) {
		src := &fakeSource{issues: []jira.Issue{{Key: "TH-1", Status: "In Review"}}}
		b := New(src, fakeGitHub{}, identity.NewCache(nil), Options{})
		b.Now = func() time.Time { return now }

		res, err := b.PullRequests(context.Background(), Params{})
		if err != nil {
			t.Fatal(err)
		}
		if len(res.Pulls) != 1 {
			t.Fatalf("pulls: %+v", res.Pulls)
		}
		pr := res.Pulls[0]
		if pr.AgeDays != 3 || len(pr.Linked) != 1 || pr.Linked[0].Status != "In Review" || !pr.Linked[0].Found {
			t.Errorf("row: %+v", pr)
		}
		if len(res.Waiting) != 1 || res.Waiting[0] != (Count{Label: "ann", Count: 1}) {
			t.Errorf("waiting: %+v", res.Waiting)
		}
	})
}

func TestRun(t *testing.T) {
	b := newTestBuilder(&fakeSource{})
	var ue *UnknownReportError
	if _, err := b.Run(context.Background(), "nope", Params{}); !errors.As(err, &ue) {
		t.Errorf("expected UnknownReportError, got %v", err)
	}

	seen := map[string]bool{}
	for _, r := range Catalog {
		if seen[r.Name] {
			t.Errorf("duplicate report %s", r.Name)
		}
		seen[r.Name] = true
		if s, err := r.Schema(); err != nil || s.Type != "object" {
			t.Errorf("%s schema: %v", r.Name, err)
		}
	}
	if _, err := b.Run(context.Background(), "backlog", Params{}); err != nil {
		t.Errorf("backlog via Run: %v", err)
	}
}
