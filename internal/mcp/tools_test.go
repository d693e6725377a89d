package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"team-health/internal/identity"
	"team-health/internal/jira"
	"team-health/internal/reports"
	"team-health/internal/stats"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

var now = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

type stubSource struct {
	issues []jira.Issue
	closed []jira.Sprint
	report *jira.SprintReport
}

func (s *stubSource) Issues(ctx context.Context, jql string) ([]jira.Issue, error) {
	return s.issues, nil
}

func (s *stubSource) BulkFetch(ctx context.Context, keys []string) ([]jira.Issue, error) {
	return nil, nil
}

func (s *stubSource) ChangelogsFor(ctx context.Context, keys []string) (map[string][]jira.ChangelogEntry, error) {
	return map[string][]jira.ChangelogEntry{}, nil
}

func (s *stubSource) ActiveSprint(ctx context.Context) (*jira.Sprint, error) { return nil, nil }

func (s *stubSource) RecentClosedSprints(ctx context.Context, n int) ([]jira.Sprint, error) {
	return s.closed, nil
}

func (s *stubSource) Sprints(ctx context.Context, states ...string) ([]jira.Sprint, error) {
	return s.closed, nil
}

func (s *stubSource) BoardColumns(ctx context.Context) ([]jira.BoardColumn, error) { return nil, nil }

func (s *stubSource) SprintReport(ctx context.Context, sprintID int) (*jira.SprintReport, error) {
	return s.report, nil
}

func (s *stubSource) SprintFieldID(ctx context.Context) string { return "customfield_10020" }

func (s *stubSource) BrowseURL(key string) string { return "https://jira.test/browse/" + key }

func (s *stubSource) ProjectKey() string { return "" }

func connect(t *testing.T, src *stubSource) *mcpsdk.ClientSession {
	t.Helper()
	ctx := context.Background()

	b := reports.New(src, nil, identity.NewCache(nil), reports.Options{})
	b.Now = func() time.Time { return now }
	server := NewServer(b, "test")

	clientTransport, serverTransport := mcpsdk.NewInMemoryTransports()
	if _, err := server.Connect(ctx, serverTransport, nil); err != nil {
		t.Fatal(err)
	}
	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "test-client", Version: "test"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { session.Close() })
	return session
}

func call(t *testing.T, session *mcpsdk.ClientSession, name string, args map[string]any) *mcpsdk.CallToolResult {
	t.Helper()
	res, err := session.CallTool(context.Background(), &mcpsdk.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	return res
}

func text(t *testing.T, res *mcpsdk.CallToolResult, i int) string {
	t.Helper()
	if len(res.Content) <= i {
		t.Fatalf("content has %d parts, want more than %d", len(res.Content), i)
	}
	tc, ok := res.Content[i].(*mcpsdk.TextContent)
	if !ok {
		t.Fatalf("content[%d] is %T", i, res.Content[i])
	}
	return tc.Text
}

func TestListTools(t *testing.T) {
	session := connect(t, &stubSource{})
	res, err := session.ListTools(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	got := make(map[string]bool, len(res.Tools))
	for _, tool := range res.Tools {
		got[tool.Name] = true
	}
	for _, rep := range reports.Catalog {
		if !got[toolName(rep.Name)] {
			t.Errorf("missing tool %s", toolName(rep.Name))
		}
	}
	if !got["describe_report"] {
		t.Error("missing describe_report")
	}
}

func TestReportTool(t *testing.T) {
	session := connect(t, &stubSource{issues: []jira.Issue{
		{Key: "TH-1", Summary: "Old", StatusCategory: "new", Created: now.AddDate(0, 0, -3)},
		{Key: "TH-2", Summary: "Older", StatusCategory: "new", Created: now.AddDate(0, 0, -10)},
	}})

	res := call(t, session, toolName("backlog"), map[string]any{})
	if res.IsError {
		t.Fatalf("tool error: %s", text(t, res, 0))
	}
	var got reports.BacklogReport
	if err := json.Unmarshal([]byte(text(t, res, 0)), &got); err != nil {
		t.Fatal(err)
	}
	if got.Total != 2 {
		t.Errorf("total = %d, want 2", got.Total)
	}
	if len(res.Content) != 2 || !strings.Contains(text(t, res, 1), "TH-2") {
		t.Error("backlog should carry its Markdown rendering")
	}
}

func TestReportToolErrors(t *testing.T) {
	session := connect(t, &stubSource{})

	tests := []struct {
		name string
		tool string
		args map[string]any
		want string
	}{
		{"unknown period", toolName("done"), map[string]any{"period": "fortnight"}, "fortnight"},
		{"no sprint", toolName("retro"), map[string]any{}, "sprint"},
		{"unknown report", "describe_report", map[string]any{"report": "nope"}, "nope"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := call(t, session, tt.tool, tt.args)
			if !res.IsError {
				t.Fatal("expected a tool error")
			}
			if !strings.Contains(text(t, res, 0), tt.want) {
				t.Errorf("error %q does not mention %q", text(t, res, 0), tt.want)
			}
		})
	}
}

func TestRetroToolIncludesMarkdown(t *testing.T) {
	end := now.AddDate(0, 0, -1)
	start := end.AddDate(0, 0, -14)
	session := connect(t, &stubSource{
		closed: []jira.Sprint{{ID: 3, Name: "Sprint 3", State: "closed", Start: &start, End: &end, Complete: &end}},
		report: &jira.SprintReport{
			SprintID:  3,
			Completed: []jira.SprintReportIssue{{Key: "TH-1", AssigneeID: "id-ann", AssigneeName: "Ann", Done: true}},
			AddedKeys: map[string]bool{},
		},
	})

	res := call(t, session, toolName("retro"), map[string]any{"sprintId": 3})
	if res.IsError {
		t.Fatalf("tool error: %s", text(t, res, 0))
	}
	if !strings.HasPrefix(text(t, res, 1), "# Retro: Sprint 3") {
		t.Errorf("markdown = %q", text(t, res, 1))
	}
}

func TestDescribeReport(t *testing.T) {
	session := connect(t, &stubSource{})
	res := call(t, session, "describe_report", map[string]any{"report": "slow"})
	if res.IsError {
		t.Fatalf("tool error: %s", text(t, res, 0))
	}
	var schema map[string]any
	if err := json.Unmarshal([]byte(text(t, res, 0)), &schema); err != nil {
		t.Fatal(err)
	}
	props, _ := schema["properties"].(map[string]any)
	if _, ok := props["issues"]; !ok {
		t.Errorf("slow schema has no issues property: %v", schema)
	}
}

func TestToolDescriptionNamesDefaultPeriod(t *testing.T) {
	for _, name := range []string{"done", "progress"} {
		rep, ok := reports.Lookup(name)
		if !ok {
			t.Fatalf("no %s report", name)
		}
		desc := toolDescription(rep)
		if !strings.Contains(desc, "defaults to "+stats.DefaultPeriod) {
			t.Errorf("%s description %q does not name the default period", name, desc)
		}
		if strings.Contains(desc, "active sprint") {
			t.Errorf("%s description still claims the active sprint default", name)
		}
	}
}
