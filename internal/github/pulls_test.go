package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"team-health/internal/retry"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func review(login, state string, minutes int) Review {
	return Review{User: ghUser{Login: login}, State: state, SubmittedAt: t0.Add(time.Duration(minutes) * time.Minute)}
}

func TestReviewerStates(t *testing.T) {
	reviews := []Review{
		review("bob", "APPROVED", 30),
		review("ann", "CHANGES_REQUESTED", 10),
		review("ann", "APPROVED", 20),
		review("bob", "COMMENTED", 40),
		review("author", "COMMENTED", 5),
		review("cat", "COMMENTED", 1),
	}

	got := ReviewerStates(reviews, []string{"dan", "cat"}, "author")
	want := []ReviewerState{
		{"cat", StateRequested},
		{"ann", StateApproved},
		{"bob", StateApproved},
		{"dan", StateRequested},
	}
	if !slices.Equal(got, want) {
		t.Errorf("got %+v\nwant %+v", got, want)
	}
}

func TestPullRequest_Approved(t *testing.T) {
	tests := []struct {
		name      string
		reviewers []ReviewerState
		want      bool
	}{
		{"None", nil, false},
		{"OneApproval", []ReviewerState{{"a", StateApproved}, {"b", StateRequested}}, true},
		{"ChangesRequested", []ReviewerState{{"a", StateApproved}, {"b", StateChangesRequested}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := (PullRequest{Reviewers: tt.reviewers}).Approved(); got != tt.want {
				t.Errorf("got %v", got)
			}
		})
	}
}

func TestTicketKeys(t *testing.T) {
	tests := []struct {
		name    string
		project string
		texts   []string
		want    []string
	}{
		{"TitleAndBranch", "", []string{"TH-12: fix login", "feature/th-12-and-th-13"}, []string{"TH-12", "TH-13"}},
		{"ProjectFilter", "th", []string{"OPS-1 and TH-7"}, []string{"TH-7"}},
		{"None", "TH", []string{"bump deps"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TicketKeys(tt.project, tt.texts...); !slices.Equal(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

type fakeAPI struct {
	repos       []Repo
	pulls       map[string][]Pull
	failPulls   map[string]bool
	failReviews bool

	mu       sync.Mutex
	inFlight int32
	peak     int32
}

func (f *fakeAPI) ListOrgRepos(ctx context.Context) ([]Repo, error) { return f.repos, nil }

func (f *fakeAPI) ListOpenPulls(ctx context.Context, fullName string) ([]Pull, error) {
	n := atomic.AddInt32(&f.inFlight, 1)
	defer atomic.AddInt32(&f.inFlight, -1)
	f.mu.Lock()
	if n > f.peak {
		f.peak = n
	}
	f.mu.Unlock()
	time.Sleep(2 * time.Millisecond)

	if f.failPulls[fullName] {
		return nil, errors.New("boom")
	}
	return f.pulls[fullName], nil
}

func (f *fakeAPI) ListReviews(ctx context.Context, fullName string, number int) ([]Review, error) {
	if f.failReviews {
		return nil, errors.New("reviews down")
	}
	return []Review{review("rev", "APPROVED", 1)}, nil
}

func (f *fakeAPI) ListRequestedReviewers(ctx context.Context, fullName string, number int) ([]string, error) {
	return nil, nil
}

func TestCollectOpenPulls_LimitsConcurrencyAndFailsSoft(t *testing.T) {
	api := &fakeAPI{pulls: map[string][]Pull{}, failPulls: map[string]bool{"acme/r3": true}}
	for i := range 25 {
		name := fmt.Sprintf("acme/r%d", i)
		api.repos = append(api.repos, Repo{FullName: name})
		api.pulls[name] = []Pull{{Number: i, Title: fmt.Sprintf("TH-%d work", i), CreatedAt: t0.Add(time.Duration(-i) * time.Hour)}}
	}

	got, err := CollectOpenPulls(context.Background(), api, "TH")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 24 {
		t.Errorf("pulls: got %d, want 24 (one repo failed)", len(got))
	}
	if api.peak > repoConcurrency {
		t.Errorf("peak concurrency %d exceeds %d", api.peak, repoConcurrency)
	}
	if got[0].Number != 24 {
		t.Errorf("oldest first: got #%d", got[0].Number)
	}
	if !got[0].Approved() || len(got[0].Tickets) != 1 {
		t.Errorf("first PR: %+v", got[0])
	}
}

func TestCollectOpenPulls_ReviewFailureKeepsPR(t *testing.T) {
	api := &fakeAPI{
		repos:       []Repo{{FullName: "acme/api"}},
		pulls:       map[string][]Pull{"acme/api": {{Number: 1, Title: "x"}}},
		failReviews: true,
	}
	got, err := CollectOpenPulls(context.Background(), api, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || !got[0].ReviewsUnavailable {
		t.Errorf("got %+v", got)
	}
}

func TestClient_ListOrgReposSkipsArchivedAndPages(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("auth header: %q", r.Header.Get("Authorization"))
		}
		if r.URL.Query().Get("page") == "1" {
			w.Write([]byte("["))
			for i := range perPage {
				if i > 0 {
					w.Write([]byte(","))
				}
				fmt.Fprintf(w, `{"name":"r%d","full_name":"acme/r%d","archived":%v}`, i, i, i%2 == 0)
			}
			w.Write([]byte("]"))
			return
		}
		w.Write([]byte(`[{"name":"last","full_name":"acme/last"}]`))
	}))
	defer srv.Close()

	c := NewClient(Config{Token: "tok", Org: "acme", BaseURL: srv.URL, Retry: &retry.Policy{}, HTTPClient: srv.Client()})
	repos, err := c.ListOrgRepos(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repos) != perPage/2+1 || calls != 2 {
		t.Errorf("got %d repos in %d calls", len(repos), calls)
	}
}

func TestConfig_Enabled(t *testing.T) {
	if (Config{Token: "x"}).Enabled() {
		t.Error("org missing")
	}
	if !(Config{Token: "x", Org: "acme"}).Enabled() {
		t.Error("should be enabled")
	}
}
