package jira

import (
	"encoding/json"
	"strings"
	"time"
)

// boardSearchResponse is the offset-paged container returned by the Agile board issue search.
type boardSearchResponse struct {
	StartAt    int        `json:"startAt"`
	MaxResults int        `json:"maxResults"`
	Total      int        `json:"total"`
	Issues     []IssueDTO `json:"issues"`
}

// jqlSearchResponse is the token-paged container returned by /rest/api/3/search/jql.
type jqlSearchResponse struct {
	Issues        []IssueDTO `json:"issues"`
	NextPageToken string     `json:"nextPageToken"`
	IsLast        bool       `json:"isLast"`
}

type bulkFetchRequest struct {
	IssueIdsOrKeys []string `json:"issueIdsOrKeys"`
	Fields         []string `json:"fields"`
}

type bulkFetchResponse struct {
	Issues      []IssueDTO `json:"issues"`
	IssueErrors []struct {
		IssueIdsOrKeys []string `json:"issueIdsOrKeys"`
		ErrorMessage   string   `json:"errorMessage"`
	} `json:"issueErrors"`
}

// IssueDTO represents a single issue in a Jira search or bulk fetch response.
type IssueDTO struct {
	ID     string    `json:"id"`
	Key    string    `json:"key"`
	Fields FieldsDTO `json:"fields"`
}

// FieldsDTO contains the system fields we read plus every custom field as raw JSON,
// since the sprint field id differs between Jira sites.
type FieldsDTO struct {
	Summary   string `json:"summary"`
	IssueType struct {
		Name    string `json:"name"`
		Subtask bool   `json:"subtask"`
	} `json:"issuetype"`
	Status         StatusDTO                  `json:"status"`
	Priority       *NamedDTO                  `json:"priority"`
	Resolution     *NamedDTO                  `json:"resolution"`
	ResolutionDate string                     `json:"resolutiondate"`
	Created        string                     `json:"created"`
	Updated        string                     `json:"updated"`
	Assignee       *UserDTO                   `json:"assignee"`
	Reporter       *UserDTO                   `json:"reporter"`
	Labels         []string                   `json:"labels"`
	Custom         map[string]json.RawMessage `json:"-"`
}

// UnmarshalJSON decodes the known fields and keeps customfield_* values raw.
func (f *FieldsDTO) UnmarshalJSON(b []byte) error {
	type plain FieldsDTO
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*f = FieldsDTO(p)
	f.Custom = make(map[string]json.RawMessage)
	for k, v := range raw {
		if strings.HasPrefix(k, "customfield_") {
			f.Custom[k] = v
		}
	}
	return nil
}

// StatusDTO is an issue status with its category.
type StatusDTO struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	StatusCategory struct {
		Key string `json:"key"`
	} `json:"statusCategory"`
}

// NamedDTO covers the many Jira objects that only matter by name (priority, resolution).
type NamedDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// UserDTO is a Jira user as embedded in issues, changelogs and user lookups.
type UserDTO struct {
	AccountID   string            `json:"accountId"`
	DisplayName string            `json:"displayName"`
	Key         string            `json:"key,omitempty"`
	Name        string            `json:"name,omitempty"`
	Active      bool              `json:"active"`
	AvatarURLs  map[string]string `json:"avatarUrls,omitempty"`
}

type userBulkResponse struct {
	Values []UserDTO `json:"values"`
}

// changelogPage is a single page of /rest/api/3/issue/{key}/changelog.
type changelogPage struct {
	StartAt    int          `json:"startAt"`
	MaxResults int          `json:"maxResults"`
	Total      *int         `json:"total"`
	IsLast     bool         `json:"isLast"`
	Values     []HistoryDTO `json:"values"`
}

// HistoryDTO is a single entry in the changelog.
type HistoryDTO struct {
	ID      string    `json:"id"`
	Author  *UserDTO  `json:"author"`
	Created string    `json:"created"`
	Items   []ItemDTO `json:"items"`
}

// ItemDTO is a single field change within a history entry.
type ItemDTO struct {
	Field      string `json:"field"`
	FieldID    string `json:"fieldId"`
	From       string `json:"from"`
	FromString string `json:"fromString"`
	To         string `json:"to"`
	ToString   string `json:"toString"`
}

type sprintPage struct {
	StartAt    int         `json:"startAt"`
	MaxResults int         `json:"maxResults"`
	Total      *int        `json:"total"`
	IsLast     bool        `json:"isLast"`
	Values     []SprintDTO `json:"values"`
}

// SprintDTO is a sprint as returned by the Agile API.
type SprintDTO struct {
	ID           int    `json:"id"`
	State        string `json:"state"`
	Name         string `json:"name"`
	StartDate    string `json:"startDate"`
	EndDate      string `json:"endDate"`
	CompleteDate string `json:"completeDate"`
	Goal         string `json:"goal"`
}

type boardConfigDTO struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	ColumnConfig struct {
		Columns []struct {
			Name     string `json:"name"`
			Statuses []struct {
				ID string `json:"id"`
			} `json:"statuses"`
		} `json:"columns"`
	} `json:"columnConfig"`
}

type fieldDTO struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Custom bool   `json:"custom"`
	Schema struct {
		Type   string `json:"type"`
		Custom string `json:"custom"`
	} `json:"schema"`
}

// sprintReportDTO is the GreenHopper sprint report payload.
type sprintReportDTO struct {
	Contents struct {
		CompletedIssues                   []sprintReportIssueDTO `json:"completedIssues"`
		IssuesNotCompletedInCurrentSprint []sprintReportIssueDTO `json:"issuesNotCompletedInCurrentSprint"`
		PuntedIssues                      []sprintReportIssueDTO `json:"puntedIssues"`
		IssueKeysAddedDuringSprint        map[string]bool        `json:"issueKeysAddedDuringSprint"`
	} `json:"contents"`
	Sprint struct {
		ID    int    `json:"id"`
		Name  string `json:"name"`
		State string `json:"state"`
	} `json:"sprint"`
}

type sprintReportIssueDTO struct {
	Key          string `json:"key"`
	Summary      string `json:"summary"`
	TypeName     string `json:"typeName"`
	StatusName   string `json:"statusName"`
	Assignee     string `json:"assignee"`
	AssigneeName string `json:"assigneeName"`
	Done         bool   `json:"done"`
}

var timeLayouts = []string{
	"2006-01-02T15:04:05.000-0700",
	"2006-01-02T15:04:05.000Z07:00",
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02",
}

// ParseTime parses the timestamp shapes Jira uses across its REST, Agile and changelog APIs.
func ParseTime(s string) (time.Time, error) {
	var firstErr error
	for _, layout := range timeLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}

func parseTimePtr(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := ParseTime(s)
	if err != nil {
		return nil
	}
	return &t
}
