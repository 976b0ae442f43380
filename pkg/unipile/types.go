package unipile

import (
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/outreach-cli/internal/model"
)

// userProfile is the wire shape of GET /users/{identifier}.
type userProfile struct {
	ProviderID       string `json:"provider_id"`
	PublicIdentifier string `json:"public_identifier"`
	FirstName        string `json:"first_name"`
	LastName         string `json:"last_name"`
	Headline         string `json:"headline"`
	Summary          string `json:"summary"`
	Location         string `json:"location"`
	Industry         string `json:"industry"`
	ConnectionsCount *int   `json:"connections_count"`
	FollowerCount    *int   `json:"follower_count"`

	WorkExperience []workExperience `json:"work_experience"`
	Skills         []skill          `json:"skills"`
}

type workExperience struct {
	Position string `json:"position"`
	Company  string `json:"company"`
	Start    string `json:"start"`
	End      string `json:"end"`
	Current  bool   `json:"current"`
}

type skill struct {
	Name string `json:"name"`
}

func (u userProfile) toResult() *model.EnrichmentResult {
	r := &model.EnrichmentResult{
		LinkedInID:       u.ProviderID,
		FirstName:        normalizeName(u.FirstName),
		LastName:         normalizeName(u.LastName),
		Headline:         u.Headline,
		Summary:          u.Summary,
		Location:         u.Location,
		Industry:         u.Industry,
		ConnectionsCount: u.ConnectionsCount,
		FollowerCount:    u.FollowerCount,
	}
	if u.PublicIdentifier != "" {
		r.LinkedInURL = "https://www.linkedin.com/in/" + u.PublicIdentifier
	}

	for _, exp := range u.WorkExperience {
		dates := exp.Start
		if exp.End != "" {
			dates = exp.Start + " - " + exp.End
		} else if exp.Current {
			dates = exp.Start + " - present"
		}
		r.Experience = append(r.Experience, model.Experience{
			Title:   exp.Position,
			Company: exp.Company,
			Dates:   strings.TrimSpace(strings.TrimPrefix(dates, " - ")),
		})
		// Current role doubles as the prospect's company and position.
		if r.Company == "" && (exp.Current || exp.End == "") {
			r.Company = exp.Company
			r.Position = exp.Position
		}
	}

	for _, s := range u.Skills {
		if s.Name != "" {
			r.Skills = append(r.Skills, s.Name)
		}
	}
	return r
}

// searchRequest is the wire shape of POST /linkedin/search.
type searchRequest struct {
	API      string `json:"api"`
	Category string `json:"category"`
	Keywords string `json:"keywords"`
}

type searchResponse struct {
	Items []searchItem `json:"items"`
}

type searchItem struct {
	ID               string `json:"id"`
	PublicIdentifier string `json:"public_identifier"`
	Name             string `json:"name"`
	Headline         string `json:"headline"`
	Location         string `json:"location"`
	Industry         string `json:"industry"`
}

func (it searchItem) toResult() *model.EnrichmentResult {
	first, last := splitName(it.Name)
	r := &model.EnrichmentResult{
		LinkedInID: it.ID,
		FirstName:  first,
		LastName:   last,
		Headline:   it.Headline,
		Location:   it.Location,
		Industry:   it.Industry,
	}
	if it.PublicIdentifier != "" {
		r.LinkedInURL = "https://www.linkedin.com/in/" + it.PublicIdentifier
	}
	return r
}

// chatMessageRequest posts into an existing chat.
type chatMessageRequest struct {
	Text string `json:"text"`
}

// newChatRequest starts a chat with an initial message.
type newChatRequest struct {
	AccountID   string   `json:"account_id"`
	AttendeeIDs []string `json:"attendees_ids"`
	Text        string   `json:"text"`
}

type sendResponse struct {
	MessageID string `json:"message_id"`
	ChatID    string `json:"chat_id"`
}

var nameCaser = cases.Title(language.Und, cases.NoLower)

// normalizeName title-cases names the provider returns in all lower or all
// upper case, leaving mixed-case names (McNamara, van der Berg) untouched.
func normalizeName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	if s == strings.ToLower(s) || s == strings.ToUpper(s) {
		return nameCaser.String(strings.ToLower(s))
	}
	return s
}

func splitName(full string) (first, last string) {
	parts := strings.Fields(strings.TrimSpace(full))
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return normalizeName(parts[0]), ""
	default:
		return normalizeName(parts[0]), normalizeName(strings.Join(parts[1:], " "))
	}
}

// publicIdentifier extracts the profile slug from a linkedin.com/in/ URL.
func publicIdentifier(profileURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(profileURL))
	if err != nil {
		return "", eris.Wrapf(err, "unipile: parse profile url %q", profileURL)
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i, seg := range segments {
		if seg == "in" && i+1 < len(segments) && segments[i+1] != "" {
			return segments[i+1], nil
		}
	}
	return "", eris.Errorf("unipile: no profile identifier in url %q", profileURL)
}
