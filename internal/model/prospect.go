package model

import "time"

// ProspectStatus represents where a prospect sits in the outreach lifecycle.
type ProspectStatus string

const (
	ProspectStatusPending   ProspectStatus = "PENDING"
	ProspectStatusQualified ProspectStatus = "QUALIFIED"
	ProspectStatusContacted ProspectStatus = "CONTACTED"
	ProspectStatusResponded ProspectStatus = "RESPONDED"
	ProspectStatusConverted ProspectStatus = "CONVERTED"
	ProspectStatusRejected  ProspectStatus = "REJECTED"
)

// Experience is a single entry in a prospect's work history.
type Experience struct {
	Title   string `json:"title"`
	Company string `json:"company"`
	Dates   string `json:"dates,omitempty"`
}

// Prospect represents one outreach target tracked through enrichment,
// scoring, and contact status. Optional fields use pointers or zero values;
// an empty string means the field was never observed, not "observed empty".
type Prospect struct {
	ID         string `json:"id"`
	CampaignID string `json:"campaign_id"`

	LinkedInID  string `json:"linkedin_id,omitempty"`
	LinkedInURL string `json:"linkedin_url,omitempty"`

	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email,omitempty"`

	Headline string `json:"headline,omitempty"`
	Summary  string `json:"summary,omitempty"`
	Company  string `json:"company,omitempty"`
	Position string `json:"position,omitempty"`
	Location string `json:"location,omitempty"`
	Industry string `json:"industry,omitempty"`

	Experience []Experience `json:"experience,omitempty"`
	Skills     []string     `json:"skills,omitempty"`

	ConnectionsCount *int `json:"connections_count,omitempty"`
	FollowerCount    *int `json:"follower_count,omitempty"`

	Score               float64        `json:"score"`
	Status              ProspectStatus `json:"status"`
	PersonalizedMessage *string        `json:"personalized_message,omitempty"`

	// ProfileFetchedAt is nil until the first successful enrichment.
	ProfileFetchedAt *time.Time `json:"profile_fetched_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FullName returns the prospect's display name.
func (p Prospect) FullName() string {
	switch {
	case p.FirstName != "" && p.LastName != "":
		return p.FirstName + " " + p.LastName
	case p.FirstName != "":
		return p.FirstName
	default:
		return p.LastName
	}
}

// EnrichmentResult is the normalized partial profile returned by the
// profile provider. It lives only for the duration of one enrichment call;
// the orchestrator merges it into the Prospect.
type EnrichmentResult struct {
	LinkedInID  string `json:"linkedin_id,omitempty"`
	LinkedInURL string `json:"linkedin_url,omitempty"`

	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`

	Headline string `json:"headline,omitempty"`
	Summary  string `json:"summary,omitempty"`
	Company  string `json:"company,omitempty"`
	Position string `json:"position,omitempty"`
	Location string `json:"location,omitempty"`
	Industry string `json:"industry,omitempty"`

	Experience []Experience `json:"experience,omitempty"`
	Skills     []string     `json:"skills,omitempty"`

	ConnectionsCount *int `json:"connections_count,omitempty"`
	FollowerCount    *int `json:"follower_count,omitempty"`
}

// Empty reports whether the provider found nothing usable. A result counts
// as found once it carries an external id or a headline.
func (r EnrichmentResult) Empty() bool {
	return r.LinkedInID == "" && r.Headline == ""
}

// ProspectUpdate carries the fields the orchestrator writes back after one
// pass. Nil pointer fields are left untouched by Apply.
type ProspectUpdate struct {
	LinkedInID  *string `json:"linkedin_id,omitempty"`
	LinkedInURL *string `json:"linkedin_url,omitempty"`

	Headline *string `json:"headline,omitempty"`
	Summary  *string `json:"summary,omitempty"`
	Company  *string `json:"company,omitempty"`
	Position *string `json:"position,omitempty"`
	Location *string `json:"location,omitempty"`
	Industry *string `json:"industry,omitempty"`

	Experience []Experience `json:"experience,omitempty"`
	Skills     []string     `json:"skills,omitempty"`

	ConnectionsCount *int `json:"connections_count,omitempty"`
	FollowerCount    *int `json:"follower_count,omitempty"`

	Score               *float64        `json:"score,omitempty"`
	Status              *ProspectStatus `json:"status,omitempty"`
	PersonalizedMessage *string         `json:"personalized_message,omitempty"`
	ProfileFetchedAt    *time.Time      `json:"profile_fetched_at,omitempty"`
}

// Apply merges an update into the prospect. Nil fields leave the current
// value in place; slices replace wholesale when set.
func (p *Prospect) Apply(u ProspectUpdate) {
	setString(&p.LinkedInID, u.LinkedInID)
	setString(&p.LinkedInURL, u.LinkedInURL)
	setString(&p.Headline, u.Headline)
	setString(&p.Summary, u.Summary)
	setString(&p.Company, u.Company)
	setString(&p.Position, u.Position)
	setString(&p.Location, u.Location)
	setString(&p.Industry, u.Industry)

	if u.Experience != nil {
		p.Experience = u.Experience
	}
	if u.Skills != nil {
		p.Skills = u.Skills
	}
	if u.ConnectionsCount != nil {
		p.ConnectionsCount = u.ConnectionsCount
	}
	if u.FollowerCount != nil {
		p.FollowerCount = u.FollowerCount
	}
	if u.Score != nil {
		p.Score = *u.Score
	}
	if u.Status != nil {
		p.Status = *u.Status
	}
	if u.PersonalizedMessage != nil {
		p.PersonalizedMessage = u.PersonalizedMessage
	}
	if u.ProfileFetchedAt != nil {
		p.ProfileFetchedAt = u.ProfileFetchedAt
	}
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

// Ptr returns a pointer to v. Convenience for building updates.
func Ptr[T any](v T) *T { return &v }
