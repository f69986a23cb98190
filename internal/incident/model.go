package incident

import (
	"encoding/json"
	"strings"
)

type Urgency string

const (
	UrgencyCritical Urgency = "critical"
	UrgencyHigh     Urgency = "high"
	UrgencyMedium   Urgency = "medium"
	UrgencyLow      Urgency = "low"

	DefaultUrgency = UrgencyMedium
)

type Priority string

const (
	PriorityP1 Priority = "P1"
	PriorityP2 Priority = "P2"
	PriorityP3 Priority = "P3"
	PriorityP4 Priority = "P4"
)

var urgencyPriorities = map[Urgency]Priority{
	UrgencyCritical: PriorityP1,
	UrgencyHigh:     PriorityP2,
	UrgencyMedium:   PriorityP3,
	UrgencyLow:      PriorityP4,
}

// PriorityForUrgency maps an urgency to its OpsGenie priority. Unknown values map to P3.
func PriorityForUrgency(urgency string) Priority {
	if p, ok := urgencyPriorities[Urgency(strings.ToLower(strings.TrimSpace(urgency)))]; ok {
		return p
	}
	return PriorityP3
}

func (p Priority) Valid() bool {
	switch p {
	case PriorityP1, PriorityP2, PriorityP3, PriorityP4:
		return true
	default:
		return false
	}
}

// ChannelContext is carried through the modal as private metadata.
type ChannelContext struct {
	ChannelID   string `json:"channelId"`
	ChannelName string `json:"channelName"`
	TeamDomain  string `json:"teamDomain"`
}

func (c ChannelContext) Encode() string {
	b, err := json.Marshal(c)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// DecodeChannelContext never fails; empty or malformed metadata yields the zero value.
func DecodeChannelContext(metadata string) ChannelContext {
	var c ChannelContext
	if strings.TrimSpace(metadata) == "" {
		return c
	}
	if err := json.Unmarshal([]byte(metadata), &c); err != nil {
		return ChannelContext{}
	}
	return c
}

type Reporter struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
}

type Team struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Request is what the user submitted through the modal.
type Request struct {
	ReporterID   string `validate:"required"`
	ReporterName string
	TeamID       string
	TeamDomain   string
	Channel      ChannelContext

	Title       string `validate:"required"`
	Description string
	Urgency     Urgency
}

type Alert struct {
	Title       string            `json:"title"`
	Description string            `json:"description,omitempty"`
	Priority    Priority          `json:"priority"`
	Urgency     Urgency           `json:"urgency,omitempty"`
	Source      string            `json:"source"`
	Entity      string            `json:"entity,omitempty"`
	Tags        []string          `json:"tags"`
	Details     map[string]string `json:"details,omitempty"`
	Reporter    Reporter          `json:"reporter"`
	Team        Team              `json:"team"`
	Channel     string            `json:"channel,omitempty"`
}

// NewAlert builds the alert sent to the backend for a validated request.
func NewAlert(req Request, defaults AlertDefaults) Alert {
	teamName := req.Channel.TeamDomain
	if teamName == "" {
		teamName = req.TeamDomain
	}

	details := make(map[string]string, len(defaults.Details))
	for k, v := range defaults.Details {
		details[k] = v
	}

	return Alert{
		Title:       req.Title,
		Description: req.Description,
		Priority:    PriorityForUrgency(string(req.Urgency)),
		Urgency:     req.Urgency,
		Source:      defaults.Source,
		Entity:      defaults.Entity,
		Tags:        append([]string(nil), defaults.Tags...),
		Details:     details,
		Reporter: Reporter{
			ID:       req.ReporterID,
			Name:     req.ReporterName,
			Username: req.ReporterName,
		},
		Team: Team{
			ID:   req.TeamID,
			Name: teamName,
		},
		Channel: req.Channel.ChannelName,
	}
}

// Identifier addresses an alert by backend id or by alias. ID wins when both are set.
type Identifier struct {
	ID    string
	Alias string
}

func (i Identifier) Value() (string, string) {
	if i.ID != "" {
		return i.ID, "id"
	}
	return i.Alias, "alias"
}

func (i Identifier) Empty() bool {
	return i.ID == "" && i.Alias == ""
}

type CreationResult struct {
	ID        string   `json:"id"`
	Alias     string   `json:"alias"`
	Title     string   `json:"title"`
	Priority  Priority `json:"priority"`
	URL       string   `json:"url"`
	RequestID string   `json:"requestId"`

	// Reconciled is false when ID is the request id placeholder.
	Reconciled bool `json:"reconciled"`
}
