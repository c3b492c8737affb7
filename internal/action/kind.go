// Package action holds the closed set of actions the classifier can pick,
// the catalog offered for each router variant, and their handlers.
package action

import (
	"fmt"
	"sort"

	"vargasjr/internal/domain"
)

// Kind names one action. The set is closed: every Kind has a spec entry
// and a handler.
type Kind string

const (
	NoAction               Kind = "no_action"
	GetMessageHistory      Kind = "get_message_history"
	LookupURL              Kind = "lookup_url"
	EmailReply             Kind = "email_reply"
	EmailInitiate          Kind = "email_initiate"
	TextReply              Kind = "text_reply"
	SlackReply             Kind = "slack_reply"
	JobOpportunityResponse Kind = "job_opportunity_response"
	MarkContactAsLead      Kind = "mark_contact_as_lead"
	StartDemo              Kind = "start_demo"
	GenerateStripeCheckout Kind = "generate_stripe_checkout"
	CreateMeeting          Kind = "create_meeting"
	WhoAreYou              Kind = "who_are_you"
	UpdateContact          Kind = "update_contact"
	StartJob               Kind = "start_job"
	CompleteJob            Kind = "complete_job"
	MarkJobAsBlocked       Kind = "mark_job_as_blocked"
	SplitJob               Kind = "split_job"
)

// Variant selects which catalog the router offers.
type Variant string

const (
	Triage   Variant = "triage"
	Followup Variant = "followup"
	Job      Variant = "job"
)

func ParseVariant(s string) (Variant, error) {
	switch v := Variant(s); v {
	case "":
		return Triage, nil
	case Triage, Followup, Job:
		return v, nil
	}
	return "", fmt.Errorf("unknown router variant: %q", s)
}

// Param describes a single action parameter.
type Param struct {
	Type        string
	Description string
	Items       string // element type for arrays
}

type spec struct {
	description string
	params      map[string]Param
	required    []string
}

var specs = map[Kind]spec{
	NoAction: {
		description: "Take no action. Use when the message needs no response, such as spam or an automated notification.",
	},
	GetMessageHistory: {
		description: "Fetch the last five messages exchanged with this contact, newest first.",
	},
	LookupURL: {
		description: "Fetch a web page and return its readable text.",
		params: map[string]Param{
			"url": {Type: "string", Description: "Absolute http(s) URL to fetch"},
		},
		required: []string{"url"},
	},
	EmailReply: {
		description: "Reply by email to the sender of the current email.",
		params: map[string]Param{
			"body":    {Type: "string", Description: "Plain text email body"},
			"subject": {Type: "string", Description: "Subject without the RE: prefix; defaults to the original subject"},
		},
		required: []string{"body"},
	},
	EmailInitiate: {
		description: "Send a new email, for example to follow up on a form submission.",
		params: map[string]Param{
			"to":      {Type: "string", Description: "Recipient email address"},
			"subject": {Type: "string", Description: "Email subject"},
			"body":    {Type: "string", Description: "Plain text email body"},
		},
		required: []string{"to", "subject", "body"},
	},
	TextReply: {
		description: "Reply to the sender by SMS from the number the message arrived on.",
		params: map[string]Param{
			"phone_number": {Type: "string", Description: "Recipient phone number in E.164 format"},
			"message":      {Type: "string", Description: "Text message body"},
		},
		required: []string{"message"},
	},
	SlackReply: {
		description: "Reply in the Slack channel the message came from, mentioning the sender.",
		params: map[string]Param{
			"channel": {Type: "string", Description: "Slack channel name without #"},
			"to":      {Type: "string", Description: "Slack user to mention"},
			"message": {Type: "string", Description: "Reply text"},
		},
		required: []string{"to", "message"},
	},
	JobOpportunityResponse: {
		description: "Respond to a recruiter whose job opportunity was forwarded to you, copying the forwarder.",
		params: map[string]Param{
			"recruiter_email": {Type: "string", Description: "Email address of the original recruiter"},
			"subject":         {Type: "string", Description: "Email subject"},
			"body":            {Type: "string", Description: "Plain text email body"},
		},
		required: []string{"recruiter_email", "body"},
	},
	MarkContactAsLead: {
		description: "Mark the sender as a sales lead in the CRM.",
	},
	StartDemo: {
		description: "Email the sender a link to book a product demo.",
	},
	GenerateStripeCheckout: {
		description: "Create a Stripe checkout link the sender can use to pay.",
		params: map[string]Param{
			"price_id": {Type: "string", Description: "Stripe price id; defaults to the configured price"},
			"quantity": {Type: "integer", Description: "Number of units, default 1"},
		},
	},
	CreateMeeting: {
		description: "Schedule a meeting with the sender.",
		params: map[string]Param{
			"title":       {Type: "string", Description: "Meeting title"},
			"start_time":  {Type: "string", Description: "Start time in RFC 3339 format"},
			"description": {Type: "string", Description: "Agenda or notes"},
		},
		required: []string{"title", "start_time"},
	},
	WhoAreYou: {
		description: "Introduce yourself by SMS when the sender asks who you are.",
	},
	UpdateContact: {
		description: "Update the sender's contact details with information they shared.",
		params: map[string]Param{
			"full_name":          {Type: "string", Description: "Full name"},
			"email":              {Type: "string", Description: "Email address"},
			"phone_number":       {Type: "string", Description: "Phone number in E.164 format"},
			"slack_display_name": {Type: "string", Description: "Slack display name"},
		},
	},
	StartJob: {
		description: "Start a work session on a job.",
		params: map[string]Param{
			"job_id": {Type: "string", Description: "Job id"},
		},
		required: []string{"job_id"},
	},
	CompleteJob: {
		description: "Mark a job as completed and close its work session.",
		params: map[string]Param{
			"job_id": {Type: "string", Description: "Job id"},
		},
		required: []string{"job_id"},
	},
	MarkJobAsBlocked: {
		description: "Mark a job as blocked and record why.",
		params: map[string]Param{
			"job_id": {Type: "string", Description: "Job id"},
			"reason": {Type: "string", Description: "What the job is waiting on"},
		},
		required: []string{"job_id", "reason"},
	},
	SplitJob: {
		description: "Split a job into smaller sub-jobs.",
		params: map[string]Param{
			"job_id":   {Type: "string", Description: "Job id"},
			"subtasks": {Type: "array", Items: "string", Description: "Names of the sub-jobs to create"},
		},
		required: []string{"job_id", "subtasks"},
	},
}

// catalogs lists, per variant, the actions offered to the classifier in
// the order they are presented.
var catalogs = map[Variant][]Kind{
	Triage: {
		NoAction, GetMessageHistory, LookupURL, EmailReply, EmailInitiate, TextReply, SlackReply,
		JobOpportunityResponse, MarkContactAsLead, StartDemo, GenerateStripeCheckout, CreateMeeting,
		WhoAreYou, UpdateContact,
	},
	Followup: {NoAction, GetMessageHistory, EmailReply, TextReply, SlackReply, CreateMeeting},
	Job:      {NoAction, StartJob, CompleteJob, MarkJobAsBlocked, SplitJob},
}

// Catalog returns the action specs offered for a variant.
func Catalog(v Variant) []domain.ActionSpec {
	kinds := catalogs[v]
	out := make([]domain.ActionSpec, 0, len(kinds))
	for _, k := range kinds {
		s := specs[k]
		out = append(out, domain.ActionSpec{
			Name:        string(k),
			Description: s.description,
			Parameters:  parameters(s.params, s.required),
		})
	}
	return out
}

// Allows reports whether k is in the variant's catalog.
func (v Variant) Allows(k Kind) bool {
	for _, c := range catalogs[v] {
		if c == k {
			return true
		}
	}
	return false
}

// ParseKind maps a classifier-selected name to a Kind.
func ParseKind(name string) (Kind, bool) {
	k := Kind(name)
	_, ok := specs[k]
	return k, ok
}

// Kinds returns every known action, sorted.
func Kinds() []Kind {
	out := make([]Kind, 0, len(specs))
	for k := range specs {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// parameters builds a JSON Schema "parameters" object.
func parameters(properties map[string]Param, required []string) map[string]any {
	props := make(map[string]any, len(properties))
	for name, p := range properties {
		prop := map[string]any{"type": p.Type, "description": p.Description}
		if p.Items != "" {
			prop["items"] = map[string]any{"type": p.Items}
		}
		props[name] = prop
	}
	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}
