package action

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"vargasjr/internal/domain"
)

const historyLimit = 5

func (d *Dispatcher) getMessageHistory(ctx context.Context, msg domain.NormalizedMessage, _ Args) Result {
	if d.deps.History == nil {
		return Failed{Summary: "Failed to load message history: history " + errNotConfigured.Error() + ".", Err: errNotConfigured}
	}
	entries, err := d.deps.History.RecentHistory(ctx, msg.ContactID, historyLimit)
	if err != nil {
		return Failed{Summary: fmt.Sprintf("Failed to load message history: %v", err), Err: err}
	}
	if len(entries) == 0 {
		return Info{Summary: "No message history found."}
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Last %d messages with %s:", len(entries), msg.Contact().Identifier())
	for _, e := range entries {
		fmt.Fprintf(&b, "\n[%s %s %s] %s", e.CreatedAt.Format("2006-01-02 15:04"), e.Direction, e.Kind, e.Body)
	}
	return Info{Summary: b.String()}
}

func (d *Dispatcher) markContactAsLead(ctx context.Context, msg domain.NormalizedMessage, _ Args) Result {
	c, res := d.loadContact(ctx, msg.ContactID)
	if res != nil {
		return res
	}
	if c.Status == domain.ContactLead {
		return Changed{Summary: fmt.Sprintf("%s is already a lead.", c.Identifier())}
	}
	c.Status = domain.ContactLead
	if err := d.deps.Contacts.UpdateContact(ctx, *c); err != nil {
		return Failed{Summary: fmt.Sprintf("Failed to mark %s as a lead: %v", c.Identifier(), err), Err: err}
	}
	return Changed{Summary: fmt.Sprintf("Marked %s as a lead.", c.Identifier())}
}

func (d *Dispatcher) updateContact(ctx context.Context, msg domain.NormalizedMessage, args Args) Result {
	c, res := d.loadContact(ctx, msg.ContactID)
	if res != nil {
		return res
	}

	var changed []string
	set := func(field string, dst *string) {
		if v := args.String(field); v != "" && v != *dst {
			*dst = v
			changed = append(changed, field)
		}
	}
	set("full_name", &c.FullName)
	set("email", &c.Email)
	set("phone_number", &c.PhoneNumber)
	set("slack_display_name", &c.SlackDisplayName)
	if len(changed) == 0 {
		return Changed{Summary: "No contact fields to update."}
	}

	if err := d.deps.Contacts.UpdateContact(ctx, *c); err != nil {
		return Failed{Summary: fmt.Sprintf("Failed to update contact %s: %v", c.Identifier(), err), Err: err}
	}
	return Changed{Summary: fmt.Sprintf("Updated contact %s: %s.", c.Identifier(), strings.Join(changed, ", "))}
}

// loadContact returns the contact or a Failed result explaining why not.
func (d *Dispatcher) loadContact(ctx context.Context, id string) (*domain.Contact, Result) {
	if d.deps.Contacts == nil {
		return nil, Failed{Summary: "Failed to load contact: contact store " + errNotConfigured.Error() + ".", Err: errNotConfigured}
	}
	c, err := d.deps.Contacts.GetContact(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, Failed{Summary: fmt.Sprintf("Contact %s not found.", id), Err: err}
	}
	if err != nil {
		return nil, Failed{Summary: fmt.Sprintf("Failed to load contact %s: %v", id, err), Err: err}
	}
	return c, nil
}
