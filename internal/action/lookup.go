package action

import (
	"context"
	"fmt"
	"net/url"

	"vargasjr/internal/domain"
)

// maxLookupSummary caps how much page text is folded into a run summary.
const maxLookupSummary = 4000

func (d *Dispatcher) lookupURL(ctx context.Context, _ domain.NormalizedMessage, args Args) Result {
	raw := args.String("url")
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return Failed{Summary: fmt.Sprintf("Failed to look up %s: not an http(s) URL.", raw), Err: err}
	}
	if d.deps.Fetcher == nil {
		return Failed{Summary: fmt.Sprintf("Failed to look up %s: fetcher %v.", raw, errNotConfigured), Err: errNotConfigured}
	}
	text, err := d.deps.Fetcher.Fetch(ctx, u.String())
	if err != nil {
		return Failed{Summary: fmt.Sprintf("Failed to look up %s: %v", raw, err), Err: err}
	}
	if r := []rune(text); len(r) > maxLookupSummary {
		text = string(r[:maxLookupSummary]) + "..."
	}
	return Info{Summary: fmt.Sprintf("Contents of %s:\n%s", u.String(), text)}
}

func (d *Dispatcher) generateStripeCheckout(ctx context.Context, msg domain.NormalizedMessage, args Args) Result {
	if d.deps.Checkout == nil {
		return Failed{Summary: "Failed to generate Stripe checkout: billing " + errNotConfigured.Error() + ".", Err: errNotConfigured}
	}
	price := args.String("price_id")
	if price == "" {
		price = d.deps.PriceID
	}
	if price == "" {
		return Failed{Summary: "Failed to generate Stripe checkout: no price configured."}
	}
	qty := args.Int("quantity", 1)
	if qty < 1 {
		qty = 1
	}
	link, err := d.deps.Checkout.CreateCheckout(ctx, CheckoutRequest{
		PriceID:           price,
		Quantity:          qty,
		CustomerEmail:     msg.ContactEmail,
		ClientReferenceID: msg.ContactID,
	})
	if err != nil {
		return Failed{Summary: fmt.Sprintf("Failed to generate Stripe checkout: %v", err), Err: err}
	}
	return Info{Summary: "Generated Stripe checkout link: " + link}
}
