package domain

// Event is a parsed gateway event. The set of variants is closed:
// CheckoutCompleted, AccountUpdated and Ignored.
type Event interface {
	ProviderEventID() string
	EventType() string
	isEvent()
}

type CheckoutCompleted struct {
	ID        string
	SessionID string
}

func (e CheckoutCompleted) ProviderEventID() string { return e.ID }
func (e CheckoutCompleted) EventType() string       { return "checkout.session.completed" }
func (CheckoutCompleted) isEvent()                  {}

type AccountUpdated struct {
	ID             string
	AccountID      string
	Email          string
	CurrentlyDue   []string
	PastDue        []string
	Capabilities   map[string]string
	ChargesEnabled bool
	PayoutsEnabled bool
}

func (e AccountUpdated) ProviderEventID() string { return e.ID }
func (e AccountUpdated) EventType() string       { return "account.updated" }
func (AccountUpdated) isEvent()                  {}

// Verified reports whether the connected account may receive payouts.
// Missing capabilities count as inactive.
func (e AccountUpdated) Verified() bool {
	if len(e.PastDue) > 0 || len(e.CurrentlyDue) > 0 {
		return false
	}
	if e.Capabilities["card_payments"] != "active" || e.Capabilities["transfers"] != "active" {
		return false
	}
	return e.ChargesEnabled && e.PayoutsEnabled
}

type Ignored struct {
	ID   string
	Type string
}

func (e Ignored) ProviderEventID() string { return e.ID }
func (e Ignored) EventType() string       { return e.Type }
func (Ignored) isEvent()                  {}
