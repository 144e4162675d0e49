package config

// CreditPackage describes a purchasable credit bundle offered at checkout.
type CreditPackage struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Credits      int    `json:"credits"`
	BonusCredits int    `json:"bonus_credits"`
	PriceCents   int64  `json:"price_cents"` // USD cents, charged via Stripe
}

// TotalCredits returns the credits granted on purchase including bonus.
func (p CreditPackage) TotalCredits() int {
	return p.Credits + p.BonusCredits
}

// BillingConfig holds the credit package catalog.
type BillingConfig struct {
	Packages []CreditPackage
}

// DefaultBillingConfig returns the packages offered by the credits app.
func DefaultBillingConfig() BillingConfig {
	return BillingConfig{
		Packages: []CreditPackage{
			{ID: "starter", Name: "Starter Pack", Credits: 500, BonusCredits: 0, PriceCents: 499},
			{ID: "value", Name: "Value Pack", Credits: 1200, BonusCredits: 100, PriceCents: 999},
			{ID: "pro", Name: "Pro Pack", Credits: 2500, BonusCredits: 500, PriceCents: 1999},
		},
	}
}

// GetPackage returns the package with the given id, or false when unknown.
func (c *BillingConfig) GetPackage(id string) (CreditPackage, bool) {
	for _, p := range c.Packages {
		if p.ID == id {
			return p, true
		}
	}
	return CreditPackage{}, false
}
