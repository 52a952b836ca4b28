package org

import "time"

// Tier is an organization's subscription plan
type Tier string

const (
	TierTrial      Tier = "trial"
	TierStarter    Tier = "starter"
	TierPro        Tier = "pro"
	TierBusiness   Tier = "business"
	TierEnterprise Tier = "enterprise"
)

// expectedConcurrency maps a tier to the concurrent sessions its plan allows
var expectedConcurrency = map[Tier]int{
	TierTrial:      1,
	TierStarter:    2,
	TierPro:        5,
	TierBusiness:   10,
	TierEnterprise: 20,
}

// ExpectedConcurrency returns the concurrent session allowance for the tier.
// Unknown tiers get the trial allowance.
func (t Tier) ExpectedConcurrency() int {
	if n, ok := expectedConcurrency[t]; ok {
		return n
	}
	return expectedConcurrency[TierTrial]
}

// IsValid checks if the tier is valid
func (t Tier) IsValid() bool {
	_, ok := expectedConcurrency[t]
	return ok
}

// Organization is a billing-and-usage unit monitored independently of others
type Organization struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Tier      Tier      `json:"tier"`
	CreatedAt time.Time `json:"created_at"`
}
