// Package ratelimit applies fixed-window request quotas keyed by
// (identity, tier), backed by Redis with a bounded in-process fallback.
package ratelimit

import (
	"time"
)

// Tier is the rate-limit class driving quota size.
type Tier string

const (
	TierFree       Tier = "free"
	TierStandard   Tier = "standard"
	TierPremium    Tier = "premium"
	TierEnterprise Tier = "enterprise"
)

// Limit is one quota: Requests per Window.
type Limit struct {
	Requests int
	Window   time.Duration
}

// WindowMinutes returns the window size in whole minutes for error bodies.
func (l Limit) WindowMinutes() int {
	return int(l.Window / time.Minute)
}

// tierLimits is the standard 15-minute quota per tier.
var tierLimits = map[Tier]Limit{
	TierFree:       {Requests: 100, Window: 15 * time.Minute},
	TierStandard:   {Requests: 1000, Window: 15 * time.Minute},
	TierPremium:    {Requests: 5000, Window: 15 * time.Minute},
	TierEnterprise: {Requests: 50000, Window: 15 * time.Minute},
}

// burstLimits caps short spikes with a one-minute sub-window.
var burstLimits = map[Tier]Limit{
	TierFree:       {Requests: 20, Window: time.Minute},
	TierStandard:   {Requests: 120, Window: time.Minute},
	TierPremium:    {Requests: 600, Window: time.Minute},
	TierEnterprise: {Requests: 6000, Window: time.Minute},
}

// ParseTier normalizes a stored tier string, defaulting to free.
func ParseTier(s string) Tier {
	switch Tier(s) {
	case TierStandard:
		return TierStandard
	case TierPremium:
		return TierPremium
	case TierEnterprise:
		return TierEnterprise
	default:
		return TierFree
	}
}

// LimitFor returns the standard quota for a tier.
func LimitFor(tier Tier) Limit {
	if limit, ok := tierLimits[tier]; ok {
		return limit
	}
	return tierLimits[TierFree]
}

// BurstLimitFor returns the one-minute spike quota for a tier.
func BurstLimitFor(tier Tier) Limit {
	if limit, ok := burstLimits[tier]; ok {
		return limit
	}
	return burstLimits[TierFree]
}
