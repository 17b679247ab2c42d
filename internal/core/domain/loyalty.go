package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// PointsTier is a loyalty level unlocked by a points threshold.
type PointsTier struct {
	Name      string          `json:"name"`
	Threshold decimal.Decimal `json:"threshold"`
}

// PointsTiers is ordered by ascending threshold.
var PointsTiers = []PointsTier{
	{Name: "bronze", Threshold: decimal.NewFromInt(100)},
	{Name: "silver", Threshold: decimal.NewFromInt(200)},
	{Name: "gold", Threshold: decimal.NewFromInt(300)},
	{Name: "platinum", Threshold: decimal.NewFromInt(500)},
}

// TierFor returns the highest tier reached by points, or nil below bronze.
func TierFor(points decimal.Decimal) *PointsTier {
	var reached *PointsTier
	for i := range PointsTiers {
		if points.GreaterThanOrEqual(PointsTiers[i].Threshold) {
			reached = &PointsTiers[i]
		}
	}
	return reached
}

// CoalitionMerchant identifies a merchant taking part in the loyalty coalition.
type CoalitionMerchant struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"`
}

// MerchantActivity is a buyer's decoded activity at one merchant.
type MerchantActivity struct {
	CoalitionMerchant
	PointsIssued decimal.Decimal `json:"points_issued"`
	UsdEarned    decimal.Decimal `json:"usd_earned"`
	EthEarned    decimal.Decimal `json:"eth_earned"`
	Purchases    int             `json:"purchases"`
}

// CoalitionSummary is the loyalty dashboard for one buyer.
type CoalitionSummary struct {
	CoalitionName string             `json:"coalition_name"`
	SchemaID      string             `json:"schema_id"`
	Buyer         string             `json:"buyer"`
	Stats         LoyaltyStats       `json:"stats"`
	Tier          *PointsTier        `json:"tier,omitempty"`
	Merchants     []MerchantActivity `json:"merchants"`
}

// BuildCoalitionSummary groups the decoded records by merchant address. Configured
// merchants are always listed, in configuration order; other merchants seen in the
// records follow in first-seen order with their address as id.
func BuildCoalitionSummary(name, schemaID, buyer string, merchants []CoalitionMerchant, records []AttestationRecord) CoalitionSummary {
	activity := make([]MerchantActivity, 0, len(merchants))
	byAddr := make(map[string]int, len(merchants))
	for _, m := range merchants {
		byAddr[strings.ToLower(m.Address)] = len(activity)
		activity = append(activity, newActivity(m))
	}

	for _, r := range records {
		if r.Decoded == nil {
			continue
		}
		key := strings.ToLower(r.Decoded.Merchant)
		idx, ok := byAddr[key]
		if !ok {
			idx = len(activity)
			byAddr[key] = idx
			activity = append(activity, newActivity(CoalitionMerchant{ID: key, Address: r.Decoded.Merchant}))
		}
		a := &activity[idx]
		a.PointsIssued = a.PointsIssued.Add(parseAmount(r.Decoded.Points))
		a.UsdEarned = a.UsdEarned.Add(parseAmount(r.Decoded.Usd))
		a.EthEarned = a.EthEarned.Add(parseAmount(r.Decoded.Eth))
		a.Purchases++
	}

	stats := ComputeStats(records)
	return CoalitionSummary{
		CoalitionName: name,
		SchemaID:      schemaID,
		Buyer:         strings.ToLower(buyer),
		Stats:         stats,
		Tier:          TierFor(stats.TotalPoints),
		Merchants:     activity,
	}
}

func newActivity(m CoalitionMerchant) MerchantActivity {
	return MerchantActivity{
		CoalitionMerchant: m,
		PointsIssued:      decimal.Zero,
		UsdEarned:         decimal.Zero,
		EthEarned:         decimal.Zero,
	}
}

// LoyaltyPoints awards perUSD points per dollar, rounded to cents.
func LoyaltyPoints(usd, perUSD decimal.Decimal) decimal.Decimal {
	return usd.Mul(perUSD).Round(UsdDecimals)
}
