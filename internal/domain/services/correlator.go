package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"lrx-radar/internal/domain/models"
	"lrx-radar/pkg/logger"
)

// CorrelationStore reads the recent signal windows the correlator works
// over. All three listings must be ordered newest-first.
type CorrelationStore interface {
	ListThreatEventsSince(ctx context.Context, since time.Time) ([]*models.ThreatEvent, error)
	ListAtoEventsSince(ctx context.Context, since time.Time) ([]*models.AtoEvent, error)
	ListDmarcReportsSince(ctx context.Context, since time.Time) ([]*models.DmarcReport, error)
}

// Campaign score shaping: the base is the group's average indicator
// confidence, boosted per distinct indicator and by corroborating ATO and
// DMARC telemetry, then clamped into [45, 99].
const (
	scoreFloor           = 45
	scoreCeiling         = 99
	perThreatBoost       = 2
	perThreatBoostCap    = 20
	corroboratingBoost   = 15
	topListSize          = 5
	lookupCandidateLimit = 500
)

// Correlator clusters recent multi-source telemetry into brand-level
// campaigns. Campaigns are derived views: every call recomputes them from
// the stored signals, so two calls over the same window yield identical
// campaigns, IDs included.
type Correlator struct {
	store  CorrelationStore
	brands []string
	logger *logger.Logger
}

// NewCorrelator creates a new Correlator over the monitored brand list
func NewCorrelator(store CorrelationStore, brands []string, log *logger.Logger) *Correlator {
	return &Correlator{
		store:  store,
		brands: brands,
		logger: log.WithComponent("correlator"),
	}
}

// Correlate builds the ranked campaign list for the trailing window of the
// given size. At most limit campaigns are returned, highest score first.
func (c *Correlator) Correlate(ctx context.Context, hours, limit int) ([]*models.Campaign, error) {
	threats, atos, dmarcs, err := c.loadWindow(ctx, hours)
	if err != nil {
		return nil, err
	}
	campaigns := BuildCampaigns(threats, atos, dmarcs, c.brands, limit)
	c.logger.Debug().
		Int("threats", len(threats)).
		Int("campaigns", len(campaigns)).
		Int("window_hours", hours).
		Msg("correlation pass complete")
	return campaigns, nil
}

// FindByID recomputes campaigns over a wider lookup window and returns the
// one with the given ID, or nil when no current activity produces it.
func (c *Correlator) FindByID(ctx context.Context, campaignID string, hours int) (*models.Campaign, error) {
	campaigns, err := c.Correlate(ctx, hours, lookupCandidateLimit)
	if err != nil {
		return nil, err
	}
	for _, campaign := range campaigns {
		if campaign.CampaignID == campaignID {
			return campaign, nil
		}
	}
	return nil, nil
}

// DmarcEvidence returns the recent authentication reports attributed to the
// campaign's brand, newest first, capped at limit.
func (c *Correlator) DmarcEvidence(ctx context.Context, campaign *models.Campaign, hours, limit int) ([]*models.DmarcReport, error) {
	since := windowStart(hours, time.Now().UTC())
	reports, err := c.store.ListDmarcReportsSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list dmarc reports: %w", err)
	}

	evidence := make([]*models.DmarcReport, 0, limit)
	for _, report := range reports {
		if BrandKeyFromValue(report.Domain) != campaign.BrandKey {
			continue
		}
		evidence = append(evidence, report)
		if len(evidence) >= limit {
			break
		}
	}
	return evidence, nil
}

func (c *Correlator) loadWindow(ctx context.Context, hours int) ([]*models.ThreatEvent, []*models.AtoEvent, []*models.DmarcReport, error) {
	since := windowStart(hours, time.Now().UTC())

	threats, err := c.store.ListThreatEventsSince(ctx, since)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to list threat events: %w", err)
	}
	atos, err := c.store.ListAtoEventsSince(ctx, since)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to list ato events: %w", err)
	}
	dmarcs, err := c.store.ListDmarcReportsSince(ctx, since)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to list dmarc reports: %w", err)
	}
	return threats, atos, dmarcs, nil
}

func windowStart(hours int, now time.Time) time.Time {
	if hours < 1 {
		hours = 1
	}
	return now.Add(-time.Duration(hours) * time.Hour)
}

// BuildCampaigns is the pure correlation core: it groups the given signals
// by brand key, scores each group and returns at most limit campaigns
// ranked by score descending. Input slices are expected newest-first; ties
// in score keep the grouping's first-encountered order.
func BuildCampaigns(threats []*models.ThreatEvent, atos []*models.AtoEvent, dmarcs []*models.DmarcReport, brands []string, limit int) []*models.Campaign {
	if len(threats) == 0 {
		return []*models.Campaign{}
	}

	atoByBrand := make(map[string][]*models.AtoEvent)
	for _, event := range atos {
		key := BrandKeyFromValue(event.UserEmail)
		atoByBrand[key] = append(atoByBrand[key], event)
	}

	dmarcByBrand := make(map[string][]*models.DmarcReport)
	for _, report := range dmarcs {
		key := BrandKeyFromValue(report.Domain)
		dmarcByBrand[key] = append(dmarcByBrand[key], report)
	}

	grouped := make(map[string][]*models.ThreatEvent)
	var brandOrder []string
	for _, threat := range threats {
		var key string
		if threat.BrandTarget != "" && threat.BrandTarget != "Unknown" {
			key = normalizeToken(threat.BrandTarget)
		} else {
			key = BrandKeyFromValue(threat.IndicatorValue)
		}
		if _, seen := grouped[key]; !seen {
			brandOrder = append(brandOrder, key)
		}
		grouped[key] = append(grouped[key], threat)
	}

	campaigns := make([]*models.Campaign, 0, len(brandOrder))
	for _, brandKey := range brandOrder {
		items := grouped[brandKey]
		campaigns = append(campaigns, buildCampaign(brandKey, items, atoByBrand[brandKey], dmarcByBrand[brandKey], brands))
	}

	sort.SliceStable(campaigns, func(i, j int) bool {
		return campaigns[i].ThreatConfidenceScore > campaigns[j].ThreatConfidenceScore
	})

	if limit < 1 {
		limit = 1
	}
	if len(campaigns) > limit {
		campaigns = campaigns[:limit]
	}
	return campaigns
}

func buildCampaign(brandKey string, items []*models.ThreatEvent, relatedAto []*models.AtoEvent, relatedDmarc []*models.DmarcReport, brands []string) *models.Campaign {
	categories := newFrequencyCounter()
	countries := newFrequencyCounter()
	domains := newFrequencyCounter()
	ips := newFrequencyCounter()

	totalVolume := 0
	confidenceSum := 0
	firstSeen := items[0].OccurredAt
	lastSeen := items[0].OccurredAt
	for _, item := range items {
		categories.Add(item.Category)
		countries.Add(item.Country)
		switch item.IndicatorType {
		case models.IndicatorTypeDomain, models.IndicatorTypeURL:
			domains.Add(item.IndicatorValue)
		case models.IndicatorTypeIP:
			ips.Add(item.IndicatorValue)
		}
		totalVolume += item.Volume
		confidenceSum += item.Confidence
		if item.OccurredAt.Before(firstSeen) {
			firstSeen = item.OccurredAt
		}
		if item.OccurredAt.After(lastSeen) {
			lastSeen = item.OccurredAt
		}
	}

	dmarcFailCount := 0
	for _, report := range relatedDmarc {
		if report.AuthFailed() {
			dmarcFailCount += report.MsgCount
		}
	}
	atoCount := len(relatedAto)

	score := campaignScore(confidenceSum, len(items), dmarcFailCount, atoCount)

	triggers := "Lookalike domain activity"
	if dmarcFailCount > 0 {
		triggers += " + DMARC authentication failures"
	}
	if atoCount > 0 {
		triggers += " + ATO anomaly telemetry"
	}

	iocDomains := domains.Top(topListSize)
	iocIPs := ips.Top(topListSize)

	indicatorHint := brandKey
	if len(iocDomains) > 0 {
		indicatorHint = iocDomains[0]
	} else if len(iocIPs) > 0 {
		indicatorHint = iocIPs[0]
	}

	affectedUsers := make([]string, 0, topListSize)
	for _, event := range relatedAto {
		affectedUsers = append(affectedUsers, event.UserEmail)
		if len(affectedUsers) >= topListSize {
			break
		}
	}

	return &models.Campaign{
		CampaignID:            models.CampaignID(brandKey, indicatorHint),
		Brand:                 BrandLabel(brandKey, brands, fallbackBrand(items)),
		BrandKey:              brandKey,
		ThreatConfidenceScore: score,
		TriggerEvent:          triggers,
		ThreatCount:           len(items),
		TotalVolume:           totalVolume,
		AtoEventCount:         atoCount,
		DmarcFailCount:        dmarcFailCount,
		AttackVectors:         categories.Top(topListSize),
		TopCountries:          countries.Top(topListSize),
		IOCDomains:            iocDomains,
		IOCIPs:                iocIPs,
		AffectedUsers:         affectedUsers,
		FirstSeen:             firstSeen,
		LastSeen:              lastSeen,
	}
}

// campaignScore combines the group's average confidence with count and
// corroboration boosts, truncated into [scoreFloor, scoreCeiling].
func campaignScore(confidenceSum, threatCount, dmarcFailCount, atoCount int) int {
	avg := float64(confidenceSum) / float64(threatCount)

	boost := threatCount * perThreatBoost
	if boost > perThreatBoostCap {
		boost = perThreatBoostCap
	}
	score := avg + float64(boost)
	if dmarcFailCount > 0 {
		score += corroboratingBoost
	}
	if atoCount > 0 {
		score += corroboratingBoost
	}

	if score < scoreFloor {
		score = scoreFloor
	}
	if score > scoreCeiling {
		score = scoreCeiling
	}
	return int(score)
}

func fallbackBrand(items []*models.ThreatEvent) string {
	if items[0].BrandTarget != "" {
		return items[0].BrandTarget
	}
	return "Unknown"
}

// frequencyCounter counts string occurrences and ranks them by count
// descending, breaking ties by first-encountered order so rankings are
// stable across runs.
type frequencyCounter struct {
	counts map[string]int
	order  []string
}

func newFrequencyCounter() *frequencyCounter {
	return &frequencyCounter{counts: make(map[string]int)}
}

func (f *frequencyCounter) Add(key string) {
	if _, seen := f.counts[key]; !seen {
		f.order = append(f.order, key)
	}
	f.counts[key]++
}

func (f *frequencyCounter) Top(n int) []string {
	ranked := make([]string, len(f.order))
	copy(ranked, f.order)
	sort.SliceStable(ranked, func(i, j int) bool {
		return f.counts[ranked[i]] > f.counts[ranked[j]]
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}
