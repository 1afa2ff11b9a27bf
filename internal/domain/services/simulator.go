package services

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"lrx-radar/internal/domain/models"
)

// attackTemplate pairs a category with its attack type and feed tags
type attackTemplate struct {
	category   string
	attackType string
	tags       []string
}

var attackTemplates = []attackTemplate{
	{"Typosquatting", "Credential Harvesting", []string{"lookalike", "mx-active", "certstream"}},
	{"Phishing URL", "Token Theft", []string{"urlhaus", "email-lure", "redirect-chain"}},
	{"Credential Stuffing", "Brute Force", []string{"combo-list", "tor-exit", "spray-pattern"}},
	{"Brand Impersonation", "Business Email Compromise", []string{"exec-spoof", "invoice-fraud", "dmarc-fail"}},
	{"Email Spoofing", "Mailbox Compromise", []string{"spf-fail", "dkim-fail", "dmarc-none"}},
}

var simulatedUsers = []string{
	"j.doe", "s.james", "a.chen", "f.rivera",
	"m.ali", "n.singh", "d.ikeda", "r.barnes",
}

var cityPairs = [][2]string{
	{"Toronto", "Moscow"},
	{"San Jose", "Tokyo"},
	{"New York", "Berlin"},
	{"Vancouver", "Delhi"},
	{"Madrid", "Sao Paulo"},
	{"Sydney", "London"},
}

var primaryTargets = []string{
	"Microsoft 365 users",
	"Finance team",
	"Remote workers",
	"Identity admins",
	"Support staff",
}

var typoSuffixes = []string{"-secure", "-login", "-support", "-verify", "-billing"}

var typoSubstitutions = map[byte]byte{
	'o': '0', 'i': '1', 'l': '1', 'e': '3', 'a': '4', 's': '5',
}

// Simulator fabricates realistic telemetry payloads for the monitored
// brands. It drives demo and load environments through the same queue
// path real feeds use.
type Simulator struct {
	brands []string
	rng    *rand.Rand
}

// NewSimulator creates a Simulator seeded from the clock
func NewSimulator(brands []string) *Simulator {
	return NewSeededSimulator(brands, time.Now().UnixNano())
}

// NewSeededSimulator creates a Simulator with a fixed seed for
// reproducible output
func NewSeededSimulator(brands []string, seed int64) *Simulator {
	return &Simulator{
		brands: brands,
		rng:    rand.New(rand.NewSource(seed)),
	}
}

// BaseDomain collapses a brand name to its canonical .com domain
func BaseDomain(brand string) string {
	clean := strings.ToLower(brand)
	clean = strings.ReplaceAll(clean, " ", "")
	clean = strings.ReplaceAll(clean, "-", "")
	return clean + ".com"
}

// TypoVariation mutates one character of the brand into a homoglyph digit
// and appends a lure suffix, producing a plausible lookalike domain.
func (s *Simulator) TypoVariation(brand string) string {
	base := strings.ToLower(brand)
	base = strings.ReplaceAll(base, " ", "")
	base = strings.ReplaceAll(base, "-", "")

	chars := []byte(base)
	if len(chars) > 0 {
		idx := s.rng.Intn(len(chars))
		if sub, ok := typoSubstitutions[chars[idx]]; ok {
			chars[idx] = sub
		}
	}
	suffix := typoSuffixes[s.rng.Intn(len(typoSuffixes))]
	return string(chars) + suffix + ".com"
}

// ThreatEvent generates one synthetic threat payload
func (s *Simulator) ThreatEvent() *models.ThreatEventPayload {
	brand := strings.ReplaceAll(s.pickBrand(), "-", "")
	template := attackTemplates[s.rng.Intn(len(attackTemplates))]
	country := Countries[s.rng.Intn(len(Countries))]
	indicatorDomain := s.TypoVariation(brand)

	indicatorType := "domain"
	indicatorValue := indicatorDomain
	switch template.category {
	case "Phishing URL":
		indicatorType = "url"
		indicatorValue = fmt.Sprintf("https://%s/auth/session", indicatorDomain)
	case "Credential Stuffing":
		indicatorType = "ip"
		indicatorValue = s.randomIP()
	}

	now := time.Now().UTC().Format(time.RFC3339)
	return &models.ThreatEventPayload{
		Type:           models.EventTypeThreat,
		Source:         "certstream-sim",
		IndicatorType:  indicatorType,
		IndicatorValue: indicatorValue,
		Category:       template.category,
		Country:        country.Name,
		CountryCode:    country.Code,
		BrandTarget:    titleCase(brand),
		AttackType:     template.attackType,
		PrimaryTarget:  primaryTargets[s.rng.Intn(len(primaryTargets))],
		Volume:         s.intBetween(15, 130),
		AtoHits:        s.rng.Intn(9),
		Confidence:     s.intBetween(72, 99),
		EventMeta:      map[string]any{"tags": template.tags, "generated_at": now},
		OccurredAt:     now,
	}
}

// AtoEvent generates one synthetic account-takeover payload
func (s *Simulator) AtoEvent() *models.AtoEventPayload {
	user := simulatedUsers[s.rng.Intn(len(simulatedUsers))]
	brand := strings.ReplaceAll(s.pickBrand(), "-", "")
	pair := cityPairs[s.rng.Intn(len(cityPairs))]
	actions := []string{"step_up_auth", "terminate_sessions", "require_reset", "monitor"}

	return &models.AtoEventPayload{
		Type:        models.EventTypeAto,
		UserEmail:   fmt.Sprintf("%s@%s", user, BaseDomain(brand)),
		Loc1:        pair[0],
		Loc2:        pair[1],
		RiskScore:   s.intBetween(75, 99),
		ActionTaken: actions[s.rng.Intn(len(actions))],
		CreatedAt:   time.Now().UTC().Format(time.RFC3339),
	}
}

// DmarcReport generates one synthetic authentication-report payload.
// Dispositions skew toward reject, matching what a brand under active
// spoofing sees.
func (s *Simulator) DmarcReport() *models.DmarcReportPayload {
	brand := strings.ReplaceAll(s.pickBrand(), "-", "")
	orgs := []string{"Google", "Microsoft", "Yahoo", "Proofpoint"}
	results := []string{"pass", "fail"}

	disposition := models.DispositionReject
	switch roll := s.rng.Intn(100); {
	case roll < 20:
		disposition = models.DispositionNone
	case roll < 45:
		disposition = models.DispositionQuarantine
	}

	return &models.DmarcReportPayload{
		Type:         models.EventTypeDmarc,
		Domain:       BaseDomain(brand),
		ReportingOrg: orgs[s.rng.Intn(len(orgs))],
		SourceIP:     s.randomIP(),
		Disposition:  disposition,
		SpfResult:    results[s.rng.Intn(len(results))],
		DkimResult:   results[s.rng.Intn(len(results))],
		MsgCount:     s.intBetween(5, 120),
		ReportDate:   time.Now().UTC().Format("2006-01-02"),
		RawPayload:   map[string]any{"source": "simulator"},
	}
}

func (s *Simulator) pickBrand() string {
	if len(s.brands) == 0 {
		return "unknown"
	}
	return s.brands[s.rng.Intn(len(s.brands))]
}

func (s *Simulator) randomIP() string {
	octets := make([]string, 4)
	for i := range octets {
		octets[i] = fmt.Sprintf("%d", s.intBetween(1, 254))
	}
	return strings.Join(octets, ".")
}

// intBetween returns a uniform value in [lo, hi]
func (s *Simulator) intBetween(lo, hi int) int {
	return lo + s.rng.Intn(hi-lo+1)
}
