package dmarc

import (
	"encoding/xml"
	"strconv"
	"strings"
	"time"

	"lrx-radar/internal/domain/models"
)

// aggregateReport mirrors the RUA aggregate report format, reduced to the
// elements the pipeline consumes
type aggregateReport struct {
	XMLName  xml.Name `xml:"feedback"`
	Metadata struct {
		OrgName string `xml:"org_name"`
		End     string `xml:"date_range>end"`
	} `xml:"report_metadata"`
	PolicyPublished struct {
		Domain string `xml:"domain"`
	} `xml:"policy_published"`
	Records []reportRecord `xml:"record"`
}

type reportRecord struct {
	Row struct {
		SourceIP        string `xml:"source_ip"`
		Count           string `xml:"count"`
		PolicyEvaluated struct {
			Disposition string `xml:"disposition"`
			SPF         string `xml:"spf"`
			DKIM        string `xml:"dkim"`
		} `xml:"policy_evaluated"`
	} `xml:"row"`
	Identifiers struct {
		HeaderFrom string `xml:"header_from"`
	} `xml:"identifiers"`
}

// ParseReport parses one aggregate-report XML document into queue payloads,
// one per record. Malformed documents yield an empty slice, missing fields
// fall back to safe defaults.
func ParseReport(xmlBytes []byte, now time.Time) []*models.DmarcReportPayload {
	var report aggregateReport
	if err := xml.Unmarshal(xmlBytes, &report); err != nil {
		return nil
	}

	reportDate := reportDateFromEnd(report.Metadata.End, now)
	reportingOrg := textOr(report.Metadata.OrgName, "unknown")
	domain := textOr(report.PolicyPublished.Domain, "unknown.local")

	payloads := make([]*models.DmarcReportPayload, 0, len(report.Records))
	for _, record := range report.Records {
		msgCount := 1
		if n, err := strconv.Atoi(strings.TrimSpace(record.Row.Count)); err == nil {
			msgCount = n
		}

		payloads = append(payloads, &models.DmarcReportPayload{
			Type:         models.EventTypeDmarc,
			Domain:       domain,
			ReportingOrg: reportingOrg,
			SourceIP:     textOr(record.Row.SourceIP, "0.0.0.0"),
			Disposition:  textOr(record.Row.PolicyEvaluated.Disposition, models.DispositionNone),
			SpfResult:    textOr(record.Row.PolicyEvaluated.SPF, "fail"),
			DkimResult:   textOr(record.Row.PolicyEvaluated.DKIM, "fail"),
			MsgCount:     msgCount,
			ReportDate:   reportDate,
			RawPayload: map[string]any{
				"source":                 "dmarc-ingest",
				"identifier_header_from": textOr(record.Identifiers.HeaderFrom, domain),
			},
		})
	}
	return payloads
}

// reportDateFromEnd converts the date range's end epoch into an ISO date,
// falling back to today's date
func reportDateFromEnd(end string, now time.Time) string {
	end = strings.TrimSpace(end)
	if epoch, err := strconv.ParseInt(end, 10, 64); err == nil && epoch > 0 {
		return time.Unix(epoch, 0).UTC().Format("2006-01-02")
	}
	return now.UTC().Format("2006-01-02")
}

func textOr(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}
