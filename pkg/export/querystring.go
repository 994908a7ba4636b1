package export

import (
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/openarchive/statspipe/pkg/events"
	"github.com/openarchive/statspipe/pkg/records"
)

// visitorIDLength is the sink's fixed visitor identifier width.
const visitorIDLength = 16

// maxActionNameLength is the sink's limit on action names.
const maxActionNameLength = 150

// stripReferrer drops the query and fragment from a referrer URL. Free-text
// referrers that do not parse are passed through untouched.
func stripReferrer(ref string) string {
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}

// truncate limits s to n runes.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// buildQueryString encodes one event in the sink's wire format. The record
// is the freshly resolved one, not the event's snapshot, so title and
// persistent-identifier changes since the event was recorded are reflected.
func buildQueryString(ev *events.Event, rec *records.Record, siteID int, links records.Links) (string, error) {
	visitorID := ev.VisitorID
	if len(visitorID) > visitorIDLength {
		visitorID = visitorID[:visitorIDLength]
	}

	cvar, err := json.Marshal(map[string][]string{
		"1": {"oaipmhID", rec.OAIID},
	})
	if err != nil {
		return "", err
	}

	params := url.Values{}
	params.Set("idsite", strconv.Itoa(siteID))
	params.Set("rec", "1")
	params.Set("url", links.RecordHTML(rec.ID))
	params.Set("_id", visitorID)
	params.Set("cid", visitorID)
	params.Set("cvar", string(cvar))
	params.Set("cdt", ev.Timestamp.UTC().Format(time.RFC3339))
	params.Set("action_name", truncate(rec.Title, maxActionNameLength))

	if ev.Referrer != "" {
		params.Set("urlref", stripReferrer(ev.Referrer))
	}
	if ev.Country != "" {
		params.Set("country", strings.ToLower(ev.Country))
	}
	if ev.IsDownload() {
		fileURL := links.RecordFile(rec.ID, ev.FileKey)
		params.Set("url", fileURL)
		params.Set("download", fileURL)
	}

	return "?" + params.Encode(), nil
}
