package alerts

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"

	"commute-planner/internal/models"
)

// DefaultAlertsFeedURL is the consolidated MTA alert feed.
const DefaultAlertsFeedURL = "https://api-endpoint.mta.info/Dataservice/mtagtfsfeeds/camsys%2Fall-alerts"

// fetchFeed downloads and parses the raw alert feed. Malformed
// entities are skipped; only an unreadable feed fails the fetch.
func (c *Correlator) fetchFeed(ctx context.Context) ([]models.ServiceAlert, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building alerts request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching alerts feed: %w: %v", models.ErrFeedUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("alerts feed returned status %d: %w", resp.StatusCode, models.ErrFeedUnavailable)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading alerts response: %w", err)
	}

	feed := &gtfs.FeedMessage{}
	if err := proto.Unmarshal(body, feed); err != nil {
		return nil, fmt.Errorf("parsing alerts protobuf: %w: %v", models.ErrBadPayload, err)
	}

	return c.parseFeed(feed), nil
}

func (c *Correlator) parseFeed(feed *gtfs.FeedMessage) []models.ServiceAlert {
	var out []models.ServiceAlert
	for _, entity := range feed.GetEntity() {
		raw := entity.GetAlert()
		if raw == nil {
			continue
		}

		header := translatedText(raw.GetHeaderText())
		if header == "" {
			continue
		}

		alert := models.ServiceAlert{
			ID:          entity.GetId(),
			Header:      header,
			Description: translatedText(raw.GetDescriptionText()),
			Severity:    severityFrom(raw.GetSeverityLevel()),
		}

		seen := make(map[string]bool)
		for _, ie := range raw.GetInformedEntity() {
			informed := models.InformedEntity{
				RouteID: ie.GetRouteId(),
				StopID:  ie.GetStopId(),
			}
			if trip := ie.GetTrip(); trip != nil && trip.DirectionId != nil {
				d := int(trip.GetDirectionId())
				informed.DirectionID = &d
			}
			alert.InformedEntities = append(alert.InformedEntities, informed)
			if informed.RouteID != "" && !seen[informed.RouteID] {
				seen[informed.RouteID] = true
				alert.Lines = append(alert.Lines, informed.RouteID)
			}
		}

		// Keep the earliest-starting period; the feed rarely sends
		// more than one and the correlator only needs one window.
		if periods := raw.GetActivePeriod(); len(periods) > 0 {
			alert.ActivePeriod = periodFrom(periods[0])
		}

		alert.StationSkipping = c.classifier.StationSkipping(alert)
		out = append(out, alert)
	}
	return out
}

func periodFrom(p *gtfs.TimeRange) *models.ActivePeriod {
	period := &models.ActivePeriod{}
	if p.GetStart() > 0 {
		t := time.Unix(int64(p.GetStart()), 0)
		period.Start = &t
	}
	if p.GetEnd() > 0 {
		t := time.Unix(int64(p.GetEnd()), 0)
		period.End = &t
	}
	if period.Start == nil && period.End == nil {
		return nil
	}
	return period
}

func severityFrom(level gtfs.Alert_SeverityLevel) models.Severity {
	switch level {
	case gtfs.Alert_SEVERE:
		return models.SeveritySevere
	case gtfs.Alert_WARNING:
		return models.SeverityWarning
	default:
		return models.SeverityInfo
	}
}

func translatedText(ts *gtfs.TranslatedString) string {
	if ts == nil {
		return ""
	}
	for _, t := range ts.GetTranslation() {
		if t.GetLanguage() == "en" || t.GetLanguage() == "" {
			return t.GetText()
		}
	}
	if len(ts.GetTranslation()) > 0 {
		return ts.GetTranslation()[0].GetText()
	}
	return ""
}
