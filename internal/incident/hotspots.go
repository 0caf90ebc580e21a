package incident

import (
	"sort"
	"time"

	"github.com/pulsewatch/pulse-alerting/internal/models"
)

// MineHotspots aggregates incident history into per-metric frequency
// hotspots for the incident-listing UI. Prevalence is the share of
// incidents a metric appears in; results are ordered most prevalent first.
func MineHotspots(incidents []models.AlertIncident, limit int) []models.MetricHotspot {
	if len(incidents) == 0 {
		return nil
	}

	type aggregate struct {
		incidents int
		alerts    int
		lastSeen  time.Time
	}
	byMetric := make(map[string]*aggregate)

	for _, incident := range incidents {
		for _, metric := range incident.RelatedMetrics {
			if metric == "" {
				continue
			}
			agg, ok := byMetric[metric]
			if !ok {
				agg = &aggregate{}
				byMetric[metric] = agg
			}
			agg.incidents++
			agg.alerts += len(incident.AlertEventIDs)
			if incident.StartedAt.After(agg.lastSeen) {
				agg.lastSeen = incident.StartedAt
			}
		}
	}

	hotspots := make([]models.MetricHotspot, 0, len(byMetric))
	for metric, agg := range byMetric {
		hotspots = append(hotspots, models.MetricHotspot{
			MetricKey:     metric,
			IncidentCount: agg.incidents,
			AlertCount:    agg.alerts,
			Prevalence:    float64(agg.incidents) / float64(len(incidents)),
			LastSeen:      agg.lastSeen,
		})
	}

	sort.Slice(hotspots, func(i, j int) bool {
		if hotspots[i].Prevalence != hotspots[j].Prevalence {
			return hotspots[i].Prevalence > hotspots[j].Prevalence
		}
		return hotspots[i].MetricKey < hotspots[j].MetricKey
	})

	if limit > 0 && len(hotspots) > limit {
		hotspots = hotspots[:limit]
	}
	return hotspots
}
