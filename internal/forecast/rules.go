package forecast

import (
	"fmt"

	"flockwatch/internal/models"
)

// Rule-layer thresholds. These are husbandry heuristics, deliberately
// separate from the statistical ensemble so heuristic warnings never
// masquerade as scored detection.
const (
	mortalityWarnPct    = 5.0
	fcrWarnRatio        = 2.5
	plateauMinGainKg    = 0.1
	heatStressTempC     = 28.0
	coldStressTempC     = 18.0
	warnSeverityCrit    = "critical"
	warnSeverityHigh    = "high"
	warnSeverityMedium  = "medium"
	ruleWindowDays      = 7
	tempRuleWindowDays  = 3
	plateauForecastDays = 7
)

// Warnings inspects the recent window and the 7-day forecast for
// operational red flags: elevated mortality, poor feed conversion, a
// projected weight plateau and out-of-band temperature.
func Warnings(window []models.Observation, sevenDay []models.ForecastDay) []models.Warning {
	var warnings []models.Warning

	if mortality := columnValues(tailObs(window, ruleWindowDays), models.MetricMortality); len(mortality) > 0 {
		if m := mean(mortality); m > mortalityWarnPct {
			warnings = append(warnings, models.Warning{
				Type:     "mortality_spike",
				Severity: warnSeverityCrit,
				Message:  fmt.Sprintf("High mortality rate detected: %.2f%%", m),
				Action:   "Immediate veterinary consultation required",
			})
		}
	}

	feed := columnValues(tailObs(window, ruleWindowDays), models.MetricFeed)
	weight := columnValues(tailObs(window, ruleWindowDays), models.MetricWeight)
	if len(feed) > 0 && len(weight) > 0 {
		if w := mean(weight); w > 0 {
			if fcr := mean(feed) / w; fcr > fcrWarnRatio {
				warnings = append(warnings, models.Warning{
					Type:     "feed_inefficiency",
					Severity: warnSeverityHigh,
					Message:  fmt.Sprintf("Poor feed conversion: FCR %.2f", fcr),
					Action:   "Review feed quality and formulation",
				})
			}
		}
	}

	if len(sevenDay) >= plateauForecastDays {
		gain := sevenDay[len(sevenDay)-1].Predicted - sevenDay[0].Predicted
		if gain < plateauMinGainKg {
			warnings = append(warnings, models.Warning{
				Type:     "weight_plateau",
				Severity: warnSeverityMedium,
				Message:  "Weight gain projected to slow significantly",
				Action:   "Consider adjusting feed formulation",
			})
		}
	}

	if temps := columnValues(tailObs(window, tempRuleWindowDays), models.MetricTemperature); len(temps) > 0 {
		t := mean(temps)
		switch {
		case t > heatStressTempC:
			warnings = append(warnings, models.Warning{
				Type:     "heat_stress_risk",
				Severity: warnSeverityHigh,
				Message:  fmt.Sprintf("High temperature: %.1f°C", t),
				Action:   "Increase ventilation, provide cool water",
			})
		case t < coldStressTempC:
			warnings = append(warnings, models.Warning{
				Type:     "cold_stress_risk",
				Severity: warnSeverityMedium,
				Message:  fmt.Sprintf("Low temperature: %.1f°C", t),
				Action:   "Increase heating, check for drafts",
			})
		}
	}

	return warnings
}
