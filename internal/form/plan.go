package form

// PlanDefaults returns the initial values of the plan creation form.
func PlanDefaults() map[string]any {
	return map[string]any{
		"name":         "",
		"description":  "",
		"monthlyPrice": "",
		"yearlyPrice":  "",
		"currency":     "USD",
		"trialDays":    "",
		"features":     "",
		"addons":       "",
		"slaUptime":    "",
		"supportTier":  "",
	}
}
