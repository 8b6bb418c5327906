package domain

// AuditRule is an operator-defined flag rule evaluated against the
// enriched vehicle summary. Expressions are CEL and must return bool.
// Triggered rules attach supplementary audit flags to the risk response;
// they never alter the fixed risk_reason tag set.
type AuditRule struct {
	ID          string `json:"id"`
	TenantID    string `json:"tenantId"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Version     string `json:"version"`

	// CEL expression over the summary row, e.g. "night_refuel_cnt >= 5"
	Expression string `json:"expression"`

	// Tag attached to the vehicle when the expression is true
	Tag string `json:"tag"`

	// Whether rule is active
	Enabled bool `json:"enabled"`
}

// AuditFlag is one triggered audit rule for one vehicle.
type AuditFlag struct {
	RuleID    string `json:"ruleId"`
	VehicleID string `json:"vehicleId"`
	Tag       string `json:"tag"`
	Reason    string `json:"reason,omitempty"`
}
