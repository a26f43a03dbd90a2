package priority

import "strings"

// ActionRule maps trigger stems to an operational action.
type ActionRule struct {
	Triggers []string `koanf:"triggers" json:"triggers"`
	Action   string   `koanf:"action" json:"action"`
}

// ActionTable is the keyword-to-action lookup used by the ranker. Rules are
// evaluated in order; Fallback is used when nothing matches.
type ActionTable struct {
	Rules    []ActionRule `koanf:"rules" json:"rules"`
	Fallback string       `koanf:"fallback" json:"fallback"`
}

const DefaultFallback = "Investigate this issue: read the sample reviews and agree on one concrete fix."

// DefaultActionTable covers the common complaints of small service businesses.
func DefaultActionTable() ActionTable {
	return ActionTable{
		Rules: []ActionRule{
			{Triggers: []string{"wait", "line", "queue", "slow", "minute", "forever", "late"},
				Action: "Reduce queue time: add staff at peak hours, simplify the ordering workflow and prep high-demand items."},
			{Triggers: []string{"rude", "attitude", "unfriendly", "ignored", "unprofessional"},
				Action: "Improve service manners: short staff coaching, a greeting script and manager follow-up on complaints."},
			{Triggers: []string{"dirty", "clean", "bathroom", "toilet", "mess", "smell", "filthy", "sticky"},
				Action: "Review cleaning protocol: add a cleaning checklist and assign ownership per shift."},
			{Triggers: []string{"price", "expensive", "cost", "overpriced", "pricey"},
				Action: "Address pricing: highlight value, add bundles or adjust portion and quality messaging."},
			{Triggers: []string{"cold", "hot", "temperature", "burnt", "stale", "undercooked", "overcooked"},
				Action: "Fix product quality: check holding times, packaging and the handoff process."},
			{Triggers: []string{"schedule", "appointment", "booking", "reservation", "cancel"},
				Action: "Fix scheduling: tighten booking rules, add buffer time and confirm appointments."},
			{Triggers: []string{"noise", "noisy", "loud", "crowded", "cramped"},
				Action: "Improve the space: manage seating density and noise at peak hours."},
		},
		Fallback: DefaultFallback,
	}
}

// Match returns the action for the first keyword (in the given order) that
// triggers a rule. A keyword triggers a rule when one of its words starts with
// one of the rule's triggers.
func (t ActionTable) Match(keywords []string) (string, bool) {
	for _, kw := range keywords {
		for _, word := range strings.Fields(strings.ToLower(kw)) {
			for _, r := range t.Rules {
				for _, trig := range r.Triggers {
					if trig != "" && strings.HasPrefix(word, strings.ToLower(trig)) {
						return r.Action, true
					}
				}
			}
		}
	}
	return t.fallback(), false
}

func (t ActionTable) fallback() string {
	if t.Fallback == "" {
		return DefaultFallback
	}
	return t.Fallback
}
