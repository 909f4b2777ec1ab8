package rewrite

import (
	"encoding/json"
)

// Rule identifies one substitution the rewriter can apply.
type Rule uint8

// Rules in the order they are reported.
const (
	RuleImport Rule = iota
	RuleBaseClass
	RulePartialClass
	RuleLifecycle
	RuleTimeDelta
	RulePositionChain
	RuleArgumentChain
	RuleLogCall
	RuleComponentLookup
	RuleEnabledFlag
	RuleFieldType
	RuleArrayType

	ruleCount
)

var ruleNames = [ruleCount]string{
	RuleImport:          "import",
	RuleBaseClass:       "base_class",
	RulePartialClass:    "partial_class",
	RuleLifecycle:       "lifecycle",
	RuleTimeDelta:       "time_delta",
	RulePositionChain:   "position_chain",
	RuleArgumentChain:   "argument_chain",
	RuleLogCall:         "log_call",
	RuleComponentLookup: "component_lookup",
	RuleEnabledFlag:     "enabled_flag",
	RuleFieldType:       "field_type",
	RuleArrayType:       "array_type",
}

func (r Rule) String() string {
	if r < ruleCount {
		return ruleNames[r]
	}

	return "unknown"
}

// Rules returns every rule in report order.
func Rules() []Rule {
	all := make([]Rule, ruleCount)
	for idx := range all {
		all[idx] = Rule(idx)
	}

	return all
}

// Stats counts rule firings for one or more rewrites. The zero value is ready to use.
type Stats struct {
	counts [ruleCount]int
}

// Count returns how often rule fired.
func (s Stats) Count(rule Rule) int {
	if rule >= ruleCount {
		return 0
	}

	return s.counts[rule]
}

// Total returns the number of rule firings.
func (s Stats) Total() int {
	total := 0
	for _, count := range s.counts {
		total += count
	}

	return total
}

// Add returns the element-wise sum of s and other.
func (s Stats) Add(other Stats) Stats {
	for idx, count := range other.counts {
		s.counts[idx] += count
	}

	return s
}

// Map returns the non-zero counters keyed by rule name.
func (s Stats) Map() map[string]int {
	out := make(map[string]int)

	for idx, count := range s.counts {
		if count > 0 {
			out[Rule(idx).String()] = count
		}
	}

	return out
}

// MarshalJSON encodes the non-zero counters as an object.
func (s Stats) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Map())
}

func (s *Stats) record(rule Rule) {
	s.counts[rule]++
}
