// Where: internal/domain/verify/verify.go
// What: Static checks over a produced CloudFormation template.
// Why: Assert the stack's isolation and least-privilege invariants before submission.
package verify

import (
	"errors"
	"fmt"
	"sort"

	"github.com/poruru/efstack/internal/domain/cfn"
)

// Rule ids.
const (
	RuleNetworkZones  = "network-zones"
	RuleDBPrivate     = "db-private"
	RuleDBIngress     = "db-ingress"
	RuleEventGrant    = "event-grant"
	RuleSecretBinding = "secret-binding"
	RuleEventTarget   = "event-target"
	RuleReferences    = "references"
)

// Finding is one violated invariant.
type Finding struct {
	Rule     string
	Resource string
	Message  string
}

func (f Finding) String() string {
	if f.Resource == "" {
		return fmt.Sprintf("[%s] %s", f.Rule, f.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", f.Rule, f.Resource, f.Message)
}

// Report lists the rules that ran and the findings they produced.
type Report struct {
	Rules    []string
	Findings []Finding
}

// OK reports whether no finding was produced.
func (r Report) OK() bool {
	return len(r.Findings) == 0
}

// ByRule returns the findings of one rule.
func (r Report) ByRule(rule string) []Finding {
	var out []Finding
	for _, f := range r.Findings {
		if f.Rule == rule {
			out = append(out, f)
		}
	}
	return out
}

// Err joins every finding into one error, or returns nil.
func (r Report) Err() error {
	if r.OK() {
		return nil
	}
	errs := make([]error, 0, len(r.Findings))
	for _, f := range r.Findings {
		errs = append(errs, errors.New(f.String()))
	}
	return errors.Join(errs...)
}

type rule struct {
	id    string
	check func(*index) []Finding
}

var rules = []rule{
	{RuleReferences, checkReferences},
	{RuleNetworkZones, checkNetworkZones},
	{RuleDBPrivate, checkDBPrivate},
	{RuleDBIngress, checkDBIngress},
	{RuleEventGrant, checkEventGrant},
	{RuleSecretBinding, checkSecretBinding},
	{RuleEventTarget, checkEventTarget},
}

// RuleIDs lists every rule in evaluation order.
func RuleIDs() []string {
	out := make([]string, len(rules))
	for i, r := range rules {
		out[i] = r.id
	}
	return out
}

// Check runs every rule against the template.
func Check(t *cfn.Template) Report {
	idx := newIndex(t)
	report := Report{Rules: RuleIDs()}
	for _, r := range rules {
		findings := r.check(idx)
		sort.SliceStable(findings, func(i, j int) bool { return findings[i].Resource < findings[j].Resource })
		report.Findings = append(report.Findings, findings...)
	}
	return report
}

func checkReferences(idx *index) []Finding {
	var out []Finding
	for _, dangling := range idx.tpl.Dangling() {
		out = append(out, Finding{Rule: RuleReferences, Message: "undeclared reference " + dangling})
	}
	return out
}
