package permission

import (
	"sort"

	"github.com/warden-auth/warden/internal/scope"
)

// Effective merges a principal's direct grants with the grants of every group
// the principal belongs to and returns one access level per distinct policy.
//
// Merge rule: a single DENY from any source forces DENY for that policy,
// overriding every other grant including a direct WRITE. Absent a deny, the
// highest-ranked level wins. The result is computed fresh on every call;
// callers must not cache it across membership or grant changes.
func Effective(direct []Grant, groupGrants [][]Grant) map[string]scope.AccessLevel {
	effective := make(map[string]scope.AccessLevel)
	denied := make(map[string]struct{})

	merge := func(grants []Grant) {
		for _, g := range grants {
			if g.Level == scope.Deny {
				denied[g.PolicyName] = struct{}{}
				effective[g.PolicyName] = scope.Deny
				continue
			}
			if _, ok := denied[g.PolicyName]; ok {
				continue
			}
			current, ok := effective[g.PolicyName]
			if !ok || g.Level.Rank() > current.Rank() {
				effective[g.PolicyName] = g.Level
			}
		}
	}

	merge(direct)
	for _, grants := range groupGrants {
		merge(grants)
	}
	return effective
}

// Scopes renders an effective permission map as scope values sorted by
// policy name for stable token payloads.
func Scopes(effective map[string]scope.AccessLevel) []scope.Scope {
	scopes := make([]scope.Scope, 0, len(effective))
	for name, level := range effective {
		scopes = append(scopes, scope.Scope{PolicyName: name, Level: level})
	}
	sort.Slice(scopes, func(i, j int) bool { return scopes[i].PolicyName < scopes[j].PolicyName })
	return scopes
}
