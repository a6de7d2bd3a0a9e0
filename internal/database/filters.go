// internal/database/filters.go - host and item matching shared by the stores
package database

import (
	"regexp"
	"slices"
	"strings"
)

func (f HostFilters) matches(host *Host) bool {
	if len(f.HostIDs) > 0 && !slices.Contains(f.HostIDs, host.ID) {
		return false
	}
	if len(f.GroupIDs) > 0 && !inAnyGroup(host.Groups, f.GroupIDs) {
		return false
	}
	if f.ExcludeMaintenance && host.MaintenanceStatus == MaintenanceStatusOn {
		return false
	}
	return matchTags(host.Tags, f.Tags, f.EvalType)
}

func inAnyGroup(hostGroups, wanted []string) bool {
	for _, g := range hostGroups {
		if slices.Contains(wanted, g) {
			return true
		}
	}
	return false
}

// matchTags applies tag filters. And/Or groups filters by tag name: filters on
// the same name are OR'ed and the groups are AND'ed. Or matches any filter.
func matchTags(tags []Tag, filters []TagFilter, evalType TagEvalType) bool {
	if len(filters) == 0 {
		return true
	}

	if evalType == TagEvalOr {
		for _, f := range filters {
			if f.match(tags) {
				return true
			}
		}
		return false
	}

	groups := make(map[string]bool)
	var order []string
	for _, f := range filters {
		if _, seen := groups[f.Tag]; !seen {
			order = append(order, f.Tag)
			groups[f.Tag] = false
		}
		if f.match(tags) {
			groups[f.Tag] = true
		}
	}
	for _, name := range order {
		if !groups[name] {
			return false
		}
	}
	return true
}

func (f TagFilter) match(tags []Tag) bool {
	switch f.Operator {
	case TagOperatorExists:
		return hasTag(tags, f.Tag)
	case TagOperatorNotExists:
		return !hasTag(tags, f.Tag)
	case TagOperatorNotEqual:
		for _, t := range tags {
			if t.Tag == f.Tag && t.Value == f.Value {
				return false
			}
		}
		return true
	case TagOperatorNotLike:
		for _, t := range tags {
			if t.Tag == f.Tag && containsFold(t.Value, f.Value) {
				return false
			}
		}
		return true
	case TagOperatorEqual:
		for _, t := range tags {
			if t.Tag == f.Tag && t.Value == f.Value {
				return true
			}
		}
		return false
	default:
		for _, t := range tags {
			if t.Tag == f.Tag && containsFold(t.Value, f.Value) {
				return true
			}
		}
		return false
	}
}

func hasTag(tags []Tag, name string) bool {
	for _, t := range tags {
		if t.Tag == name {
			return true
		}
	}
	return false
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

// NamePattern matches item names the way the item search does with wildcards
// enabled: case-insensitive, "*" matches any run of characters, the rest of
// the pattern must match exactly.
type NamePattern struct {
	re *regexp.Regexp
}

func CompileNamePattern(pattern string) *NamePattern {
	parts := strings.Split(pattern, "*")
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	return &NamePattern{re: regexp.MustCompile("(?is)^" + strings.Join(parts, ".*") + "$")}
}

func (p *NamePattern) Match(name string) bool {
	return p.re.MatchString(name)
}

func (f ItemFilters) matches(item *Item, pattern *NamePattern, hostGroups map[string][]string) bool {
	if len(f.HostIDs) > 0 && !slices.Contains(f.HostIDs, item.HostID) {
		return false
	}
	if len(f.GroupIDs) > 0 && !inAnyGroup(hostGroups[item.HostID], f.GroupIDs) {
		return false
	}
	if len(f.ValueTypes) > 0 && !slices.Contains(f.ValueTypes, item.ValueType) {
		return false
	}
	if pattern != nil && !pattern.Match(item.Name) {
		return false
	}
	return true
}
