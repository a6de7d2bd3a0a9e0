// internal/macros/resolver.go - text column macro expansion against host inventory
package macros

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"tophosts/internal/database"
)

// HostSource loads hosts by id.
type HostSource interface {
	GetHosts(ctx context.Context, filters database.HostFilters) ([]database.Host, error)
}

type Resolver struct {
	hosts HostSource
}

func NewResolver(hosts HostSource) *Resolver {
	return &Resolver{hosts: hosts}
}

var macroPattern = regexp.MustCompile(`\{(\$[A-Z0-9_.]+|[A-Z][A-Z0-9_]*\.[A-Za-z0-9_.]+)\}`)

// ResolveTextColumns expands every template for every host in one pass over
// the inventory. The result is keyed by column index, then host id.
func (r *Resolver) ResolveTextColumns(ctx context.Context, templates map[int]string, hostIDs []string) (map[int]map[string]string, error) {
	resolved := make(map[int]map[string]string, len(templates))
	if len(templates) == 0 || len(hostIDs) == 0 {
		for index := range templates {
			resolved[index] = map[string]string{}
		}
		return resolved, nil
	}

	hosts, err := r.hosts.GetHosts(ctx, database.HostFilters{HostIDs: hostIDs})
	if err != nil {
		return nil, fmt.Errorf("failed to load hosts for macro resolution: %w", err)
	}

	for index, template := range templates {
		values := make(map[string]string, len(hosts))
		for i := range hosts {
			values[hosts[i].ID] = Expand(template, &hosts[i])
		}
		resolved[index] = values
	}

	return resolved, nil
}

// Expand substitutes host macros in template. Macros it does not know are
// left in place.
func Expand(template string, host *database.Host) string {
	return macroPattern.ReplaceAllStringFunc(template, func(m string) string {
		value, ok := lookup(m[1:len(m)-1], host)
		if !ok {
			return m
		}
		return value
	})
}

func lookup(name string, host *database.Host) (string, bool) {
	if strings.HasPrefix(name, "$") {
		value, ok := host.Macros["{"+name+"}"]
		if !ok {
			value, ok = host.Macros[name]
		}
		return value, ok
	}

	switch name {
	case "HOST.NAME":
		return host.Name, true
	case "HOST.HOST":
		return host.Host, true
	case "HOST.ID":
		return host.ID, true
	case "HOST.IP", "HOST.CONN":
		return host.IPv4, true
	}

	if field, ok := strings.CutPrefix(name, "INVENTORY."); ok {
		for k, v := range host.Inventory {
			if strings.EqualFold(k, field) {
				return v, true
			}
		}
		return "", true
	}

	return "", false
}
