package macros

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tophosts/internal/database"
)

type fakeHosts struct {
	hosts []database.Host
	err   error
}

func (f *fakeHosts) GetHosts(ctx context.Context, filters database.HostFilters) ([]database.Host, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []database.Host
	for _, h := range f.hosts {
		if slices.Contains(filters.HostIDs, h.ID) {
			out = append(out, h)
		}
	}
	return out, nil
}

func testHost() *database.Host {
	return &database.Host{
		ID:        "10084",
		Name:      "Web server 01",
		Host:      "web-01",
		IPv4:      "10.0.0.5",
		Inventory: map[string]string{"os": "Linux", "location": ""},
		Macros:    map[string]string{"{$RACK}": "R12"},
	}
}

func TestExpand(t *testing.T) {
	tests := []struct {
		template string
		want     string
	}{
		{"{HOST.NAME}", "Web server 01"},
		{"{HOST.HOST} ({HOST.IP})", "web-01 (10.0.0.5)"},
		{"id={HOST.ID}", "id=10084"},
		{"{INVENTORY.OS}", "Linux"},
		{"{INVENTORY.os}", "Linux"},
		{"{INVENTORY.LOCATION}", ""},
		{"{INVENTORY.SERIALNO_A}", ""},
		{"rack {$RACK}", "rack R12"},
		{"{$MISSING}", "{$MISSING}"},
		{"{ITEM.VALUE}", "{ITEM.VALUE}"},
		{"plain text", "plain text"},
	}

	for _, tt := range tests {
		t.Run(tt.template, func(t *testing.T) {
			assert.Equal(t, tt.want, Expand(tt.template, testHost()))
		})
	}
}

func TestResolver_ResolveTextColumns(t *testing.T) {
	h1 := testHost()
	h2 := &database.Host{ID: "10085", Name: "db-01", Inventory: map[string]string{"os": "FreeBSD"}}
	resolver := NewResolver(&fakeHosts{hosts: []database.Host{*h1, *h2}})

	got, err := resolver.ResolveTextColumns(context.Background(), map[int]string{
		0: "{INVENTORY.OS}",
		2: "{INVENTORY.LOCATION}",
	}, []string{"10084", "10085"})
	require.NoError(t, err)

	assert.Equal(t, map[int]map[string]string{
		0: {"10084": "Linux", "10085": "FreeBSD"},
		2: {"10084": "", "10085": ""},
	}, got)
}

func TestResolver_NoHosts(t *testing.T) {
	resolver := NewResolver(&fakeHosts{err: errors.New("should not be called")})

	got, err := resolver.ResolveTextColumns(context.Background(), map[int]string{1: "{HOST.NAME}"}, nil)
	require.NoError(t, err)
	assert.Equal(t, map[int]map[string]string{1: {}}, got)
}

func TestResolver_Error(t *testing.T) {
	resolver := NewResolver(&fakeHosts{err: errors.New("inventory down")})

	_, err := resolver.ResolveTextColumns(context.Background(), map[int]string{1: "{HOST.NAME}"}, []string{"1"})
	assert.ErrorContains(t, err, "inventory down")
}
