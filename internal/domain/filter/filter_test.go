package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   ListParams
		want uint64
	}{
		{name: "zero gets default", in: ListParams{}, want: 50},
		{name: "explicit kept", in: ListParams{Limit: 120}, want: 120},
		{name: "clamped to max", in: ListParams{Limit: 9000}, want: 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.Normalize().Limit)
		})
	}
}

func TestOrderClause(t *testing.T) {
	allowed := map[string]string{
		"sku":       "sku",
		"createdAt": "created_at",
	}

	tests := []struct {
		name string
		in   ListParams
		want string
	}{
		{name: "allowed ascending", in: ListParams{SortBy: "sku"}, want: "sku ASC"},
		{name: "allowed descending", in: ListParams{SortBy: "createdAt", SortDesc: true}, want: "created_at DESC"},
		{name: "unknown falls back", in: ListParams{SortBy: "password"}, want: "created_at DESC"},
		{name: "empty falls back", in: ListParams{}, want: "created_at DESC"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.OrderClause(allowed, "created_at DESC"))
		})
	}
}
