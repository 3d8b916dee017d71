package cache

import (
	"net/url"
	"sort"
	"strings"
)

// Kind identifies which family of cached data a key belongs to.
// Invalidation and snapshots operate on whole kinds, so every filter
// variant of a list shares the fate of its kind.
type Kind string

const (
	KindInvoiceList   Kind = "invoice-list"
	KindInvoiceDetail Kind = "invoice-detail"
	KindActivity      Kind = "invoice-activity"
	KindVendorList    Kind = "vendor-list"
	KindVendorDetail  Kind = "vendor-detail"
)

// Key addresses one cached value: a kind plus a canonical filter
// descriptor. Detail kinds use the entity id as the filter.
type Key struct {
	Kind   Kind
	Filter string
}

// NewKey builds a key from a kind and a raw filter descriptor
func NewKey(kind Kind, filter string) Key {
	return Key{Kind: kind, Filter: filter}
}

// CanonicalFilter encodes filter parameters into a stable descriptor
// string so that equivalent filters always map to the same key. Empty
// values are dropped; keys are sorted.
func CanonicalFilter(params map[string]string) string {
	names := make([]string, 0, len(params))
	for name, value := range params {
		if value == "" {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for i, name := range names {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(name))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(params[name]))
	}
	return b.String()
}

// ParseFilter decodes a canonical descriptor back into its parameters,
// used when a stale key has to be refetched from its original query.
func ParseFilter(filter string) (map[string]string, error) {
	values, err := url.ParseQuery(filter)
	if err != nil {
		return nil, err
	}
	params := make(map[string]string, len(values))
	for name := range values {
		params[name] = values.Get(name)
	}
	return params, nil
}
