// Package ingest expands a player's search plan and reads the posts each
// search returned.
package ingest

import (
	"fmt"
	"regexp"
	"strings"
)

// Query is one account and name-variation search.
type Query struct {
	Account   string
	Variation string
}

// Text is the search string sent to the social platform.
func (q Query) Text() string {
	if q.Account == "" {
		return fmt.Sprintf("%q", q.Variation)
	}
	return fmt.Sprintf("from:%s %q", q.Account, q.Variation)
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// FileName is where a harvester stores this query's posts.
func (q Query) FileName() string {
	slug := func(s string) string {
		return strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(s), "_"), "_")
	}
	if q.Account == "" {
		return slug(q.Variation) + ".jsonl"
	}
	return slug(q.Account) + "__" + slug(q.Variation) + ".jsonl"
}

// Plan expands every account against every name variation. With no
// accounts, each variation becomes an open search.
func Plan(accounts, variations []string) []Query {
	if len(accounts) == 0 {
		accounts = []string{""}
	}
	var out []Query
	for _, a := range accounts {
		a = strings.TrimPrefix(strings.TrimSpace(a), "@")
		for _, v := range variations {
			if v = strings.TrimSpace(v); v != "" {
				out = append(out, Query{Account: a, Variation: v})
			}
		}
	}
	return out
}
