package api

import "github.com/starford/wikimapper/internal/lookup"

// ExistsResponse is returned by GET /exists/{kind}. oracle.HTTPClient
// decodes the "exists" field.
type ExistsResponse = lookup.ExistsResult

// ResolveResponse is returned by GET /resolve/{category}.
type ResolveResponse = lookup.ResolveResult

// ClassifyResponse is returned by GET /classify.
type ClassifyResponse = lookup.ClassifyResult

// StatsResponse is returned by GET /stats.
type StatsResponse = lookup.StatsResult
