// Package github reads pull requests from the GitHub REST API.
//
// Source implements [driven.PullRequestSource] on top of Client, which wraps
// go-github with pagination, proactive throttling and error mapping.
//
// # Authentication
//
// A personal access token (classic or fine-grained) or an OAuth access token
// is sent as a bearer token. Private repositories need the 'repo' scope, or
// read access to pull requests for fine-grained tokens. Unauthenticated
// requests work for public repositories but are limited to 60 per hour.
//
// # Rate Limiting
//
// RateLimiter throttles proactively (ProactiveRate requests per second by
// default) and reads X-RateLimit-* headers from every response. When fewer
// than MinBuffer requests remain it waits for the reset. Primary and
// secondary limit responses surface as *RateLimitError.
//
// # GitHub Enterprise
//
// Set Config.BaseURL to the API root of the instance, for example
// https://ghe.example.com/api/v3/.
package github
