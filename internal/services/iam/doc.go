// Package iam issues and resolves access tokens.
//
// Grant runs the OAuth2 resource owner password flow against the registered
// clients and the upstream user collection. Authenticate turns the bearer
// token of an inbound request back into a Principal.
//
// Neither operation keeps state between calls: tokens are self-contained and
// nothing is persisted.
package iam
