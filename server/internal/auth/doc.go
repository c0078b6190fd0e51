// Package auth provides authentication middleware for the coordinator.
//
// APIKey(mode, header, key) returns chi-compatible HTTP middleware that
// validates the API key from the named request header. It guards the REST
// API and the extractor websocket endpoint alike.
//
// When mode != "apikey" or key == "", all requests pass through (useful for
// local development with auth disabled). When the key is incorrect or
// absent, the middleware answers 401 immediately.
package auth
