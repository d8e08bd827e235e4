// Package providers contains the shared OAuth2 provider base and the
// identity fetch client used by the built-in mail and CRM adapters.
package providers
