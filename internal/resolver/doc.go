// Package resolver turns library items into downloadable stream URLs. It
// expands an item into its playable pages and negotiates the delivery
// format for each page, clamping the requested quality to what the account
// may use and falling back from the adaptive representation to the legacy
// combined format when the service rejects it.
package resolver
