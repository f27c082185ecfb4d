// Package verify resolves YouTube video identifiers to their titles and
// writes a CSV of watch URLs and titles.
//
// Identifiers are read one per line; blank lines are ignored and full watch
// URLs are reduced to their identifier. Lookups go through the Resolver
// interface in batches of at most 50 ids. YouTubeResolver is the production
// implementation on top of the YouTube Data API v3 client. Identifiers the
// service does not return are reported explicitly in Report.Missing.
package verify
