// Package integration holds the application services of the marketplace
// chat bridge: the pull sync path, webhook ingestion and outbound sending.
package integration
