// Package integration contains the marketplace messaging bounded context.
// It models the local mirror of private chats held on an external marketplace
// and the ports the synchronization bridge uses to reach that marketplace.
//
// Key concepts:
//   - IntegrationConfig: stored API credentials and the shop's account id on the platform
//   - Chat: local mirror of a remote conversation, unique per (platform, external id)
//   - Message: one message inside a chat, unique per (chat, external id)
//   - MarketplaceAPI: port for the remote messaging API (chats, messages, send, webhooks)
//   - TokenSource / TokenCache: ports for obtaining and reusing access tokens
//
// Design Pattern: Ports & Adapters
//   - Ports (interfaces) are defined here in the domain layer
//   - Adapters (implementations) are in the infrastructure layer
package integration
