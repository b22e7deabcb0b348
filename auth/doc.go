// Package auth authenticates DataHub callers and decides which modules they
// may query.
//
// Clients send credentials the way the query endpoint has always accepted
// them: an authuser/authtoken pair in the query string, an X-API-Key header
// or a bearer JWT. A Chain tries the configured authenticators in order and
// Middleware attaches the resulting Identity to the request context. A
// GrantAuthorizer can then restrict module subtrees to roles.
//
// The credential parameters never reach query functions; the dispatcher
// strips them together with callerid.
package auth
