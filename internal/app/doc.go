// Package app composes the ledger subsystems into a running application.
//
// The layering is strict: domain types at the bottom, storage interfaces and
// their implementations above them, stateless services (registry, ledger,
// oracle, policy) above storage, and the bank coordinator on top as the only
// mutating entry point. The admin controller and the HTTP API call into the
// coordinator; nothing reaches around it.
//
// Construction happens once in New: stores default to the shared in-memory
// implementation, the oracle feed and the transfer provider are selected from
// configuration, and background services are registered on a system.Manager
// whose lifecycle the Application exposes as Start and Stop.
package app
