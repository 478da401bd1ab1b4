// Package testutil contains helper builders used across tests to reduce the
// boilerplate of constructing run scopes, tool scopes and scripted model
// conversations. They are not intended for production usage.
package testutil
