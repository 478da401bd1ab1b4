// Package model defines the provider-neutral interface agents use to talk to a
// reasoning backend, plus a scriptable MockModel for tests and examples.
// Concrete adapters live in the gemini, openai and anthropic sub-packages.
package model
