// Package model defines the provider-agnostic abstractions and concrete
// helpers for interacting with language / vision models inside stylemesh.
//
// Core goals:
//   - Unify streaming + non-streaming generation behind a single interface
//   - Normalize tool / function call representation (ToolDefinition, ToolCall)
//   - Carry image parts and JSON response hints for photo analysis
//   - Facilitate lightweight mocking for tests (MockModel)
//
// Providers (OpenAI, Anthropic, Google Gemini) implement the Model interface
// in sub-packages so higher layers (agents, flows) remain decoupled from
// vendor SDKs.
package model
