// Package artifact contains concrete implementations of core.ArtifactStore.
//
// Artifacts are the binary payloads of a fashion session: the uploaded user
// photo and the generated outfit visualizations. Callers depend on the core
// interface so alternative persistence layers can be swapped in.
package artifact
