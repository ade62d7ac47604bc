package core

// ArtifactStore defines the interface for artifact persistence (uploaded
// photos, generated outfit images). Implementations should be thread-safe and
// scope artifacts by session identifier.
type ArtifactStore interface {
	Save(sessionID, artifactID string, data []byte) error
	Get(sessionID, artifactID string) ([]byte, error)
	List(sessionID string) ([]string, error)
	Delete(sessionID, artifactID string) error
	// DeleteSession removes every artifact of the session. Unknown sessions are a no-op.
	DeleteSession(sessionID string) error
}
