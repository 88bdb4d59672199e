package entities

// StagedArtifact is a local file holding exactly one acquired clip. It is owned
// by the operation that staged it and must be released before that operation returns.
type StagedArtifact struct {
	ID   string
	Path string
	Size int64
}
