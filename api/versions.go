package api

import (
	"github.com/cns-iu/dvl-llm/history"
	"github.com/cns-iu/dvl-llm/orchestrator"
)

// snapshotsToVersions serves the versions endpoint from memory when no
// persistent store is configured.
func snapshotsToVersions(sessionID string, snaps []orchestrator.Snapshot) []history.Version {
	out := make([]history.Version, 0, len(snaps))
	for _, snap := range snaps {
		out = append(out, history.Version{
			SessionID:    sessionID,
			Iteration:    snap.Iteration,
			OutputName:   snap.OutputName,
			Code:         snap.Code,
			Status:       snap.Outcome.Status,
			ErrorKind:    int(snap.Outcome.ErrorKind),
			ErrorMessage: snap.Outcome.ErrorMessage,
			ArtifactPath: snap.Outcome.OutputArtifactPath,
			CreatedAt:    snap.CreatedAt,
		})
	}
	return out
}
