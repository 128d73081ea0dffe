// Package store persists outcome tracking state. Two implementations exist:
// FileStore keeps plain JSON files for standalone deployments, PGStore backs
// onto Postgres. Both satisfy core.Store.
package store

import "coo-agent/internal/core"

// Store is the persistence surface consumed by the tracking pipeline.
type Store = core.Store
