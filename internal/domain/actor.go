package domain

import "time"

// SystemActorName is the synthetic identity used to attribute automated
// status changes, distinct from human administrators.
const SystemActorName = "api-sync"

// Actor is an identity that can be recorded as the author of a mutation.
type Actor struct {
	ID        int64
	Name      string
	IsSystem  bool
	CreatedAt time.Time
}
