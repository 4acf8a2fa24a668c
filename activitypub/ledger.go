package activitypub

import (
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/lattice-fed/lattice/db"
	"github.com/lattice-fed/lattice/domain"
)

// Ledger is the append-only record of every activity this instance has
// seen. IsKnown/Record form the gateway's dedupe gate; the pair is not
// re-entrant, so two concurrent deliveries of the same activity can both
// pass the check and be dispatched. Handlers stay idempotent for exactly
// that reason.
type Ledger struct {
	db *db.DB
}

func NewLedger(database *db.DB) *Ledger {
	return &Ledger{db: database}
}

// IsKnown reports whether an activity ID has been seen before. Errors are
// treated as "unknown" so a ledger read failure degrades to reprocessing,
// which handlers tolerate.
func (l *Ledger) IsKnown(activityURI string) bool {
	known, err := l.db.ActivityExists(activityURI)
	if err != nil {
		log.Printf("Ledger: dedupe check failed for %s: %v", activityURI, err)
		return false
	}
	return known
}

// Record appends an activity to the ledger. Recording an already-known
// activity is a silent no-op, never an error.
func (l *Ledger) Record(act *Activity, raw []byte, local bool) error {
	return l.db.InsertActivity(&domain.Activity{
		Id:           uuid.New(),
		ActivityURI:  act.ID,
		ActivityType: act.Type,
		ActorURI:     act.Actor,
		ObjectURI:    act.ObjectURI(),
		RawJSON:      string(raw),
		Local:        local,
		CreatedAt:    time.Now(),
	})
}

// ReadByURI returns the recorded activity for a URI, or nil if never seen.
func (l *Ledger) ReadByURI(activityURI string) (*domain.Activity, error) {
	return l.db.ReadActivityByURI(activityURI)
}
