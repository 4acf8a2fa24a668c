package activitypub

import (
	"log"

	"github.com/google/uuid"
	"github.com/lattice-fed/lattice/db"
	"github.com/lattice-fed/lattice/domain"
	"github.com/lattice-fed/lattice/util"
)

// Federator bundles the federation engine: resolver, ledger, delivery
// pool and notification sink. Constructed once at startup and passed by
// handle to everything that federates; there is no package-level state.
type Federator struct {
	DB        *db.DB
	Conf      *util.AppConfig
	Resolver  *Resolver
	Ledger    *Ledger
	Deliverer *Deliverer
	Notify    domain.NotifySink
}

func New(database *db.DB, conf *util.AppConfig, sink domain.NotifySink) *Federator {
	if sink == nil {
		sink = noopSink{}
	}
	return &Federator{
		DB:        database,
		Conf:      conf,
		Resolver:  NewResolver(database, conf),
		Ledger:    NewLedger(database),
		Deliverer: NewDeliverer(conf),
		Notify:    sink,
	}
}

// publish emits a realtime notification, fire-and-forget.
func (f *Federator) publish(kind string, id uuid.UUID, change string) {
	f.Notify.Publish(domain.Notification{ObjectKind: kind, ObjectId: id, Change: change})
}

type noopSink struct{}

func (noopSink) Publish(domain.Notification) {}

// logUnhandled notes an activity we accept but do not act on. Keeping
// these as successful no-ops is what keeps the protocol forward
// compatible with newer remote implementations.
func logUnhandled(what, detail string) {
	log.Printf("Dispatch: unhandled %s: %s", what, detail)
}
