package db

import (
	"database/sql"

	"github.com/google/uuid"
	"github.com/lattice-fed/lattice/domain"
)

const (
	// Concurrent resolutions of the same actor race; the conflict clause
	// makes both writers converge on one row instead of duplicating it.
	sqlUpsertActor = `INSERT INTO actors
		(id, kind, username, domain, actor_uri, display_name, summary, inbox_uri, shared_inbox_uri, outbox_uri, public_key_pem, private_key_pem, local, deleted, last_refreshed_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(actor_uri) DO UPDATE SET
			display_name = excluded.display_name,
			summary = excluded.summary,
			inbox_uri = excluded.inbox_uri,
			shared_inbox_uri = excluded.shared_inbox_uri,
			outbox_uri = excluded.outbox_uri,
			public_key_pem = excluded.public_key_pem,
			last_refreshed_at = excluded.last_refreshed_at`

	sqlActorColumns = `id, kind, username, domain, actor_uri, display_name, summary, inbox_uri, shared_inbox_uri, outbox_uri, public_key_pem, private_key_pem, local, deleted, last_refreshed_at, created_at`

	sqlSelectActorByURI   = `SELECT ` + sqlActorColumns + ` FROM actors WHERE actor_uri = ?`
	sqlSelectActorById    = `SELECT ` + sqlActorColumns + ` FROM actors WHERE id = ?`
	sqlSelectLocalActor   = `SELECT ` + sqlActorColumns + ` FROM actors WHERE username = ? AND kind = ? AND local = 1`
	sqlSetActorDeleted    = `UPDATE actors SET deleted = ? WHERE actor_uri = ?`
	sqlSelectCommunityFollowers = `SELECT ` + prefixedActorColumns + ` FROM actors
		INNER JOIN follows ON follows.actor_id = actors.id
		WHERE follows.community_id = ? AND follows.accepted = 1`

	prefixedActorColumns = `actors.id, actors.kind, actors.username, actors.domain, actors.actor_uri, actors.display_name, actors.summary, actors.inbox_uri, actors.shared_inbox_uri, actors.outbox_uri, actors.public_key_pem, actors.private_key_pem, actors.local, actors.deleted, actors.last_refreshed_at, actors.created_at`
)

// UpsertActor inserts a new actor row or overwrites the mutable fields of
// an existing one (key, inbox URLs, names). The local flag, private key
// and created_at of an existing row are never clobbered.
func (db *DB) UpsertActor(a *domain.Actor) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlUpsertActor,
			a.Id, a.Kind, a.Username, a.Domain, a.ActorURI,
			a.DisplayName, a.Summary, a.InboxURI, a.SharedInboxURI, a.OutboxURI,
			a.PublicKeyPem, a.PrivateKeyPem, a.Local, a.Deleted,
			a.LastRefreshedAt, a.CreatedAt)
		return err
	})
}

func (db *DB) ReadActorByURI(uri string) (*domain.Actor, error) {
	return db.scanActor(db.db.QueryRow(sqlSelectActorByURI, uri))
}

func (db *DB) ReadActorById(id uuid.UUID) (*domain.Actor, error) {
	return db.scanActor(db.db.QueryRow(sqlSelectActorById, id))
}

// ReadLocalActor looks up a locally-hosted Person or Group by username.
func (db *DB) ReadLocalActor(username, kind string) (*domain.Actor, error) {
	return db.scanActor(db.db.QueryRow(sqlSelectLocalActor, username, kind))
}

// SetActorDeleted marks an actor inactive. Actor rows are never removed.
func (db *DB) SetActorDeleted(uri string, deleted bool) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlSetActorDeleted, deleted, uri)
		return err
	})
}

// ReadCommunityFollowers returns the accepted followers of a community.
func (db *DB) ReadCommunityFollowers(communityId uuid.UUID) ([]domain.Actor, error) {
	rows, err := db.db.Query(sqlSelectCommunityFollowers, communityId)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var actors []domain.Actor
	for rows.Next() {
		a, err := scanActorRow(rows)
		if err != nil {
			return nil, err
		}
		actors = append(actors, *a)
	}
	return actors, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (db *DB) scanActor(row *sql.Row) (*domain.Actor, error) {
	a, err := scanActorRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func scanActorRow(row rowScanner) (*domain.Actor, error) {
	var a domain.Actor
	var sharedInbox, outbox, privateKey sql.NullString
	err := row.Scan(&a.Id, &a.Kind, &a.Username, &a.Domain, &a.ActorURI,
		&a.DisplayName, &a.Summary, &a.InboxURI, &sharedInbox, &outbox,
		&a.PublicKeyPem, &privateKey, &a.Local, &a.Deleted,
		&a.LastRefreshedAt, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	a.SharedInboxURI = sharedInbox.String
	a.OutboxURI = outbox.String
	a.PrivateKeyPem = privateKey.String
	return &a, nil
}
