package db

import (
	"database/sql"

	"github.com/google/uuid"
	"github.com/lattice-fed/lattice/domain"
)

const (
	sqlUpsertVote = `INSERT INTO votes (id, actor_id, object_id, object_kind, score, uri, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(actor_id, object_id, object_kind) DO UPDATE SET
			score = excluded.score,
			uri = excluded.uri,
			created_at = excluded.created_at`

	sqlSelectVote = `SELECT id, actor_id, object_id, object_kind, score, uri, created_at
		FROM votes WHERE actor_id = ? AND object_id = ? AND object_kind = ?`

	sqlDeleteVote = `DELETE FROM votes WHERE actor_id = ? AND object_id = ? AND object_kind = ?`

	sqlUpsertFollow = `INSERT INTO follows (id, actor_id, community_id, uri, accepted, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(actor_id, community_id) DO UPDATE SET
			uri = excluded.uri,
			accepted = excluded.accepted`

	sqlSelectFollowByURI = `SELECT id, actor_id, community_id, uri, accepted, created_at
		FROM follows WHERE uri = ?`

	sqlDeleteFollowByURI = `DELETE FROM follows WHERE uri = ?`

	sqlAcceptFollowByURI = `UPDATE follows SET accepted = 1 WHERE uri = ?`

	sqlInsertActivity = `INSERT INTO activities (id, activity_uri, activity_type, actor_uri, object_uri, raw_json, local, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(activity_uri) DO NOTHING`

	sqlSelectActivityByURI = `SELECT id, activity_uri, activity_type, actor_uri, object_uri, raw_json, local, created_at
		FROM activities WHERE activity_uri = ?`

	sqlCountActivityByURI = `SELECT COUNT(1) FROM activities WHERE activity_uri = ?`
)

// UpsertVote records a reaction, replacing any prior reaction by the same
// actor on the same object.
func (db *DB) UpsertVote(v *domain.Vote) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlUpsertVote,
			v.Id, v.ActorId, v.ObjectId, v.ObjectKind, v.Score, v.URI, v.CreatedAt)
		return err
	})
}

func (db *DB) ReadVote(actorId, objectId uuid.UUID, objectKind string) (*domain.Vote, error) {
	var v domain.Vote
	err := db.db.QueryRow(sqlSelectVote, actorId, objectId, objectKind).Scan(
		&v.Id, &v.ActorId, &v.ObjectId, &v.ObjectKind, &v.Score, &v.URI, &v.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// DeleteVote removes a reaction row; deleting a vote that does not exist
// is not an error.
func (db *DB) DeleteVote(actorId, objectId uuid.UUID, objectKind string) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlDeleteVote, actorId, objectId, objectKind)
		return err
	})
}

// UpsertFollow records a follow relationship; a repeated Follow from the
// same actor replaces the previous row.
func (db *DB) UpsertFollow(f *domain.Follow) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlUpsertFollow,
			f.Id, f.ActorId, f.CommunityId, f.URI, f.Accepted, f.CreatedAt)
		return err
	})
}

func (db *DB) ReadFollowByURI(uri string) (*domain.Follow, error) {
	var f domain.Follow
	err := db.db.QueryRow(sqlSelectFollowByURI, uri).Scan(
		&f.Id, &f.ActorId, &f.CommunityId, &f.URI, &f.Accepted, &f.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (db *DB) DeleteFollowByURI(uri string) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlDeleteFollowByURI, uri)
		return err
	})
}

func (db *DB) AcceptFollowByURI(uri string) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlAcceptFollowByURI, uri)
		return err
	})
}

// InsertActivity appends to the ledger. A second activity with the same
// URI is silently ignored; ledger rows are immutable once written.
func (db *DB) InsertActivity(a *domain.Activity) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertActivity,
			a.Id, a.ActivityURI, a.ActivityType, a.ActorURI, a.ObjectURI,
			a.RawJSON, a.Local, a.CreatedAt)
		return err
	})
}

func (db *DB) ActivityExists(uri string) (bool, error) {
	var count int
	if err := db.db.QueryRow(sqlCountActivityByURI, uri).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func (db *DB) ReadActivityByURI(uri string) (*domain.Activity, error) {
	var a domain.Activity
	var objectURI sql.NullString
	err := db.db.QueryRow(sqlSelectActivityByURI, uri).Scan(
		&a.Id, &a.ActivityURI, &a.ActivityType, &a.ActorURI, &objectURI,
		&a.RawJSON, &a.Local, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	a.ObjectURI = objectURI.String
	return &a, nil
}
