package db

import (
	"database/sql"
	"log"
)

const (
	// Unified actor table: local Persons and Groups carry a private key,
	// remote ones are cache rows refreshed from their origin server.
	sqlCreateActorsTable = `CREATE TABLE IF NOT EXISTS actors (
		id TEXT NOT NULL PRIMARY KEY,
		kind TEXT NOT NULL,
		username TEXT NOT NULL,
		domain TEXT NOT NULL,
		actor_uri TEXT UNIQUE NOT NULL,
		display_name TEXT,
		summary TEXT,
		inbox_uri TEXT NOT NULL,
		shared_inbox_uri TEXT,
		outbox_uri TEXT,
		public_key_pem TEXT NOT NULL,
		private_key_pem TEXT,
		local INTEGER DEFAULT 0,
		deleted INTEGER DEFAULT 0,
		last_refreshed_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(username, domain)
	)`

	sqlCreateActorsIndices = `
		CREATE INDEX IF NOT EXISTS idx_actors_actor_uri ON actors(actor_uri);
		CREATE INDEX IF NOT EXISTS idx_actors_domain ON actors(domain);
	`

	sqlCreatePostsTable = `CREATE TABLE IF NOT EXISTS posts (
		id TEXT NOT NULL PRIMARY KEY,
		ap_id TEXT UNIQUE NOT NULL,
		title TEXT NOT NULL,
		url TEXT,
		body TEXT,
		creator_id TEXT NOT NULL,
		community_id TEXT NOT NULL,
		removed INTEGER DEFAULT 0,
		deleted INTEGER DEFAULT 0,
		locked INTEGER DEFAULT 0,
		published TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

	sqlCreatePostsIndices = `
		CREATE INDEX IF NOT EXISTS idx_posts_ap_id ON posts(ap_id);
		CREATE INDEX IF NOT EXISTS idx_posts_community_id ON posts(community_id);
		CREATE INDEX IF NOT EXISTS idx_posts_creator_id ON posts(creator_id);
	`

	sqlCreateCommentsTable = `CREATE TABLE IF NOT EXISTS comments (
		id TEXT NOT NULL PRIMARY KEY,
		ap_id TEXT UNIQUE NOT NULL,
		post_id TEXT NOT NULL,
		parent_id TEXT,
		creator_id TEXT NOT NULL,
		content TEXT NOT NULL,
		removed INTEGER DEFAULT 0,
		deleted INTEGER DEFAULT 0,
		published TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

	sqlCreateCommentsIndices = `
		CREATE INDEX IF NOT EXISTS idx_comments_ap_id ON comments(ap_id);
		CREATE INDEX IF NOT EXISTS idx_comments_post_id ON comments(post_id);
	`

	// One reaction per actor per object.
	sqlCreateVotesTable = `CREATE TABLE IF NOT EXISTS votes (
		id TEXT NOT NULL PRIMARY KEY,
		actor_id TEXT NOT NULL,
		object_id TEXT NOT NULL,
		object_kind TEXT NOT NULL,
		score INTEGER NOT NULL,
		uri TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(actor_id, object_id, object_kind)
	)`

	sqlCreateVotesIndices = `
		CREATE INDEX IF NOT EXISTS idx_votes_object ON votes(object_id, object_kind);
	`

	sqlCreateFollowsTable = `CREATE TABLE IF NOT EXISTS follows (
		id TEXT NOT NULL PRIMARY KEY,
		actor_id TEXT NOT NULL,
		community_id TEXT NOT NULL,
		uri TEXT NOT NULL,
		accepted INTEGER DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(actor_id, community_id)
	)`

	sqlCreateFollowsIndices = `
		CREATE INDEX IF NOT EXISTS idx_follows_community_id ON follows(community_id);
		CREATE INDEX IF NOT EXISTS idx_follows_uri ON follows(uri);
	`

	// Activity ledger: dedupe gate and audit trail.
	sqlCreateActivitiesTable = `CREATE TABLE IF NOT EXISTS activities (
		id TEXT NOT NULL PRIMARY KEY,
		activity_uri TEXT UNIQUE NOT NULL,
		activity_type TEXT NOT NULL,
		actor_uri TEXT NOT NULL,
		object_uri TEXT,
		raw_json TEXT NOT NULL,
		local INTEGER DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

	sqlCreateActivitiesIndices = `
		CREATE INDEX IF NOT EXISTS idx_activities_uri ON activities(activity_uri);
		CREATE INDEX IF NOT EXISTS idx_activities_type ON activities(activity_type);
		CREATE INDEX IF NOT EXISTS idx_activities_created_at ON activities(created_at DESC);
	`
)

// Migrate creates all tables and indices. Statements are idempotent so
// running them at every startup is safe.
func (db *DB) Migrate() error {
	log.Println("Running database migrations...")

	return db.wrapTransaction(func(tx *sql.Tx) error {
		stmts := []string{
			sqlCreateActorsTable,
			sqlCreateActorsIndices,
			sqlCreatePostsTable,
			sqlCreatePostsIndices,
			sqlCreateCommentsTable,
			sqlCreateCommentsIndices,
			sqlCreateVotesTable,
			sqlCreateVotesIndices,
			sqlCreateFollowsTable,
			sqlCreateFollowsIndices,
			sqlCreateActivitiesTable,
			sqlCreateActivitiesIndices,
		}
		for _, stmt := range stmts {
			if _, err := tx.Exec(stmt); err != nil {
				return err
			}
		}
		return nil
	})
}
