package db

import (
	"database/sql"

	"github.com/lattice-fed/lattice/domain"
)

const (
	// Post and comment upserts are keyed by ap_id and guarded so that a
	// stale replay never rolls content back: the conflict branch only
	// fires when the incoming updated timestamp is not older than the
	// stored one (last-write-wins). Moderation flags are never touched
	// by an upsert.
	sqlUpsertPost = `INSERT INTO posts
		(id, ap_id, title, url, body, creator_id, community_id, removed, deleted, locked, published, updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(ap_id) DO UPDATE SET
			title = excluded.title,
			url = excluded.url,
			body = excluded.body,
			locked = excluded.locked,
			updated = excluded.updated
		WHERE excluded.updated >= posts.updated`

	sqlPostColumns = `id, ap_id, title, url, body, creator_id, community_id, removed, deleted, locked, published, updated`

	sqlSelectPostByApID = `SELECT ` + sqlPostColumns + ` FROM posts WHERE ap_id = ?`
	sqlSetPostRemoved   = `UPDATE posts SET removed = ? WHERE ap_id = ?`
	sqlSetPostDeleted   = `UPDATE posts SET deleted = ? WHERE ap_id = ?`

	sqlUpsertComment = `INSERT INTO comments
		(id, ap_id, post_id, parent_id, creator_id, content, removed, deleted, published, updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(ap_id) DO UPDATE SET
			content = excluded.content,
			updated = excluded.updated
		WHERE excluded.updated >= comments.updated`

	sqlCommentColumns = `id, ap_id, post_id, parent_id, creator_id, content, removed, deleted, published, updated`

	sqlSelectCommentByApID = `SELECT ` + sqlCommentColumns + ` FROM comments WHERE ap_id = ?`
	sqlSetCommentRemoved   = `UPDATE comments SET removed = ? WHERE ap_id = ?`
	sqlSetCommentDeleted   = `UPDATE comments SET deleted = ? WHERE ap_id = ?`
)

// UpsertPost inserts a post or refreshes the content fields of an
// existing one, keyed by ap_id. Returns the stored row, which keeps its
// original id when the post already existed.
func (db *DB) UpsertPost(p *domain.Post) (*domain.Post, error) {
	err := db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlUpsertPost,
			p.Id, p.ApID, p.Title, p.URL, p.Body, p.CreatorId, p.CommunityId,
			p.Removed, p.Deleted, p.Locked, p.Published, p.Updated)
		return err
	})
	if err != nil {
		return nil, err
	}
	return db.ReadPostByApID(p.ApID)
}

func (db *DB) ReadPostByApID(apId string) (*domain.Post, error) {
	var p domain.Post
	var url, body sql.NullString
	err := db.db.QueryRow(sqlSelectPostByApID, apId).Scan(
		&p.Id, &p.ApID, &p.Title, &url, &body, &p.CreatorId, &p.CommunityId,
		&p.Removed, &p.Deleted, &p.Locked, &p.Published, &p.Updated)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.URL = url.String
	p.Body = body.String
	return &p, nil
}

func (db *DB) SetPostRemoved(apId string, removed bool) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlSetPostRemoved, removed, apId)
		return err
	})
}

func (db *DB) SetPostDeleted(apId string, deleted bool) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlSetPostDeleted, deleted, apId)
		return err
	})
}

// UpsertComment mirrors UpsertPost for comments.
func (db *DB) UpsertComment(c *domain.Comment) (*domain.Comment, error) {
	err := db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlUpsertComment,
			c.Id, c.ApID, c.PostId, c.ParentId, c.CreatorId, c.Content,
			c.Removed, c.Deleted, c.Published, c.Updated)
		return err
	})
	if err != nil {
		return nil, err
	}
	return db.ReadCommentByApID(c.ApID)
}

func (db *DB) ReadCommentByApID(apId string) (*domain.Comment, error) {
	var c domain.Comment
	err := db.db.QueryRow(sqlSelectCommentByApID, apId).Scan(
		&c.Id, &c.ApID, &c.PostId, &c.ParentId, &c.CreatorId, &c.Content,
		&c.Removed, &c.Deleted, &c.Published, &c.Updated)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (db *DB) SetCommentRemoved(apId string, removed bool) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlSetCommentRemoved, removed, apId)
		return err
	})
}

func (db *DB) SetCommentDeleted(apId string, deleted bool) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlSetCommentDeleted, deleted, apId)
		return err
	})
}
