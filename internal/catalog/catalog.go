// Package catalog is the persistent ValidPaths/Refs relation backing the
// store: which paths are registered, their content hashes, and the
// reference edges between them.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/javanhut/castore/internal/storepath"
	"github.com/javanhut/castore/internal/xhash"
)

// ValidPathInfo is the catalog's record of a registered store path.
type ValidPathInfo struct {
	ID               int64
	StorePath        storepath.StorePath
	Deriver          *storepath.StorePath
	NarHash          xhash.Hash
	NarSize          uint64
	References       []storepath.StorePath
	RegistrationTime time.Time
	Signatures       []string
	ContentAddressed *string
	Ultimate         bool
}

// Catalog wraps a SQLite connection holding the ValidPaths/Refs schema.
type Catalog struct {
	db       *sql.DB
	storeDir string
}

// Open opens (creating if absent) the catalog database at path and applies
// the connection discipline: foreign keys on, WAL journaling, a relaxed
// synchronous level appropriate to WAL, a generous checkpoint threshold,
// and an hour-long busy timeout so concurrent writers block rather than
// fail outright.
func Open(ctx context.Context, path, storeDir string) (*Catalog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("catalog: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA synchronous = normal",
		"PRAGMA journal_mode = WAL",
		"PRAGMA wal_autocheckpoint = 40000",
		"PRAGMA busy_timeout = 3600000",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("catalog: %s: %w", p, err)
		}
	}
	if err := ensureSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &Catalog{db: db, storeDir: storeDir}, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS ValidPaths (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	path             TEXT UNIQUE NOT NULL,
	hash             TEXT NOT NULL,
	registrationTime INTEGER NOT NULL,
	deriver          TEXT,
	narSize          INTEGER,
	ultimate         INTEGER NOT NULL DEFAULT 0,
	sigs             TEXT,
	ca               TEXT
);
CREATE TABLE IF NOT EXISTS Refs (
	referrer  INTEGER NOT NULL REFERENCES ValidPaths(id),
	reference INTEGER NOT NULL REFERENCES ValidPaths(id),
	PRIMARY KEY (referrer, reference)
);
CREATE INDEX IF NOT EXISTS IndexReferrer ON Refs(referrer);
CREATE INDEX IF NOT EXISTS IndexReference ON Refs(reference);
`

func ensureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("catalog: create schema: %w", err)
	}
	return nil
}

// Close closes the underlying connection.
func (c *Catalog) Close() error { return c.db.Close() }

const queryPathInfo = `SELECT id, hash, registrationTime, deriver, narSize, ultimate, sigs, ca
FROM ValidPaths WHERE path = ?`

const queryReferences = `SELECT path FROM Refs JOIN ValidPaths ON reference = id WHERE referrer = ?`

const queryReferrers = `SELECT r.path FROM Refs
JOIN ValidPaths AS r ON Refs.referrer = r.id
JOIN ValidPaths AS t ON Refs.reference = t.id
WHERE t.path = ?`

// GetPathInfo looks up a single path's catalog record, including its
// references. It reports (nil, nil) if the path is not registered.
func (c *Catalog) GetPathInfo(ctx context.Context, p storepath.StorePath) (*ValidPathInfo, error) {
	canon := p.Absolute(c.storeDir)
	row := c.db.QueryRowContext(ctx, queryPathInfo, canon)

	var (
		id               int64
		hashStr          string
		regTime          int64
		deriver          sql.NullString
		narSize          sql.NullInt64
		ultimate         int64
		sigs             sql.NullString
		ca               sql.NullString
	)
	if err := row.Scan(&id, &hashStr, &regTime, &deriver, &narSize, &ultimate, &sigs, &ca); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("catalog: get path info %s: %w", canon, err)
	}

	h, err := xhash.Decode(hashStr)
	if err != nil {
		return nil, fmt.Errorf("catalog: decode nar hash for %s: %w", canon, err)
	}

	info := &ValidPathInfo{
		ID:               id,
		StorePath:        p,
		NarHash:          h,
		RegistrationTime: time.Unix(regTime, 0).UTC(),
		Ultimate:         ultimate != 0,
	}
	if narSize.Valid {
		info.NarSize = uint64(narSize.Int64)
	}
	if deriver.Valid {
		d, err := storepath.ParseFull(c.storeDir, deriver.String)
		if err != nil {
			return nil, fmt.Errorf("catalog: decode deriver for %s: %w", canon, err)
		}
		info.Deriver = &d
	}
	if sigs.Valid && sigs.String != "" {
		info.Signatures = strings.Split(sigs.String, " ")
	}
	if ca.Valid {
		v := ca.String
		info.ContentAddressed = &v
	}

	refRows, err := c.db.QueryContext(ctx, queryReferences, id)
	if err != nil {
		return nil, fmt.Errorf("catalog: get references for %s: %w", canon, err)
	}
	defer refRows.Close()
	for refRows.Next() {
		var refPath string
		if err := refRows.Scan(&refPath); err != nil {
			return nil, err
		}
		rp, err := storepath.ParseFull(c.storeDir, refPath)
		if err != nil {
			return nil, fmt.Errorf("catalog: decode reference %s: %w", refPath, err)
		}
		info.References = append(info.References, rp)
	}
	if err := refRows.Err(); err != nil {
		return nil, err
	}
	return info, nil
}

// GetReferrers returns every store path whose Refs row points at p.
func (c *Catalog) GetReferrers(ctx context.Context, p storepath.StorePath) (*storepath.Set, error) {
	rows, err := c.db.QueryContext(ctx, queryReferrers, p.Absolute(c.storeDir))
	if err != nil {
		return nil, fmt.Errorf("catalog: get referrers of %s: %w", p.String(), err)
	}
	defer rows.Close()

	set := storepath.NewSet()
	for rows.Next() {
		var refPath string
		if err := rows.Scan(&refPath); err != nil {
			return nil, err
		}
		rp, err := storepath.ParseFull(c.storeDir, refPath)
		if err != nil {
			return nil, fmt.Errorf("catalog: decode referrer %s: %w", refPath, err)
		}
		set.Add(rp)
	}
	return set, rows.Err()
}

// InsertValidPaths registers infos atomically: every referenced path must
// either already be registered or be present in infos itself, so Refs rows
// never dangle. A whole derivation closure can be registered in one call.
func (c *Catalog) InsertValidPaths(ctx context.Context, infos []ValidPathInfo) error {
	if len(infos) == 0 {
		return nil
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("catalog: begin transaction: %w", err)
	}
	defer tx.Rollback()

	ids := make(map[string]int64, len(infos))
	order := insertionOrder(infos)

	for _, idx := range order {
		info := infos[idx]
		canon := info.StorePath.Absolute(c.storeDir)

		var deriver sql.NullString
		if info.Deriver != nil {
			deriver = sql.NullString{String: info.Deriver.Absolute(c.storeDir), Valid: true}
		}
		var ca sql.NullString
		if info.ContentAddressed != nil {
			ca = sql.NullString{String: *info.ContentAddressed, Valid: true}
		}
		sigs := strings.Join(info.Signatures, " ")
		ultimate := 0
		if info.Ultimate {
			ultimate = 1
		}
		hashStr := xhash.EncodeWithType(info.NarHash, xhash.Base16)

		// RETURNING rather than LastInsertId: last_insert_rowid() is not
		// updated when the conflict arm fires, so an upsert of an
		// already-registered path would report a stale id.
		var id int64
		err := tx.QueryRowContext(ctx, `
			INSERT INTO ValidPaths (path, hash, registrationTime, deriver, narSize, ultimate, sigs, ca)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(path) DO UPDATE SET
				hash = excluded.hash,
				registrationTime = excluded.registrationTime,
				deriver = excluded.deriver,
				narSize = excluded.narSize,
				ultimate = excluded.ultimate,
				sigs = excluded.sigs,
				ca = excluded.ca
			RETURNING id`,
			canon, hashStr, info.RegistrationTime.Unix(), deriver, info.NarSize, ultimate, sigs, ca).Scan(&id)
		if err != nil {
			return fmt.Errorf("catalog: insert %s: %w", canon, err)
		}
		ids[canon] = id
	}

	for _, idx := range order {
		info := infos[idx]
		referrer := ids[info.StorePath.Absolute(c.storeDir)]
		for _, ref := range info.References {
			refID, ok := ids[ref.Absolute(c.storeDir)]
			if !ok {
				existing, err := lookupID(ctx, tx, ref.Absolute(c.storeDir))
				if err != nil {
					return fmt.Errorf("catalog: reference %s for %s is not registered: %w", ref.String(), info.StorePath.String(), err)
				}
				refID = existing
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT OR IGNORE INTO Refs (referrer, reference) VALUES (?, ?)`,
				referrer, refID); err != nil {
				return fmt.Errorf("catalog: insert ref %s -> %s: %w", info.StorePath.String(), ref.String(), err)
			}
		}
	}

	return tx.Commit()
}

func lookupID(ctx context.Context, tx *sql.Tx, path string) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx, `SELECT id FROM ValidPaths WHERE path = ?`, path).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("lookup id for %s: %w", path, err)
	}
	return id, nil
}

// insertionOrder returns indices into infos such that every path appears
// before any other path that references it, when both are present in the
// same batch. Paths are visited in order of their leaf form, each emitted
// after its not-yet-emitted in-batch dependencies (a DFS post-order).
func insertionOrder(infos []ValidPathInfo) []int {
	indexOf := make(map[string]int, len(infos))
	for i, info := range infos {
		indexOf[info.StorePath.String()] = i
	}

	var visited, onStack []bool
	visited = make([]bool, len(infos))
	onStack = make([]bool, len(infos))
	var order []int

	var visit func(i int)
	visit = func(i int) {
		if visited[i] {
			return
		}
		visited[i] = true
		onStack[i] = true
		deps := make([]int, 0, len(infos[i].References))
		for _, ref := range infos[i].References {
			if ref == infos[i].StorePath {
				continue // self-reference never orders against itself
			}
			if j, ok := indexOf[ref.String()]; ok && !onStack[j] {
				deps = append(deps, j)
			}
		}
		sort.Ints(deps)
		for _, j := range deps {
			visit(j)
		}
		onStack[i] = false
		order = append(order, i)
	}

	idxs := make([]int, len(infos))
	for i := range infos {
		idxs[i] = i
	}
	sort.Slice(idxs, func(a, b int) bool { return infos[idxs[a]].StorePath.String() < infos[idxs[b]].StorePath.String() })
	for _, i := range idxs {
		visit(i)
	}
	return order
}
