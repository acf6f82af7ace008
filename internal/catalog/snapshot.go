package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/javanhut/castore/internal/storepath"
	"github.com/javanhut/castore/internal/xhash"
)

// snapshotRow is the JSON-serializable form of a ValidPathInfo row. Store
// paths are rendered in leaf form ("<hash>-<name>") so a snapshot can be
// loaded into a catalog rooted at a different store directory.
type snapshotRow struct {
	Path             string   `json:"path"`
	Deriver          string   `json:"deriver,omitempty"`
	NarHash          string   `json:"narHash"`
	NarSize          uint64   `json:"narSize"`
	References       []string `json:"references,omitempty"`
	RegistrationTime int64    `json:"registrationTime"`
	Signatures       []string `json:"signatures,omitempty"`
	ContentAddressed string   `json:"ca,omitempty"`
	Ultimate         bool     `json:"ultimate"`
}

// DumpCatalog writes every ValidPaths row (with its references) to w as a
// zstd-compressed JSON array, an operator backup/transfer format analogous
// to exporting the whole catalog closure in one file.
func (c *Catalog) DumpCatalog(ctx context.Context, w io.Writer) error {
	paths, err := c.allPaths(ctx)
	if err != nil {
		return err
	}

	rows := make([]snapshotRow, 0, len(paths))
	for _, p := range paths {
		info, err := c.GetPathInfo(ctx, p)
		if err != nil {
			return err
		}
		if info == nil {
			continue
		}
		row := snapshotRow{
			Path:             info.StorePath.String(),
			NarHash:          xhash.EncodeWithType(info.NarHash, xhash.Base16),
			NarSize:          info.NarSize,
			RegistrationTime: info.RegistrationTime.Unix(),
			Signatures:       info.Signatures,
			Ultimate:         info.Ultimate,
		}
		if info.Deriver != nil {
			row.Deriver = info.Deriver.String()
		}
		if info.ContentAddressed != nil {
			row.ContentAddressed = *info.ContentAddressed
		}
		for _, ref := range info.References {
			row.References = append(row.References, ref.String())
		}
		rows = append(rows, row)
	}

	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return fmt.Errorf("catalog: zstd writer: %w", err)
	}
	if err := json.NewEncoder(enc).Encode(rows); err != nil {
		enc.Close()
		return fmt.Errorf("catalog: encode snapshot: %w", err)
	}
	return enc.Close()
}

// LoadCatalog reads a snapshot written by DumpCatalog and registers its
// rows via InsertValidPaths, preserving reference-insertion ordering.
func (c *Catalog) LoadCatalog(ctx context.Context, r io.Reader) error {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return fmt.Errorf("catalog: zstd reader: %w", err)
	}
	defer dec.Close()

	var rows []snapshotRow
	if err := json.NewDecoder(dec).Decode(&rows); err != nil {
		return fmt.Errorf("catalog: decode snapshot: %w", err)
	}

	infos := make([]ValidPathInfo, 0, len(rows))
	for _, row := range rows {
		p, err := storepath.ParseBaseName(row.Path)
		if err != nil {
			return fmt.Errorf("catalog: snapshot path %s: %w", row.Path, err)
		}
		h, err := xhash.Decode(row.NarHash)
		if err != nil {
			return fmt.Errorf("catalog: snapshot hash for %s: %w", row.Path, err)
		}
		info := ValidPathInfo{
			StorePath:        p,
			NarHash:          h,
			NarSize:          row.NarSize,
			RegistrationTime: time.Unix(row.RegistrationTime, 0).UTC(),
			Signatures:       row.Signatures,
			Ultimate:         row.Ultimate,
		}
		if row.Deriver != "" {
			d, err := storepath.ParseBaseName(row.Deriver)
			if err != nil {
				return fmt.Errorf("catalog: snapshot deriver for %s: %w", row.Path, err)
			}
			info.Deriver = &d
		}
		if row.ContentAddressed != "" {
			ca := row.ContentAddressed
			info.ContentAddressed = &ca
		}
		for _, refPath := range row.References {
			rp, err := storepath.ParseBaseName(refPath)
			if err != nil {
				return fmt.Errorf("catalog: snapshot reference %s: %w", refPath, err)
			}
			info.References = append(info.References, rp)
		}
		infos = append(infos, info)
	}

	return c.InsertValidPaths(ctx, infos)
}

func (c *Catalog) allPaths(ctx context.Context) ([]storepath.StorePath, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT path FROM ValidPaths`)
	if err != nil {
		return nil, fmt.Errorf("catalog: list paths: %w", err)
	}
	defer rows.Close()

	var out []storepath.StorePath
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, err
		}
		p, err := storepath.ParseFull(c.storeDir, path)
		if err != nil {
			return nil, fmt.Errorf("catalog: parse listed path %s: %w", path, err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
