package postgres

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/angryss/idp/domain/core/valueobjects"
)

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTimePtr(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

func nullUUID(id uuid.UUID) sql.NullString {
	if id == uuid.Nil {
		return sql.NullString{}
	}
	return sql.NullString{String: id.String(), Valid: true}
}

func scanUUID(ns sql.NullString) (uuid.UUID, error) {
	if !ns.Valid || ns.String == "" {
		return uuid.Nil, nil
	}
	return uuid.Parse(ns.String)
}

// configBytes renders the configuration document for a jsonb column; an
// empty document is stored as SQL NULL.
func configBytes(doc valueobjects.ConfigDoc) ([]byte, error) {
	if len(doc) == 0 {
		return nil, nil
	}
	return json.Marshal(doc)
}

// scanConfig parses a jsonb column back into a document; NULL becomes nil.
func scanConfig(raw []byte) (valueobjects.ConfigDoc, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var doc valueobjects.ConfigDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}
