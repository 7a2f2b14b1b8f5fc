package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"math"

	sq "github.com/Masterminds/squirrel"
	"github.com/cespare/xxhash/v2"
	"github.com/fwojciec/urlkeep"
	"github.com/google/uuid"
)

var _ urlkeep.RecordService = (*RecordService)(nil)

// RecordService implements urlkeep.RecordService using SQLite. Title and
// canonical URL are UNIQUE columns, and every insert re-checks both inside
// its transaction.
type RecordService struct {
	db *DB
}

// NewRecordService creates a new RecordService.
func NewRecordService(db *DB) *RecordService {
	return &RecordService{db: db}
}

var recordColumns = []string{
	"id", "title", "location", "canonical_url", "text", "extractor",
	"fields", "content_hash", "created_at", "modified_at",
}

// hashContent digests the record's text and extra fields.
func hashContent(rec *urlkeep.Record) string {
	d := xxhash.New()
	_, _ = d.WriteString(rec.Text)
	for _, name := range rec.FieldNames() {
		_, _ = d.WriteString("\x00" + name + "\x00" + rec.Fields[name])
	}
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], d.Sum64())
	return hex.EncodeToString(b[:])
}

// prepareRecord validates rec and fills the fields the store owns.
func (db *DB) prepareRecord(rec *urlkeep.Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	rec.ID = uuid.New().String()
	now := db.now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.ModifiedAt = now
	rec.ContentHash = hashContent(rec)
	return nil
}

// insertRecord writes rec within q after checking both unique keys, so
// the caller gets a DuplicateURLError or ECOLLISION instead of a bare
// constraint violation.
func insertRecord(ctx context.Context, q querier, rec *urlkeep.Record) error {
	existing, err := findRecord(ctx, q, "canonical_url", rec.CanonicalURL)
	if err == nil {
		return &urlkeep.DuplicateURLError{CanonicalURL: rec.CanonicalURL, Existing: existing}
	} else if urlkeep.ErrorCode(err) != urlkeep.ENOTFOUND {
		return err
	}

	if _, err := findRecord(ctx, q, "title", rec.Title); err == nil {
		return urlkeep.Errorf(urlkeep.ECOLLISION, "title %q already exists", rec.Title)
	} else if urlkeep.ErrorCode(err) != urlkeep.ENOTFOUND {
		return err
	}

	fields, err := json.Marshal(rec.Fields)
	if err != nil {
		return urlkeep.WrapError(urlkeep.EINTERNAL, err, "failed to encode fields")
	}
	if rec.Fields == nil {
		fields = []byte("{}")
	}

	query, args, err := sq.Insert("records").Columns(recordColumns...).Values(
		rec.ID, rec.Title, rec.Location, rec.CanonicalURL, rec.Text, rec.Extractor,
		string(fields), rec.ContentHash, formatTime(rec.CreatedAt), formatTime(rec.ModifiedAt),
	).ToSql()
	if err != nil {
		return urlkeep.WrapError(urlkeep.EINTERNAL, err, "failed to build insert")
	}
	_, err = q.ExecContext(ctx, query, args...)
	return err
}

// CreateRecord creates a record in its own transaction.
func (s *RecordService) CreateRecord(ctx context.Context, rec *urlkeep.Record) error {
	if err := s.db.prepareRecord(rec); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := insertRecord(ctx, tx, rec); err != nil {
		return err
	}
	return tx.Commit()
}

// FindRecordByCanonicalURL retrieves the record for a canonical URL.
func (s *RecordService) FindRecordByCanonicalURL(ctx context.Context, canonicalURL string) (*urlkeep.Record, error) {
	return findRecord(ctx, s.db, "canonical_url", canonicalURL)
}

// FindRecordByTitle retrieves a record by exact title.
func (s *RecordService) FindRecordByTitle(ctx context.Context, title string) (*urlkeep.Record, error) {
	return findRecord(ctx, s.db, "title", title)
}

func findRecord(ctx context.Context, q querier, column, value string) (*urlkeep.Record, error) {
	query, args, err := sq.Select(recordColumns...).From("records").Where(sq.Eq{column: value}).ToSql()
	if err != nil {
		return nil, urlkeep.WrapError(urlkeep.EINTERNAL, err, "failed to build query")
	}

	rec, err := scanRecord(q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, urlkeep.Errorf(urlkeep.ENOTFOUND, "record not found")
	}
	return rec, err
}

// FindRecords retrieves records oldest first.
func (s *RecordService) FindRecords(ctx context.Context, filter urlkeep.RecordFilter) ([]*urlkeep.Record, error) {
	b := sq.Select(recordColumns...).From("records").OrderBy("created_at ASC", "title ASC")
	if filter.Extractor != nil {
		b = b.Where(sq.Eq{"extractor": *filter.Extractor})
	}
	if filter.Limit > 0 {
		b = b.Limit(uint64(filter.Limit))
	} else if filter.Offset > 0 {
		// SQLite rejects OFFSET without LIMIT.
		b = b.Limit(math.MaxInt64)
	}
	if filter.Offset > 0 {
		b = b.Offset(uint64(filter.Offset))
	}

	query, args, err := b.ToSql()
	if err != nil {
		return nil, urlkeep.WrapError(urlkeep.EINTERNAL, err, "failed to build query")
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []*urlkeep.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// DeleteRecord permanently removes a record.
func (s *RecordService) DeleteRecord(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM records WHERE id = ?", id)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return urlkeep.Errorf(urlkeep.ENOTFOUND, "record not found")
	}
	return nil
}

// Stage begins a two-phase write.
func (s *RecordService) Stage() urlkeep.RecordStager {
	return &RecordStager{svc: s}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*urlkeep.Record, error) {
	var rec urlkeep.Record
	var fields, createdAt, modifiedAt string
	if err := row.Scan(&rec.ID, &rec.Title, &rec.Location, &rec.CanonicalURL, &rec.Text,
		&rec.Extractor, &fields, &rec.ContentHash, &createdAt, &modifiedAt); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(fields), &rec.Fields); err != nil {
		return nil, urlkeep.WrapError(urlkeep.EINTERNAL, err, "failed to decode fields")
	}
	if len(rec.Fields) == 0 {
		rec.Fields = nil
	}

	var err error
	if rec.CreatedAt, err = parseTime(createdAt, "created_at"); err != nil {
		return nil, err
	}
	if rec.ModifiedAt, err = parseTime(modifiedAt, "modified_at"); err != nil {
		return nil, err
	}
	return &rec, nil
}
