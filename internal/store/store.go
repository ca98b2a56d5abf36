// Package store owns the authoritative record collection and its persistence.
//
// A Store is not safe for concurrent use. It is meant to be owned by the
// pipeline consumer goroutine, which is the only code allowed to call it.
package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/starford/jotter/internal/apperr"
	"github.com/starford/jotter/internal/crypto"
	"github.com/starford/jotter/internal/models"
	"github.com/starford/jotter/internal/storage"
)

// DefaultFile is the name of the persistence file inside the data directory.
const DefaultFile = "records.json"

const fileVersion = 1

// Predicate selects records during Search.
type Predicate func(models.Record) bool

// Option configures a Store.
type Option func(*Store)

// WithFile sets the persistence file name (relative to the provider root).
func WithFile(name string) Option {
	return func(s *Store) { s.file = name }
}

// WithClock replaces the source of "today" used for modification stamps.
func WithClock(today func() models.Date) Option {
	return func(s *Store) { s.today = today }
}

// WithCodecOptions passes options to the codec built by SetPassword.
func WithCodecOptions(opts ...crypto.Option) Option {
	return func(s *Store) { s.codecOpts = opts }
}

// Store is the record collection plus its persistence settings.
type Store struct {
	provider  storage.Provider
	file      string
	today     func() models.Date
	codecOpts []crypto.Option

	codec   *crypto.Codec // nil when encryption is off
	started bool
	nextID  int
	records []models.Record
}

// New returns an empty, unstarted store persisting through provider.
func New(provider storage.Provider, opts ...Option) *Store {
	s := &Store{
		provider: provider,
		file:     DefaultFile,
		today:    models.Today,
		nextID:   1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetPassword enables encryption for every later load and sync.
// It must be called, if at all, before Start.
func (s *Store) SetPassword(password string) (models.ReturnCode, error) {
	if s.started {
		return models.GenericError, apperr.ErrAlreadyStarted
	}
	if password == "" {
		return models.InvalidPassword, nil
	}
	codec, err := crypto.New(password, s.codecOpts...)
	if err != nil {
		return models.InvalidPassword, nil
	}
	s.codec = codec
	return models.OK, nil
}

// Encrypted reports whether a password has been set.
func (s *Store) Encrypted() bool {
	return s.codec != nil
}

// Start loads persisted state. A failed authentication maps to WrongPassword;
// every other failure maps to GenericError and is returned as well.
// Start may be called again to reload the file.
func (s *Store) Start() (models.ReturnCode, error) {
	code, err := s.Init()
	switch {
	case errors.Is(err, crypto.ErrIntegrity):
		return models.WrongPassword, nil
	case err != nil:
		return models.GenericError, err
	}
	s.started = true
	return code, nil
}

// Init reads the persistence file into memory. A missing file is the empty
// first-run state and yields Empty. Loaded records get fresh sequential ids.
func (s *Store) Init() (models.ReturnCode, error) {
	exists, err := s.provider.Exists(s.file)
	if err != nil {
		return models.GenericError, err
	}
	if !exists {
		s.records = nil
		return models.Empty, nil
	}

	data, err := s.provider.Read(s.file)
	if err != nil {
		return models.GenericError, err
	}
	if s.codec != nil {
		if data, err = s.codec.Decrypt(data); err != nil {
			return models.GenericError, fmt.Errorf("store: decrypt: %w", err)
		}
	}

	records, err := decode(data)
	if err != nil {
		return models.GenericError, err
	}
	for i := range records {
		records[i].ID = s.allocID()
		records[i].Tags = models.NormalizeTags(records[i].Tags)
	}
	s.records = records
	return models.OK, nil
}

// AddRecord assigns the next id to r, appends it and persists.
// It returns the stored copy.
func (s *Store) AddRecord(r models.Record) (models.Record, models.ReturnCode, error) {
	if !s.started {
		return models.Record{}, models.GenericError, apperr.ErrNotStarted
	}
	r = r.Clone()
	r.ID = s.allocID()
	r.Tags = models.NormalizeTags(r.Tags)
	if r.Created.IsZero() {
		r.Created = s.today()
	}
	if r.Modified.Before(r.Created) {
		r.Modified = r.Created
	}
	s.records = append(s.records, r)
	if err := s.Sync(); err != nil {
		s.records = s.records[:len(s.records)-1]
		return models.Record{}, models.GenericError, err
	}
	return r.Clone(), models.OK, nil
}

// UpdateRecord replaces the stored record sharing r's id and persists.
// The creation day is kept from the stored record; the modification day is
// set to today when text or tags changed. The previous version is returned.
func (s *Store) UpdateRecord(r models.Record) (models.Record, models.ReturnCode, error) {
	if !s.started {
		return models.Record{}, models.GenericError, apperr.ErrNotStarted
	}
	i := s.index(r.ID)
	if i < 0 {
		return models.Record{}, models.NotFound, nil
	}
	prev := s.records[i]

	next := r.Clone()
	next.Tags = models.NormalizeTags(next.Tags)
	next.Created = prev.Created
	if next.SameContent(prev) {
		next.Modified = prev.Modified
	} else {
		next.Modified = s.today()
	}
	if next.Modified.Before(next.Created) {
		next.Modified = next.Created
	}

	s.records[i] = next
	if err := s.Sync(); err != nil {
		s.records[i] = prev
		return models.Record{}, models.GenericError, err
	}
	return prev.Clone(), models.OK, nil
}

// RemoveRecord physically drops every record with the given id and persists.
// This is distinct from the soft-delete flag set through UpdateRecord.
func (s *Store) RemoveRecord(id int) ([]models.Record, models.ReturnCode, error) {
	if !s.started {
		return nil, models.GenericError, apperr.ErrNotStarted
	}
	before := slices.Clone(s.records)
	var removed []models.Record
	s.records = slices.DeleteFunc(s.records, func(r models.Record) bool {
		if r.ID == id {
			removed = append(removed, r)
			return true
		}
		return false
	})
	if err := s.Sync(); err != nil {
		s.records = before
		return nil, models.GenericError, err
	}
	return removed, models.OK, nil
}

// Restore re-inserts hard-removed records with their original ids. Records
// whose id is already present are skipped.
func (s *Store) Restore(records []models.Record) (models.ReturnCode, error) {
	if !s.started {
		return models.GenericError, apperr.ErrNotStarted
	}
	n := len(s.records)
	for _, r := range records {
		if s.index(r.ID) >= 0 || r.ID <= 0 || r.ID >= s.nextID {
			continue
		}
		s.records = append(s.records, r.Clone())
	}
	if err := s.Sync(); err != nil {
		s.records = s.records[:n]
		return models.GenericError, err
	}
	return models.OK, nil
}

// Search returns copies of every record matching pred, in insertion order.
func (s *Store) Search(pred Predicate) []models.Record {
	var found []models.Record
	for _, r := range s.records {
		if pred == nil || pred(r) {
			found = append(found, r.Clone())
		}
	}
	return found
}

// Len returns the number of records held, soft-deleted ones included.
func (s *Store) Len() int {
	return len(s.records)
}

// Sync writes the whole collection to the persistence file, sealing it
// first when encryption is enabled. Failures are I/O faults. Mutations whose
// sync fails are rolled back in memory.
func (s *Store) Sync() error {
	data, err := encode(s.records)
	if err != nil {
		return err
	}
	if s.codec != nil {
		if data, err = s.codec.Encrypt(data); err != nil {
			return fmt.Errorf("store: encrypt: %w", err)
		}
	}
	if err := s.provider.Write(s.file, data); err != nil {
		return fmt.Errorf("store: sync: %w", err)
	}
	return nil
}

func (s *Store) allocID() int {
	id := s.nextID
	s.nextID++
	return id
}

func (s *Store) index(id int) int {
	return slices.IndexFunc(s.records, func(r models.Record) bool { return r.ID == id })
}

// persisted is the on-disk shape of one record. Ids are process-local and
// are not written.
type persisted struct {
	Text     string      `json:"text"`
	Tags     []string    `json:"tags"`
	Created  models.Date `json:"cdate"`
	Modified models.Date `json:"mdate"`
	Deleted  bool        `json:"deleted"`
}

type document struct {
	Version int         `json:"version"`
	Records []persisted `json:"records"`
}

func encode(records []models.Record) ([]byte, error) {
	doc := document{Version: fileVersion, Records: make([]persisted, len(records))}
	for i, r := range records {
		doc.Records[i] = persisted{
			Text:     r.Text,
			Tags:     r.Tags,
			Created:  r.Created,
			Modified: r.Modified,
			Deleted:  r.Deleted,
		}
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("store: encode: %w", err)
	}
	return data, nil
}

func decode(data []byte) ([]models.Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var doc document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("store: decode: %w", err)
	}
	if doc.Version != fileVersion {
		return nil, fmt.Errorf("store: unsupported file version %d", doc.Version)
	}
	records := make([]models.Record, len(doc.Records))
	for i, p := range doc.Records {
		records[i] = models.Record{
			Text:     p.Text,
			Tags:     p.Tags,
			Created:  p.Created,
			Modified: p.Modified,
			Deleted:  p.Deleted,
		}
	}
	return records, nil
}
