// Package action defines the closed set of operations the pipeline executes.
//
// Actions are plain data. They never reference the store; the pipeline
// consumer interprets them.
package action

import (
	"github.com/starford/jotter/internal/models"
	"github.com/starford/jotter/internal/store"
)

// Kind identifies an action variant.
type Kind int

const (
	KindAddRecord Kind = iota + 1
	KindUpdateRecord
	KindRemoveRecord
	KindSearch
	KindSetPassword
	KindStartStore
	KindUndo
	KindRestore
)

var kindNames = map[Kind]string{
	KindAddRecord:    "add_record",
	KindUpdateRecord: "update_record",
	KindRemoveRecord: "remove_record",
	KindSearch:       "search",
	KindSetPassword:  "set_password",
	KindStartStore:   "start_store",
	KindUndo:         "undo",
	KindRestore:      "restore",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Action is one requested operation. The interface is sealed: only the
// variants in this package implement it.
type Action interface {
	Kind() Kind
	sealed()
}

// AddRecord creates a record from text and tags. The store assigns the id.
type AddRecord struct {
	Text string
	Tags []string
}

// UpdateRecord replaces the stored record with the same id.
// Soft delete is an UpdateRecord with Deleted set.
type UpdateRecord struct {
	Record models.Record
}

// RemoveRecord physically drops the record with ID.
type RemoveRecord struct {
	ID int
}

// Search returns copies of every record matching Predicate.
type Search struct {
	Predicate store.Predicate
}

// SetPassword enables encryption. Valid only before StartStore.
type SetPassword struct {
	Password string
}

// StartStore loads (or reloads) the persistence file.
type StartStore struct{}

// Undo reverts the most recent undoable mutation.
type Undo struct{}

// Restore re-inserts hard-removed records with their original ids.
// The undo journal records it as the compensation for RemoveRecord.
type Restore struct {
	Records []models.Record
}

func (AddRecord) Kind() Kind    { return KindAddRecord }
func (UpdateRecord) Kind() Kind { return KindUpdateRecord }
func (RemoveRecord) Kind() Kind { return KindRemoveRecord }
func (Search) Kind() Kind       { return KindSearch }
func (SetPassword) Kind() Kind  { return KindSetPassword }
func (StartStore) Kind() Kind   { return KindStartStore }
func (Undo) Kind() Kind         { return KindUndo }
func (Restore) Kind() Kind      { return KindRestore }

func (AddRecord) sealed()    {}
func (UpdateRecord) sealed() {}
func (RemoveRecord) sealed() {}
func (Search) sealed()       {}
func (SetPassword) sealed()  {}
func (StartStore) sealed()   {}
func (Undo) sealed()         {}
func (Restore) sealed()      {}
