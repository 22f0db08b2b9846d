package handler

import "fmt"

// StoreComposer is a struct used to compose data stores out of the different
// extension interfaces. Since a store may or may not satisfy any optional
// extension, this struct acts as a capability registry: it type-switches on
// the core DataStore and records which optional interfaces it implements, so
// the handler can mount only the endpoints/extensions that are actually
// supported.
type StoreComposer struct {
	Core DataStore

	UsesTerminater bool
	Terminater     TerminaterDataStore

	UsesConcater bool
	Concater     ConcaterDataStore

	UsesLengthDeferrer bool
	LengthDeferrer     LengthDeferrerDataStore

	UsesLocker bool
	Locker     Locker
}

// NewStoreComposer creates a new and empty store composer.
func NewStoreComposer() *StoreComposer {
	return &StoreComposer{}
}

// NewStoreComposerFromDataStore creates a new store composer and inspects the
// given data store for all optional extension interfaces, automatically
// registering the ones it finds.
func NewStoreComposerFromDataStore(store DataStore) *StoreComposer {
	composer := NewStoreComposer()
	composer.UseCore(store)

	if v, ok := store.(TerminaterDataStore); ok {
		composer.UseTerminater(v)
	}
	if v, ok := store.(ConcaterDataStore); ok {
		composer.UseConcater(v)
	}
	if v, ok := store.(LengthDeferrerDataStore); ok {
		composer.UseLengthDeferrer(v)
	}
	if v, ok := store.(Locker); ok {
		composer.UseLocker(v)
	}

	return composer
}

// Capabilities returns a human-readable string listing which optional
// extensions this composer's store supports. Useful for startup logging.
func (store *StoreComposer) Capabilities() string {
	str := "Core: "
	if store.Core != nil {
		str += "✓"
	} else {
		str += "✗"
	}

	str += fmt.Sprintf("\nTerminater: %s\nConcater: %s\nLengthDeferrer: %s\nLocker: %s\n",
		capabilityMark(store.UsesTerminater),
		capabilityMark(store.UsesConcater),
		capabilityMark(store.UsesLengthDeferrer),
		capabilityMark(store.UsesLocker))

	return str
}

func capabilityMark(used bool) string {
	if used {
		return "✓"
	}
	return "✗"
}

func (store *StoreComposer) UseCore(core DataStore) {
	store.Core = core
}

func (store *StoreComposer) UseTerminater(ext TerminaterDataStore) {
	store.UsesTerminater = ext != nil
	store.Terminater = ext
}

func (store *StoreComposer) UseConcater(ext ConcaterDataStore) {
	store.UsesConcater = ext != nil
	store.Concater = ext
}

func (store *StoreComposer) UseLengthDeferrer(ext LengthDeferrerDataStore) {
	store.UsesLengthDeferrer = ext != nil
	store.LengthDeferrer = ext
}

func (store *StoreComposer) UseLocker(ext Locker) {
	store.UsesLocker = ext != nil
	store.Locker = ext
}
