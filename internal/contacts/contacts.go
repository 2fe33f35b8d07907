// Package contacts provides address-book sources for contact sync.
package contacts

import (
	"context"
	"sync"

	"github.com/fridayce/rork-mapcask/internal/domain"
)

// Unsupported is the provider for platforms without an address book.
type Unsupported struct{}

var _ domain.ContactsProvider = Unsupported{}

func (Unsupported) RequestPermission(context.Context) (bool, error) { return false, nil }

func (Unsupported) List(context.Context) ([]domain.Contact, error) {
	return nil, domain.ErrPermissionDenied
}

// AddressBook holds contacts uploaded by the client. Uploading counts as
// granting permission; Revoke withdraws it and drops the contacts.
type AddressBook struct {
	mu       sync.RWMutex
	granted  bool
	contacts []domain.Contact
}

func NewAddressBook() *AddressBook {
	return &AddressBook{}
}

var _ domain.ContactsProvider = (*AddressBook)(nil)

func (b *AddressBook) Upload(contacts []domain.Contact) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.granted = true
	b.contacts = append([]domain.Contact(nil), contacts...)
}

func (b *AddressBook) Revoke() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.granted = false
	b.contacts = nil
}

func (b *AddressBook) RequestPermission(context.Context) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.granted, nil
}

func (b *AddressBook) List(context.Context) ([]domain.Contact, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.granted {
		return nil, domain.ErrPermissionDenied
	}
	return append([]domain.Contact(nil), b.contacts...), nil
}
