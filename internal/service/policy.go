package service

import (
	"github.com/vieuxgrimoire/grimoire-server/internal/domain"
	domainerrors "github.com/vieuxgrimoire/grimoire-server/internal/errors"
)

// requireOwner rejects mutations from anyone but the book's owner.
func requireOwner(book *domain.Book, userID string) error {
	if book.OwnerID != userID {
		return domainerrors.Forbidden("only the owner may modify this book")
	}
	return nil
}
