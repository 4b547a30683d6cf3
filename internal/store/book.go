package store

import (
	"context"
	"encoding/json/v2"
	"errors"
	"fmt"
	"sort"

	"github.com/dgraph-io/badger/v4"

	"github.com/vieuxgrimoire/grimoire-server/internal/domain"
)

const bookPrefix = "book:"

var (
	// ErrBookNotFound is returned when a book cannot be found by ID.
	ErrBookNotFound = errors.New("book not found")
	// ErrBookExists is returned when attempting to create a book with an existing ID.
	ErrBookExists = errors.New("book already exists")
	// ErrAlreadyRated is returned when a user has already rated a book.
	ErrAlreadyRated = errors.New("book already rated by this user")
)

// CreateBook creates a new book record.
func (s *Store) CreateBook(_ context.Context, book *domain.Book) error {
	key := []byte(bookPrefix + book.ID)

	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err == nil {
			return ErrBookExists
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("check book exists: %w", err)
		}
		return setInTxn(txn, key, book)
	})
}

// GetBook retrieves a book by ID.
func (s *Store) GetBook(_ context.Context, id string) (*domain.Book, error) {
	var book domain.Book
	if err := s.get([]byte(bookPrefix+id), &book); err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, ErrBookNotFound
		}
		return nil, fmt.Errorf("get book: %w", err)
	}
	return &book, nil
}

// UpdateBook replaces an existing book record.
func (s *Store) UpdateBook(_ context.Context, book *domain.Book) error {
	key := []byte(bookPrefix + book.ID)

	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrBookNotFound
			}
			return fmt.Errorf("check book exists: %w", err)
		}
		return setInTxn(txn, key, book)
	})
}

// DeleteBook removes a book record.
func (s *Store) DeleteBook(_ context.Context, id string) error {
	key := []byte(bookPrefix + id)

	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrBookNotFound
			}
			return fmt.Errorf("check book exists: %w", err)
		}
		return txn.Delete(key)
	})
}

// ListBooks returns all books ordered by creation time.
func (s *Store) ListBooks(_ context.Context) ([]*domain.Book, error) {
	var books []*domain.Book
	prefix := []byte(bookPrefix)

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var book domain.Book
				if err := json.Unmarshal(val, &book); err != nil {
					return err
				}
				books = append(books, &book)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}

	// Keys iterate in lexical ID order; present the catalog in
	// submission order instead.
	sort.SliceStable(books, func(i, j int) bool {
		return books[i].CreatedAt.Before(books[j].CreatedAt)
	})

	return books, nil
}

// TopRated returns the n books with the highest average rating,
// descending. Ties keep catalog order.
func (s *Store) TopRated(ctx context.Context, n int) ([]*domain.Book, error) {
	books, err := s.ListBooks(ctx)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(books, func(i, j int) bool {
		return books[i].AverageRating > books[j].AverageRating
	})

	if len(books) > n {
		books = books[:n]
	}
	return books, nil
}

// AddRating appends a rating and recomputes the average as one atomic
// update. The read, duplicate-vote check, append, and recompute all
// happen inside a single Badger transaction, so two racing calls on the
// same book cannot lose an update: the losing transaction conflicts and
// is retried against the fresh state, where a duplicate then surfaces
// as ErrAlreadyRated. A conflict means another writer committed, so the
// retry loop makes progress; a valid vote is never rejected for losing
// the race.
func (s *Store) AddRating(_ context.Context, bookID, userID string, grade int) (*domain.Book, error) {
	key := []byte(bookPrefix + bookID)

	var updated *domain.Book
	for {
		err := s.db.Update(func(txn *badger.Txn) error {
			item, err := txn.Get(key)
			if err != nil {
				if errors.Is(err, badger.ErrKeyNotFound) {
					return ErrBookNotFound
				}
				return fmt.Errorf("get book: %w", err)
			}

			var book domain.Book
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &book)
			}); err != nil {
				return fmt.Errorf("unmarshal book: %w", err)
			}

			if _, rated := book.RatingBy(userID); rated {
				return ErrAlreadyRated
			}

			book.Ratings = append(book.Ratings, domain.Rating{UserID: userID, Grade: grade})
			book.RecomputeAverage()
			book.Touch()

			if err := setInTxn(txn, key, &book); err != nil {
				return err
			}
			updated = &book
			return nil
		})

		if errors.Is(err, badger.ErrConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return updated, nil
	}
}
