package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/vieuxgrimoire/grimoire-server/internal/domain"
	domainerrors "github.com/vieuxgrimoire/grimoire-server/internal/errors"
	"github.com/vieuxgrimoire/grimoire-server/internal/id"
	"github.com/vieuxgrimoire/grimoire-server/internal/media/images"
	"github.com/vieuxgrimoire/grimoire-server/internal/store"
	"github.com/vieuxgrimoire/grimoire-server/internal/validation"
)

// bestRatedCount is how many books the best-rated listing returns.
const bestRatedCount = 3

// CoverUpload is a raw cover image as received from a multipart form.
type CoverUpload struct {
	Data []byte
	Mime string
}

// BookInput carries the user-editable fields of a book.
type BookInput struct {
	Title  string `json:"title" validate:"required,min=1,max=200"`
	Author string `json:"author" validate:"required,min=1,max=120"`
	Year   int    `json:"year" validate:"required,gte=1,lte=9999"`
	Genre  string `json:"genre" validate:"required,min=1,max=80"`

	// InitialGrade optionally records the submitter's own rating at
	// creation time. Ignored on update.
	InitialGrade *int `json:"grade,omitempty" validate:"omitempty,gte=1,lte=5"`
}

// BookService handles book catalog operations and rating.
type BookService struct {
	store     *store.Store
	processor *images.Processor
	validator *validation.Validator
	logger    *slog.Logger
	publicURL string
}

// NewBookService creates a new BookService instance.
// publicURL is the externally reachable base URL used to derive cover
// image links.
func NewBookService(s *store.Store, p *images.Processor, v *validation.Validator, logger *slog.Logger, publicURL string) *BookService {
	return &BookService{
		store:     s,
		processor: p,
		validator: v,
		logger:    logger,
		publicURL: strings.TrimRight(publicURL, "/"),
	}
}

// Create adds a book to the catalog. The cover is ingested first: a
// rejected image means nothing is persisted. If storing the record
// fails afterwards, the freshly stored cover is retired again.
func (s *BookService) Create(ctx context.Context, ownerID string, in BookInput, cover CoverUpload) (*domain.Book, error) {
	if err := s.validator.Validate(in); err != nil {
		return nil, err
	}
	if len(cover.Data) == 0 {
		return nil, domainerrors.Validation("a cover image is required")
	}

	processed, err := s.processor.Ingest(cover.Data, cover.Mime)
	if err != nil {
		return nil, err
	}

	bookID, err := id.Generate("book")
	if err != nil {
		s.processor.Retire(processed.Name)
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to generate book ID")
	}

	book := &domain.Book{
		ID:        bookID,
		OwnerID:   ownerID,
		Title:     in.Title,
		Author:    in.Author,
		Year:      in.Year,
		Genre:     in.Genre,
		ImageName: processed.Name,
		BlurHash:  processed.BlurHash,
		Ratings:   []domain.Rating{},
	}
	book.InitTimestamps()

	if in.InitialGrade != nil {
		book.Ratings = append(book.Ratings, domain.Rating{UserID: ownerID, Grade: *in.InitialGrade})
		book.RecomputeAverage()
	}

	if err := s.store.CreateBook(ctx, book); err != nil {
		s.processor.Retire(processed.Name)
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to create book")
	}

	s.logger.Info("book created", "book_id", book.ID, "owner_id", ownerID)
	return s.decorate(book), nil
}

// Get returns a single book by ID.
func (s *BookService) Get(ctx context.Context, bookID string) (*domain.Book, error) {
	book, err := s.store.GetBook(ctx, bookID)
	if err != nil {
		if domainerrors.Is(err, store.ErrBookNotFound) {
			return nil, domainerrors.NotFound("book not found")
		}
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to get book")
	}
	return s.decorate(book), nil
}

// List returns the whole catalog in submission order.
func (s *BookService) List(ctx context.Context) ([]*domain.Book, error) {
	books, err := s.store.ListBooks(ctx)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to list books")
	}
	return s.decorateAll(books), nil
}

// TopRated returns the best-rated books, highest average first.
func (s *BookService) TopRated(ctx context.Context) ([]*domain.Book, error) {
	books, err := s.store.TopRated(ctx, bestRatedCount)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to list top rated books")
	}
	return s.decorateAll(books), nil
}

// Update modifies a book's metadata and optionally replaces its cover.
// Only the owner may update. When a new cover arrives it is ingested
// before the record changes; the previous cover is retired afterwards,
// off the request path.
func (s *BookService) Update(ctx context.Context, userID, bookID string, in BookInput, cover CoverUpload) (*domain.Book, error) {
	if err := s.validator.Validate(in); err != nil {
		return nil, err
	}

	book, err := s.store.GetBook(ctx, bookID)
	if err != nil {
		if domainerrors.Is(err, store.ErrBookNotFound) {
			return nil, domainerrors.NotFound("book not found")
		}
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to get book")
	}
	if err := requireOwner(book, userID); err != nil {
		return nil, err
	}

	oldImage := ""
	if len(cover.Data) > 0 {
		processed, err := s.processor.Ingest(cover.Data, cover.Mime)
		if err != nil {
			return nil, err
		}
		oldImage = book.ImageName
		book.ImageName = processed.Name
		book.BlurHash = processed.BlurHash
	}

	book.Title = in.Title
	book.Author = in.Author
	book.Year = in.Year
	book.Genre = in.Genre
	book.Touch()

	if err := s.store.UpdateBook(ctx, book); err != nil {
		if len(cover.Data) > 0 {
			s.processor.Retire(book.ImageName)
		}
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to update book")
	}

	if oldImage != "" {
		go s.processor.Retire(oldImage)
	}

	s.logger.Info("book updated", "book_id", book.ID, "user_id", userID, "cover_replaced", oldImage != "")
	return s.decorate(book), nil
}

// Delete removes a book and retires its cover. Only the owner may
// delete. The record goes first; the cover cleanup is best effort.
func (s *BookService) Delete(ctx context.Context, userID, bookID string) error {
	book, err := s.store.GetBook(ctx, bookID)
	if err != nil {
		if domainerrors.Is(err, store.ErrBookNotFound) {
			return domainerrors.NotFound("book not found")
		}
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to get book")
	}
	if err := requireOwner(book, userID); err != nil {
		return err
	}

	if err := s.store.DeleteBook(ctx, bookID); err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to delete book")
	}

	go s.processor.Retire(book.ImageName)

	s.logger.Info("book deleted", "book_id", bookID, "user_id", userID)
	return nil
}

// AddRating records a user's grade for a book. Each user may rate a
// book once; the owner may rate their own book like anyone else.
func (s *BookService) AddRating(ctx context.Context, userID, bookID string, grade int) (*domain.Book, error) {
	if grade < 0 || grade > 5 {
		return nil, domainerrors.Validation("grade must be between 0 and 5")
	}

	book, err := s.store.AddRating(ctx, bookID, userID, grade)
	if err != nil {
		switch {
		case domainerrors.Is(err, store.ErrBookNotFound):
			return nil, domainerrors.NotFound("book not found")
		case domainerrors.Is(err, store.ErrAlreadyRated):
			return nil, domainerrors.DuplicateRating("you have already rated this book")
		default:
			return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to add rating")
		}
	}

	s.logger.Info("rating added", "book_id", bookID, "user_id", userID, "grade", grade)
	return s.decorate(book), nil
}

// decorate fills in the derived public cover URL.
func (s *BookService) decorate(book *domain.Book) *domain.Book {
	if book.ImageName != "" {
		book.ImageURL = s.publicURL + "/images/" + book.ImageName
	}
	return book
}

func (s *BookService) decorateAll(books []*domain.Book) []*domain.Book {
	for _, b := range books {
		s.decorate(b)
	}
	return books
}
