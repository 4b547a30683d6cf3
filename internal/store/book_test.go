package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vieuxgrimoire/grimoire-server/internal/domain"
)

func newTestBook(id, ownerID, title string) *domain.Book {
	b := &domain.Book{
		ID:        id,
		OwnerID:   ownerID,
		Title:     title,
		Author:    "Victor Hugo",
		Year:      1862,
		Genre:     "Classique",
		ImageName: "img-" + id + ".jpg",
	}
	b.InitTimestamps()
	return b
}

func TestCreateAndGetBook(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	book := newTestBook("book-1", "user-1", "Les Misérables")
	require.NoError(t, s.CreateBook(ctx, book))

	got, err := s.GetBook(ctx, "book-1")
	require.NoError(t, err)
	assert.Equal(t, "Les Misérables", got.Title)
	assert.Equal(t, "user-1", got.OwnerID)
	// The cover reference must survive the round trip; everything that
	// serves or retires covers depends on it.
	assert.Equal(t, book.ImageName, got.ImageName)
}

func TestGetBookNotFound(t *testing.T) {
	s := setupTestStore(t)

	_, err := s.GetBook(context.Background(), "book-missing")
	assert.ErrorIs(t, err, ErrBookNotFound)
}

func TestUpdateBook(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	book := newTestBook("book-1", "user-1", "Original Title")
	require.NoError(t, s.CreateBook(ctx, book))

	book.Title = "Updated Title"
	require.NoError(t, s.UpdateBook(ctx, book))

	got, err := s.GetBook(ctx, "book-1")
	require.NoError(t, err)
	assert.Equal(t, "Updated Title", got.Title)
}

func TestUpdateBookNotFound(t *testing.T) {
	s := setupTestStore(t)

	err := s.UpdateBook(context.Background(), newTestBook("book-ghost", "user-1", "Ghost"))
	assert.ErrorIs(t, err, ErrBookNotFound)
}

func TestDeleteBook(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateBook(ctx, newTestBook("book-1", "user-1", "Doomed")))
	require.NoError(t, s.DeleteBook(ctx, "book-1"))

	_, err := s.GetBook(ctx, "book-1")
	assert.ErrorIs(t, err, ErrBookNotFound)

	// Deleting again reports not found.
	assert.ErrorIs(t, s.DeleteBook(ctx, "book-1"), ErrBookNotFound)
}

func TestListBooksOrderedByCreation(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	for i := range 3 {
		b := newTestBook(fmt.Sprintf("book-%d", i), "user-1", fmt.Sprintf("Book %d", i))
		// Stagger creation times so ordering is deterministic.
		b.CreatedAt = time.Now().Add(time.Duration(i) * time.Millisecond)
		require.NoError(t, s.CreateBook(ctx, b))
	}

	books, err := s.ListBooks(ctx)
	require.NoError(t, err)
	require.Len(t, books, 3)
	assert.Equal(t, "Book 0", books[0].Title)
	assert.Equal(t, "Book 2", books[2].Title)
}

func TestTopRated(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	averages := []float64{2.5, 4.8, 1.0, 4.0, 3.3}
	for i, avg := range averages {
		b := newTestBook(fmt.Sprintf("book-%d", i), "user-1", fmt.Sprintf("Book %d", i))
		b.AverageRating = avg
		require.NoError(t, s.CreateBook(ctx, b))
	}

	top, err := s.TopRated(ctx, 3)
	require.NoError(t, err)
	require.Len(t, top, 3)
	assert.Equal(t, 4.8, top[0].AverageRating)
	assert.Equal(t, 4.0, top[1].AverageRating)
	assert.Equal(t, 3.3, top[2].AverageRating)
}

func TestTopRatedFewerBooksThanRequested(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateBook(ctx, newTestBook("book-1", "user-1", "Only One")))

	top, err := s.TopRated(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, top, 1)
}

func TestAddRating(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateBook(ctx, newTestBook("book-1", "user-1", "Rated")))

	updated, err := s.AddRating(ctx, "book-1", "user-2", 4)
	require.NoError(t, err)
	require.Len(t, updated.Ratings, 1)
	assert.Equal(t, 4.0, updated.AverageRating)

	updated, err = s.AddRating(ctx, "book-1", "user-3", 5)
	require.NoError(t, err)
	require.Len(t, updated.Ratings, 2)
	assert.Equal(t, 4.5, updated.AverageRating)
}

func TestAddRatingDuplicate(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateBook(ctx, newTestBook("book-1", "user-1", "Rated")))

	_, err := s.AddRating(ctx, "book-1", "user-2", 4)
	require.NoError(t, err)

	_, err = s.AddRating(ctx, "book-1", "user-2", 5)
	assert.ErrorIs(t, err, ErrAlreadyRated)

	// Failed call left the book unchanged.
	got, err := s.GetBook(ctx, "book-1")
	require.NoError(t, err)
	assert.Len(t, got.Ratings, 1)
	assert.Equal(t, 4.0, got.AverageRating)
}

func TestAddRatingBookNotFound(t *testing.T) {
	s := setupTestStore(t)

	_, err := s.AddRating(context.Background(), "book-missing", "user-2", 3)
	assert.ErrorIs(t, err, ErrBookNotFound)
}

func TestAddRatingConcurrent(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateBook(ctx, newTestBook("book-1", "user-owner", "Contested")))

	// Enough writers that most transactions lose at least one conflict.
	const raters = 25
	var wg sync.WaitGroup
	errs := make([]error, raters)

	for i := range raters {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.AddRating(ctx, "book-1", fmt.Sprintf("user-%d", i), 3)
		}(i)
	}
	wg.Wait()

	// Every valid vote must commit, however many conflicts it loses.
	for i, err := range errs {
		require.NoError(t, err, "rater %d", i)
	}

	got, err := s.GetBook(ctx, "book-1")
	require.NoError(t, err)
	assert.Len(t, got.Ratings, raters, "no rating may be lost to a race")
	assert.Equal(t, 3.0, got.AverageRating)
}
