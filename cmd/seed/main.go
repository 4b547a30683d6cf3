// Package main provides a tool to seed the database with test data.
//
// This creates a handful of test accounts and a small book catalog with
// ratings, for exercising the API and the web client locally.
//
// Usage:
//
//	DATA_PATH=~/grimoire/data go run ./cmd/seed
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"log"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/vieuxgrimoire/grimoire-server/internal/auth"
	"github.com/vieuxgrimoire/grimoire-server/internal/domain"
	"github.com/vieuxgrimoire/grimoire-server/internal/id"
	"github.com/vieuxgrimoire/grimoire-server/internal/media/images"
	"github.com/vieuxgrimoire/grimoire-server/internal/store"
)

var seedPassword = flag.String("password", "testpass123", "Password for generated test accounts")

// testUserEmails are accounts created by the seeder.
var testUserEmails = []string{
	"alex@example.com",
	"jordan@example.com",
	"sam@example.com",
	"casey@example.com",
}

// testBooks is the catalog the seeder fills in.
var testBooks = []struct {
	title  string
	author string
	year   int
	genre  string
}{
	{"Les Misérables", "Victor Hugo", 1862, "Classique"},
	{"Le Comte de Monte-Cristo", "Alexandre Dumas", 1844, "Aventure"},
	{"Madame Bovary", "Gustave Flaubert", 1857, "Classique"},
	{"Germinal", "Émile Zola", 1885, "Naturalisme"},
	{"Voyage au centre de la Terre", "Jules Verne", 1864, "Science-fiction"},
	{"La Peste", "Albert Camus", 1947, "Philosophique"},
}

func main() {
	flag.Parse()

	dataPath := os.Getenv("DATA_PATH")
	if dataPath == "" {
		dataPath = os.ExpandEnv("$HOME/grimoire/data")
	}

	fmt.Printf("Seeding data under: %s\n", dataPath)

	s, err := store.Open(filepath.Join(dataPath, "db"), nil)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer s.Close()

	storage, err := images.NewStorage(dataPath)
	if err != nil {
		log.Fatalf("Failed to open image storage: %v", err)
	}
	processor := images.NewProcessor(storage, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx := context.Background()
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	userIDs := createTestUsers(ctx, s)
	if len(userIDs) == 0 {
		log.Fatal("No users available, nothing to seed")
	}

	fmt.Printf("\nCreating %d books...\n", len(testBooks))
	created := 0
	for _, tb := range testBooks {
		cover, err := processor.Ingest(placeholderCover(rng, tb.title), "image/jpeg")
		if err != nil {
			log.Printf("  Failed to generate cover for %q: %v", tb.title, err)
			continue
		}

		book := &domain.Book{
			ID:        id.MustGenerate("book"),
			OwnerID:   userIDs[rng.Intn(len(userIDs))],
			Title:     tb.title,
			Author:    tb.author,
			Year:      tb.year,
			Genre:     tb.genre,
			ImageName: cover.Name,
			BlurHash:  cover.BlurHash,
			Ratings:   []domain.Rating{},
		}
		book.InitTimestamps()

		// Random ratings from a subset of users.
		for _, userID := range userIDs {
			if rng.Float32() > 0.7 {
				continue
			}
			book.Ratings = append(book.Ratings, domain.Rating{
				UserID: userID,
				Grade:  1 + rng.Intn(5),
			})
		}
		book.RecomputeAverage()

		if err := s.CreateBook(ctx, book); err != nil {
			log.Printf("  Failed to create book %q: %v", tb.title, err)
			continue
		}

		fmt.Printf("  Created: %s (%s, %d) avg=%.1f\n", book.Title, book.Author, book.Year, book.AverageRating)
		created++
	}

	fmt.Printf("\nSeeding complete: %d books\n", created)
}

// createTestUsers creates the test accounts, skipping ones that exist.
func createTestUsers(ctx context.Context, s *store.Store) []string {
	fmt.Println("\nCreating test users...")

	hash, err := auth.HashPassword(*seedPassword)
	if err != nil {
		log.Fatalf("Failed to hash password: %v", err)
	}

	var userIDs []string
	for _, email := range testUserEmails {
		if existing, err := s.GetUserByEmail(ctx, email); err == nil {
			fmt.Printf("  User %s already exists, skipping\n", email)
			userIDs = append(userIDs, existing.ID)
			continue
		}

		user := &domain.User{
			ID:           id.MustGenerate("user"),
			Email:        email,
			PasswordHash: hash,
		}
		user.InitTimestamps()

		if err := s.CreateUser(ctx, user); err != nil {
			log.Printf("  Failed to create user %s: %v", email, err)
			continue
		}

		fmt.Printf("  Created user: %s\n", email)
		userIDs = append(userIDs, user.ID)
	}

	return userIDs
}

// placeholderCover renders a random two-tone gradient as a stand-in
// cover image.
func placeholderCover(rng *rand.Rand, title string) []byte {
	const width, height = 400, 600

	base := color.RGBA{
		R: uint8(rng.Intn(200)),
		G: uint8(rng.Intn(200)),
		B: uint8(rng.Intn(200)),
		A: 255,
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := range height {
		shade := uint8(y * 55 / height)
		row := color.RGBA{R: base.R + shade, G: base.G + shade, B: base.B + shade, A: 255}
		for x := range width {
			img.Set(x, y, row)
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		log.Fatalf("Failed to encode placeholder cover for %q: %v", title, err)
	}
	return buf.Bytes()
}
