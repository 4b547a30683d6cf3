package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateBookEndpoint(t *testing.T) {
	srv := newTestServer(t)
	token, userID := signupAndLogin(t, srv, "reader@example.com")

	book := createBookViaAPI(t, srv, token, validBookMeta())

	assert.Equal(t, "Les Misérables", book["title"])
	assert.Equal(t, userID, book["userId"])
	imageURL, _ := book["imageUrl"].(string)
	assert.Contains(t, imageURL, "/images/img-")
}

func TestCreateBookRequiresAuth(t *testing.T) {
	srv := newTestServer(t)

	body, contentType := bookForm(t, validBookMeta(), testJPEG(t), "image/jpeg")
	req := httptest.NewRequest(http.MethodPost, "/api/books/", body)
	req.Header.Set("Content-Type", contentType)

	rec, _ := doRequest(t, srv, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/books/", nil)
	req.Header.Set("Authorization", "Bearer not-a-real-token")
	rec, _ = doRequest(t, srv, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateBookMissingImage(t *testing.T) {
	srv := newTestServer(t)
	token, _ := signupAndLogin(t, srv, "reader@example.com")

	body, contentType := bookForm(t, validBookMeta(), nil, "")
	req := httptest.NewRequest(http.MethodPost, "/api/books/", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+token)

	rec, _ := doRequest(t, srv, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateBookRejectsUnsupportedImage(t *testing.T) {
	srv := newTestServer(t)
	token, _ := signupAndLogin(t, srv, "reader@example.com")

	body, contentType := bookForm(t, validBookMeta(), []byte("GIF89a..."), "image/gif")
	req := httptest.NewRequest(http.MethodPost, "/api/books/", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+token)

	rec, env := doRequest(t, srv, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, env.Error, "unsupported")
}

func TestListBooksEndpoint(t *testing.T) {
	srv := newTestServer(t)
	token, _ := signupAndLogin(t, srv, "reader@example.com")

	for i := range 2 {
		meta := validBookMeta()
		meta["title"] = fmt.Sprintf("Book %d", i)
		createBookViaAPI(t, srv, token, meta)
	}

	rec, env := doRequest(t, srv, httptest.NewRequest(http.MethodGet, "/api/books/", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var books []map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &books))
	assert.Len(t, books, 2)
}

func TestGetBookEndpoint(t *testing.T) {
	srv := newTestServer(t)
	token, _ := signupAndLogin(t, srv, "reader@example.com")

	created := createBookViaAPI(t, srv, token, validBookMeta())
	bookID, _ := created["id"].(string)
	require.NotEmpty(t, bookID)

	rec, env := doRequest(t, srv, httptest.NewRequest(http.MethodGet, "/api/books/"+bookID, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var book map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &book))
	assert.Equal(t, bookID, book["id"])

	rec, _ = doRequest(t, srv, httptest.NewRequest(http.MethodGet, "/api/books/book-missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBestRatedEndpoint(t *testing.T) {
	srv := newTestServer(t)
	token, _ := signupAndLogin(t, srv, "reader@example.com")

	for i, grade := range []int{2, 5, 3, 4} {
		meta := validBookMeta()
		meta["title"] = fmt.Sprintf("Book %d", i)
		meta["grade"] = grade
		createBookViaAPI(t, srv, token, meta)
	}

	rec, env := doRequest(t, srv, httptest.NewRequest(http.MethodGet, "/api/books/bestrating", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var books []struct {
		AverageRating float64 `json:"averageRating"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &books))
	require.Len(t, books, 3)
	assert.Equal(t, 5.0, books[0].AverageRating)
	assert.Equal(t, 4.0, books[1].AverageRating)
	assert.Equal(t, 3.0, books[2].AverageRating)
}

func TestUpdateBookMetadataEndpoint(t *testing.T) {
	srv := newTestServer(t)
	token, _ := signupAndLogin(t, srv, "reader@example.com")

	created := createBookViaAPI(t, srv, token, validBookMeta())
	bookID, _ := created["id"].(string)

	meta := validBookMeta()
	meta["title"] = "Quatrevingt-treize"

	req := jsonRequest(t, http.MethodPut, "/api/books/"+bookID, meta)
	req.Header.Set("Authorization", "Bearer "+token)

	rec, env := doRequest(t, srv, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var book map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &book))
	assert.Equal(t, "Quatrevingt-treize", book["title"])
	assert.Equal(t, created["imageUrl"], book["imageUrl"])
}

func TestUpdateBookWithNewCoverEndpoint(t *testing.T) {
	srv := newTestServer(t)
	token, _ := signupAndLogin(t, srv, "reader@example.com")

	created := createBookViaAPI(t, srv, token, validBookMeta())
	bookID, _ := created["id"].(string)

	body, contentType := bookForm(t, validBookMeta(), testJPEG(t), "image/jpeg")
	req := httptest.NewRequest(http.MethodPut, "/api/books/"+bookID, body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+token)

	rec, env := doRequest(t, srv, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var book map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &book))
	assert.NotEqual(t, created["imageUrl"], book["imageUrl"])

	// The old cover stops being served once retirement lands.
	oldURL, _ := created["imageUrl"].(string)
	oldName := oldURL[strings.LastIndex(oldURL, "/")+1:]
	assert.Eventually(t, func() bool {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/images/"+oldName, nil))
		return rec.Code == http.StatusNotFound
	}, 2*time.Second, 10*time.Millisecond)
}

func TestUpdateBookForbiddenForNonOwner(t *testing.T) {
	srv := newTestServer(t)
	ownerToken, _ := signupAndLogin(t, srv, "owner@example.com")
	otherToken, _ := signupAndLogin(t, srv, "other@example.com")

	created := createBookViaAPI(t, srv, ownerToken, validBookMeta())
	bookID, _ := created["id"].(string)

	req := jsonRequest(t, http.MethodPut, "/api/books/"+bookID, validBookMeta())
	req.Header.Set("Authorization", "Bearer "+otherToken)

	rec, _ := doRequest(t, srv, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestDeleteBookEndpoint(t *testing.T) {
	srv := newTestServer(t)
	token, _ := signupAndLogin(t, srv, "reader@example.com")

	created := createBookViaAPI(t, srv, token, validBookMeta())
	bookID, _ := created["id"].(string)

	req := httptest.NewRequest(http.MethodDelete, "/api/books/"+bookID, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec, _ := doRequest(t, srv, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = doRequest(t, srv, httptest.NewRequest(http.MethodGet, "/api/books/"+bookID, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteBookForbiddenForNonOwner(t *testing.T) {
	srv := newTestServer(t)
	ownerToken, _ := signupAndLogin(t, srv, "owner@example.com")
	otherToken, _ := signupAndLogin(t, srv, "other@example.com")

	created := createBookViaAPI(t, srv, ownerToken, validBookMeta())
	bookID, _ := created["id"].(string)

	req := httptest.NewRequest(http.MethodDelete, "/api/books/"+bookID, nil)
	req.Header.Set("Authorization", "Bearer "+otherToken)
	rec, _ := doRequest(t, srv, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAddRatingEndpoint(t *testing.T) {
	srv := newTestServer(t)
	ownerToken, _ := signupAndLogin(t, srv, "owner@example.com")
	raterToken, _ := signupAndLogin(t, srv, "rater@example.com")

	created := createBookViaAPI(t, srv, ownerToken, validBookMeta())
	bookID, _ := created["id"].(string)

	req := jsonRequest(t, http.MethodPost, "/api/books/"+bookID+"/rating", map[string]int{"rating": 4})
	req.Header.Set("Authorization", "Bearer "+raterToken)

	rec, env := doRequest(t, srv, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var book struct {
		AverageRating float64 `json:"averageRating"`
		Ratings       []struct {
			UserID string `json:"userId"`
			Grade  int    `json:"grade"`
		} `json:"ratings"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &book))
	require.Len(t, book.Ratings, 1)
	assert.Equal(t, 4, book.Ratings[0].Grade)
	assert.Equal(t, 4.0, book.AverageRating)

	// Rating again reports a duplicate.
	req = jsonRequest(t, http.MethodPost, "/api/books/"+bookID+"/rating", map[string]int{"rating": 5})
	req.Header.Set("Authorization", "Bearer "+raterToken)
	rec, _ = doRequest(t, srv, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAddRatingOutOfRangeEndpoint(t *testing.T) {
	srv := newTestServer(t)
	token, _ := signupAndLogin(t, srv, "reader@example.com")

	created := createBookViaAPI(t, srv, token, validBookMeta())
	bookID, _ := created["id"].(string)

	req := jsonRequest(t, http.MethodPost, "/api/books/"+bookID+"/rating", map[string]int{"rating": 9})
	req.Header.Set("Authorization", "Bearer "+token)
	rec, _ := doRequest(t, srv, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServeCoverImage(t *testing.T) {
	srv := newTestServer(t)
	token, _ := signupAndLogin(t, srv, "reader@example.com")

	created := createBookViaAPI(t, srv, token, validBookMeta())
	imageURL, _ := created["imageUrl"].(string)
	name := imageURL[strings.LastIndex(imageURL, "/")+1:]

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/images/"+name, nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Body.Bytes())

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/images/img-nope.jpg", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
