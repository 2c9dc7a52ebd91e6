package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kirillkom/property-search-assistant/internal/core/domain"
)

func newSearchWithMock(t *testing.T) (*ListingSearch, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &ListingSearch{db: db}, mock, func() { _ = db.Close() }
}

func listingColumns() []string {
	return []string{
		"id", "rank", "seller_id", "property_type", "district", "city",
		"bedrooms", "price", "image_count", "length", "verified", "listed_at", "edited_at",
	}
}

func TestSearchLexicalScansHitsWithListings(t *testing.T) {
	search, mock, done := newSearchWithMock(t)
	defer done()

	listedAt := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(listingColumns()).
		AddRow("l-1", 0.91, "s-1", "condo", "Orchard", "Singapore", 2, 500000.0, 5, 380, true, listedAt, nil).
		AddRow("l-2", 0.55, "s-2", "apartment", "Orchard", "Singapore", 3, 650000.0, 2, 120, false, listedAt, listedAt)

	mock.ExpectQuery("SELECT id, ts_rank").
		WithArgs("condo in orchard", 10).
		WillReturnRows(rows)

	hits, err := search.SearchLexical(context.Background(), "condo in orchard", domain.Requirement{}, 10)
	if err != nil {
		t.Fatalf("SearchLexical() error = %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].ID != "l-1" || hits[0].RawScore != 0.91 {
		t.Fatalf("unexpected first hit: %+v", hits[0])
	}
	if hits[0].Listing == nil || hits[0].Listing.District != "Orchard" {
		t.Fatalf("hit must carry a listing snapshot: %+v", hits[0].Listing)
	}
	if !hits[1].Listing.EditedAt.Equal(listedAt) {
		t.Fatalf("edited_at must survive the null scan: %+v", hits[1].Listing)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSearchLexicalAppliesStructuredFilters(t *testing.T) {
	search, mock, done := newSearchWithMock(t)
	defer done()

	two := 2
	maxPrice := 800000.0
	filters := domain.Requirement{
		PropertyType: "condo",
		District:     "Orchard",
		BedroomsMin:  &two,
		PriceMax:     &maxPrice,
	}

	mock.ExpectQuery("AND property_type = (.+) AND district ILIKE (.+) AND bedrooms >= (.+) AND price <= ").
		WithArgs("2br condo orchard", "condo", "Orchard", 2, 800000.0, 5).
		WillReturnRows(sqlmock.NewRows(listingColumns()))

	_, err := search.SearchLexical(context.Background(), "2br condo orchard", filters, 5)
	if err != nil {
		t.Fatalf("SearchLexical() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSearchLexicalWrapsQueryErrorsAsUnavailable(t *testing.T) {
	search, mock, done := newSearchWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT id, ts_rank").
		WillReturnError(errors.New("connection refused"))

	_, err := search.SearchLexical(context.Background(), "condo", domain.Requirement{}, 10)
	if !domain.IsKind(err, domain.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
