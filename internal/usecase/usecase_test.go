package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"github.com/vadimbarashkov/shortlink/internal/adapter/repository/memory"
	"github.com/vadimbarashkov/shortlink/internal/entity"
	"github.com/vadimbarashkov/shortlink/mocks/usecase"
)

type URLUseCaseTestSuite struct {
	suite.Suite
	errUnknown  error
	now         time.Time
	urlRepoMock *usecase.MockUrlRepository
	gen         *sequenceGenerator
	uc          *URLUseCase
}

func (suite *URLUseCaseTestSuite) SetupSuite() {
	suite.errUnknown = errors.New("unknown error")
	suite.now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
}

func (suite *URLUseCaseTestSuite) SetupSubTest() {
	suite.urlRepoMock = usecase.NewMockUrlRepository(suite.T())
	suite.gen = &sequenceGenerator{codes: []string{"abc1234", "def5678"}}
	suite.uc = NewURLUseCase(
		suite.urlRepoMock,
		WithGenerator(suite.gen),
		WithClock(func() time.Time { return suite.now }),
	)
}

func (suite *URLUseCaseTestSuite) TearDownSubTest() {
	suite.urlRepoMock.AssertExpectations(suite.T())
}

func (suite *URLUseCaseTestSuite) TestShortenURL() {
	suite.Run("invalid url", func() {
		for _, raw := range []string{"", "example.com", "ftp://example.com", "https://"} {
			url, created, err := suite.uc.ShortenURL(context.Background(), raw)

			suite.ErrorIs(err, entity.ErrInvalidURL, raw)
			suite.False(created)
			suite.Nil(url)
		}
	})

	suite.Run("lookup error", func() {
		suite.urlRepoMock.
			On("RetrieveByOriginalURL", context.Background(), "https://example.com").
			Once().
			Return(nil, suite.errUnknown)

		url, created, err := suite.uc.ShortenURL(context.Background(), "https://example.com")

		suite.ErrorIs(err, suite.errUnknown)
		suite.False(created)
		suite.Nil(url)
	})

	suite.Run("existing url", func() {
		existing := &entity.URL{ShortCode: "old1234", OriginalURL: "https://example.com"}

		suite.urlRepoMock.
			On("RetrieveByOriginalURL", context.Background(), "https://example.com").
			Once().
			Return(existing, nil)

		url, created, err := suite.uc.ShortenURL(context.Background(), "https://example.com")

		suite.NoError(err)
		suite.False(created)
		suite.Equal(existing, url)
		suite.Zero(suite.gen.calls)
	})

	suite.Run("allocation exhausted", func() {
		suite.uc = NewURLUseCase(suite.urlRepoMock, WithGenerator(suite.gen), WithMaxAttempts(2))

		suite.urlRepoMock.
			On("RetrieveByOriginalURL", context.Background(), "https://example.com").
			Once().
			Return(nil, entity.ErrURLNotFound)
		suite.urlRepoMock.
			On("RetrieveByShortCode", context.Background(), mock.Anything).
			Twice().
			Return(&entity.URL{}, nil)

		url, created, err := suite.uc.ShortenURL(context.Background(), "https://example.com")

		suite.ErrorIs(err, entity.ErrAllocationExhausted)
		suite.False(created)
		suite.Nil(url)
	})

	suite.Run("save conflict retried once", func() {
		suite.urlRepoMock.
			On("RetrieveByOriginalURL", context.Background(), "https://example.com").
			Once().
			Return(nil, entity.ErrURLNotFound)
		suite.urlRepoMock.
			On("RetrieveByShortCode", context.Background(), mock.Anything).
			Twice().
			Return(nil, entity.ErrURLNotFound)
		suite.urlRepoMock.
			On("Save", context.Background(), "abc1234", "https://example.com").
			Once().
			Return(nil, entity.ErrShortCodeExists)
		suite.urlRepoMock.
			On("Save", context.Background(), "def5678", "https://example.com").
			Once().
			Return(&entity.URL{ShortCode: "def5678", OriginalURL: "https://example.com"}, nil)

		url, created, err := suite.uc.ShortenURL(context.Background(), "https://example.com")

		suite.NoError(err)
		suite.True(created)
		suite.Equal("def5678", url.ShortCode)
	})

	suite.Run("repeated save conflict", func() {
		suite.urlRepoMock.
			On("RetrieveByOriginalURL", context.Background(), "https://example.com").
			Once().
			Return(nil, entity.ErrURLNotFound)
		suite.urlRepoMock.
			On("RetrieveByShortCode", context.Background(), mock.Anything).
			Twice().
			Return(nil, entity.ErrURLNotFound)
		suite.urlRepoMock.
			On("Save", context.Background(), mock.Anything, "https://example.com").
			Twice().
			Return(nil, entity.ErrShortCodeExists)

		url, created, err := suite.uc.ShortenURL(context.Background(), "https://example.com")

		suite.ErrorIs(err, entity.ErrAllocationExhausted)
		suite.False(created)
		suite.Nil(url)
	})

	suite.Run("unknown error", func() {
		suite.urlRepoMock.
			On("RetrieveByOriginalURL", context.Background(), "https://example.com").
			Once().
			Return(nil, entity.ErrURLNotFound)
		suite.urlRepoMock.
			On("RetrieveByShortCode", context.Background(), "abc1234").
			Once().
			Return(nil, entity.ErrURLNotFound)
		suite.urlRepoMock.
			On("Save", context.Background(), "abc1234", "https://example.com").
			Once().
			Return(nil, suite.errUnknown)

		url, created, err := suite.uc.ShortenURL(context.Background(), "https://example.com")

		suite.ErrorIs(err, suite.errUnknown)
		suite.False(created)
		suite.Nil(url)
	})

	suite.Run("success", func() {
		suite.urlRepoMock.
			On("RetrieveByOriginalURL", context.Background(), "https://example.com").
			Once().
			Return(nil, entity.ErrURLNotFound)
		suite.urlRepoMock.
			On("RetrieveByShortCode", context.Background(), "abc1234").
			Once().
			Return(nil, entity.ErrURLNotFound)
		suite.urlRepoMock.
			On("Save", context.Background(), "abc1234", "https://example.com").
			Once().
			Return(&entity.URL{
				ShortCode:   "abc1234",
				OriginalURL: "https://example.com",
			}, nil)

		url, created, err := suite.uc.ShortenURL(context.Background(), "https://example.com")

		suite.NoError(err)
		suite.True(created)
		suite.Equal("abc1234", url.ShortCode)
		suite.Equal("https://example.com", url.OriginalURL)
		suite.Zero(url.AccessCount)
	})
}

func (suite *URLUseCaseTestSuite) TestResolveShortCode() {
	suite.Run("empty short code", func() {
		url, err := suite.uc.ResolveShortCode(context.Background(), "")

		suite.ErrorIs(err, entity.ErrEmptyShortCode)
		suite.Nil(url)
	})

	suite.Run("url not found", func() {
		suite.urlRepoMock.
			On("RetrieveByShortCode", context.Background(), "abc1234").
			Once().
			Return(nil, entity.ErrURLNotFound)

		url, err := suite.uc.ResolveShortCode(context.Background(), "abc1234")

		suite.ErrorIs(err, entity.ErrURLNotFound)
		suite.Nil(url)
	})

	suite.Run("success", func() {
		suite.urlRepoMock.
			On("RetrieveByShortCode", context.Background(), "abc1234").
			Once().
			Return(&entity.URL{ShortCode: "abc1234", OriginalURL: "https://example.com"}, nil)

		url, err := suite.uc.ResolveShortCode(context.Background(), "abc1234")

		suite.NoError(err)
		suite.Equal("https://example.com", url.OriginalURL)
	})
}

func (suite *URLUseCaseTestSuite) TestRedirect() {
	suite.Run("url not found", func() {
		suite.urlRepoMock.
			On("RetrieveByShortCode", context.Background(), "abc1234").
			Once().
			Return(nil, entity.ErrURLNotFound)

		dest, err := suite.uc.Redirect(context.Background(), "abc1234", "10.0.0.1")

		suite.ErrorIs(err, entity.ErrURLNotFound)
		suite.Empty(dest)
	})

	suite.Run("record error", func() {
		suite.urlRepoMock.
			On("RetrieveByShortCode", context.Background(), "abc1234").
			Once().
			Return(&entity.URL{ShortCode: "abc1234", OriginalURL: "https://example.com"}, nil)
		suite.urlRepoMock.
			On("RecordAccess", context.Background(), "abc1234", "10.0.0.1", suite.now).
			Once().
			Return(nil, suite.errUnknown)

		dest, err := suite.uc.Redirect(context.Background(), "abc1234", "10.0.0.1")

		suite.ErrorIs(err, suite.errUnknown)
		suite.Empty(dest)
	})

	suite.Run("success", func() {
		suite.urlRepoMock.
			On("RetrieveByShortCode", context.Background(), "abc1234").
			Once().
			Return(&entity.URL{ShortCode: "abc1234", OriginalURL: "https://example.com"}, nil)
		suite.urlRepoMock.
			On("RecordAccess", context.Background(), "abc1234", "10.0.0.1", suite.now).
			Once().
			Return(&entity.URL{
				ShortCode:   "abc1234",
				OriginalURL: "https://example.com",
				URLStats:    entity.URLStats{AccessCount: 1},
			}, nil)

		dest, err := suite.uc.Redirect(context.Background(), "abc1234", "10.0.0.1")

		suite.NoError(err)
		suite.Equal("https://example.com", dest)
	})
}

func (suite *URLUseCaseTestSuite) TestModifyURL() {
	suite.Run("empty short code", func() {
		url, err := suite.uc.ModifyURL(context.Background(), "", "https://example.com")

		suite.ErrorIs(err, entity.ErrEmptyShortCode)
		suite.Nil(url)
	})

	suite.Run("invalid url", func() {
		url, err := suite.uc.ModifyURL(context.Background(), "abc1234", "not a url")

		suite.ErrorIs(err, entity.ErrInvalidURL)
		suite.Nil(url)
	})

	suite.Run("url not found", func() {
		suite.urlRepoMock.
			On("Update", context.Background(), "abc1234", "https://example.com").
			Once().
			Return(nil, entity.ErrURLNotFound)

		url, err := suite.uc.ModifyURL(context.Background(), "abc1234", "https://example.com")

		suite.ErrorIs(err, entity.ErrURLNotFound)
		suite.Nil(url)
	})

	suite.Run("success", func() {
		suite.urlRepoMock.
			On("Update", context.Background(), "abc1234", "https://example.com/new").
			Once().
			Return(&entity.URL{ShortCode: "abc1234", OriginalURL: "https://example.com/new"}, nil)

		url, err := suite.uc.ModifyURL(context.Background(), "abc1234", "https://example.com/new")

		suite.NoError(err)
		suite.Equal("https://example.com/new", url.OriginalURL)
	})
}

func (suite *URLUseCaseTestSuite) TestDeactivateURL() {
	suite.Run("empty short code", func() {
		err := suite.uc.DeactivateURL(context.Background(), "")

		suite.ErrorIs(err, entity.ErrEmptyShortCode)
	})

	suite.Run("url not found", func() {
		suite.urlRepoMock.
			On("Remove", context.Background(), "abc1234").
			Once().
			Return(entity.ErrURLNotFound)

		err := suite.uc.DeactivateURL(context.Background(), "abc1234")

		suite.ErrorIs(err, entity.ErrURLNotFound)
	})

	suite.Run("success", func() {
		suite.urlRepoMock.
			On("Remove", context.Background(), "abc1234").
			Once().
			Return(nil)

		err := suite.uc.DeactivateURL(context.Background(), "abc1234")

		suite.NoError(err)
	})
}

func (suite *URLUseCaseTestSuite) TestGetURLStats() {
	suite.Run("empty short code", func() {
		url, err := suite.uc.GetURLStats(context.Background(), "")

		suite.ErrorIs(err, entity.ErrEmptyShortCode)
		suite.Nil(url)
	})

	suite.Run("unknown error", func() {
		suite.urlRepoMock.
			On("RetrieveStats", context.Background(), "abc1234").
			Once().
			Return(nil, suite.errUnknown)

		url, err := suite.uc.GetURLStats(context.Background(), "abc1234")

		suite.ErrorIs(err, suite.errUnknown)
		suite.Nil(url)
	})

	suite.Run("success", func() {
		suite.urlRepoMock.
			On("RetrieveStats", context.Background(), "abc1234").
			Once().
			Return(&entity.URL{
				ShortCode:   "abc1234",
				OriginalURL: "https://example.com",
				URLStats: entity.URLStats{
					AccessCount: 1,
					AccessLog:   []entity.AccessEvent{{IP: "10.0.0.1", AccessedAt: suite.now}},
				},
			}, nil)

		url, err := suite.uc.GetURLStats(context.Background(), "abc1234")

		suite.NoError(err)
		suite.Equal(int64(1), url.AccessCount)
		suite.Len(url.AccessLog, 1)
	})
}

func (suite *URLUseCaseTestSuite) TestListURLs() {
	suite.Run("unknown error", func() {
		suite.urlRepoMock.
			On("List", context.Background()).
			Once().
			Return(nil, suite.errUnknown)

		urls, err := suite.uc.ListURLs(context.Background())

		suite.ErrorIs(err, suite.errUnknown)
		suite.Nil(urls)
	})

	suite.Run("success", func() {
		suite.urlRepoMock.
			On("List", context.Background()).
			Once().
			Return([]*entity.URL{{ShortCode: "def5678"}, {ShortCode: "abc1234"}}, nil)

		urls, err := suite.uc.ListURLs(context.Background())

		suite.NoError(err)
		suite.Len(urls, 2)
	})
}

func TestURLUseCase(t *testing.T) {
	suite.Run(t, new(URLUseCaseTestSuite))
}

// TestURLUseCase_Lifecycle drives the use case against the in-memory store:
// shorten, redirect a few times, inspect, list and deactivate.
func TestURLUseCase_Lifecycle(t *testing.T) {
	ctx := context.Background()
	uc := NewURLUseCase(memory.NewURLRepository())

	url, created, err := uc.ShortenURL(ctx, "https://example.com/a")
	if err != nil || !created {
		t.Fatalf("ShortenURL() = %v, %v, want created", created, err)
	}

	again, created, err := uc.ShortenURL(ctx, "https://example.com/a")
	if err != nil || created || again.ShortCode != url.ShortCode {
		t.Fatalf("ShortenURL() again = %+v, %v, %v, want existing %q", again, created, err, url.ShortCode)
	}

	if _, _, err := uc.ShortenURL(ctx, "https://example.com/b"); err != nil {
		t.Fatalf("ShortenURL() b: %v", err)
	}

	for i := 0; i < 3; i++ {
		dest, err := uc.Redirect(ctx, url.ShortCode, "10.0.0.1")
		if err != nil || dest != "https://example.com/a" {
			t.Fatalf("Redirect() = %q, %v", dest, err)
		}
	}

	stats, err := uc.GetURLStats(ctx, url.ShortCode)
	if err != nil {
		t.Fatalf("GetURLStats(): %v", err)
	}
	if stats.AccessCount != 3 || len(stats.AccessLog) != 3 {
		t.Fatalf("GetURLStats() = %d accesses, %d log entries, want 3", stats.AccessCount, len(stats.AccessLog))
	}

	if _, err := uc.Redirect(ctx, "missing", "10.0.0.1"); !errors.Is(err, entity.ErrURLNotFound) {
		t.Fatalf("Redirect() unknown = %v, want ErrURLNotFound", err)
	}

	urls, err := uc.ListURLs(ctx)
	if err != nil || len(urls) != 2 {
		t.Fatalf("ListURLs() = %d, %v, want 2", len(urls), err)
	}

	if err := uc.DeactivateURL(ctx, url.ShortCode); err != nil {
		t.Fatalf("DeactivateURL(): %v", err)
	}
	if _, err := uc.Redirect(ctx, url.ShortCode, "10.0.0.1"); !errors.Is(err, entity.ErrURLNotFound) {
		t.Fatalf("Redirect() after deactivate = %v, want ErrURLNotFound", err)
	}
}
