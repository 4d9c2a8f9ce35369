package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/vadimbarashkov/shortlink/internal/entity"
)

const defaultQueryTimeout = 3 * time.Second

const urlColumns = `id, short_code, original_url, access_count, created_at, updated_at`

func isUniqueViolationError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

func isUnavailableError(err error) bool {
	var (
		connErr *pgconn.ConnectError
		netErr  net.Error
	)

	return errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.As(err, &connErr) ||
		errors.As(err, &netErr)
}

// storeError marks connectivity failures with entity.ErrStoreUnavailable so callers
// can tell them apart from query errors.
func storeError(op, msg string, err error) error {
	if isUnavailableError(err) {
		return fmt.Errorf("%s: %s: %w: %w", op, msg, entity.ErrStoreUnavailable, err)
	}

	return fmt.Errorf("%s: %s: %w", op, msg, err)
}

type urlDB struct {
	ID          uuid.UUID `db:"id"`
	ShortCode   string    `db:"short_code"`
	OriginalURL string    `db:"original_url"`
	AccessCount int64     `db:"access_count"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (u *urlDB) toEntity() *entity.URL {
	return &entity.URL{
		ID:          u.ID,
		ShortCode:   u.ShortCode,
		OriginalURL: u.OriginalURL,
		URLStats: entity.URLStats{
			AccessCount: u.AccessCount,
		},
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

type accessDB struct {
	IP         string    `db:"ip"`
	AccessedAt time.Time `db:"accessed_at"`
}

type Option func(*URLRepository)

// WithQueryTimeout bounds every statement issued by the repository.
func WithQueryTimeout(d time.Duration) Option {
	return func(r *URLRepository) {
		r.queryTimeout = d
	}
}

type URLRepository struct {
	db           *sqlx.DB
	queryTimeout time.Duration
}

func NewURLRepository(db *sqlx.DB, opts ...Option) *URLRepository {
	r := &URLRepository{
		db:           db,
		queryTimeout: defaultQueryTimeout,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

func (r *URLRepository) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.queryTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.queryTimeout)
}

func (r *URLRepository) Save(ctx context.Context, shortCode, originalURL string) (*entity.URL, error) {
	const op = "adapter.repository.postgres.URLRepository.Save"
	const query = `INSERT INTO urls (id, short_code, original_url) VALUES ($1, $2, $3) RETURNING ` + urlColumns

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var url urlDB

	if err := r.db.GetContext(ctx, &url, query, uuid.New(), shortCode, originalURL); err != nil {
		if isUniqueViolationError(err) {
			return nil, fmt.Errorf("%s: %w", op, entity.ErrShortCodeExists)
		}

		return nil, storeError(op, "failed to insert into urls table", err)
	}

	return url.toEntity(), nil
}

func (r *URLRepository) RetrieveByShortCode(ctx context.Context, shortCode string) (*entity.URL, error) {
	const op = "adapter.repository.postgres.URLRepository.RetrieveByShortCode"
	const query = `SELECT ` + urlColumns + ` FROM urls WHERE short_code = $1`

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var url urlDB

	if err := r.db.GetContext(ctx, &url, query, shortCode); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, entity.ErrURLNotFound)
		}

		return nil, storeError(op, "failed to get row from urls table", err)
	}

	return url.toEntity(), nil
}

func (r *URLRepository) RetrieveByOriginalURL(ctx context.Context, originalURL string) (*entity.URL, error) {
	const op = "adapter.repository.postgres.URLRepository.RetrieveByOriginalURL"
	const query = `SELECT ` + urlColumns + ` FROM urls WHERE original_url = $1 ORDER BY created_at LIMIT 1`

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var url urlDB

	if err := r.db.GetContext(ctx, &url, query, originalURL); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, entity.ErrURLNotFound)
		}

		return nil, storeError(op, "failed to get row from urls table", err)
	}

	return url.toEntity(), nil
}

// RecordAccess increments the access counter and appends one access log row in a
// single statement. The row lock taken by the UPDATE serializes concurrent accesses
// to the same short code, so no increment is lost. accessedAt is only stored in the
// log; updated_at comes from the database clock like every other write.
func (r *URLRepository) RecordAccess(ctx context.Context, shortCode, ip string, accessedAt time.Time) (*entity.URL, error) {
	const op = "adapter.repository.postgres.URLRepository.RecordAccess"
	const query = `WITH updated AS (
	UPDATE urls SET access_count = access_count + 1, updated_at = NOW()
	WHERE short_code = $1
	RETURNING ` + urlColumns + `
), logged AS (
	INSERT INTO url_accesses (url_id, ip, accessed_at)
	SELECT id, $2, $3 FROM updated
)
SELECT ` + urlColumns + ` FROM updated`

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var url urlDB

	if err := r.db.GetContext(ctx, &url, query, shortCode, ip, accessedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, entity.ErrURLNotFound)
		}

		return nil, storeError(op, "failed to record access", err)
	}

	return url.toEntity(), nil
}

// RetrieveStats reads the record and its access log from one snapshot, so the
// returned access count always matches the length of the log.
func (r *URLRepository) RetrieveStats(ctx context.Context, shortCode string) (_ *entity.URL, err error) {
	const op = "adapter.repository.postgres.URLRepository.RetrieveStats"
	const urlQuery = `SELECT ` + urlColumns + ` FROM urls WHERE short_code = $1`
	const logQuery = `SELECT ip, accessed_at FROM url_accesses WHERE url_id = $1 ORDER BY id`

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, storeError(op, "failed to begin transaction", err)
	}
	defer func() {
		if err == nil {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			err = errors.Join(err, fmt.Errorf("%s: failed to rollback transaction: %w", op, rbErr))
		}
	}()

	var url urlDB

	if err = tx.GetContext(ctx, &url, urlQuery, shortCode); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, entity.ErrURLNotFound)
		}

		return nil, storeError(op, "failed to get row from urls table", err)
	}

	var accesses []accessDB

	if err = tx.SelectContext(ctx, &accesses, logQuery, url.ID); err != nil {
		return nil, storeError(op, "failed to select rows from url_accesses table", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, storeError(op, "failed to commit transaction", err)
	}

	res := url.toEntity()
	res.AccessLog = make([]entity.AccessEvent, 0, len(accesses))
	for _, a := range accesses {
		res.AccessLog = append(res.AccessLog, entity.AccessEvent{
			IP:         a.IP,
			AccessedAt: a.AccessedAt,
		})
	}

	return res, nil
}

func (r *URLRepository) List(ctx context.Context) ([]*entity.URL, error) {
	const op = "adapter.repository.postgres.URLRepository.List"
	const query = `SELECT ` + urlColumns + ` FROM urls ORDER BY created_at DESC`

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var rows []urlDB

	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, storeError(op, "failed to select rows from urls table", err)
	}

	urls := make([]*entity.URL, 0, len(rows))
	for i := range rows {
		urls = append(urls, rows[i].toEntity())
	}

	return urls, nil
}

func (r *URLRepository) Update(ctx context.Context, shortCode, originalURL string) (*entity.URL, error) {
	const op = "adapter.repository.postgres.URLRepository.Update"
	const query = `UPDATE urls SET original_url = $1, updated_at = NOW() WHERE short_code = $2 RETURNING ` + urlColumns

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var url urlDB

	if err := r.db.GetContext(ctx, &url, query, originalURL, shortCode); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, entity.ErrURLNotFound)
		}

		return nil, storeError(op, "failed to update urls table row", err)
	}

	return url.toEntity(), nil
}

func (r *URLRepository) Remove(ctx context.Context, shortCode string) error {
	const op = "adapter.repository.postgres.URLRepository.Remove"
	const query = `DELETE FROM urls WHERE short_code = $1`

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	res, err := r.db.ExecContext(ctx, query, shortCode)
	if err != nil {
		return storeError(op, "failed to delete from urls table", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: failed to get number of affected rows: %w", op, err)
	}

	if rowsAffected != 1 {
		return fmt.Errorf("%s: %w", op, entity.ErrURLNotFound)
	}

	return nil
}
