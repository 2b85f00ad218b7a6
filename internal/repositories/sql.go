package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/systmms/keyops/internal/logging"
	"github.com/systmms/keyops/internal/metrics"
	"github.com/systmms/keyops/pkg/keyring"

	// Registered so config-driven construction can open either engine.
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
)

var sqlIdentifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLRepository persists key documents as rows in a relational table.
// The table needs (name TEXT UNIQUE, xml TEXT, created_at TIMESTAMP).
type SQLRepository struct {
	db       *sql.DB
	table    string
	prefix   string
	postgres bool
	logger   *logging.Logger

	mu     sync.Mutex
	closed bool
}

// SQLOption configures a SQLRepository.
type SQLOption func(*SQLRepository)

// WithPostgresPlaceholders switches statements from ? to $1-style
// placeholders.
func WithPostgresPlaceholders() SQLOption {
	return func(r *SQLRepository) {
		r.postgres = true
	}
}

// WithSQLLogger sets the logger used for skip and failure diagnostics.
func WithSQLLogger(logger *logging.Logger) SQLOption {
	return func(r *SQLRepository) {
		r.logger = logger
	}
}

// NewSQLRepository creates a repository over an open database handle. The
// repository takes ownership of the handle and closes it on Close.
func NewSQLRepository(db *sql.DB, table, prefix string, opts ...SQLOption) (*SQLRepository, error) {
	if db == nil {
		return nil, keyring.ValidationError{Store: "sql", Message: "db must not be nil"}
	}
	if !sqlIdentifierPattern.MatchString(table) {
		return nil, keyring.ValidationError{Store: "sql", Message: "table must be a plain SQL identifier"}
	}
	if prefix == "" {
		return nil, keyring.ValidationError{Store: "sql", Message: "prefix must not be empty"}
	}

	r := &SQLRepository{
		db:     db,
		table:  table,
		prefix: prefix,
		logger: logging.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// NewSQLRepositoryFromConfig builds a repository from an inline store
// config. The driver key selects postgres or mysql.
func NewSQLRepositoryFromConfig(ctx context.Context, configMap map[string]interface{}, opts ...SQLOption) (*SQLRepository, error) {
	driver, _ := configMap["driver"].(string)
	dsn, _ := configMap["dsn"].(string)
	table, _ := configMap["table"].(string)
	prefix, _ := configMap["prefix"].(string)
	if table == "" {
		table = "key_documents"
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, keyring.StoreError{Store: "sql", Op: "connect", Err: err}
	}

	if driver == "postgres" {
		opts = append(opts, WithPostgresPlaceholders())
	}
	return NewSQLRepository(db, table, prefix, opts...)
}

// GetAllElements reads every stored row and parses each xml column as a
// key document. Discovery is the table itself; only key documents live
// in it.
func (r *SQLRepository) GetAllElements(ctx context.Context) ([]*keyring.KeyDocument, error) {
	if err := r.checkOpen(); err != nil {
		return nil, err
	}
	metrics.RecordList("sql")

	query := fmt.Sprintf("SELECT name, xml FROM %s ORDER BY created_at", r.table)
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		metrics.RecordTransportError("sql", "list")
		r.logger.Error("Failed to query %s: %v", r.table, err)
		return nil, keyring.StoreError{Store: "sql", Op: "list", Err: err}
	}
	defer rows.Close()

	var documents []*keyring.KeyDocument
	for rows.Next() {
		var name, text string
		if err := rows.Scan(&name, &text); err != nil {
			metrics.RecordTransportError("sql", "list")
			return nil, keyring.StoreError{Store: "sql", Op: "list", Err: err}
		}

		doc, err := keyring.ParseKeyDocument(text)
		if err != nil {
			metrics.RecordSkipped("sql")
			r.logger.Error("Skipping row %s: %v", name, err)
			continue
		}
		documents = append(documents, doc)
	}
	if err := rows.Err(); err != nil {
		metrics.RecordTransportError("sql", "list")
		return nil, keyring.StoreError{Store: "sql", Op: "list", Err: err}
	}

	return documents, nil
}

// StoreElement inserts a key document as a new row. The unique constraint
// on name rejects duplicates.
func (r *SQLRepository) StoreElement(ctx context.Context, element *keyring.KeyDocument, friendlyName string) error {
	if err := r.checkOpen(); err != nil {
		return err
	}
	if err := checkElement("sql", element); err != nil {
		return err
	}
	metrics.RecordStore("sql")

	name := keyring.RecordName(r.prefix, element, friendlyName)

	text, err := element.Serialize()
	if err != nil {
		return keyring.StoreError{Store: "sql", Op: "store", Err: err}
	}

	query := fmt.Sprintf("INSERT INTO %s (name, xml, created_at) VALUES (?, ?, ?)", r.table)
	if r.postgres {
		query = fmt.Sprintf("INSERT INTO %s (name, xml, created_at) VALUES ($1, $2, $3)", r.table)
	}

	if _, err := r.db.ExecContext(ctx, query, name, text, time.Now().UTC()); err != nil {
		metrics.RecordTransportError("sql", "store")
		r.logger.Error("Failed to insert row %s: %v", name, err)
		return keyring.StoreError{Store: "sql", Op: "store", Err: err}
	}

	r.logger.Debug("Stored key document as row %s", name)
	return nil
}

// Validate checks connectivity with a ping.
func (r *SQLRepository) Validate(ctx context.Context) error {
	if err := r.checkOpen(); err != nil {
		return err
	}
	if err := r.db.PingContext(ctx); err != nil {
		return keyring.StoreError{Store: "sql", Op: "validate", Err: err}
	}
	return nil
}

// Close releases the database handle. Close is idempotent; only the first
// call reaches the handle.
func (r *SQLRepository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	return r.db.Close()
}

func (r *SQLRepository) checkOpen() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return keyring.ErrRepositoryClosed
	}
	return nil
}

var _ keyring.Repository = (*SQLRepository)(nil)
