package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DefaultsToSQLite(t *testing.T) {
	store, err := New(context.Background(), Config{SQLite: SQLiteConfig{Path: ":memory:"}})
	require.NoError(t, err)
	defer store.Close()

	assert.Equal(t, TypeSQLite, store.Type())
	assert.NotNil(t, store.SQLiteDB())
	assert.Nil(t, store.PostgreSQLPool())
	assert.Nil(t, store.MongoDatabase())
}

func TestNew_UnknownType(t *testing.T) {
	_, err := New(context.Background(), Config{Type: "dynamo"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown storage type")
}

func TestNewPostgreSQL_RequiresURL(t *testing.T) {
	_, err := NewPostgreSQL(context.Background(), PostgreSQLConfig{})
	require.Error(t, err)
}

func TestNewMongoDB_RequiresURL(t *testing.T) {
	_, err := NewMongoDB(context.Background(), MongoDBConfig{})
	require.Error(t, err)
}

func TestSQLiteCreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "images.db")
	store, err := NewSQLite(SQLiteConfig{Path: path})
	require.NoError(t, err)
	defer store.Close()

	_, err = store.SQLiteDB().Exec(`CREATE TABLE probe (id INTEGER)`)
	require.NoError(t, err)
}

func TestSQLiteConcurrentWriteSafety(t *testing.T) {
	store, err := NewSQLite(SQLiteConfig{Path: filepath.Join(t.TempDir(), "test.db")})
	if err != nil {
		t.Fatalf("failed to create SQLite storage: %v", err)
	}
	defer store.Close()

	db := store.SQLiteDB()

	// Blob and history writes share one database file.
	for _, table := range []string{"test_blobs", "test_history"} {
		if _, err := db.Exec(fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (id TEXT PRIMARY KEY, data BLOB)`, table)); err != nil {
			t.Fatalf("failed to create %s table: %v", table, err)
		}
	}

	const goroutines = 10
	const insertsPerGoroutine = 50

	var wg sync.WaitGroup
	errs := make(chan error, goroutines*insertsPerGoroutine)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			table := "test_blobs"
			if id%2 == 1 {
				table = "test_history"
			}
			for j := 0; j < insertsPerGoroutine; j++ {
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				_, err := db.ExecContext(ctx, fmt.Sprintf(`INSERT INTO %s (id, data) VALUES (?, ?)`, table),
					fmt.Sprintf("%d-%d", id, j), []byte("payload"))
				cancel()
				if err != nil {
					errs <- fmt.Errorf("goroutine %d insert %d into %s: %w", id, j, table, err)
				}
			}
		}(i)
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("concurrent write error: %v", err)
	}

	expectedPerTable := (goroutines / 2) * insertsPerGoroutine
	for _, table := range []string{"test_blobs", "test_history"} {
		var count int
		if err := db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&count); err != nil {
			t.Fatalf("failed to count %s rows: %v", table, err)
		}
		if count != expectedPerTable {
			t.Errorf("%s: got %d rows, want %d", table, count, expectedPerTable)
		}
	}
}
