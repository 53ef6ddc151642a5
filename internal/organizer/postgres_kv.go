package organizer

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lib/pq"
)

const (
	postgresKVTableName      = "organizer_kv"
	postgresNotifyChannel    = "organizer_kv_changes"
	postgresOperationTimeout = 5 * time.Second

	postgresListenerMinReconnect = 2 * time.Second
	postgresListenerMaxReconnect = time.Minute
)

type sqlOpenFunc func(driverName, dsn string) (*sql.DB, error)

// PostgresKV keeps one row per (scope, key) and broadcasts change batches
// over LISTEN/NOTIFY, so every process connected to the same database sees
// the same change feed the in-process subscribers do.
type PostgresKV struct {
	scope     Scope
	dsn       string
	tableName string
	openDB    sqlOpenFunc

	initOnce sync.Once
	initErr  error
	db       *sql.DB

	subs       subscriberSet
	listenOnce sync.Once
	listener   *pq.Listener
	done       chan struct{}
	closeOnce  sync.Once
	wg         sync.WaitGroup
}

type postgresChangePayload struct {
	Scope Scope    `json:"scope"`
	Keys  []string `json:"keys"`
}

func NewPostgresKV(scope Scope, dsn string) (*PostgresKV, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, ErrInvalidInput
	}
	return &PostgresKV{
		scope:     scope,
		dsn:       dsn,
		tableName: postgresKVTableName,
		openDB:    sql.Open,
		done:      make(chan struct{}),
	}, nil
}

func (kv *PostgresKV) Get(ctx context.Context, keys []string) (map[string]json.RawMessage, error) {
	if kv == nil {
		return nil, ErrInvalidInput
	}
	if err := kv.ensureReady(); err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return map[string]json.RawMessage{}, nil
	}
	ctx, cancel := context.WithTimeout(ctx, postgresOperationTimeout)
	defer cancel()

	query := fmt.Sprintf(
		"SELECT key, value FROM %s WHERE scope = $1 AND key = ANY($2)",
		postgresQuoteIdentifier(kv.tableName),
	)
	rows, err := kv.db.QueryContext(ctx, query, string(kv.scope), pq.Array(keys))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]json.RawMessage, len(keys))
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		out[key] = json.RawMessage(value)
	}
	return out, rows.Err()
}

func (kv *PostgresKV) Set(ctx context.Context, entries map[string]json.RawMessage) error {
	if kv == nil {
		return ErrInvalidInput
	}
	if err := kv.ensureReady(); err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, postgresOperationTimeout)
	defer cancel()

	tx, err := kv.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (scope, key, value, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (scope, key)
		DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`,
		postgresQuoteIdentifier(kv.tableName),
	)
	keys := make([]string, 0, len(entries))
	for key, value := range entries {
		if _, err := tx.ExecContext(ctx, query, string(kv.scope), key, string(value)); err != nil {
			_ = tx.Rollback()
			return err
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	payload, err := json.Marshal(postgresChangePayload{Scope: kv.scope, Keys: keys})
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	if _, err := tx.ExecContext(ctx, "SELECT pg_notify($1, $2)", postgresNotifyChannel, string(payload)); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Subscribe lazily opens the LISTEN connection; subscribers also receive the
// notifications triggered by this process's own writes, which cross-tab
// consumers already tolerate as redundant refreshes.
func (kv *PostgresKV) Subscribe(fn func(ChangeEvent)) (cancel func()) {
	kv.listenOnce.Do(func() {
		listener := pq.NewListener(kv.dsn, postgresListenerMinReconnect, postgresListenerMaxReconnect, nil)
		if err := listener.Listen(postgresNotifyChannel); err != nil {
			_ = listener.Close()
			return
		}
		kv.listener = listener
		kv.wg.Add(1)
		go func() {
			defer kv.wg.Done()
			kv.listenLoop()
		}()
	})
	return kv.subs.add(fn)
}

func (kv *PostgresKV) listenLoop() {
	for {
		select {
		case <-kv.done:
			return
		case notification, ok := <-kv.listener.Notify:
			if !ok {
				return
			}
			if notification == nil {
				// Reconnect marker; nothing to deliver.
				continue
			}
			var payload postgresChangePayload
			if err := json.Unmarshal([]byte(notification.Extra), &payload); err != nil {
				continue
			}
			if payload.Scope != kv.scope {
				continue
			}
			kv.subs.notify(ChangeEvent{Scope: payload.Scope, Keys: payload.Keys})
		}
	}
}

func (kv *PostgresKV) Close() error {
	if kv == nil {
		return nil
	}
	kv.closeOnce.Do(func() {
		close(kv.done)
		if kv.listener != nil {
			_ = kv.listener.Close()
		}
		kv.wg.Wait()
	})
	if kv.db != nil {
		return kv.db.Close()
	}
	return nil
}

func (kv *PostgresKV) ensureReady() error {
	if kv == nil {
		return ErrInvalidInput
	}
	kv.initOnce.Do(func() {
		db, err := kv.openDB("postgres", kv.dsn)
		if err != nil {
			kv.initErr = err
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), postgresOperationTimeout)
		defer cancel()

		query := fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				scope TEXT NOT NULL,
				key TEXT NOT NULL,
				value TEXT NOT NULL,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				PRIMARY KEY (scope, key)
			)`, postgresQuoteIdentifier(kv.tableName))
		if _, err := db.ExecContext(ctx, query); err != nil {
			_ = db.Close()
			kv.initErr = err
			return
		}
		kv.db = db
	})
	return kv.initErr
}

func postgresQuoteIdentifier(identifier string) string {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return "\"\""
	}
	return `"` + strings.ReplaceAll(identifier, `"`, `""`) + `"`
}
