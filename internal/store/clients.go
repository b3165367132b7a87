package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/tallybridge/internal/model"
)

// UpsertClient registers a client on first contact and refreshes it afterwards.
//
// First call for a client_id: inserts the client with a freshly generated token.
// Later calls: update company_name if a non-empty one is given (last write wins)
// and leave the token untouched.
//
// Returns the stored client, token included. Safe to call redundantly.
func (s *Store) UpsertClient(ctx context.Context, clientID, companyName string) (model.Client, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Client{}, fault("upsert client: begin tx", err)
	}
	defer tx.Rollback() // No-op if committed

	client, err := s.upsertClientTx(ctx, tx, clientID, companyName)
	if err != nil {
		return model.Client{}, err
	}

	if err := tx.Commit(); err != nil {
		return model.Client{}, fault("upsert client: commit", err)
	}
	return client, nil
}

func (s *Store) upsertClientTx(ctx context.Context, tx *sql.Tx, clientID, companyName string) (model.Client, error) {
	var exists int
	err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM clients WHERE client_id = ?`, clientID).Scan(&exists)
	if err != nil {
		return model.Client{}, fault("upsert client: lookup", err)
	}

	if exists == 0 {
		token, err := s.tokens.Generate()
		if err != nil {
			return model.Client{}, fmt.Errorf("upsert client: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO clients (client_id, company_name, token, created_at)
			VALUES (?, ?, ?, ?)
		`, clientID, companyName, token, s.timestamp())
		if err != nil {
			return model.Client{}, fault("upsert client: insert", err)
		}
	} else if companyName != "" {
		_, err = tx.ExecContext(ctx, `
			UPDATE clients SET company_name = ? WHERE client_id = ?
		`, companyName, clientID)
		if err != nil {
			return model.Client{}, fault("upsert client: update", err)
		}
	}

	row := tx.QueryRowContext(ctx, `
		SELECT client_id, company_name, token, last_sync, last_tally_access
		FROM clients
		WHERE client_id = ?
	`, clientID)
	client, err := scanClient(row)
	if err != nil {
		return model.Client{}, fault("upsert client: read back", err)
	}
	return client, nil
}

// Client retrieves a client by id.
// Returns ErrNotFound (wrapped) if the client is not registered.
func (s *Store) Client(ctx context.Context, clientID string) (model.Client, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT client_id, company_name, token, last_sync, last_tally_access
		FROM clients
		WHERE client_id = ?
	`, clientID)

	client, err := scanClient(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Client{}, fmt.Errorf("client %q: %w", clientID, ErrNotFound)
	}
	if err != nil {
		return model.Client{}, fault("read client", err)
	}
	return client, nil
}

// ClientByToken resolves a bearer token to its client.
// Returns ErrNotFound (wrapped) for an empty or unknown token.
func (s *Store) ClientByToken(ctx context.Context, token string) (model.Client, error) {
	if token == "" {
		return model.Client{}, fmt.Errorf("client by token: %w", ErrNotFound)
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT client_id, company_name, token, last_sync, last_tally_access
		FROM clients
		WHERE token = ?
	`, token)

	client, err := scanClient(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Client{}, fmt.Errorf("client by token: %w", ErrNotFound)
	}
	if err != nil {
		return model.Client{}, fault("read client by token", err)
	}
	return client, nil
}

// ListClients returns every registered client ordered by client_id.
func (s *Store) ListClients(ctx context.Context) ([]model.Client, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT client_id, company_name, token, last_sync, last_tally_access
		FROM clients
		ORDER BY client_id ASC
	`)
	if err != nil {
		return nil, fault("list clients", err)
	}
	defer rows.Close()

	clients := []model.Client{}
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, fault("list clients: scan", err)
		}
		clients = append(clients, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fault("list clients: iterate", err)
	}
	return clients, nil
}

// UpdateSync records a sync report from a client.
//
// last_sync is always updated. last_tally_access is updated only when the
// client reports the terminal was reachable.
// Returns ErrNotFound (wrapped) if the client is not registered.
func (s *Store) UpdateSync(ctx context.Context, clientID string, lastSync time.Time, tallyAccessOK bool) error {
	ts := toUnix(lastSync)
	result, err := s.db.ExecContext(ctx, `
		UPDATE clients
		SET last_sync = ?,
		    last_tally_access = CASE WHEN ? THEN ? ELSE last_tally_access END
		WHERE client_id = ?
	`, ts, tallyAccessOK, ts, clientID)
	if err != nil {
		return fault("update sync", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fault("update sync: rows affected", err)
	}
	if affected == 0 {
		return fmt.Errorf("update sync %q: %w", clientID, ErrNotFound)
	}
	return nil
}

func scanClient(row rowScanner) (model.Client, error) {
	var (
		c               model.Client
		lastSync        sql.NullInt64
		lastTallyAccess sql.NullInt64
	)
	if err := row.Scan(&c.ClientID, &c.CompanyName, &c.Token, &lastSync, &lastTallyAccess); err != nil {
		return model.Client{}, err
	}
	c.LastSync = nullableTime(lastSync)
	c.LastTallyAccess = nullableTime(lastTallyAccess)
	return c, nil
}
