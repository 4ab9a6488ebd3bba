package resource

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/careset/fhirstore/internal/txn"
)

// Repository is the document-store repository for healthcare resources.
// It is the sole caller of txn.WithTransaction in this codebase;
// resource.go and its callers never see a ConnectionHandle directly.
type Repository struct {
	manager  *txn.Manager
	registry Registry
}

// NewRepository constructs a Repository bound to a transaction manager
// and a schema registry used for the additional-property validation
// pass.
func NewRepository(manager *txn.Manager, registry Registry) *Repository {
	return &Repository{manager: manager, registry: registry}
}

// Manager exposes the underlying transaction manager for callers that
// need to wrap several repository calls in one explicit outer
// transaction (e.g. to test or rely on nested-savepoint atomicity across
// multiple Create/Update calls).
func (r *Repository) Manager() *txn.Manager {
	return r.manager
}

// Create validates and inserts a new resource, returning it with its
// server-assigned id and version.
func (r *Repository) Create(ctx context.Context, resourceType string, data map[string]any, opts ...txn.Option) (*Resource, error) {
	res, err := txn.WithTransaction(ctx, r.manager, func(ctx context.Context, ch txn.ConnectionHandle) (*Resource, error) {
		return r.createOn(ctx, ch, resourceType, data)
	}, opts...)

	if err != nil {
		return nil, FromTxnError(err)
	}
	return res, nil
}

// createOn runs the validate-then-insert step against an already-open
// handle, so callers composing several steps into one transaction
// (CreateIfAbsent) share a single physical session with it.
func (r *Repository) createOn(ctx context.Context, ch txn.ConnectionHandle, resourceType string, data map[string]any) (*Resource, error) {
	schema := r.registry.Lookup(resourceType)
	if verr := schema.Validate(data); verr != nil {
		return nil, verr
	}

	res := &Resource{
		ResourceType: resourceType,
		ID:           uuid.New().String(),
		VersionID:    1,
		LastUpdated:  time.Now().UTC(),
		Data:         data,
	}

	payload, jsonErr := json.Marshal(res.Data)
	if jsonErr != nil {
		return nil, jsonErr
	}

	_, execErr := ch.Exec(ctx,
		`INSERT INTO resources (resource_type, id, version_id, last_updated, body) VALUES ($1, $2, $3, $4, $5)`,
		res.ResourceType, res.ID, res.VersionID, res.LastUpdated, payload)
	if execErr != nil {
		return nil, execErr
	}

	return res, nil
}

// Read fetches a resource by type and id. It may be called inside or
// outside an active transaction; WithTransaction nests transparently
// when one is already open.
func (r *Repository) Read(ctx context.Context, resourceType, id string) (*Resource, error) {
	res, err := txn.WithTransaction(ctx, r.manager, func(ctx context.Context, ch txn.ConnectionHandle) (*Resource, error) {
		return r.readOne(ctx, ch, resourceType, id)
	})
	if err != nil {
		return nil, FromTxnError(err)
	}
	return res, nil
}

func (r *Repository) readOne(ctx context.Context, ch txn.ConnectionHandle, resourceType, id string) (*Resource, error) {
	row := ch.QueryRow(ctx,
		`SELECT version_id, last_updated, body FROM resources WHERE resource_type = $1 AND id = $2`,
		resourceType, id)

	var (
		versionID   int
		lastUpdated time.Time
		payload     []byte
	)
	if err := row.Scan(&versionID, &lastUpdated, &payload); err != nil {
		if errors.Is(err, txn.ErrNoRows) {
			return nil, NewNotFoundOutcome(resourceType, id)
		}
		return nil, err
	}

	var data map[string]any
	if err := json.Unmarshal(payload, &data); err != nil {
		return nil, err
	}

	return &Resource{ResourceType: resourceType, ID: id, VersionID: versionID, LastUpdated: lastUpdated, Data: data}, nil
}

// Update applies an optimistic-locked update: the write only succeeds if
// the resource's current version matches expectedVersion, surfacing a
// conflict outcome otherwise.
func (r *Repository) Update(ctx context.Context, resourceType, id string, expectedVersion int, data map[string]any, opts ...txn.Option) (*Resource, error) {
	schema := r.registry.Lookup(resourceType)

	res, err := txn.WithTransaction(ctx, r.manager, func(ctx context.Context, ch txn.ConnectionHandle) (*Resource, error) {
		if verr := schema.Validate(data); verr != nil {
			return nil, verr
		}

		payload, jsonErr := json.Marshal(data)
		if jsonErr != nil {
			return nil, jsonErr
		}

		now := time.Now().UTC()
		tag, execErr := ch.Exec(ctx,
			`UPDATE resources SET version_id = version_id + 1, last_updated = $1, body = $2
			 WHERE resource_type = $3 AND id = $4 AND version_id = $5`,
			now, payload, resourceType, id, expectedVersion)
		if execErr != nil {
			return nil, execErr
		}
		if tag.RowsAffected() == 0 {
			return nil, &OutcomeError{
				Severity: SeverityError,
				Code:     txn.CodeSerializationConflict,
				Text:     "resource was modified concurrently",
			}
		}

		return &Resource{ResourceType: resourceType, ID: id, VersionID: expectedVersion + 1, LastUpdated: now, Data: data}, nil
	}, opts...)

	if err != nil {
		return nil, FromTxnError(err)
	}
	return res, nil
}

// Delete removes a resource. Deleting an already-absent resource is a
// NotFound outcome, not silently ignored, matching the repository's
// read-path semantics.
func (r *Repository) Delete(ctx context.Context, resourceType, id string) error {
	_, err := txn.WithTransaction(ctx, r.manager, func(ctx context.Context, ch txn.ConnectionHandle) (any, error) {
		tag, execErr := ch.Exec(ctx, `DELETE FROM resources WHERE resource_type = $1 AND id = $2`, resourceType, id)
		if execErr != nil {
			return nil, execErr
		}
		if tag.RowsAffected() == 0 {
			return nil, NewNotFoundOutcome(resourceType, id)
		}
		return nil, nil
	})
	return FromTxnError(err)
}

// Search returns every resource of resourceType whose body matches the
// given equality filters. A full search-parameter compiler lives above
// this layer; the repository only answers exact-match queries.
func (r *Repository) Search(ctx context.Context, resourceType string, filters map[string]any) ([]*Resource, error) {
	results, err := txn.WithTransaction(ctx, r.manager, func(ctx context.Context, ch txn.ConnectionHandle) ([]*Resource, error) {
		return r.searchOn(ctx, ch, resourceType, filters)
	})

	if err != nil {
		return nil, FromTxnError(err)
	}
	return results, nil
}

// searchOn runs the search against an already-open handle, so a
// search-then-write composition (CreateIfAbsent) keeps the read inside
// the same transaction as the write it guards.
func (r *Repository) searchOn(ctx context.Context, ch txn.ConnectionHandle, resourceType string, filters map[string]any) ([]*Resource, error) {
	rows, queryErr := ch.Query(ctx, `SELECT id, version_id, last_updated, body FROM resources WHERE resource_type = $1`, resourceType)
	if queryErr != nil {
		return nil, queryErr
	}
	defer rows.Close()

	var matches []*Resource
	for rows.Next() {
		var (
			id          string
			versionID   int
			lastUpdated time.Time
			payload     []byte
		)
		if err := rows.Scan(&id, &versionID, &lastUpdated, &payload); err != nil {
			return nil, err
		}

		var data map[string]any
		if err := json.Unmarshal(payload, &data); err != nil {
			return nil, err
		}
		if !matchesFilters(data, filters) {
			continue
		}
		matches = append(matches, &Resource{ResourceType: resourceType, ID: id, VersionID: versionID, LastUpdated: lastUpdated, Data: data})
	}
	return matches, rows.Err()
}

func matchesFilters(data map[string]any, filters map[string]any) bool {
	for k, want := range filters {
		if got, ok := data[k]; !ok || got != want {
			return false
		}
	}
	return true
}
