package resource

import (
	"context"
	"fmt"
	"sort"

	"github.com/cespare/xxhash/v2"

	"github.com/careset/fhirstore/internal/txn"
)

// IdempotencyKey derives a stable hash for a conditional-create
// (search-then-create) request, usable as the identifier value callers
// feed to CreateIfAbsent when the natural identifying fields are too
// wide to index or to send over the wire. xxhash is already in this
// module's dependency graph via the Redis client; using it directly here
// avoids pulling in a second hash implementation for the same concern.
func IdempotencyKey(resourceType string, identifyingFields map[string]any) uint64 {
	keys := make([]string, 0, len(identifyingFields))
	for k := range identifyingFields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := xxhash.New()
	_, _ = h.WriteString(resourceType)
	for _, k := range keys {
		_, _ = h.WriteString(k)
		_, _ = h.WriteString("=")
		_, _ = h.WriteString(toHashString(identifyingFields[k]))
		_, _ = h.WriteString(";")
	}
	return h.Sum64()
}

func toHashString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(v)
	}
}

// CreateIfAbsent implements conditional create: it searches for a
// resource whose identifying fields match, and creates one only if
// absent. The search and the insert run inside a single transaction,
// never one transaction each: the uniqueness guarantee lives entirely
// in the overlap, where under txn.WithSerializable() the engine sees
// both callers' read-then-write on the same key and lets at most one of
// them commit; the loser surfaces SerializationConflict. Called without
// serializable, both may succeed; duplicates are permitted at this
// layer, and callers wanting uniqueness must opt in.
func (r *Repository) CreateIfAbsent(ctx context.Context, resourceType string, identifyingFields, data map[string]any, opts ...txn.Option) (*Resource, error) {
	res, err := txn.WithTransaction(ctx, r.manager, func(ctx context.Context, ch txn.ConnectionHandle) (*Resource, error) {
		existing, searchErr := r.searchOn(ctx, ch, resourceType, identifyingFields)
		if searchErr != nil {
			return nil, searchErr
		}
		if len(existing) > 0 {
			return existing[0], nil
		}
		return r.createOn(ctx, ch, resourceType, data)
	}, opts...)

	if err != nil {
		return nil, FromTxnError(err)
	}
	return res, nil
}
