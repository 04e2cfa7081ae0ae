// Package details defines the object details record that deployments can
// persist in a database for fast object lookup, along with the reference
// table schema. The engine itself never requires a database; implementations
// of Database are external collaborators.
package details

import (
	"context"
	"time"
)

// ObjectDetails is a denormalized summary of an object's current state,
// refreshed on every commit.
type ObjectDetails struct {
	ObjectID        string    // object identifier
	VersionID       string    // current head version ("v3")
	ObjectRootPath  string    // object root, relative to the storage root
	RevisionID      string    // reserved for the mutable-HEAD extension; empty otherwise
	InventoryDigest string    // digest of the root inventory.json
	DigestAlgorithm string    // the inventory's digest algorithm
	Inventory       []byte    // serialized root inventory.json
	UpdateTimestamp time.Time // when this record was written
}

// Database stores ObjectDetails records. Implementations must be safe for
// concurrent use. Get returns (nil, nil) when no record exists.
type Database interface {
	Get(ctx context.Context, objectID string) (*ObjectDetails, error)
	Put(ctx context.Context, details *ObjectDetails) error
	Delete(ctx context.Context, objectID string) error
}

// Schema is the reference DDL for the object details table (Postgres
// dialect).
const Schema = `
CREATE TABLE IF NOT EXISTS ocfl_object_details (
    object_id        varchar(1024) PRIMARY KEY,
    version_id       varchar(255) NOT NULL,
    object_root_path varchar(2048) NOT NULL,
    revision_id      varchar(255),
    inventory_digest varchar(255) NOT NULL,
    digest_algorithm varchar(255) NOT NULL,
    inventory        bytea NOT NULL,
    update_timestamp timestamptz NOT NULL
);
`
