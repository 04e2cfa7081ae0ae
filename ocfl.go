// Package ocfl implements the core of an OCFL (Oxford Common File Layout)
// repository engine: it stores immutable, versioned objects in a storage
// backend with content-addressed integrity, atomic version commits, and
// bit-exact round-tripping of object history.
package ocfl

const (
	// Spec is the OCFL specification version implemented by this module.
	Spec = "1.0"

	// InventoryType is the value of the inventory's 'type' field.
	InventoryType = "https://ocfl.io/" + Spec + "/spec/#inventory"

	// NamasteTypeRoot is the NAMASTE type for an OCFL storage root.
	NamasteTypeRoot = "ocfl"
	// NamasteTypeObject is the NAMASTE type for an OCFL object root.
	NamasteTypeObject = "ocfl_object"

	inventoryFile     = "inventory.json"
	layoutFile        = "ocfl_layout.json"
	contentDirDefault = "content"
)
