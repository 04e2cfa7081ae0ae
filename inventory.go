package ocfl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/archivekit/ocfl/backend"
	"github.com/archivekit/ocfl/digest"
)

var (
	// ErrInventoryCorrupt is reported when an inventory fails schema or
	// invariant checks.
	ErrInventoryCorrupt = errors.New("inventory is invalid")
	// ErrVersionNotFound is reported when a version isn't present in an
	// inventory.
	ErrVersionNotFound = errors.New("version not found in inventory")

	invSidecarContentsRexp = regexp.MustCompile(`^([a-fA-F0-9]+)\s+inventory\.json[\n]?$`)
)

// Inventory represents the contents of an object's inventory.json file.
type Inventory struct {
	ID               string               `json:"id"`
	Type             string               `json:"type"`
	DigestAlgorithm  string               `json:"digestAlgorithm"`
	Head             VNum                 `json:"head"`
	ContentDirectory string               `json:"contentDirectory,omitempty"`
	Manifest         DigestMap            `json:"manifest"`
	Versions         map[VNum]*Version    `json:"versions"`
	Fixity           map[string]DigestMap `json:"fixity,omitempty"`

	digest string // inventory digest from the sidecar, set during read
}

// Version represents object version state and metadata.
type Version struct {
	Created time.Time `json:"created"`
	State   DigestMap `json:"state"`
	Message string    `json:"message,omitempty"`
	User    *User     `json:"user,omitempty"`
}

// User is a Version's user entry.
type User struct {
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
}

// NewInventory returns a minimal inventory for a new object with no
// versions. The alg must be a valid primary algorithm (sha512 or sha256).
func NewInventory(id string, alg digest.Algorithm) (*Inventory, error) {
	if !digest.ValidPrimary(alg) {
		return nil, fmt.Errorf("%w: %q is not allowed as the inventory digest algorithm", ErrInventoryCorrupt, alg.ID())
	}
	return &Inventory{
		ID:              id,
		Type:            InventoryType,
		DigestAlgorithm: alg.ID(),
		Manifest:        DigestMap{},
		Versions:        map[VNum]*Version{},
	}, nil
}

// Digest returns the inventory digest read from the sidecar, if the
// inventory was read from storage.
func (inv Inventory) Digest() string {
	return inv.digest
}

// ContentDir returns the inventory's content directory setting or the
// default.
func (inv Inventory) ContentDir() string {
	if inv.ContentDirectory == "" {
		return contentDirDefault
	}
	return inv.ContentDirectory
}

// VNums returns a sorted slice of the version numbers in the inventory.
func (inv Inventory) VNums() []VNum {
	vnums := make([]VNum, 0, len(inv.Versions))
	for v := range inv.Versions {
		vnums = append(vnums, v)
	}
	VNums(vnums).Sort()
	return vnums
}

// Version returns the version entry with number v. If v is 0, the head
// version is returned. If no such version exists, nil is returned.
func (inv Inventory) Version(v int) *Version {
	if inv.Versions == nil {
		return nil
	}
	if v == 0 {
		return inv.Versions[inv.Head]
	}
	return inv.Versions[V(v, inv.Head.Padding())]
}

// ManifestContains returns whether digest has a manifest entry. The digest
// comparison is case-insensitive hex.
func (inv Inventory) ManifestContains(dig string) bool {
	return inv.Manifest.HasDigest(dig)
}

// ContentPaths returns the manifest's content paths for digest.
func (inv Inventory) ContentPaths(dig string) []string {
	return inv.Manifest.DigestPaths(dig)
}

// AddFileToManifest adds a digest → content path entry to the manifest. The
// digest is stored lowercase; adding an existing (digest, contentPath) pair
// is a no-op.
func (inv *Inventory) AddFileToManifest(dig string, contentPath string) error {
	if inv.Manifest == nil {
		inv.Manifest = DigestMap{}
	}
	return inv.Manifest.Add(dig, contentPath)
}

// AddFixity records a secondary digest for a content path. The content path
// must already exist in the manifest.
func (inv *Inventory) AddFixity(contentPath string, alg string, dig string) error {
	if inv.Manifest.GetDigest(contentPath) == "" {
		return fmt.Errorf("adding fixity: %q is not in the manifest", contentPath)
	}
	if inv.Fixity == nil {
		inv.Fixity = map[string]DigestMap{}
	}
	fix := inv.Fixity[alg]
	if err := fix.Add(dig, contentPath); err != nil {
		return err
	}
	inv.Fixity[alg] = fix
	return nil
}

// AddHeadVersion appends ver as the inventory's new head version. The
// version number must be v1 for an inventory with no versions, or the
// current head plus one.
func (inv *Inventory) AddHeadVersion(vnum VNum, ver *Version) error {
	if err := vnum.Valid(); err != nil {
		return err
	}
	switch {
	case len(inv.Versions) == 0:
		if !vnum.First() {
			return fmt.Errorf("%w: first version must be v1, not %s", ErrVNumInvalid, vnum)
		}
	default:
		next, err := inv.Head.Next()
		if err != nil {
			return err
		}
		if vnum != next {
			return fmt.Errorf("%w: expected %s, got %s", ErrVNumInvalid, next, vnum)
		}
	}
	if inv.Versions == nil {
		inv.Versions = map[VNum]*Version{}
	}
	inv.Versions[vnum] = ver
	inv.Head = vnum
	return nil
}

// ContentPath resolves the logical path in version v's state to a content
// path relative to the object root. If v is 0, the head version is used.
func (inv Inventory) ContentPath(v int, logical string) (string, error) {
	ver := inv.Version(v)
	if ver == nil {
		return "", ErrVersionNotFound
	}
	sum := ver.State.GetDigest(logical)
	if sum == "" {
		return "", fmt.Errorf("%w: no entry for %q", backend.ErrNotExist, logical)
	}
	paths := inv.Manifest.DigestPaths(sum)
	if len(paths) == 0 {
		return "", fmt.Errorf("%w: missing manifest entry for %s", ErrInventoryCorrupt, sum)
	}
	return paths[0], nil
}

// DigestsForLogicalPath returns the digest recorded for the logical path in
// each version whose state includes it.
func (inv Inventory) DigestsForLogicalPath(logical string) map[VNum]string {
	digests := map[VNum]string{}
	for vnum, ver := range inv.Versions {
		if d := ver.State.GetDigest(logical); d != "" {
			digests[vnum] = d
		}
	}
	return digests
}

// Validate checks the inventory's schema and invariants: version numbers
// must be dense from v1 to head with consistent padding; every state digest
// must appear in the manifest; every manifest digest must be referenced by
// at least one version state; every fixity content path must appear in the
// manifest; digests must be lowercase-normalizable hex.
func (inv Inventory) Validate() error {
	if inv.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInventoryCorrupt)
	}
	if inv.Type != InventoryType {
		return fmt.Errorf("%w: unexpected type %q", ErrInventoryCorrupt, inv.Type)
	}
	alg, err := digest.DefaultRegistry().Get(inv.DigestAlgorithm)
	if err != nil || !digest.ValidPrimary(alg) {
		return fmt.Errorf("%w: %q is not allowed as the inventory digest algorithm", ErrInventoryCorrupt, inv.DigestAlgorithm)
	}
	if strings.Contains(inv.ContentDirectory, "/") || inv.ContentDirectory == "." || inv.ContentDirectory == ".." {
		return fmt.Errorf("%w: invalid contentDirectory %q", ErrInventoryCorrupt, inv.ContentDirectory)
	}
	vnums := VNums(inv.VNums())
	if err := vnums.Valid(); err != nil {
		return fmt.Errorf("%w: %s", ErrInventoryCorrupt, err)
	}
	if vnums.Head() != inv.Head {
		return fmt.Errorf("%w: head %s doesn't match last version %s", ErrInventoryCorrupt, inv.Head, vnums.Head())
	}
	if err := inv.Manifest.Valid(); err != nil {
		return fmt.Errorf("%w: manifest: %s", ErrInventoryCorrupt, err)
	}
	referenced := map[string]bool{}
	for vnum, ver := range inv.Versions {
		if ver == nil || ver.State == nil {
			return fmt.Errorf("%w: version %s has no state", ErrInventoryCorrupt, vnum)
		}
		if err := ver.State.Valid(); err != nil {
			return fmt.Errorf("%w: version %s state: %s", ErrInventoryCorrupt, vnum, err)
		}
		if ver.Created.IsZero() {
			return fmt.Errorf("%w: version %s has no created timestamp", ErrInventoryCorrupt, vnum)
		}
		for d := range ver.State {
			if !inv.Manifest.HasDigest(d) {
				return fmt.Errorf("%w: version %s state digest %s is not in the manifest", ErrInventoryCorrupt, vnum, d)
			}
			referenced[strings.ToLower(d)] = true
		}
	}
	for d := range inv.Manifest {
		if !referenced[strings.ToLower(d)] {
			return fmt.Errorf("%w: manifest digest %s is not referenced by any version state", ErrInventoryCorrupt, d)
		}
	}
	manifestPaths, err := inv.Manifest.Paths()
	if err != nil {
		return fmt.Errorf("%w: manifest: %s", ErrInventoryCorrupt, err)
	}
	for alg, fix := range inv.Fixity {
		if err := fix.Valid(); err != nil {
			return fmt.Errorf("%w: %s fixity: %s", ErrInventoryCorrupt, alg, err)
		}
		for _, paths := range fix {
			for _, p := range paths {
				if _, ok := manifestPaths[p]; !ok {
					return fmt.Errorf("%w: %s fixity path %q is not in the manifest", ErrInventoryCorrupt, alg, p)
				}
			}
		}
	}
	return nil
}

// Marshal returns the inventory's canonical JSON encoding.
func (inv Inventory) Marshal() ([]byte, error) {
	byts, err := json.MarshalIndent(inv, "", " ")
	if err != nil {
		return nil, fmt.Errorf("encoding inventory: %w", err)
	}
	return byts, nil
}

// UnmarshalInventory decodes jsonBytes as an inventory, rejecting unknown
// fields, and validates it.
func UnmarshalInventory(jsonBytes []byte) (*Inventory, error) {
	dec := json.NewDecoder(bytes.NewReader(jsonBytes))
	dec.DisallowUnknownFields()
	var inv Inventory
	if err := dec.Decode(&inv); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInventoryCorrupt, err)
	}
	if err := inv.Validate(); err != nil {
		return nil, err
	}
	return &inv, nil
}

// ReadInventory reads dir/inventory.json from the backend, verifies it
// against its sidecar, and returns the validated inventory. The sidecar is
// verified before the inventory is parsed in full: a mismatch is a
// *digest.DigestError and the inventory is not returned.
func ReadInventory(ctx context.Context, b backend.Interface, dir string) (*Inventory, error) {
	invPath := path.Join(dir, inventoryFile)
	jsonBytes, err := backend.ReadAll(ctx, b, invPath)
	if err != nil {
		return nil, err
	}
	// only the digestAlgorithm is needed to locate and verify the sidecar
	var algConf struct {
		DigestAlgorithm string `json:"digestAlgorithm"`
	}
	if err := json.Unmarshal(jsonBytes, &algConf); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInventoryCorrupt, err)
	}
	alg, err := digest.DefaultRegistry().Get(algConf.DigestAlgorithm)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInventoryCorrupt, err)
	}
	sidePath := invPath + "." + alg.ID()
	expected, err := ReadInventorySidecar(ctx, b, sidePath)
	if err != nil {
		return nil, err
	}
	digester := alg.Digester()
	digester.Write(jsonBytes)
	if sum := digester.String(); !strings.EqualFold(sum, expected) {
		return nil, &digest.DigestError{
			Path:     invPath,
			Alg:      alg.ID(),
			Got:      sum,
			Expected: expected,
		}
	}
	inv, err := UnmarshalInventory(jsonBytes)
	if err != nil {
		return nil, err
	}
	inv.digest = strings.ToLower(expected)
	return inv, nil
}

// WriteInventory marshals inv and writes inventory.json and its sidecar to
// every dir in dirs.
func WriteInventory(ctx context.Context, b backend.Interface, inv *Inventory, dirs ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	alg, err := digest.DefaultRegistry().Get(inv.DigestAlgorithm)
	if err != nil {
		return err
	}
	byts, err := inv.Marshal()
	if err != nil {
		return err
	}
	digester := alg.Digester()
	if _, err := digester.Write(byts); err != nil {
		return err
	}
	sum := digester.String()
	for _, dir := range dirs {
		invFile := path.Join(dir, inventoryFile)
		sideFile := invFile + "." + inv.DigestAlgorithm
		if _, err := b.Write(ctx, invFile, bytes.NewReader(byts), true); err != nil {
			return fmt.Errorf("write inventory failed: %w", err)
		}
		if _, err := b.Write(ctx, sideFile, strings.NewReader(sidecarLine(sum)), true); err != nil {
			return fmt.Errorf("write inventory sidecar failed: %w", err)
		}
	}
	return nil
}

// sidecarLine formats a sidecar file's contents in POSIX 'sum' format.
func sidecarLine(sum string) string {
	return sum + "  " + inventoryFile + "\n"
}

// ReadInventorySidecar parses the contents of the named file as an inventory
// sidecar, returning the recorded digest.
func ReadInventorySidecar(ctx context.Context, b backend.Interface, name string) (string, error) {
	cont, err := backend.ReadAll(ctx, b, name)
	if err != nil {
		return "", err
	}
	matches := invSidecarContentsRexp.FindSubmatch(cont)
	if len(matches) != 2 {
		return "", fmt.Errorf("%w: malformed inventory sidecar: %q", ErrInventoryCorrupt, string(cont))
	}
	return string(matches[1]), nil
}
