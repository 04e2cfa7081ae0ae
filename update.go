package ocfl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/archivekit/ocfl/backend"
	"github.com/archivekit/ocfl/backend/mem"
	"github.com/archivekit/ocfl/digest"
	"github.com/archivekit/ocfl/metrics"
	"github.com/archivekit/ocfl/pathmap"
)

var (
	// ErrOverwrite is reported when an operation would replace an existing
	// logical path and overwriting isn't enabled.
	ErrOverwrite = errors.New("logical path already exists")
	// ErrNotStaged is reported when Build hasn't been called before
	// NewContent.
	ErrNotStaged = errors.New("updater is not built")
)

// Updater stages the next version of an object: a shadow version state, new
// content spooled for transfer, and deletions and renames applied on top of
// the predecessor's state. An Updater is single-threaded per object; it is
// not safe for concurrent use.
type Updater struct {
	inv   *Inventory // working inventory (normalized copy of the base)
	next  VNum       // version being staged
	ver   Version    // commit metadata for the new version
	paths *PathBiMap // working state: digest ↔ logical paths

	spool   backend.Interface // holds bytes for new content, keyed by digest
	writes  map[string]string // primary digest → content path, this version only
	caseMap map[string]string // lowercase logical path → logical path
	seq     int               // spool temp name counter

	validator pathmap.Validator
	mapper    pathmap.Mapper
	alg       digest.Algorithm
	metrics   *metrics.Metrics
	overwrite bool
	built     bool
}

// UpdaterOption configures an Updater.
type UpdaterOption func(*Updater)

// WithPadding sets version number zero-padding. It only applies when the
// base inventory has no versions.
func WithPadding(p int) UpdaterOption {
	return func(u *Updater) { u.next.width = p }
}

// WithMapper sets the logical path mapper used to derive content paths.
func WithMapper(m pathmap.Mapper) UpdaterOption {
	return func(u *Updater) { u.mapper = m }
}

// WithValidator sets the constraint pipeline applied to logical paths.
func WithValidator(v pathmap.Validator) UpdaterOption {
	return func(u *Updater) { u.validator = v }
}

// WithOverwrite allows AddFile, RenameFile, and ReinstateFile to replace
// existing logical paths.
func WithOverwrite() UpdaterOption {
	return func(u *Updater) { u.overwrite = true }
}

// WithSpool sets the backend used to hold new content until commit. The
// default is an in-memory backend; use a local temp-dir backend for large
// content.
func WithSpool(b backend.Interface) UpdaterOption {
	return func(u *Updater) { u.spool = b }
}

// WithUpdaterMetrics sets the metrics collectors the updater records dedup
// hits with. Root.Stage sets this from the root's collectors.
func WithUpdaterMetrics(m *metrics.Metrics) UpdaterOption {
	return func(u *Updater) { u.metrics = m }
}

// NewUpdater returns an Updater that stages the version after base's head.
// For a new object, base is an inventory with no versions (see
// NewInventory); the first staged version is v1. The predecessor head
// version's state is carried into the working state.
func NewUpdater(base *Inventory, opts ...UpdaterOption) (*Updater, error) {
	if base == nil {
		return nil, errors.New("nil base inventory")
	}
	alg, err := digest.DefaultRegistry().Get(base.DigestAlgorithm)
	if err != nil {
		return nil, err
	}
	if !digest.ValidPrimary(alg) {
		return nil, fmt.Errorf("%w: %q is not allowed as the inventory digest algorithm", ErrInventoryCorrupt, base.DigestAlgorithm)
	}
	u := &Updater{
		paths:     NewPathBiMap(),
		writes:    map[string]string{},
		caseMap:   map[string]string{},
		validator: pathmap.DefaultValidator(),
		mapper:    pathmap.NewMapper(pathmap.All),
		alg:       alg,
	}
	for _, opt := range opts {
		opt(u)
	}
	if u.spool == nil {
		u.spool = mem.NewBackend()
	}
	switch {
	case len(base.Versions) == 0:
		u.inv = &Inventory{
			ID:               base.ID,
			Type:             InventoryType,
			DigestAlgorithm:  base.DigestAlgorithm,
			ContentDirectory: base.ContentDirectory,
			Manifest:         base.Manifest.Copy(),
			Versions:         map[VNum]*Version{},
		}
		u.next = V(1, u.next.width)
	default:
		inv, err := normalizedCopy(base)
		if err != nil {
			return nil, err
		}
		u.inv = inv
		u.next, err = base.Head.Next()
		if err != nil {
			return nil, err
		}
		// carry the head version's state into the working state
		head := base.Version(0)
		if head == nil || head.State == nil {
			return nil, fmt.Errorf("%w: missing head version state", ErrInventoryCorrupt)
		}
		if err := head.State.EachPath(func(p, dig string) error {
			u.paths.Put(dig, p)
			u.caseMap[strings.ToLower(p)] = p
			return nil
		}); err != nil {
			return nil, err
		}
	}
	return u, nil
}

// Next returns the version number being staged.
func (u *Updater) Next() VNum {
	return u.next
}

// AddFile digests src with the object's primary algorithm and stages it at
// the logical path. If the digest is new to the manifest, the bytes are
// spooled and a content path is recorded; otherwise the content is
// deduplicated and only the state entry is added. For each fixity algorithm
// distinct from the primary, a secondary digest of the same bytes is
// recorded. The returned bool reports whether the content was new.
func (u *Updater) AddFile(ctx context.Context, src io.Reader, logical string, fixityAlgs ...digest.Algorithm) (bool, error) {
	if err := u.checkDst(logical); err != nil {
		return false, err
	}
	algs := make([]digest.Algorithm, 1, 1+len(fixityAlgs))
	algs[0] = u.alg
	for _, fixAlg := range fixityAlgs {
		if fixAlg.ID() != u.alg.ID() {
			algs = append(algs, fixAlg)
		}
	}
	// the digest isn't known until the bytes are read, so spool to a
	// temporary name first
	u.seq++
	tmpName := fmt.Sprintf("tmp/%d", u.seq)
	digester := digest.NewMultiDigester(algs...)
	if _, err := u.spool.Write(ctx, tmpName, io.TeeReader(src, digester), true); err != nil {
		return false, fmt.Errorf("spooling %q: %w", logical, err)
	}
	sums := digester.Sums()
	primary := strings.ToLower(sums[u.alg.ID()])
	isNew := !u.inv.ManifestContains(primary)
	if !isNew {
		// dedup: the spooled bytes aren't needed
		u.metrics.DedupHit()
		if err := u.spool.Delete(ctx, tmpName); err != nil && !errors.Is(err, backend.ErrNotExist) {
			return false, err
		}
		u.setPath(primary, logical)
		return false, nil
	}
	// content paths normally mirror the mapped logical path; an overwritten
	// logical path can leave its first digest in the manifest until Build
	// prunes it, so suffix the path if it's taken
	contentPath := path.Join(u.next.String(), u.inv.ContentDir(), u.mapper.Map(logical))
	for i := 2; u.inv.Manifest.GetDigest(contentPath) != ""; i++ {
		contentPath = fmt.Sprintf("%s-%d", path.Join(u.next.String(), u.inv.ContentDir(), u.mapper.Map(logical)), i)
	}
	if err := u.inv.AddFileToManifest(primary, contentPath); err != nil {
		return false, err
	}
	for algID, sum := range sums {
		if algID == u.alg.ID() {
			continue
		}
		if err := u.inv.AddFixity(contentPath, algID, strings.ToLower(sum)); err != nil {
			return false, err
		}
	}
	if err := u.spool.Move(ctx, tmpName, primary); err != nil {
		return false, fmt.Errorf("spooling %q: %w", logical, err)
	}
	u.writes[primary] = contentPath
	u.setPath(primary, logical)
	return true, nil
}

// RemoveFile removes the logical path from the staged version's state. The
// content itself is untouched; manifest entries with no remaining state
// reference are pruned by Build.
func (u *Updater) RemoveFile(logical string) error {
	if !u.paths.RemovePath(logical) {
		return fmt.Errorf("removing %q: %w", logical, backend.ErrNotExist)
	}
	delete(u.caseMap, strings.ToLower(logical))
	return nil
}

// RenameFile moves the state entry for src to dst. Content paths are
// unchanged.
func (u *Updater) RenameFile(src, dst string) error {
	dig, ok := u.paths.GetFileID(src)
	if !ok {
		return fmt.Errorf("renaming %q: %w", src, backend.ErrNotExist)
	}
	if err := u.checkDst(dst); err != nil {
		return err
	}
	u.paths.RemovePath(src)
	delete(u.caseMap, strings.ToLower(src))
	u.setPath(dig, dst)
	return nil
}

// ReinstateFile copies the state entry for a logical path in a prior version
// into the staged state under dst. No bytes are moved.
func (u *Updater) ReinstateFile(srcVer int, srcLogical, dstLogical string) error {
	ver := u.inv.Version(srcVer)
	if ver == nil {
		return fmt.Errorf("reinstating from v%d: %w", srcVer, ErrVersionNotFound)
	}
	dig := ver.State.GetDigest(srcLogical)
	if dig == "" {
		return fmt.Errorf("reinstating %q from v%d: %w", srcLogical, srcVer, backend.ErrNotExist)
	}
	if err := u.checkDst(dstLogical); err != nil {
		return err
	}
	u.setPath(dig, dstLogical)
	return nil
}

// SetCommitInfo sets the user and message recorded with the staged version.
func (u *Updater) SetCommitInfo(user *User, message string) {
	u.ver.User = user
	u.ver.Message = message
}

// SetCreated sets the created timestamp for the staged version. The default
// is the commit time.
func (u *Updater) SetCreated(t time.Time) {
	u.ver.Created = t.UTC().Truncate(time.Second)
}

// Build finalizes and returns the next inventory: the staged state becomes
// the new head version, orphaned manifest and fixity entries are pruned, and
// all inventory invariants are checked.
func (u *Updater) Build() (*Inventory, error) {
	if u.built {
		return u.inv, nil
	}
	state := DigestMap{}
	if err := u.paths.EachPath(func(p, dig string) error {
		return state.Add(dig, p)
	}); err != nil {
		return nil, err
	}
	created := u.ver.Created
	if created.IsZero() {
		created = time.Now().UTC().Truncate(time.Second)
	}
	newVersion := &Version{
		Created: created,
		State:   state,
		Message: u.ver.Message,
		User:    u.ver.User,
	}
	if err := u.inv.AddHeadVersion(u.next, newVersion); err != nil {
		return nil, err
	}
	u.prune()
	if err := u.inv.Validate(); err != nil {
		return nil, err
	}
	u.built = true
	return u.inv, nil
}

// prune removes manifest entries whose digests are no longer referenced by
// any version state, along with their fixity entries and pending writes.
func (u *Updater) prune() {
	referenced := map[string]bool{}
	for _, ver := range u.inv.Versions {
		for dig := range ver.State {
			referenced[strings.ToLower(dig)] = true
		}
	}
	removedPaths := map[string]bool{}
	for dig, contentPaths := range u.inv.Manifest {
		if referenced[dig] {
			continue
		}
		for _, p := range contentPaths {
			removedPaths[p] = true
		}
		delete(u.inv.Manifest, dig)
		delete(u.writes, dig)
	}
	for alg, fix := range u.inv.Fixity {
		for _, contentPaths := range fix {
			for _, p := range contentPaths {
				if removedPaths[p] {
					fix.RemovePath(p)
				}
			}
		}
		if len(fix) == 0 {
			delete(u.inv.Fixity, alg)
		}
	}
}

// NewContent returns the spooled content to transfer for the built version:
// a primary digest → content path map (paths relative to the object root),
// and the spool backend holding each blob under its digest. Build must be
// called first.
func (u *Updater) NewContent() (backend.Interface, map[string]string, error) {
	if !u.built {
		return nil, nil, ErrNotStaged
	}
	writes := make(map[string]string, len(u.writes))
	for dig, p := range u.writes {
		writes[dig] = p
	}
	return u.spool, writes, nil
}

// checkDst validates dst as a logical path and checks for collisions with
// existing state entries: an exact match is an overwrite (allowed only with
// WithOverwrite); a match differing only in case is always an error, since
// the paths would collide on case-insensitive filesystems.
func (u *Updater) checkDst(dst string) error {
	if err := u.validator.Validate(dst); err != nil {
		return err
	}
	existing, ok := u.caseMap[strings.ToLower(dst)]
	if !ok {
		return nil
	}
	if existing != dst {
		return fmt.Errorf("%w: %q collides with %q on case-insensitive filesystems", ErrOverwrite, dst, existing)
	}
	if !u.overwrite {
		return fmt.Errorf("%w: %q", ErrOverwrite, dst)
	}
	u.paths.RemovePath(existing)
	return nil
}

// setPath records (digest, logical) in the working state.
func (u *Updater) setPath(dig, logical string) {
	u.paths.Put(strings.ToLower(dig), logical)
	u.caseMap[strings.ToLower(logical)] = logical
}

// normalizedCopy returns a deep copy of the inventory with digests
// lowercased and paths validated.
func normalizedCopy(inv *Inventory) (*Inventory, error) {
	man, err := inv.Manifest.Normalized()
	if err != nil {
		return nil, fmt.Errorf("in manifest: %w", err)
	}
	newInv := *inv
	newInv.digest = "" // the copy's digest differs from the source's
	newInv.Manifest = man
	newInv.Versions = make(map[VNum]*Version, len(inv.Versions))
	for v, ver := range inv.Versions {
		state, err := ver.State.Normalized()
		if err != nil {
			return nil, fmt.Errorf("in version %s state: %w", v, err)
		}
		newInv.Versions[v] = &Version{
			Created: ver.Created,
			Message: ver.Message,
			State:   state,
		}
		if ver.User != nil {
			newInv.Versions[v].User = &User{
				Name:    ver.User.Name,
				Address: ver.User.Address,
			}
		}
	}
	newInv.Fixity = make(map[string]DigestMap, len(inv.Fixity))
	for alg, m := range inv.Fixity {
		fix, err := m.Normalized()
		if err != nil {
			return nil, fmt.Errorf("in %s fixity: %w", alg, err)
		}
		newInv.Fixity[alg] = fix
	}
	return &newInv, nil
}
