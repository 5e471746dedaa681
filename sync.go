package gridgo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/gridgo/codec"
	"github.com/hupe1980/gridgo/dtype"
	"github.com/hupe1980/gridgo/storage"
)

// syncTarget is one container due for flushing: its location, its attribute
// set and the group or variable that owns it.
type syncTarget struct {
	loc storage.Location
	set *attrSet
	g   *Group    // nil for variable containers
	v   *Variable // nil for group containers
}

func (t *syncTarget) created() bool {
	if t.v != nil {
		return t.v.created
	}
	return t.g.created
}

func (t *syncTarget) setCreated() {
	if t.v != nil {
		t.v.created = true
		return
	}
	t.g.created = true
}

func (t *syncTarget) structDirty() bool {
	if t.v != nil {
		return t.v.structDirty
	}
	return t.g.structDirty
}

func (t *syncTarget) clearStructDirty() {
	if t.v != nil {
		t.v.structDirty = false
		return
	}
	t.g.structDirty = false
}

func (t *syncTarget) meta() *containerMeta {
	if t.v != nil {
		return t.v.buildMeta()
	}
	return t.g.buildMeta()
}

func (t *syncTarget) pending() bool {
	if t.set.hasDirty() || !t.created() || t.structDirty() {
		return true
	}
	return t.v != nil && t.v.fillChanged
}

// collectTargets walks the tree in definition order, parents before children,
// so containers are ensured before anything beneath them.
func collectTargets(g *Group, out []syncTarget) []syncTarget {
	out = append(out, syncTarget{loc: g.loc(), set: &g.atts, g: g})
	for _, obj := range g.vars.Snapshot() {
		v := obj.(*Variable)
		out = append(out, syncTarget{loc: v.loc(), set: &v.atts, v: v})
	}
	for _, obj := range g.groups.Snapshot() {
		out = collectTargets(obj.(*Group), out)
	}
	return out
}

// attrJob is one attribute object write.
type attrJob struct {
	loc storage.Location
	set *attrSet
	a   *attr
}

// commitLocked flushes pending metadata and installs the next manifest.
// Callers hold the write lock. A commit with nothing pending is a no-op and
// does not advance the manifest sequence.
func (ds *Dataset) commitLocked(ctx context.Context) error {
	targets := collectTargets(ds.root, nil)

	work := false
	for i := range targets {
		if targets[i].pending() {
			work = true
			break
		}
	}
	if !work {
		return nil
	}

	start := time.Now()
	attrs, containers, err := ds.flushLocked(ctx, targets)
	ds.metrics.RecordCommit(attrs, time.Since(start), err)
	ds.logger.LogCommit(ctx, attrs, containers, err)
	return err
}

func (ds *Dataset) flushLocked(ctx context.Context, targets []syncTarget) (attrs, containers int, err error) {
	// Phase one: the container objects themselves. A changed fill value
	// recreates the variable's container, which orphans its attribute
	// objects; marking them all dirty re-puts them below.
	touched := make([]bool, len(targets))
	for i := range targets {
		t := &targets[i]
		if t.v != nil && t.v.fillChanged {
			if rerr := ds.recreateForFill(ctx, t.v); rerr != nil {
				return attrs, containers, rerr
			}
		}
		if !t.created() {
			if cerr := ds.store.EnsureContainer(ctx, t.loc); cerr != nil {
				return attrs, containers, &StoreError{Op: "ensure container", Loc: t.loc, cause: cerr}
			}
			t.setCreated()
			touched[i] = true
		}
	}

	// Phase two: dirty attribute objects, fanned out across commit workers.
	// Encoded blobs count against the in-flight memory budget and the store
	// write rate. Each job succeeds or fails alone; successes keep their
	// clean state even when the commit as a whole fails, so a retry only
	// rewrites the remainder.
	var jobs []attrJob
	for i := range targets {
		t := &targets[i]
		if !t.set.hasDirty() {
			continue
		}
		t.set.dirty.Iterate(func(ord uint32) bool {
			if a, ok := t.set.at(int(ord)); ok {
				jobs = append(jobs, attrJob{loc: t.loc, set: t.set, a: a})
			}
			return true
		})
	}

	jobErr := make([]error, len(jobs))
	eg, gctx := errgroup.WithContext(ctx)
	var acquireErr error
	for i := range jobs {
		i := i
		job := jobs[i]
		if acquireErr = ds.rc.AcquireWorker(gctx); acquireErr != nil {
			break
		}
		eg.Go(func() error {
			defer ds.rc.ReleaseWorker()
			jobErr[i] = ds.putAttrObject(gctx, job)
			return jobErr[i]
		})
	}
	waitErr := eg.Wait()
	if waitErr == nil {
		waitErr = acquireErr
	}
	for i := range jobs {
		if jobErr[i] == nil {
			jobs[i].a.created = true
			jobs[i].set.clearDirty(jobs[i].a)
			attrs++
		}
	}
	if waitErr != nil {
		return attrs, containers, waitErr
	}

	// Phase three: metadata objects for containers whose structure changed.
	for i := range targets {
		t := &targets[i]
		if !t.structDirty() && !touched[i] {
			continue
		}
		blob, merr := encodeMeta(t.meta())
		if merr != nil {
			return attrs, containers, fmt.Errorf("encode metadata at %s: %w", t.loc, merr)
		}
		if perr := ds.putBlob(ctx, t.loc, metaAttrName, blob); perr != nil {
			return attrs, containers, perr
		}
		t.clearStructDirty()
		containers++
	}

	// Phase four: the manifest, last. Its sequence number is the commit
	// point; everything before it is invisible to a reader holding the old
	// manifest.
	m := ds.manifest.Clone()
	m.Seq++
	m.UpdatedAt = time.Now().UTC()
	if cerr := ds.store.CommitManifest(ctx, m); cerr != nil {
		return attrs, containers, &StoreError{Op: "commit manifest", Loc: storage.RootLocation(), cause: cerr}
	}
	ds.manifest = m
	return attrs, containers, nil
}

// putAttrObject encodes and writes one attribute object under the resource
// budget.
func (ds *Dataset) putAttrObject(ctx context.Context, job attrJob) error {
	rec := ds.recordFromAttr(job.a)
	blob, err := ds.codec.Encode(rec)
	if err != nil {
		return fmt.Errorf("encode attribute %q at %s: %w", job.a.hdr.Name, job.loc, err)
	}
	size := int64(len(blob))
	if err := ds.rc.AcquireMemory(ctx, size); err != nil {
		return err
	}
	defer ds.rc.ReleaseMemory(size)
	return ds.putBlob(ctx, job.loc, job.a.hdr.Name, blob)
}

func (ds *Dataset) putBlob(ctx context.Context, loc storage.Location, name string, blob []byte) error {
	if err := ds.rc.AcquireIO(ctx, len(blob)); err != nil {
		return err
	}
	if err := ds.store.PutAttribute(ctx, loc, name, blob); err != nil {
		return &StoreError{Op: "put attribute", Loc: loc, cause: err}
	}
	return nil
}

// recreateForFill drops and re-marks a variable container whose fill value
// changed after creation. The store must not patch the old container.
func (ds *Dataset) recreateForFill(ctx context.Context, v *Variable) error {
	if v.created {
		if err := ds.store.RemoveContainer(ctx, v.loc()); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return &StoreError{Op: "remove container", Loc: v.loc(), cause: err}
		}
		v.created = false
	}
	for _, a := range v.atts.snapshot() {
		a.created = false
		v.atts.markDirty(a)
	}
	v.fillChanged = false
	v.structDirty = true
	return nil
}

// recordFromAttr builds the codec record for one descriptor. The record
// aliases the live payload buffers; commit holds the write lock, so nothing
// mutates them while the codec reads.
func (ds *Dataset) recordFromAttr(a *attr) *codec.Record {
	rec := &codec.Record{
		Name:  a.hdr.Name,
		Type:  a.ftype,
		Class: ds.classOf(a.ftype),
		N:     a.n,
	}
	if dtype.IsUser(a.ftype) {
		if t, ok := ds.userType(a.ftype); ok {
			rec.BaseSize = t.size
		}
	}
	switch a.data.kind {
	case payloadVLen:
		rec.VLens = a.data.vlens
	case payloadString:
		rec.Strings = a.data.strings
	default:
		rec.Bytes = a.data.flat
	}
	return rec
}
