// Package fs abstracts the filesystem operations the local store performs,
// so tests can inject failures at any point of an atomic write.
//
//   - [File]: an open file with read/write/sync/stat capabilities
//   - [FileSystem]: open, remove, rename, mkdir, readdir
//   - [LocalFS]: the os-backed production implementation
//   - [FaultyFS]: a wrapper that injects errors by filename pattern
//
// Production code uses fs.Default. Tests wrap it:
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.AddRule("MANIFEST", fs.Fault{FailOnSync: true})
//	store, _ := storage.NewLocalStore(dir, storage.WithFileSystem(ffs))
//
// Operations take no context.Context: local filesystem calls are fast and
// not interruptible at the syscall level. Stores over slow transports get
// cancellation from their own clients.
package fs
