package conventions

const (
	// DefaultDataDir is the default appdraft data directory name (relative to home).
	DefaultDataDir = ".appdraft"
	// ProjectsDir is the subdirectory holding active project trees.
	ProjectsDir = "projects"
	// DepCacheDir is the subdirectory for the shared dependency cache.
	DepCacheDir = "depcache"
	// ArchivesDir is the subdirectory for the local archive fallback.
	ArchivesDir = "archives"
	// DBFile is the SQLite metadata database filename.
	DBFile = "appdraft.db"

	// EntryFile is the scaffold file whose generation failure is fatal.
	EntryFile = "App.tsx"
	// ManifestFile is the package manifest written into every scaffold.
	ManifestFile = "package.json"

	// ArchiveKeyPrefix is the blob store prefix for project bundles.
	ArchiveKeyPrefix = "projects/"
	// ArchiveKeySuffix is the bundle extension.
	ArchiveKeySuffix = ".zip"

	// DefaultStartPort is the first port handed out by the allocator.
	DefaultStartPort = 19006
	// DefaultMaxPorts is the size of the allocator pool.
	DefaultMaxPorts = 100
)

// ArchiveExcludedDirs are directory names never included in a project bundle:
// reproducible, large, and not needed for round-trip correctness.
var ArchiveExcludedDirs = []string{"node_modules", ".expo", ".git", "dist", "web-build"}
