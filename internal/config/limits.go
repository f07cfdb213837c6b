package config

const (
	// DefaultArchiveChunkSize bounds the buffer used to spool an incoming
	// archive to disk, so peak memory does not grow with archive size.
	DefaultArchiveChunkSize = 1 << 20 // 1 MiB

	// DefaultUploadChunkSize is the size of each append to a blob session.
	DefaultUploadChunkSize = 4 << 20 // 4 MiB

	// DefaultMaxArchiveBytes caps the compressed archive size.
	DefaultMaxArchiveBytes = 512 << 20 // 512 MiB

	// DefaultMaxArchiveEntries and DefaultMaxExtractedBytes reject zip bombs
	// before anything is written to the staging directory.
	DefaultMaxArchiveEntries = 10000
	DefaultMaxExtractedBytes = 2 << 30 // 2 GiB

	// DefaultMaxTreeDepth caps folder recursion. Human-authored hierarchies
	// are shallow; anything deeper is rejected.
	DefaultMaxTreeDepth = 32

	// DefaultClassificationBatchSize is the number of documents per engine call.
	DefaultClassificationBatchSize = 16

	// DefaultWorkerPoolSize bounds concurrent blocking work across all requests.
	DefaultWorkerPoolSize = 8

	// MaxFolderPathLength is the maximum length for a folder path in requests.
	MaxFolderPathLength = 500

	// MaxFolderNameLength matches the longest file name most filesystems allow.
	MaxFolderNameLength = 255
)
