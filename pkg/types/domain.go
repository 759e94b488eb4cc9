package types

// ModelInfo describes one downloadable model in the static catalog.
// Entries are immutable; they define the universe of installable models.
type ModelInfo struct {
	// Stable identifier for the model.
	// example: qwen2.5-1.5b-instruct-q4
	ID string `json:"id"`
	// Human-friendly name.
	// example: Qwen 2.5 1.5B Instruct (Q4_K_M)
	Name string `json:"name"`
	// Target filename inside the models directory.
	// example: qwen2.5-1.5b-instruct-q4_k_m.gguf
	Filename string `json:"filename"`
	// HTTPS source URL for the GGUF file.
	URL string `json:"url"`
	// Expected file size in bytes.
	SizeBytes int64 `json:"size_bytes"`
	// Expected SHA-256 digest, lowercase hex. Empty means unverified.
	SHA256 string `json:"sha256,omitempty"`
	// License string for display in the UI.
	License string `json:"license"`
	// Minimum device RAM in GB recommended to run this model.
	MinRAMGB int `json:"min_ram_gb"`
}

// DownloadState is the lifecycle state of one catalog model on disk.
type DownloadState string

const (
	StateNotDownloaded DownloadState = "not_downloaded"
	StateDownloading   DownloadState = "downloading"
	StateVerifying     DownloadState = "verifying"
	StateDownloaded    DownloadState = "downloaded"
	StateFailed        DownloadState = "failed"
)

// DownloadStatus is the mutable per-model status reported by the download
// manager. Progress is meaningful only while downloading; readers must not
// assume it is monotonic across observations.
type DownloadStatus struct {
	State    DownloadState `json:"state"`
	Progress float64       `json:"progress,omitempty"`
	Message  string        `json:"message,omitempty"`
}

// ModelEntry pairs a catalog entry with its current download status.
type ModelEntry struct {
	Info   ModelInfo      `json:"info"`
	Status DownloadStatus `json:"status"`
}

// Message is one incoming mail item queued for background AI processing.
// The subsystem never persists these; the mail store owns them.
type Message struct {
	ID      string `json:"id"`
	Subject string `json:"subject"`
	Snippet string `json:"snippet"`
}

// QueueState is a read-only projection of the background processing queue.
type QueueState struct {
	Processing       bool   `json:"processing"`
	ProcessedCount   int    `json:"processed_count"`
	TotalCount       int    `json:"total_count"`
	LastCategorized  int    `json:"last_categorized_count"`
	LastSpam         int    `json:"last_spam_count"`
	Generation       uint64 `json:"generation"`
}
