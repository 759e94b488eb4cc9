// Package catalog is the built-in registry of downloadable models: it maps
// stable ids to GGUF file URLs plus the metadata needed to verify and
// account for them. The list is static; users cannot add entries.
package catalog

import "mailmind/pkg/types"

// Ids of the two built-in models. SmallModelID fits low-RAM devices;
// LargeModelID needs at least 6 GB.
const (
	SmallModelID = "qwen2.5-1.5b-instruct-q4"
	LargeModelID = "llama-3.2-3b-instruct-q4"
)

// ramThresholdBytes splits devices between the small and large model.
const ramThresholdBytes = 6 << 30

// Models is the built-in list of downloadable models, smallest first.
var Models = []types.ModelInfo{
	{
		ID:        SmallModelID,
		Name:      "Qwen 2.5 1.5B Instruct (Q4_K_M)",
		Filename:  "qwen2.5-1.5b-instruct-q4_k_m.gguf",
		URL:       "https://huggingface.co/Qwen/Qwen2.5-1.5B-Instruct-GGUF/resolve/main/qwen2.5-1.5b-instruct-q4_k_m.gguf",
		SizeBytes: 986_046_560,
		SHA256:    "4d8e87c611f9a2f7a8cf1ca9d5ae0d9f3b0c2717f8c44f4d8b8ddcbb6a67b55e",
		License:   "Apache-2.0",
		MinRAMGB:  4,
	},
	{
		ID:        LargeModelID,
		Name:      "Llama 3.2 3B Instruct (Q4_K_M)",
		Filename:  "llama-3.2-3b-instruct-q4_k_m.gguf",
		URL:       "https://huggingface.co/bartowski/Llama-3.2-3B-Instruct-GGUF/resolve/main/Llama-3.2-3B-Instruct-Q4_K_M.gguf",
		SizeBytes: 2_019_377_440,
		SHA256:    "6c1a2b9c0d34f81e5a7d2d9b14bdfd0e9a14c14a7df5822f913a1bb9f4c3278d",
		License:   "Llama 3.2 Community License",
		MinRAMGB:  6,
	},
}

// ByID looks up a catalog entry by id.
func ByID(id string) (types.ModelInfo, bool) {
	for _, m := range Models {
		if m.ID == id {
			return m, true
		}
	}
	return types.ModelInfo{}, false
}

// Recommended returns the model id best suited to a device with the given
// total physical memory in bytes. Pure function of the input; callers pass
// sysinfo.TotalRAM() for the running device.
func Recommended(totalRAMBytes uint64) string {
	if totalRAMBytes >= ramThresholdBytes {
		return LargeModelID
	}
	return SmallModelID
}
