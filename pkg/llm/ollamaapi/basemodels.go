package ollamaapi

// baseModel describes a well-known model family.
type baseModel struct {
	ID            string
	Description   string
	Tags          []string
	Pulls         int
	Added         string // yyyymmdd
	ContextWindow int
	HasTools      bool
	HasVision     bool
	IsEmbeddings  bool
}

// prevUpdate is the date of the previous table refresh; models added after
// it are flagged new.
const prevUpdate = "20250301"

var baseModels = []baseModel{
	{
		ID:            "llama3.3",
		Description:   "New state of the art 70B model. Llama 3.3 70B offers similar performance compared to the Llama 3.1 405B model.",
		Tags:          []string{"70b"},
		Pulls:         1_400_000,
		Added:         "20241206",
		ContextWindow: 131072,
		HasTools:      true,
	},
	{
		ID:            "llama3.2",
		Description:   "Meta's Llama 3.2 goes small with 1B and 3B models.",
		Tags:          []string{"1b", "3b"},
		Pulls:         9_800_000,
		Added:         "20240925",
		ContextWindow: 131072,
		HasTools:      true,
	},
	{
		ID:            "llama3.2-vision",
		Description:   "Llama 3.2 Vision is a collection of instruction-tuned image reasoning generative models in 11B and 90B sizes.",
		Tags:          []string{"11b", "90b"},
		Pulls:         1_100_000,
		Added:         "20241106",
		ContextWindow: 131072,
		HasVision:     true,
	},
	{
		ID:            "llama3.1",
		Description:   "Llama 3.1 is a new state-of-the-art model from Meta available in 8B, 70B and 405B parameter sizes.",
		Tags:          []string{"8b", "70b", "405b"},
		Pulls:         25_000_000,
		Added:         "20240723",
		ContextWindow: 131072,
		HasTools:      true,
	},
	{
		ID:            "qwen2.5",
		Description:   "Qwen2.5 models are pretrained on Alibaba's latest large-scale dataset, encompassing up to 18 trillion tokens. The model supports up to 128K tokens and has multilingual support.",
		Tags:          []string{"0.5b", "1.5b", "3b", "7b", "14b", "32b", "72b"},
		Pulls:         5_100_000,
		Added:         "20240919",
		ContextWindow: 32768,
		HasTools:      true,
	},
	{
		ID:            "deepseek-r1",
		Description:   "DeepSeek's first-generation of reasoning models with comparable performance to OpenAI-o1.",
		Tags:          []string{"1.5b", "7b", "8b", "14b", "32b", "70b", "671b"},
		Pulls:         28_000_000,
		Added:         "20250120",
		ContextWindow: 131072,
	},
	{
		ID:            "gemma3",
		Description:   "The current, most capable model that runs on a single GPU.",
		Tags:          []string{"1b", "4b", "12b", "27b"},
		Pulls:         1_600_000,
		Added:         "20250312",
		ContextWindow: 131072,
		HasVision:     true,
	},
	{
		ID:            "mistral",
		Description:   "The 7B model released by Mistral AI, updated to version 0.3.",
		Tags:          []string{"7b"},
		Pulls:         11_000_000,
		Added:         "20231001",
		ContextWindow: 32768,
		HasTools:      true,
	},
	{
		ID:            "phi4",
		Description:   "Phi-4 is a 14B parameter, state-of-the-art open model from Microsoft.",
		Tags:          []string{"14b"},
		Pulls:         1_500_000,
		Added:         "20250108",
		ContextWindow: 16384,
	},
	{
		ID:            "llava",
		Description:   "LLaVA is a novel end-to-end trained large multimodal model that combines a vision encoder and Vicuna for general-purpose visual and language understanding.",
		Tags:          []string{"7b", "13b", "34b"},
		Pulls:         4_300_000,
		Added:         "20231212",
		ContextWindow: 4096,
		HasVision:     true,
	},
	{
		ID:           "nomic-embed-text",
		Description:  "A high-performing open embedding model with a large token context window.",
		Pulls:        22_000_000,
		Added:        "20240220",
		IsEmbeddings: true,
	},
}

// findBaseModel looks a model family up by name (without tag).
func findBaseModel(name string) (baseModel, bool) {
	for _, m := range baseModels {
		if m.ID == name {
			return m, true
		}
	}
	return baseModel{}, false
}
