package driven

// PromptStore provides access to LLM prompt templates.
// Implementations may load prompts from files or embed them in the binary.
type PromptStore interface {
	// Load returns the prompt template for the given name.
	Load(name string) (string, error)

	// Reload clears any cached prompts, forcing fresh loads on next access.
	Reload()
}

// Well-known prompt names.
const (
	// PromptClusterSystem is the system prompt for cluster insights.
	// It has no format placeholders.
	PromptClusterSystem = "cluster_system"

	// PromptClusterUser introduces the cluster blocks. It expects %s for
	// the industry and %s for the blocks.
	PromptClusterUser = "cluster_user"
)
