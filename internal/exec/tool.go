package exec

import "os/exec"

// ToolChecker checks for tool availability in PATH.
type ToolChecker interface {
	// IsAvailable checks if a tool is available in PATH.
	IsAvailable(tool string) bool

	// RequireTool returns an error if the tool is not available.
	RequireTool(tool string) error

	// FindTool returns the resolved path of the first available tool from the
	// list of alternatives. Returns empty string if none are available.
	FindTool(alternatives ...string) string
}

// toolChecker implements ToolChecker.
type toolChecker struct {
	lookPath func(string) (string, error)
}

// NewToolChecker creates a new ToolChecker backed by exec.LookPath.
func NewToolChecker() *toolChecker {
	return &toolChecker{lookPath: exec.LookPath}
}

// NewToolCheckerWithLookup creates a ToolChecker with a custom lookup, used to
// pin PATH resolution in tests.
func NewToolCheckerWithLookup(lookPath func(string) (string, error)) *toolChecker {
	return &toolChecker{lookPath: lookPath}
}

// IsAvailable checks if a tool is available in PATH.
func (t *toolChecker) IsAvailable(tool string) bool {
	_, err := t.lookPath(tool)

	return err == nil
}

// RequireTool returns an error if the tool is not available.
func (t *toolChecker) RequireTool(tool string) error {
	if !t.IsAvailable(tool) {
		return &ToolNotFoundError{Tool: tool}
	}

	return nil
}

// FindTool returns the path of the first available tool.
func (t *toolChecker) FindTool(alternatives ...string) string {
	for _, tool := range alternatives {
		if path, err := t.lookPath(tool); err == nil {
			return path
		}
	}

	return ""
}

// ToolNotFoundError is returned when a required tool is not found.
type ToolNotFoundError struct {
	Tool string
}

// Error returns the error message.
func (e *ToolNotFoundError) Error() string {
	return "tool not found in PATH: " + e.Tool
}
