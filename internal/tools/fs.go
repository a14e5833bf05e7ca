package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/varanus-io/toolhost/internal/registry"
	"github.com/varanus-io/toolhost/internal/security"
)

// RegisterFilesystem adds the file management tools. Every operation
// consults the guard before touching a path; a veto surfaces as an access
// denial regardless of whether the path exists.
func RegisterFilesystem(reg *registry.Registry, guard *security.Guard) error {
	fs := &fsTools{guard: guard}

	registrations := []struct {
		spec    registry.Spec
		handler registry.Handler
	}{
		{readFileSpec(), fs.readFile},
		{writeFileSpec(), fs.writeFile},
		{listDirectorySpec(), fs.listDirectory},
		{searchFilesSpec(), fs.searchFiles},
		{getFileInfoSpec(), fs.getFileInfo},
		{createDirectorySpec(), fs.createDirectory},
	}

	for _, r := range registrations {
		if err := reg.Register(r.spec, r.handler); err != nil {
			return err
		}
	}

	return nil
}

type fsTools struct {
	guard *security.Guard
}

func readFileSpec() registry.Spec {
	return registry.Spec{
		Name:        "read_file",
		Description: "Read the contents of a text file",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"filepath": {
					Type:        "string",
					Description: "Path to the file to read",
				},
			},
			Required: []string{"filepath"},
		},
	}
}

func (f *fsTools) readFile(_ context.Context, args map[string]any) ([]mcp.Content, error) {
	path := stringArg(args, "filepath")

	if err := f.guard.Check(path); err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file not found: %s", path)
		}

		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	if info.IsDir() {
		return nil, fmt.Errorf("%s is not a file", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	if !utf8.Valid(data) {
		return nil, fmt.Errorf("cannot read %s as text (binary file?)", path)
	}

	return text(fmt.Sprintf("Content of %s:\n\n%s", path, data)), nil
}

func writeFileSpec() registry.Spec {
	return registry.Spec{
		Name:        "write_file",
		Description: "Write content to a text file",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"filepath": {
					Type:        "string",
					Description: "Path to the file to write",
				},
				"content": {
					Type:        "string",
					Description: "Content to write to the file",
				},
				"mode": {
					Type:        "string",
					Enum:        []any{"write", "append"},
					Description: "Write mode: 'write' to overwrite, 'append' to add to end",
					Default:     []byte(`"write"`),
				},
			},
			Required: []string{"filepath", "content"},
		},
	}
}

func (f *fsTools) writeFile(_ context.Context, args map[string]any) ([]mcp.Content, error) {
	path := stringArg(args, "filepath")
	content := stringArg(args, "content")
	mode := stringArg(args, "mode")

	if err := f.guard.Check(path); err != nil {
		return nil, err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create parent directory: %w", err)
		}
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	action := "Written to"

	if mode == "append" {
		flags = os.O_WRONLY | os.O_CREATE | os.O_APPEND
		action = "Appended to"
	}

	file, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	if _, err := file.WriteString(content); err != nil {
		_ = file.Close()

		return nil, fmt.Errorf("write %s: %w", path, err)
	}

	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("close %s: %w", path, err)
	}

	return text(fmt.Sprintf("%s %s successfully (%d characters)",
		action, path, utf8.RuneCountInString(content))), nil
}

func listDirectorySpec() registry.Spec {
	return registry.Spec{
		Name:        "list_directory",
		Description: "List contents of a directory",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"directory": {
					Type:        "string",
					Description: "Path to the directory to list",
				},
				"include_hidden": {
					Type:        "boolean",
					Description: "Whether to include hidden files",
					Default:     []byte("false"),
				},
			},
			Required: []string{"directory"},
		},
	}
}

func (f *fsTools) listDirectory(_ context.Context, args map[string]any) ([]mcp.Content, error) {
	dir := stringArg(args, "directory")
	includeHidden := boolArg(args, "include_hidden")

	if err := f.guard.Check(dir); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("directory not found: %s", dir)
		}

		return nil, fmt.Errorf("list %s: %w", dir, err)
	}

	lines := make([]string, 0, len(entries))

	for _, entry := range entries {
		if !includeHidden && strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		if entry.IsDir() {
			lines = append(lines, fmt.Sprintf("%-4s %s", "DIR", entry.Name()))

			continue
		}

		sizeInfo := ""
		if info, err := entry.Info(); err == nil {
			sizeInfo = " (" + humanSize(info.Size()) + ")"
		}

		lines = append(lines, fmt.Sprintf("%-4s %s%s", "FILE", entry.Name(), sizeInfo))
	}

	sort.Strings(lines)

	return text(fmt.Sprintf("Contents of %s:\n\n%s", dir, strings.Join(lines, "\n"))), nil
}

func searchFilesSpec() registry.Spec {
	return registry.Spec{
		Name:        "search_files",
		Description: "Search for files matching a pattern",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"pattern": {
					Type:        "string",
					Description: "Glob pattern to search for (e.g., '*.txt')",
				},
				"directory": {
					Type:        "string",
					Description: "Directory to search in (defaults to current directory)",
					Default:     []byte(`"."`),
				},
			},
			Required: []string{"pattern"},
		},
	}
}

func (f *fsTools) searchFiles(_ context.Context, args map[string]any) ([]mcp.Content, error) {
	pattern := stringArg(args, "pattern")
	dir := stringArg(args, "directory")

	if err := f.guard.Check(dir); err != nil {
		return nil, err
	}

	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, fmt.Errorf("bad pattern %q: %w", pattern, err)
	}

	allowed := matches[:0]
	for _, match := range matches {
		if f.guard.Allowed(match) {
			allowed = append(allowed, match)
		}
	}

	if len(allowed) == 0 {
		return text("No files found matching pattern: " + pattern), nil
	}

	sort.Strings(allowed)

	lines := make([]string, 0, len(allowed)+1)
	lines = append(lines, fmt.Sprintf("Found %d files matching %q:", len(allowed), pattern))

	for _, match := range allowed {
		info, err := os.Stat(match)
		if err != nil {
			continue
		}

		if info.IsDir() {
			lines = append(lines, fmt.Sprintf("%-4s %s", "DIR", match))
		} else {
			lines = append(lines, fmt.Sprintf("%-4s %s (%d bytes)", "FILE", match, info.Size()))
		}
	}

	return text(strings.Join(lines, "\n")), nil
}

func getFileInfoSpec() registry.Spec {
	return registry.Spec{
		Name:        "get_file_info",
		Description: "Get detailed information about a file or directory",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"filepath": {
					Type:        "string",
					Description: "Path to the file or directory",
				},
			},
			Required: []string{"filepath"},
		},
	}
}

func (f *fsTools) getFileInfo(_ context.Context, args map[string]any) ([]mcp.Content, error) {
	path := stringArg(args, "filepath")

	if err := f.guard.Check(path); err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("path not found: %s", path)
		}

		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	kind := "file"
	if info.IsDir() {
		kind = "directory"
	}

	details := map[string]any{
		"path":          path,
		"absolute_path": abs,
		"type":          kind,
		"size_bytes":    info.Size(),
		"modified_time": info.ModTime().Format(time.RFC3339),
		"permissions":   info.Mode().Perm().String(),
	}

	if !info.IsDir() {
		details["extension"] = filepath.Ext(path)
	}

	return jsonText("File Information", details)
}

func createDirectorySpec() registry.Spec {
	return registry.Spec{
		Name:        "create_directory",
		Description: "Create a new directory",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"directory": {
					Type:        "string",
					Description: "Path of the directory to create",
				},
				"recursive": {
					Type:        "boolean",
					Description: "Create parent directories if they don't exist",
					Default:     []byte("true"),
				},
			},
			Required: []string{"directory"},
		},
	}
}

func (f *fsTools) createDirectory(_ context.Context, args map[string]any) ([]mcp.Content, error) {
	dir := stringArg(args, "directory")
	recursive := boolArg(args, "recursive")

	if err := f.guard.Check(dir); err != nil {
		return nil, err
	}

	if _, err := os.Stat(dir); err == nil {
		return text("Directory already exists: " + dir), nil
	}

	if recursive {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	} else {
		if err := os.Mkdir(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}

	return text("Created directory: " + dir), nil
}

// humanSize renders a byte count the way directory listings expect.
func humanSize(n int64) string {
	switch {
	case n < 1024:
		return fmt.Sprintf("%d B", n)
	case n < 1024*1024:
		return fmt.Sprintf("%.1f KB", float64(n)/1024)
	default:
		return fmt.Sprintf("%.1f MB", float64(n)/(1024*1024))
	}
}
