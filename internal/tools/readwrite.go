package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// resolvePath joins a relative tool path onto the batch working directory.
func resolvePath(path, workDir string) string {
	if filepath.IsAbs(path) || workDir == "" {
		return path
	}
	return filepath.Join(workDir, path)
}

// ReadFileTool returns a file's contents.
type ReadFileTool struct{}

func (ReadFileTool) Name() string { return NameReadFile }

func (ReadFileTool) Run(_ context.Context, call Call, env ExecContext) Outcome {
	path, ok := call.Params.Get("path")
	if !ok || path == "" {
		return Failure{Message: "read_file requires a path parameter", ErrorType: "invalid_args"}
	}

	data, err := os.ReadFile(resolvePath(path, env.WorkingDir))
	if err != nil {
		return Failure{Message: err.Error(), ErrorType: "file_read_error"}
	}
	return Success{Content: string(data)}
}

// WriteFileTool writes content to a file, creating parent directories.
// When the file already existed, its previous contents are attached as
// metadata so the change can be rendered as a diff.
type WriteFileTool struct{}

func (WriteFileTool) Name() string { return NameWriteFile }

func (WriteFileTool) Run(_ context.Context, call Call, env ExecContext) Outcome {
	path, ok := call.Params.Get("path")
	if !ok || path == "" {
		return Failure{Message: "write_file requires a path parameter", ErrorType: "invalid_args"}
	}
	content, ok := call.Params.Get("content")
	if !ok {
		return Failure{Message: "write_file requires a content parameter", ErrorType: "invalid_args"}
	}

	full := resolvePath(path, env.WorkingDir)

	meta := map[string]string{}
	if old, err := os.ReadFile(full); err == nil {
		meta[MetaOldContent] = string(old)
		meta[MetaFileExisted] = "true"
	}

	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return Failure{Message: err.Error(), ErrorType: "file_write_error"}
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		return Failure{Message: err.Error(), ErrorType: "file_write_error"}
	}

	return Success{
		Content:  fmt.Sprintf("Wrote %d bytes to %s", len(content), path),
		Metadata: meta,
	}
}
