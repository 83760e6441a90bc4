package lib

import (
	"context"
	"fmt"

	"github.com/appdraft/appdraft/internal/app/files"
)

// ListFiles returns a project's source file paths, sorted. Archived projects
// are rehydrated from the blob store transparently.
func (c *Client) ListFiles(ctx context.Context, projectID string) ([]string, error) {
	svc, err := c.newFilesService()
	if err != nil {
		return nil, err
	}

	paths, err := svc.List(ctx, files.ListRequest{ID: projectID})
	if err != nil {
		return nil, mapError(err)
	}
	return paths, nil
}

// ReadFile returns one project file's contents.
func (c *Client) ReadFile(ctx context.Context, projectID, path string) ([]byte, error) {
	svc, err := c.newFilesService()
	if err != nil {
		return nil, err
	}

	content, err := svc.Read(ctx, files.ReadRequest{ID: projectID, Path: path})
	if err != nil {
		return nil, mapError(err)
	}
	return content, nil
}

// WriteFile creates or overwrites one project file. The path must stay inside
// the project tree.
func (c *Client) WriteFile(ctx context.Context, projectID, path string, content []byte) error {
	svc, err := c.newFilesService()
	if err != nil {
		return err
	}

	return mapError(svc.Write(ctx, files.WriteRequest{ID: projectID, Path: path, Content: content}))
}

// RenameFile moves one project file.
func (c *Client) RenameFile(ctx context.Context, projectID, oldPath, newPath string) error {
	svc, err := c.newFilesService()
	if err != nil {
		return err
	}

	return mapError(svc.Rename(ctx, files.RenameRequest{ID: projectID, OldPath: oldPath, NewPath: newPath}))
}

// DeleteFile removes one project file.
func (c *Client) DeleteFile(ctx context.Context, projectID, path string) error {
	svc, err := c.newFilesService()
	if err != nil {
		return err
	}

	return mapError(svc.Delete(ctx, files.DeleteRequest{ID: projectID, Path: path}))
}

func (c *Client) newFilesService() (*files.Service, error) {
	svc, err := files.NewService(files.ServiceConfig{
		Repository: c.repo,
		Registry:   c.registry,
		Logger:     c.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create files service: %w", err)
	}
	return svc, nil
}
