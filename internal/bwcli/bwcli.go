// Package bwcli shells out to the bitwarden-cli binary. The session token
// from `bw login` / `bw unlock` is passed on every invocation.
package bwcli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"

	"github.com/chirichan/bw2kp/internal/entities"
)

type Client struct {
	Path    string
	Session string
	Logger  *slog.Logger
}

// ListFolders runs `bw list folders`.
func (c *Client) ListFolders(ctx context.Context) ([]entities.Folder, error) {
	out, err := c.run(ctx, "list", "folders")
	if err != nil {
		return nil, err
	}
	var folders []entities.Folder
	if err := json.Unmarshal(out, &folders); err != nil {
		return nil, fmt.Errorf("decode bw folders: %w", err)
	}
	return folders, nil
}

// ListItems runs `bw list items`.
func (c *Client) ListItems(ctx context.Context) ([]entities.Item, error) {
	out, err := c.run(ctx, "list", "items")
	if err != nil {
		return nil, err
	}
	var items []entities.Item
	if err := json.Unmarshal(out, &items); err != nil {
		return nil, fmt.Errorf("decode bw items: %w", err)
	}
	return items, nil
}

// GetAttachment runs `bw get attachment --raw` and returns the bytes.
func (c *Client) GetAttachment(ctx context.Context, itemID, attachmentID string) ([]byte, error) {
	return c.run(ctx, "get", "attachment", attachmentID, "--raw", "--itemid", itemID)
}

func (c *Client) run(ctx context.Context, args ...string) ([]byte, error) {
	if c.Logger != nil {
		c.Logger.Debug("bw", "args", args)
	}
	cmd := exec.CommandContext(ctx, c.Path, append(args, "--session", c.Session)...)
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return nil, fmt.Errorf("bw %s %s: %w: %s", args[0], args[1], err, bytes.TrimSpace(exitErr.Stderr))
		}
		return nil, fmt.Errorf("bw %s %s: %w", args[0], args[1], err)
	}
	return out, nil
}
