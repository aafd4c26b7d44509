// Package gdrive lists files of a Google Drive folder as external items for
// song reconciliation.
package gdrive

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"cadence/internal/config"
	"cadence/internal/logging"
	"cadence/internal/matching"
	"cadence/internal/services"
	"cadence/internal/sources"
)

const folderMimeType = "application/vnd.google-apps.folder"

// Client lists Drive folders.
type Client struct {
	svc           *drive.Service
	defaultFolder string
	pageSize      int
	logger        *slog.Logger
}

// New builds a client from configuration. Credentials come from cfg.Google
// unless opts is non-empty.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...option.ClientOption) (*Client, error) {
	if len(opts) == 0 {
		var err error
		opts, err = sources.GoogleOptions(ctx, cfg.Google, drive.DriveReadonlyScope)
		if err != nil {
			return nil, err
		}
	}
	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "gdrive", "new service", "", err)
	}
	return &Client{
		svc:           svc,
		defaultFolder: cfg.Google.DriveFolderID,
		pageSize:      cfg.Google.DrivePageSize,
		logger:        logging.NewComponentLogger(logger, "gdrive"),
	}, nil
}

// ListPage returns one page of non-folder files directly inside folderID.
func (c *Client) ListPage(ctx context.Context, folderID, pageToken string) ([]matching.ExternalItem, string, error) {
	call := c.svc.Files.List().
		Context(ctx).
		Q(fmt.Sprintf("'%s' in parents and trashed = false", escapeQuery(folderID))).
		Fields("nextPageToken, files(id, name, mimeType, modifiedTime, size)").
		OrderBy("name").
		PageSize(int64(c.pageSize))
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}
	resp, err := call.Do()
	if err != nil {
		return nil, "", fmt.Errorf("list drive folder %s: %w", folderID, err)
	}
	items := make([]matching.ExternalItem, 0, len(resp.Files))
	for _, f := range resp.Files {
		if f == nil || f.MimeType == folderMimeType {
			continue
		}
		items = append(items, matching.ExternalItem{
			ExternalID: f.Id,
			SourceType: matching.SourceFile,
			RawLabel:   f.Name,
			RawMetadata: map[string]string{
				"folder_id":     folderID,
				"mime_type":     f.MimeType,
				"modified_time": f.ModifiedTime,
				"size":          fmt.Sprintf("%d", f.Size),
			},
		})
	}
	return items, resp.NextPageToken, nil
}

// Items drains every page of scope, which names a folder id. An empty scope
// selects the configured default folder.
func (c *Client) Items(ctx context.Context, scope string) ([]matching.ExternalItem, error) {
	folderID := strings.TrimSpace(scope)
	if folderID == "" {
		folderID = c.defaultFolder
	}
	if folderID == "" {
		return nil, services.Wrap(services.ErrValidation, "gdrive", "list", "no folder id given and google.drive_folder_id is unset", nil)
	}
	var (
		all   []matching.ExternalItem
		token string
		pages int
	)
	for {
		items, next, err := c.ListPage(ctx, folderID, token)
		if err != nil {
			return nil, services.Wrap(services.ErrExternal, "gdrive", "list", "", err)
		}
		all = append(all, items...)
		pages++
		if next == "" {
			break
		}
		token = next
	}
	c.logger.Info("drive folder listed",
		logging.String("folder_id", folderID),
		logging.Int("files", len(all)),
		logging.Int("pages", pages),
	)
	return all, nil
}

func escapeQuery(value string) string {
	value = strings.ReplaceAll(value, `\`, `\\`)
	return strings.ReplaceAll(value, `'`, `\'`)
}
