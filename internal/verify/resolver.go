package verify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"signprep/internal/config"
	"signprep/internal/services"
)

// ErrMalformedResponse marks a lookup reply missing required fields.
var ErrMalformedResponse = errors.New("malformed response")

// Video is one resolved identifier.
type Video struct {
	ID    string
	URL   string
	Title string
}

// Resolver looks up one batch of identifiers. Ids the service does not know
// are absent from the result; order follows the service's reply.
type Resolver interface {
	Resolve(ctx context.Context, ids []string) ([]Video, error)
}

// YouTubeResolver resolves ids through the YouTube Data API v3.
type YouTubeResolver struct {
	service *youtube.Service
}

// NewYouTubeResolver builds a resolver authenticated with the configured API
// key. A non-empty endpoint replaces the public API base URL.
func NewYouTubeResolver(ctx context.Context, cfg config.YouTube, extra ...option.ClientOption) (*YouTubeResolver, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, services.Wrap(services.ErrConfiguration, services.StageVerify, "init", "youtube api key not set", nil)
	}
	opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.Endpoint != "" {
		endpoint := cfg.Endpoint
		if !strings.HasSuffix(endpoint, "/") {
			endpoint += "/"
		}
		opts = append(opts, option.WithEndpoint(endpoint))
	}
	opts = append(opts, extra...)
	svc, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, services.StageVerify, "init", "create youtube client", err)
	}
	return &YouTubeResolver{service: svc}, nil
}

// Resolve issues a single videos.list call with part=snippet and the batch
// comma-joined into one id parameter.
func (r *YouTubeResolver) Resolve(ctx context.Context, ids []string) ([]Video, error) {
	if len(ids) > config.MaxYouTubeBatchSize {
		return nil, services.Wrap(services.ErrValidation, services.StageVerify, "resolve",
			fmt.Sprintf("batch of %d ids exceeds %d", len(ids), config.MaxYouTubeBatchSize), nil)
	}
	resp, err := r.service.Videos.List([]string{"snippet"}).Id(strings.Join(ids, ",")).Context(ctx).Do()
	if err != nil {
		return nil, classifyAPIError(ctx, err)
	}
	if resp == nil || resp.Kind == "" {
		return nil, services.Wrap(ErrMalformedResponse, services.StageVerify, "resolve", "reply has no kind", nil)
	}
	// An explicit "items": [] decodes to an empty non-nil slice.
	if resp.Items == nil {
		return nil, services.Wrap(ErrMalformedResponse, services.StageVerify, "resolve", "reply has no items", nil)
	}
	videos := make([]Video, 0, len(resp.Items))
	for i, item := range resp.Items {
		if item == nil || item.Snippet == nil {
			return nil, services.Wrap(ErrMalformedResponse, services.StageVerify, "resolve",
				fmt.Sprintf("item %d has no snippet", i), nil)
		}
		if item.Id == "" {
			return nil, services.Wrap(ErrMalformedResponse, services.StageVerify, "resolve",
				fmt.Sprintf("item %d has no id", i), nil)
		}
		videos = append(videos, Video{ID: item.Id, URL: WatchURL(item.Id), Title: item.Snippet.Title})
	}
	return videos, nil
}

func classifyAPIError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return services.Wrap(services.ErrTimeout, services.StageVerify, "resolve", "youtube request timed out", err)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return services.Wrap(services.ErrExternalTool, services.StageVerify, "resolve",
			fmt.Sprintf("youtube api returned %d", apiErr.Code), err)
	}
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return services.Wrap(ErrMalformedResponse, services.StageVerify, "resolve", "reply is not json", err)
	}
	return services.Wrap(services.ErrExternalTool, services.StageVerify, "resolve", "youtube request failed", err)
}
