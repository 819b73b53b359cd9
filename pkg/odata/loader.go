package odata

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pboyd04/goodata/pkg/cache"
	"github.com/pboyd04/goodata/pkg/csdl"
)

// MetadataLoader fetches $metadata documents, keeping the raw XML in Cache
// when one is set.
type MetadataLoader struct {
	Client   HTTPClient
	Cache    cache.Cache
	TTL      time.Duration
	User     string
	Password string
}

// MetadataURL is the $metadata address of a service root.
func MetadataURL(serviceRoot string) string {
	return strings.TrimSuffix(serviceRoot, "/") + "/$metadata"
}

func cacheKey(serviceRoot string) string {
	return "metadata:" + MetadataURL(serviceRoot)
}

func (l *MetadataLoader) Load(ctx context.Context, serviceRoot string) (*csdl.Edmx, error) {
	key := cacheKey(serviceRoot)
	if l.Cache != nil {
		raw, err := l.Cache.Get(ctx, key)
		switch {
		case err == nil:
			doc, err := csdl.Unmarshal(raw)
			if err == nil {
				logger.Debug("metadata from cache", zap.String("service", serviceRoot))
				return doc, nil
			}
			logger.Warn("dropping unreadable cached metadata", zap.String("service", serviceRoot), zap.Error(err))
			_ = l.Cache.Delete(ctx, key)
		case !cache.IsCacheMiss(err):
			logger.Warn("metadata cache unavailable", zap.Error(err))
		}
	}
	req := &Request{
		RequestURI: MetadataURL(serviceRoot),
		User:       l.User,
		Password:   l.Password,
	}
	data, resp, err := ReadContext(ctx, req, WithHandler(MetadataHandler{}), WithHTTPClient(l.Client))
	if err != nil {
		return nil, err
	}
	doc, ok := data.(*csdl.Edmx)
	if !ok {
		return nil, errors.New("odata: metadata handler returned no document")
	}
	if l.Cache != nil {
		if err := l.Cache.Set(ctx, key, resp.Body, l.TTL); err != nil {
			logger.Warn("caching metadata", zap.Error(err))
		}
	}
	return doc, nil
}

// Invalidate drops the cached document of serviceRoot.
func (l *MetadataLoader) Invalidate(ctx context.Context, serviceRoot string) error {
	if l.Cache == nil {
		return nil
	}
	if err := l.Cache.Delete(ctx, cacheKey(serviceRoot)); err != nil {
		return fmt.Errorf("odata: invalidating metadata: %w", err)
	}
	return nil
}
