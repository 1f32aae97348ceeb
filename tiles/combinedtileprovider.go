package tiles

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/olablt/gio-trackmap/metrics"
)

// Source tells where a tile was found.
type Source int

const (
	SourceMemory Source = iota
	SourceDisk
	SourceNetwork
)

func (s Source) String() string {
	switch s {
	case SourceMemory:
		return "memory"
	case SourceDisk:
		return "disk"
	default:
		return "network"
	}
}

// CombinedTileProvider serves tiles from the disk cache and falls back to
// a remote provider, storing what it downloads. Concurrent requests for
// one key share a single lookup.
type CombinedTileProvider struct {
	disk     *DiskCache
	fallback TileProvider
	inflight singleflight.Group
	log      *zap.Logger
}

func NewCombinedTileProvider(disk *DiskCache, fallback TileProvider, log *zap.Logger) *CombinedTileProvider {
	return &CombinedTileProvider{
		disk:     disk,
		fallback: fallback,
		log:      log.Named("provider"),
	}
}

type fetched struct {
	data   []byte
	source Source
}

// Fetch returns the tile bytes and where they came from.
func (p *CombinedTileProvider) Fetch(ctx context.Context, key Key) ([]byte, Source, error) {
	v, err, _ := p.inflight.Do(key.String(), func() (interface{}, error) {
		data, err := p.disk.Get(key)
		if err == nil {
			return fetched{data: data, source: SourceDisk}, nil
		}
		if !errors.Is(err, ErrNotCached) {
			p.log.Warn("disk cache read failed", zap.String("key", key.String()), zap.Error(err))
		}

		data, err = p.fallback.FetchTile(ctx, key)
		if err != nil {
			return nil, err
		}
		if err := p.disk.Put(key, data); err != nil {
			p.log.Warn("disk cache write failed", zap.String("key", key.String()), zap.Error(err))
		}
		return fetched{data: data, source: SourceNetwork}, nil
	})
	if err != nil {
		metrics.TileFetchErrors.WithLabelValues(key.Layer.String()).Inc()
		return nil, 0, fmt.Errorf("load tile %s: %w", key, err)
	}
	f := v.(fetched)
	metrics.TileLookups.WithLabelValues(key.Layer.String(), f.source.String()).Inc()
	return f.data, f.source, nil
}

func (p *CombinedTileProvider) FetchTile(ctx context.Context, key Key) ([]byte, error) {
	data, _, err := p.Fetch(ctx, key)
	return data, err
}
