// IoT Pipeline - Telemetry, Alert and Device Lifecycle Processing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/iotpipeline

package devicestore

import (
	"context"
	"maps"
	"time"

	"github.com/tomtom215/iotpipeline/internal/cache"
	"github.com/tomtom215/iotpipeline/internal/domain"
	"github.com/tomtom215/iotpipeline/internal/metrics"
)

const metadataCacheName = "device_metadata"

type cachedMetadata struct {
	md    map[string]string
	found bool
}

// Cached fronts a Repository with an LRU of enrichment metadata. Unknown
// devices are cached as misses too; failed reads are not cached. Save drops
// the cached entry for the saved device.
type Cached struct {
	repo  Repository
	cache *cache.LRU[domain.DeviceID, cachedMetadata]
}

// NewCached wraps repo. A non-positive capacity or ttl uses the LRU defaults.
func NewCached(repo Repository, capacity int, ttl time.Duration) *Cached {
	return &Cached{
		repo:  repo,
		cache: cache.NewLRU[domain.DeviceID, cachedMetadata](capacity, ttl),
	}
}

func (c *Cached) Get(ctx context.Context, id domain.DeviceID) domain.Result[domain.Device] {
	return c.repo.Get(ctx, id)
}

func (c *Cached) Save(ctx context.Context, d domain.Device) error {
	err := c.repo.Save(ctx, d)
	c.cache.Remove(d.ID)
	return err
}

func (c *Cached) List(ctx context.Context) ([]domain.Device, error) {
	return c.repo.List(ctx)
}

// Metadata returns the enrichment metadata for id, served from the cache when
// possible.
//
// On a cache miss the device is read from the repository and:
//  1. a found device has its metadata computed with DeviceMetadata and cached
//  2. an unknown device is cached as NotFound so repeated lookups for it do
//     not reach the repository until the entry expires
//  3. a failed read is returned as Failed and nothing is cached
//
// The returned map is a copy; callers may modify it.
func (c *Cached) Metadata(ctx context.Context, id domain.DeviceID) domain.Result[map[string]string] {
	if e, ok := c.cache.Get(id); ok {
		metrics.RecordCacheLookup(metadataCacheName, true)
		if !e.found {
			return domain.NotFound[map[string]string]()
		}
		return domain.Found(maps.Clone(e.md))
	}
	metrics.RecordCacheLookup(metadataCacheName, false)

	d, found, err := c.repo.Get(ctx, id).Get()
	if err != nil {
		return domain.Failed[map[string]string](err)
	}
	if !found {
		c.cache.Add(id, cachedMetadata{})
		return domain.NotFound[map[string]string]()
	}
	md := DeviceMetadata(d)
	c.cache.Add(id, cachedMetadata{md: md, found: true})
	return domain.Found(maps.Clone(md))
}

// Invalidate drops any cached metadata for id.
func (c *Cached) Invalidate(id domain.DeviceID) {
	c.cache.Remove(id)
}

// CleanupExpired evicts expired metadata and returns how many entries went.
func (c *Cached) CleanupExpired() int {
	return c.cache.CleanupExpired()
}
