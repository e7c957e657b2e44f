// IoT Pipeline - Telemetry, Alert and Device Lifecycle Processing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/iotpipeline

package devicestore

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tomtom215/iotpipeline/internal/domain"
)

var createdAt = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func newDevice(t *testing.T, id string) domain.Device {
	t.Helper()
	d, _, err := domain.RegisterDevice(domain.DeviceID(id), "Sensor "+id, "thermostat", createdAt)
	if err != nil {
		t.Fatalf("RegisterDevice: %v", err)
	}
	return d
}

// repositoryContract runs the behaviour every Repository must share.
func repositoryContract(t *testing.T, repo Repository) {
	t.Helper()
	ctx := context.Background()

	res := repo.Get(ctx, "dev-1")
	if res.Found() || res.Failed() {
		t.Fatalf("Get on empty store: found=%v err=%v", res.Found(), res.Err())
	}
	processed, err := HasBeenProcessed(ctx, repo, "dev-1")
	if err != nil || processed {
		t.Fatalf("HasBeenProcessed before save = %v, %v", processed, err)
	}

	d := newDevice(t, "dev-1")
	d, err = d.SetProperty("floor", "3", createdAt)
	if err != nil {
		t.Fatalf("SetProperty: %v", err)
	}
	if err := repo.Save(ctx, d); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, found, err := repo.Get(ctx, "dev-1").Get()
	if err != nil || !found {
		t.Fatalf("Get = found %v, err %v", found, err)
	}
	if got.Name != "Sensor dev-1" || got.Status != domain.StatusRegistered || got.Properties["floor"] != "3" {
		t.Errorf("device = %+v", got)
	}

	active, _, err := got.Activate(createdAt.Add(time.Minute))
	if err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if err := repo.Save(ctx, active); err != nil {
		t.Fatalf("Save activated: %v", err)
	}
	got, _, _ = repo.Get(ctx, "dev-1").Get()
	if got.Status != domain.StatusActive {
		t.Errorf("status after overwrite = %v, want Active", got.Status)
	}

	if err := repo.Save(ctx, newDevice(t, "dev-0")); err != nil {
		t.Fatalf("Save dev-0: %v", err)
	}
	all, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 2 || all[0].ID != "dev-0" || all[1].ID != "dev-1" {
		t.Errorf("List = %v", all)
	}
}

func TestMemoryStore(t *testing.T) {
	t.Parallel()
	repositoryContract(t, NewMemoryStore())
}

func TestMemoryStore_CopiesProperties(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewMemoryStore()

	d, _ := newDevice(t, "dev-1").SetProperty("floor", "3", createdAt)
	if err := s.Save(ctx, d); err != nil {
		t.Fatal(err)
	}
	d.Properties["floor"] = "9"

	got, _ := s.Get(ctx, "dev-1").Value()
	if got.Properties["floor"] != "3" {
		t.Errorf("stored properties were aliased: %v", got.Properties)
	}
}

func TestMemoryStore_CanceledContext(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := NewMemoryStore().Get(ctx, "dev-1")
	if !res.Failed() || !errors.Is(res.Err(), context.Canceled) {
		t.Errorf("Get with canceled ctx: %v", res.Err())
	}
}

func TestDeviceMetadata(t *testing.T) {
	t.Parallel()

	d := newDevice(t, "dev-1")
	d, _ = d.SetProperty("deviceName", "shadowed", createdAt)
	d, _ = d.SetProperty("firmware", "1.2.0", createdAt)

	md := DeviceMetadata(d)
	want := map[string]string{
		"deviceName":   "Sensor dev-1",
		"deviceType":   "thermostat",
		"deviceStatus": "Registered",
		"firmware":     "1.2.0",
	}
	if len(md) != len(want) {
		t.Fatalf("metadata = %v, want %v", md, want)
	}
	for k, v := range want {
		if md[k] != v {
			t.Errorf("md[%q] = %q, want %q", k, md[k], v)
		}
	}

	d = d.UpdateLocation("Building A", createdAt)
	if got := DeviceMetadata(d)["location"]; got != "Building A" {
		t.Errorf("location = %q", got)
	}
}

type countingRepo struct {
	Repository
	gets atomic.Int32
	fail error
}

func (r *countingRepo) Get(ctx context.Context, id domain.DeviceID) domain.Result[domain.Device] {
	r.gets.Add(1)
	if r.fail != nil {
		return domain.Failed[domain.Device](r.fail)
	}
	return r.Repository.Get(ctx, id)
}

func TestCached_Metadata(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("hit after first lookup", func(t *testing.T) {
		t.Parallel()
		repo := &countingRepo{Repository: NewMemoryStore()}
		_ = repo.Save(ctx, newDevice(t, "dev-1"))
		c := NewCached(repo, 10, time.Minute)

		for i := 0; i < 3; i++ {
			md, found, err := c.Metadata(ctx, "dev-1").Get()
			if err != nil || !found || md["deviceType"] != "thermostat" {
				t.Fatalf("Metadata = %v, %v, %v", md, found, err)
			}
			md["deviceType"] = "mutated"
		}
		if n := repo.gets.Load(); n != 1 {
			t.Errorf("repository reads = %d, want 1", n)
		}
	})

	t.Run("negative results are cached", func(t *testing.T) {
		t.Parallel()
		repo := &countingRepo{Repository: NewMemoryStore()}
		c := NewCached(repo, 10, time.Minute)

		for i := 0; i < 2; i++ {
			if res := c.Metadata(ctx, "ghost"); res.Found() || res.Failed() {
				t.Fatalf("Metadata(ghost) found=%v err=%v", res.Found(), res.Err())
			}
		}
		if n := repo.gets.Load(); n != 1 {
			t.Errorf("repository reads = %d, want 1", n)
		}
	})

	t.Run("failures are not cached", func(t *testing.T) {
		t.Parallel()
		repo := &countingRepo{Repository: NewMemoryStore(), fail: errors.New("disk on fire")}
		c := NewCached(repo, 10, time.Minute)

		for i := 0; i < 2; i++ {
			if res := c.Metadata(ctx, "dev-1"); !res.Failed() {
				t.Fatal("expected failed lookup")
			}
		}
		if n := repo.gets.Load(); n != 2 {
			t.Errorf("repository reads = %d, want 2", n)
		}
	})

	t.Run("save invalidates", func(t *testing.T) {
		t.Parallel()
		repo := &countingRepo{Repository: NewMemoryStore()}
		c := NewCached(repo, 10, time.Minute)
		d := newDevice(t, "dev-1")
		_ = c.Save(ctx, d)

		_ = c.Metadata(ctx, "dev-1")
		active, _, _ := d.Activate(createdAt)
		if err := c.Save(ctx, active); err != nil {
			t.Fatal(err)
		}
		md, _ := c.Metadata(ctx, "dev-1").Value()
		if md["deviceStatus"] != "Active" {
			t.Errorf("deviceStatus = %q, want Active", md["deviceStatus"])
		}
	})
}
